package services

import (
	"regexp"
	"strings"
)

var (
	reHTMLTag    = regexp.MustCompile(`<[^<]+?>`)
	reSoundTag   = regexp.MustCompile(`\[sound:[^\]]+\]`)
	reHTMLEntity = regexp.MustCompile(`&(nbsp|amp|lt|gt|quot|#39);`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

var htmlEntities = map[string]string{
	"&nbsp;": " ",
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
}

// CleanFieldText strips markup from a flashcard field: HTML tags, existing
// [sound:...] references and the common HTML entities Anki leaves behind.
func CleanFieldText(text string) string {
	cleaned := reSoundTag.ReplaceAllString(text, " ")
	cleaned = reHTMLTag.ReplaceAllString(cleaned, " ")
	cleaned = reHTMLEntity.ReplaceAllStringFunc(cleaned, func(m string) string {
		return htmlEntities[m]
	})
	cleaned = reSpaces.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// HasSoundTag reports whether a field already references an audio file.
func HasSoundTag(text string) bool {
	return reSoundTag.MatchString(text)
}
