package services

import (
	"sort"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// SupportedLanguage ties a short language code to the detector model and the
// locale Google TTS expects.
type SupportedLanguage struct {
	Code   string
	Name   string
	Lingua lingua.Language
	Locale string
}

var supportedLanguages = map[string]SupportedLanguage{
	"en":  {"en", "English", lingua.English, "en-US"},
	"es":  {"es", "Spanish", lingua.Spanish, "es-ES"},
	"fr":  {"fr", "French", lingua.French, "fr-FR"},
	"pt":  {"pt", "Portuguese", lingua.Portuguese, "pt-BR"},
	"ar":  {"ar", "Arabic", lingua.Arabic, "ar-XA"},
	"ja":  {"ja", "Japanese", lingua.Japanese, "ja-JP"},
	"zh":  {"zh", "Chinese", lingua.Chinese, "cmn-CN"},
	"de":  {"de", "German", lingua.German, "de-DE"},
	"hi":  {"hi", "Hindi", lingua.Hindi, "hi-IN"},
	"ko":  {"ko", "Korean", lingua.Korean, "ko-KR"},
	"it":  {"it", "Italian", lingua.Italian, "it-IT"},
	"id":  {"id", "Indonesian", lingua.Indonesian, "id-ID"},
	"nl":  {"nl", "Dutch", lingua.Dutch, "nl-NL"},
	"tr":  {"tr", "Turkish", lingua.Turkish, "tr-TR"},
	"fil": {"fil", "Filipino", lingua.Tagalog, "fil-PH"},
	"pl":  {"pl", "Polish", lingua.Polish, "pl-PL"},
	"sv":  {"sv", "Swedish", lingua.Swedish, "sv-SE"},
	"bg":  {"bg", "Bulgarian", lingua.Bulgarian, "bg-BG"},
	"ro":  {"ro", "Romanian", lingua.Romanian, "ro-RO"},
	"cs":  {"cs", "Czech", lingua.Czech, "cs-CZ"},
	"el":  {"el", "Greek", lingua.Greek, "el-GR"},
	"fi":  {"fi", "Finnish", lingua.Finnish, "fi-FI"},
	"hr":  {"hr", "Croatian", lingua.Croatian, "hr-HR"},
	"ms":  {"ms", "Malay", lingua.Malay, "ms-MY"},
	"sk":  {"sk", "Slovak", lingua.Slovak, "sk-SK"},
	"da":  {"da", "Danish", lingua.Danish, "da-DK"},
	"ta":  {"ta", "Tamil", lingua.Tamil, "ta-IN"},
	"uk":  {"uk", "Ukrainian", lingua.Ukrainian, "uk-UA"},
	"ru":  {"ru", "Russian", lingua.Russian, "ru-RU"},
	"hu":  {"hu", "Hungarian", lingua.Hungarian, "hu-HU"},
	"no":  {"no", "Norwegian", lingua.Bokmal, "nb-NO"},
	"vi":  {"vi", "Vietnamese", lingua.Vietnamese, "vi-VN"},
}

// LookupLanguage returns the supported entry for a code. Codes are matched
// case-insensitively and region suffixes ("en-US") are ignored.
func LookupLanguage(code string) (SupportedLanguage, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if lang, ok := supportedLanguages[code]; ok {
		return lang, true
	}
	if i := strings.IndexAny(code, "-_"); i > 0 {
		lang, ok := supportedLanguages[code[:i]]
		return lang, ok
	}
	return SupportedLanguage{}, false
}

// IsSupportedLanguage reports whether code is in the supported set.
func IsSupportedLanguage(code string) bool {
	_, ok := LookupLanguage(code)
	return ok
}

// SupportedLanguages lists the supported set ordered by code.
func SupportedLanguages() []SupportedLanguage {
	out := make([]SupportedLanguage, 0, len(supportedLanguages))
	for _, lang := range supportedLanguages {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func codeForLingua(l lingua.Language) (string, bool) {
	for code, lang := range supportedLanguages {
		if lang.Lingua == l {
			return code, true
		}
	}
	return "", false
}
