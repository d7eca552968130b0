package services

import (
	"github.com/pemistahl/lingua-go"
)

// Detector guesses the language of a text field.
//
// Short strings (single words) are easy to misclassify; the detector still
// answers with its best guess and does not signal low confidence.
type Detector interface {
	// Detect returns a supported language code. fallback is true when the
	// detector produced no guess and defaultLanguage was used instead.
	Detect(text string) (code string, fallback bool)
}

// LinguaDetector is a Detector restricted to the supported language set.
type LinguaDetector struct {
	detector        lingua.LanguageDetector
	defaultLanguage string
}

// NewLinguaDetector builds a detector over every supported language.
// defaultLanguage must itself be supported.
func NewLinguaDetector(defaultLanguage string) *LinguaDetector {
	languages := make([]lingua.Language, 0, len(supportedLanguages))
	for _, lang := range supportedLanguages {
		languages = append(languages, lang.Lingua)
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		Build()

	return &LinguaDetector{
		detector:        detector,
		defaultLanguage: defaultLanguage,
	}
}

func (d *LinguaDetector) Detect(text string) (string, bool) {
	clean := CleanFieldText(text)
	if clean == "" {
		return d.defaultLanguage, true
	}

	detected, ok := d.detector.DetectLanguageOf(clean)
	if !ok {
		return d.defaultLanguage, true
	}
	code, ok := codeForLingua(detected)
	if !ok {
		return d.defaultLanguage, true
	}
	return code, false
}
