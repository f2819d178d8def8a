// Package detector guesses the source language of a submission so the
// prompt can name it.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages seen in news translation work. Restricting the candidate set
// keeps model load time and memory low.
var candidates = []lingua.Language{
	lingua.Korean,
	lingua.English,
	lingua.Japanese,
	lingua.Chinese,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Polish,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Vietnamese,
}

// minConfidence is the lowest lingua confidence accepted as a hint.
const minConfidence = 0.5

type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidates...).
		WithPreloadedLanguageModels().
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return lingua.Unknown, false
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return lingua.Unknown, false
	}
	if d.detector.ComputeLanguageConfidence(text, lang) < minConfidence {
		return lingua.Unknown, false
	}
	return lang, true
}

// DetectISO returns the lower-case ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Hint renders the detected language as "English (en)" for the prompt
// header, or "" when nothing confident was found.
func (d *Detector) Hint(text string) string {
	code, ok := d.DetectISO(text)
	if !ok {
		return ""
	}
	return DisplayName(code) + " (" + code + ")"
}

// DisplayName returns the English name for an ISO language code, falling
// back to the code itself.
func DisplayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
