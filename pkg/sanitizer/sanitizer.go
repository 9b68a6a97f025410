package sanitizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reTextNoise = regexp.MustCompile("[\\s.,/#!$%^&*;:{}=\\-_`~()']+")

	textPipeline = Pipeline{
		lower,
		stripNoise,
		strings.TrimSpace,
	}
)

// lower builds a Caser per call; cases.Caser keeps state and is not safe for
// concurrent use.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func stripNoise(s string) string {
	return reTextNoise.ReplaceAllString(s, "")
}

// NormalizeText lower-cases s and removes whitespace and the punctuation set
// . , / # ! $ % ^ & * ; : { } = - _ ` ~ ( ) '
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	return textPipeline.Apply(s)
}
