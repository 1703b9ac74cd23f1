package project

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Language selects how fragments are compiled and which extension their
// documents get.
type Language string

const (
	// Go fragments are parsed and type-checked as one package.
	Go Language = "Go"
	// Assembly fragments are handed to analyzers as OtherFiles.
	Assembly Language = "Assembly"
)

// ErrUnknownLanguage is returned for a language tag that is neither Go nor Assembly.
var ErrUnknownLanguage = errors.New("unknown language")

// ParseLanguage accepts a language name or its file extension, in any case.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "go":
		return Go, nil
	case "assembly", "asm", "s":
		return Assembly, nil
	}
	return "", errors.Wrapf(ErrUnknownLanguage, "%q", s)
}

// Extension returns the default file extension, without the dot.
func (l Language) Extension() (string, error) {
	switch l {
	case Go:
		return "go", nil
	case Assembly:
		return "s", nil
	}
	return "", errors.Wrapf(ErrUnknownLanguage, "%q", string(l))
}

func (l Language) String() string { return string(l) }
