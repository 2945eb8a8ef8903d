package extbuild

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Language identifies the source language a prober or extension targets.
type Language string

// Supported languages.
const (
	LangC   Language = "c"
	LangCXX Language = "c++"
)

var cxxSourceExtensions = []string{".cc", ".cpp", ".cxx", ".c++"}

// SourceExtension returns the file suffix used for probe sources.
func (l Language) SourceExtension() string {
	if l == LangCXX {
		return ".cc"
	}
	return ".c"
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == LangC || l == LangCXX
}

func (l Language) String() string {
	return string(l)
}

// ParseLanguage accepts "c", "c++", "cxx" and "cpp" (case-insensitive).
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c":
		return LangC, nil
	case "c++", "cxx", "cpp":
		return LangCXX, nil
	default:
		return "", errors.Newf("unknown language %q", s)
	}
}

// LanguageForSource infers the language of a source file from its suffix.
// It returns the empty Language for anything that is not a C or C++ source.
func LanguageForSource(path string) Language {
	// Upper-case .C is C++ by gcc convention, so check it before the
	// case-insensitive matches.
	if filepath.Ext(path) == ".C" {
		return LangCXX
	}
	if MatchesExtension(path, cxxSourceExtensions...) {
		return LangCXX
	}
	if MatchesExtension(path, ".c") {
		return LangC
	}
	return ""
}
