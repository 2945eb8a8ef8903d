package extbuild

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Extension describes one native extension module to build.
//
// CompileArgs and LinkArgs hold the author's own flags. Applying a prober
// prepends accepted flags to them; the author's flags always stay last so
// they win over anything probed.
type Extension struct {
	Name        string            // Module name, also the library base name
	Sources     []string          // Source files
	IncludeDirs []string          // Include directories
	Language    Language          // Declared language
	Defines     map[string]string // Preprocessor macros ("" value means no value)
	CompileArgs []string          // Extra compile arguments
	LinkArgs    []string          // Extra link arguments
	Output      string            // Library file name; defaults to Name + platform suffix
}

// DefaultExtensionName is the module built when no manifest is supplied.
const DefaultExtensionName = "tensorstore"

// DefaultExtension returns the single extension module of the tensorstore
// package: one C++ source compiled into the tensorstore module.
func DefaultExtension() *Extension {
	return &Extension{
		Name:     DefaultExtensionName,
		Sources:  []string{"tensorstore.cc"},
		Language: LangCXX,
	}
}

// checkName rejects names that would not stay a single directory below the
// build directory.
func checkName(name string) error {
	switch {
	case name == "":
		return errors.New("extension name is empty")
	case name == "." || name == "..", strings.ContainsAny(name, `/\`):
		return errors.Newf("extension name %q must be a plain file name", name)
	}
	return nil
}

// InferLanguage returns the declared language, or C++ when any source is
// C++ and C otherwise.
func (e *Extension) InferLanguage() Language {
	if e.Language.Valid() {
		return e.Language
	}
	for _, src := range e.Sources {
		if LanguageForSource(src) == LangCXX {
			return LangCXX
		}
	}
	return LangC
}

// LibraryName returns the file name of the built library on p.
func (e *Extension) LibraryName(p Platform) string {
	if e.Output != "" {
		return e.Output
	}
	return e.Name + p.SharedLibrarySuffix()
}

// resolve returns paths joined to root unless they are already absolute.
func resolve(root string, paths []string) []string {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if root != "" && !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		resolved = append(resolved, p)
	}
	return resolved
}

// compileArguments renders the include dirs and defines for p, followed by
// the extension's compile arguments.
func (e *Extension) compileArguments(p Platform, root string) []string {
	var args []string
	for _, dir := range resolve(root, e.IncludeDirs) {
		args = append(args, p.IncludeFlag(dir))
	}

	names := make([]string, 0, len(e.Defines))
	for name := range e.Defines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, p.DefineFlag(name, e.Defines[name]))
	}

	return append(args, e.CompileArgs...)
}
