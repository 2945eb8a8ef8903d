package extbuild

import (
	"github.com/cockroachdb/errors"
)

// ToolchainConstructor builds a toolchain for a platform and environment.
type ToolchainConstructor func(platform Platform, env Environment) (*CommandToolchain, error)

// ToolchainMatcher reports whether a constructor handles a platform.
type ToolchainMatcher func(platform Platform) bool

type toolchainEntry struct {
	name        string
	matches     ToolchainMatcher
	constructor ToolchainConstructor
}

// ToolchainFactory manages the registration and selection of toolchains.
//
// # Usage
//
// Create a factory with all standard toolchains:
//
//	factory := extbuild.NewToolchainFactory()
//	toolchain, err := factory.ToolchainFor(platform, env)
//
// # Selection
//
// Toolchains are checked in registration order; the first whose matcher
// accepts the platform is constructed.
//
// # Thread Safety
//
// ToolchainFactory is NOT thread-safe for registration.
// Register all toolchains before concurrent use.
type ToolchainFactory struct {
	entries []toolchainEntry
}

// NewToolchainFactory creates a factory with the standard toolchains
// registered in this order:
//  1. MSVC - cl.exe and link.exe
//  2. Darwin - clang with bundle linking
//  3. Unix - gcc/clang style drivers (also MinGW and Cygwin)
func NewToolchainFactory() *ToolchainFactory {
	factory := &ToolchainFactory{}

	factory.Register("MSVC", Platform.IsMSVC, func(Platform, Environment) (*CommandToolchain, error) {
		return NewMSVCToolchain(), nil
	})
	factory.Register("Darwin", Platform.IsDarwin, func(_ Platform, env Environment) (*CommandToolchain, error) {
		cc, cxx, err := findCompilers(env)
		if err != nil {
			return nil, err
		}
		return NewDarwinToolchain(cc, cxx), nil
	})
	factory.Register("Unix", func(Platform) bool { return true }, func(_ Platform, env Environment) (*CommandToolchain, error) {
		cc, cxx, err := findCompilers(env)
		if err != nil {
			return nil, err
		}
		return NewUnixToolchain(cc, cxx), nil
	})

	return factory
}

// Register adds a toolchain constructor to the factory.
//
// Not thread-safe. Register all toolchains before concurrent use.
func (f *ToolchainFactory) Register(name string, matches ToolchainMatcher, constructor ToolchainConstructor) {
	f.entries = append(f.entries, toolchainEntry{name: name, matches: matches, constructor: constructor})
}

// Names returns the registered toolchain names in selection order.
func (f *ToolchainFactory) Names() []string {
	names := make([]string, 0, len(f.entries))
	for _, entry := range f.entries {
		names = append(names, entry.name)
	}
	return names
}

// ToolchainFor returns the first registered toolchain matching platform.
func (f *ToolchainFactory) ToolchainFor(platform Platform, env Environment) (*CommandToolchain, error) {
	for _, entry := range f.entries {
		if entry.matches(platform) {
			return entry.constructor(platform, env)
		}
	}
	return nil, errors.Wrapf(ErrNoToolchain, "no toolchain registered for %s", platform)
}

var (
	commonCCompilers   = []string{"cc", "gcc", "clang"}
	commonCxxCompilers = []string{"c++", "g++", "clang++"}
)

// findCompilers resolves the C and C++ drivers: CC and CXX from the
// environment win, otherwise the first common compiler found in PATH.
func findCompilers(env Environment) (cc, cxx string, err error) {
	cc = env.CC
	if cc == "" {
		cc = lookPathFirst(commonCCompilers)
	}
	cxx = env.CXX
	if cxx == "" {
		cxx = lookPathFirst(commonCxxCompilers)
	}

	if cc == "" && cxx == "" {
		return "", "", errors.WithHint(
			errors.Wrap(ErrNoToolchain, "no C or C++ compiler found"),
			"install gcc or clang, or set CC and CXX",
		)
	}

	// A lone C++ driver compiles C too; a lone C driver is tried for C++
	// and the C++ standard probe will reject it if it cannot cope.
	if cc == "" {
		cc = cxx
	}
	if cxx == "" {
		cxx = cc
	}
	return cc, cxx, nil
}

func lookPathFirst(candidates []string) string {
	for _, candidate := range candidates {
		if path, err := execLookPath(candidate); err == nil {
			return path
		}
	}
	return ""
}
