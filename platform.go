package extbuild

import (
	"fmt"
	"path"
	"runtime"
	"strings"
)

// CompilerFamily selects the flag policy branch.
type CompilerFamily string

// Compiler families. MinGW and Cygwin are unix-like toolchains that also get
// the static runtime policy.
const (
	FamilyMSVC   CompilerFamily = "msvc"
	FamilyUnix   CompilerFamily = "unix"
	FamilyMinGW  CompilerFamily = "mingw32"
	FamilyCygwin CompilerFamily = "cygwin"
)

const (
	platformWindows = "windows"
	platformDarwin  = "darwin"
)

// Platform identifies the host OS and the compiler family in use.
type Platform struct {
	OS     string         // runtime.GOOS style identifier
	Family CompilerFamily // compiler family
}

// HostPlatform detects the platform for the running host and the given
// compiler (typically the resolved CC).
func HostPlatform(compiler string) Platform {
	return DetectPlatform(runtime.GOOS, compiler)
}

// DetectPlatform derives the compiler family from a compiler path.
//
// cl and clang-cl are MSVC; a compiler whose name mentions mingw or cygwin
// selects that family; gcc-style compilers on Windows are treated as MinGW.
// With no compiler, Windows defaults to MSVC and everything else to unix.
func DetectPlatform(goos, compiler string) Platform {
	name := strings.ToLower(path.Base(strings.ReplaceAll(compiler, `\`, "/")))
	name = strings.TrimSuffix(name, ".exe")

	family := FamilyUnix
	switch {
	case MatchesPattern(name, `^cl$`, `^clang-cl$`):
		family = FamilyMSVC
	case MatchesPattern(name, `mingw`):
		family = FamilyMinGW
	case MatchesPattern(name, `cygwin`):
		family = FamilyCygwin
	case goos == platformWindows && (compiler == ""):
		family = FamilyMSVC
	case goos == platformWindows:
		family = FamilyMinGW
	}

	return Platform{OS: goos, Family: family}
}

// IsMSVC reports whether the MSVC policy applies.
func (p Platform) IsMSVC() bool {
	return p.Family == FamilyMSVC
}

// IsDarwin reports whether the host is macOS.
func (p Platform) IsDarwin() bool {
	return p.OS == platformDarwin
}

// UsesStaticRuntime reports whether the runtime libraries should be linked
// statically to avoid clashing with whatever DLLs are installed.
func (p Platform) UsesStaticRuntime() bool {
	return p.Family == FamilyMinGW || p.Family == FamilyCygwin
}

// SharedLibrarySuffix is the file suffix of built extension modules.
func (p Platform) SharedLibrarySuffix() string {
	if p.OS == platformWindows {
		return ".dll"
	}
	return ".so"
}

// IncludeFlag renders an include directory flag for this compiler family.
func (p Platform) IncludeFlag(dir string) string {
	if p.IsMSVC() {
		return "/I" + dir
	}
	return "-I" + dir
}

// DefineFlag renders a preprocessor define for this compiler family.
func (p Platform) DefineFlag(name, value string) string {
	prefix := "-D"
	if p.IsMSVC() {
		prefix = "/D"
	}
	if value == "" {
		return prefix + name
	}
	return fmt.Sprintf("%s%s=%s", prefix, name, value)
}

func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Family)
}
