package extbuild

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// Environment variable names read into an Environment.
const (
	EnvCC                    = "CC"
	EnvCXX                   = "CXX"
	EnvCFlags                = "CFLAGS"
	EnvCXXFlags              = "CXXFLAGS"
	EnvCPPFlags              = "CPPFLAGS"
	EnvLDFlags               = "LDFLAGS"
	EnvMacOSDeploymentTarget = "MACOSX_DEPLOYMENT_TARGET"
)

// EnvironmentVariables lists every variable an Environment is built from.
var EnvironmentVariables = []string{
	EnvCC,
	EnvCXX,
	EnvCFlags,
	EnvCXXFlags,
	EnvCPPFlags,
	EnvLDFlags,
	EnvMacOSDeploymentTarget,
}

// Environment holds the externally supplied toolchain configuration.
//
// It is an explicit value handed to the Orchestrator rather than read from
// the process environment on demand, so callers and tests control exactly
// which system default flags the probers treat as already known.
type Environment struct {
	CC  string // C compiler override
	CXX string // C++ compiler override

	CFlags   []string // CFLAGS
	CXXFlags []string // CXXFLAGS
	CPPFlags []string // CPPFLAGS
	LDFlags  []string // LDFLAGS

	MacOSDeploymentTarget string // MACOSX_DEPLOYMENT_TARGET
}

// EnvironmentFromMap builds an Environment from variable values.
//
// Flag variables are split with shell quoting rules, so
// CFLAGS='-DNAME="a b" -O2' yields two flags. Missing or blank values
// produce an empty flag list.
func EnvironmentFromMap(vars map[string]string) (Environment, error) {
	env := Environment{
		CC:                    strings.TrimSpace(vars[EnvCC]),
		CXX:                   strings.TrimSpace(vars[EnvCXX]),
		MacOSDeploymentTarget: strings.TrimSpace(vars[EnvMacOSDeploymentTarget]),
	}

	targets := []struct {
		name string
		dest *[]string
	}{
		{EnvCFlags, &env.CFlags},
		{EnvCXXFlags, &env.CXXFlags},
		{EnvCPPFlags, &env.CPPFlags},
		{EnvLDFlags, &env.LDFlags},
	}
	for _, target := range targets {
		flags, err := splitFlags(vars[target.name])
		if err != nil {
			return Environment{}, errors.Wrapf(err, "parsing %s", target.name)
		}
		*target.dest = flags
	}

	return env, nil
}

// EnvironmentFromOS reads the toolchain variables from the process environment.
func EnvironmentFromOS() (Environment, error) {
	vars := make(map[string]string, len(EnvironmentVariables))
	for _, name := range EnvironmentVariables {
		vars[name] = os.Getenv(name)
	}
	return EnvironmentFromMap(vars)
}

// CompileDefaults returns the system compile flags that apply when
// compiling lang. C++ compilation sees CFLAGS, CXXFLAGS and CPPFLAGS.
func (e Environment) CompileDefaults(lang Language) []string {
	var flags []string
	flags = append(flags, e.CFlags...)
	if lang == LangCXX {
		flags = append(flags, e.CXXFlags...)
	}
	flags = append(flags, e.CPPFlags...)
	return flags
}

// LinkDefaults returns the system link flags.
func (e Environment) LinkDefaults() []string {
	return append([]string{}, e.LDFlags...)
}

func splitFlags(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return shellquote.Split(value)
}
