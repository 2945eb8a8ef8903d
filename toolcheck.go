package extbuild

import (
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

var execLookPath = exec.LookPath

// ToolChecker is an optional interface for toolchains that run external tools.
//
// Toolchains can implement this interface to declare their tool dependencies
// and verify that required tools are available before anything is probed.
// The Orchestrator checks tools when its toolchain implements it; stub
// toolchains used in tests simply don't.
//
// # Platform Support
//
// The requirements name the drivers already resolved for the platform:
//   - Windows: cl and link (MSVC) or gcc/g++ (MinGW)
//   - macOS: clang/clang++ behind cc/c++
//   - Linux: gcc/g++ or clang/clang++ behind cc/c++
//
// # Consumer Usage
//
//	if checker, ok := toolchain.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return errors.Wrap(err, "build tools missing")
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the list of tools this toolchain needs.
	RequiredTools() []ToolRequirement

	// CheckTools verifies that all required tools are available.
	//
	// Returns nil if all required tools are found, or an error describing
	// which tools are missing.
	CheckTools() error
}

// ToolRequirement describes a build tool the toolchain runs.
//
//	ToolRequirement{Name: "cl", Purpose: "MSVC C/C++ compiler"}
//
// Name is what the toolchain executes: a command name looked up in PATH, or
// a path to the binary.
type ToolRequirement struct {
	Name    string // tool binary name or path
	Purpose string // shown when the tool is missing
}

// CheckToolAvailable checks if a tool is available in the system PATH.
//
// Absolute or relative paths are checked directly by exec.LookPath.
func CheckToolAvailable(tool string) error {
	if _, err := execLookPath(tool); err != nil {
		return errors.Newf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available and reports
// every missing one in a single error.
//
// # Error Format
//
// Single missing tool:
//
//	cc (C compiler) not found in PATH
//
// Multiple missing tools:
//
//	missing required tools: cl (MSVC C/C++ compiler), link (MSVC linker)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		if CheckToolAvailable(req.Name) == nil {
			continue
		}
		if req.Purpose != "" {
			missingTools = append(missingTools, req.Name+" ("+req.Purpose+")")
		} else {
			missingTools = append(missingTools, req.Name)
		}
	}

	if len(missingTools) == 0 {
		return nil
	}

	if len(missingTools) == 1 {
		return errors.Newf("%s not found in PATH", missingTools[0])
	}

	return errors.Newf("missing required tools: %s", strings.Join(missingTools, ", "))
}
