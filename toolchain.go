package extbuild

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// Toolchain is the compiler/linker capability the probers and the build
// step depend on.
//
// Implementations report a compiler-detected failure as an error matching
// ErrCompile and a linker-detected failure as one matching ErrLink. Every
// other failure (missing binary, unwritable output directory) is returned
// without those marks.
type Toolchain interface {
	// Compile compiles each source into an object file in outputDir using
	// extraArgs as additional compiler arguments. It returns the object paths
	// in source order; sources sharing a base name get distinct objects.
	Compile(ctx context.Context, sources []string, outputDir string, extraArgs []string) ([]string, error)

	// LinkSharedLibrary links objects into the shared library at output using
	// extraArgs as additional linker arguments.
	LinkSharedLibrary(ctx context.Context, objects []string, output string, extraArgs []string) error
}

var execCommandContext = exec.CommandContext

// Command template placeholders.
const (
	placeholderCompiler = "{{cc}}"
	placeholderInput    = "{{input}}"
	placeholderInputs   = "{{inputs}}"
	placeholderOutput   = "{{output}}"
	placeholderFlags    = "{{flags}}"
)

// CommandToolchain runs a C/C++ compiler driver through command templates.
//
// # Templates
//
// CompileCommand and LinkCommand support placeholders:
//
//	{{cc}}     - the compiler driver (CC for C sources, CXX for C++ sources),
//	             split into words so "ccache gcc" works
//	{{input}}  - the source file (compile only)
//	{{inputs}} - the object files, expanded to one argument each (link only)
//	{{output}} - the object or library path
//	{{flags}}  - the extra arguments, expanded to one argument each
//
// Placeholders can be embedded, e.g. "/Fo{{output}}".
//
// # Example: GCC
//
//	gcc := NewCommandToolchain(&CommandToolchainConfig{
//	    Name:           "GCC",
//	    CC:             "gcc",
//	    CXX:            "g++",
//	    CompileCommand: []string{"{{cc}}", "-fPIC", "{{flags}}", "-c", "{{input}}", "-o", "{{output}}"},
//	    LinkCommand:    []string{"{{cc}}", "-shared", "{{inputs}}", "{{flags}}", "-o", "{{output}}"},
//	    ObjectSuffix:   ".o",
//	})
type CommandToolchain struct {
	name           string
	cc             string
	cxx            string
	compileCommand []string
	linkCommand    []string
	objectSuffix   string
	tools          []ToolRequirement
	env            map[string]string
}

// CommandToolchainConfig defines configuration for a CommandToolchain.
type CommandToolchainConfig struct {
	// Name is the human-readable toolchain name (e.g., "GCC", "MSVC")
	Name string

	// CC and CXX are the C and C++ compiler drivers. An empty CXX falls back
	// to CC. Linking uses CXX when set so C++ runtimes are pulled in.
	CC  string
	CXX string

	// CompileCommand builds one object from one source
	CompileCommand []string

	// LinkCommand builds one shared library from objects
	LinkCommand []string

	// ObjectSuffix is the object file suffix (".o", ".obj")
	ObjectSuffix string

	// Tools are the required build tools
	Tools []ToolRequirement

	// Env holds extra environment variables for every command
	Env map[string]string
}

// NewCommandToolchain creates a new CommandToolchain from configuration.
func NewCommandToolchain(config *CommandToolchainConfig) *CommandToolchain {
	cxx := config.CXX
	if cxx == "" {
		cxx = config.CC
	}
	suffix := config.ObjectSuffix
	if suffix == "" {
		suffix = ".o"
	}
	return &CommandToolchain{
		name:           config.Name,
		cc:             config.CC,
		cxx:            cxx,
		compileCommand: config.CompileCommand,
		linkCommand:    config.LinkCommand,
		objectSuffix:   suffix,
		tools:          config.Tools,
		env:            config.Env,
	}
}

// Name returns the toolchain name
func (t *CommandToolchain) Name() string {
	return t.name
}

// Compilers returns the C and C++ compiler drivers.
func (t *CommandToolchain) Compilers() (cc, cxx string) {
	return t.cc, t.cxx
}

// RequiredTools returns the tools needed for this toolchain
func (t *CommandToolchain) RequiredTools() []ToolRequirement {
	return t.tools
}

// CheckTools verifies that all required tools are available
func (t *CommandToolchain) CheckTools() error {
	return CheckRequiredTools(t.RequiredTools())
}

// Compile compiles every source into outputDir. Object names follow the
// source base names, suffixed -2, -3, ... on collision.
func (t *CommandToolchain) Compile(ctx context.Context, sources []string, outputDir string, extraArgs []string) ([]string, error) {
	if len(t.compileCommand) == 0 {
		return nil, errors.Newf("no compile command configured for %s toolchain", t.name)
	}

	objects := make([]string, 0, len(sources))
	used := make(map[string]bool, len(sources))
	for _, src := range sources {
		compiler := t.cc
		if LanguageForSource(src) == LangCXX {
			compiler = t.cxx
		}
		driver, err := t.driver(compiler)
		if err != nil {
			return nil, err
		}

		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		object := filepath.Join(outputDir, uniqueObjectBase(base, used)+t.objectSuffix)

		args := expandCommand(t.compileCommand, map[string]string{
			placeholderInput:  src,
			placeholderOutput: object,
		}, map[string][]string{
			placeholderCompiler: driver,
			placeholderFlags:    extraArgs,
		})

		output, err := t.run(ctx, args)
		if err != nil {
			if isExitError(err) {
				return nil, errors.Mark(BuildError("compile "+filepath.Base(src), output, err), ErrCompile)
			}
			return nil, err
		}
		objects = append(objects, object)
	}

	return objects, nil
}

// LinkSharedLibrary links objects into output.
func (t *CommandToolchain) LinkSharedLibrary(ctx context.Context, objects []string, output string, extraArgs []string) error {
	if len(t.linkCommand) == 0 {
		return errors.Newf("no link command configured for %s toolchain", t.name)
	}

	driver, err := t.driver(t.cxx)
	if err != nil {
		return err
	}

	args := expandCommand(t.linkCommand, map[string]string{
		placeholderOutput: output,
	}, map[string][]string{
		placeholderCompiler: driver,
		placeholderInputs:   objects,
		placeholderFlags:    extraArgs,
	})

	lines, err := t.run(ctx, args)
	if err != nil {
		if isExitError(err) {
			return errors.Mark(BuildError("link "+filepath.Base(output), lines, err), ErrLink)
		}
		return err
	}
	return nil
}

// driver splits a compiler setting into the words substituted for {{cc}}.
func (t *CommandToolchain) driver(compiler string) ([]string, error) {
	words := commandWords(compiler)
	if len(words) == 0 {
		return nil, errors.Wrapf(ErrNoToolchain, "%s toolchain has no compiler configured", t.name)
	}
	return words, nil
}

// run executes one command and returns its combined output lines.
func (t *CommandToolchain) run(ctx context.Context, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.Wrapf(ErrNoToolchain, "%s toolchain has an empty command", t.name)
	}

	//nolint:gosec // Command is from trusted toolchain configuration
	cmd := execCommandContext(ctx, args[0], args[1:]...)

	if len(t.env) > 0 {
		cmd.Env = cmd.Environ()
		for key, value := range t.env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}

	output, err := cmd.CombinedOutput()
	lines := []string{"Running: " + strings.Join(args, " ")}
	if trimmed := strings.TrimRight(string(output), "\n"); trimmed != "" {
		lines = append(lines, strings.Split(trimmed, "\n")...)
	}

	if err != nil {
		// A killed command also exits non-zero; that is not a rejection.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return lines, errors.Wrapf(ctxErr, "running %s", args[0])
		}
		if !isExitError(err) {
			return lines, errors.Wrapf(err, "running %s", args[0])
		}
	}
	return lines, err
}

// uniqueObjectBase returns base, or base-2, base-3, ... when an earlier
// source of the same compile already claimed the name. Names are compared
// case-insensitively so objects stay distinct on case-folding filesystems.
func uniqueObjectBase(base string, used map[string]bool) string {
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	used[strings.ToLower(name)] = true
	return name
}

// expandCommand substitutes scalar placeholders inside every argument and
// replaces arguments that are exactly a list placeholder with the list.
func expandCommand(template []string, scalars map[string]string, lists map[string][]string) []string {
	args := make([]string, 0, len(template))
	for _, arg := range template {
		if values, ok := lists[arg]; ok {
			args = append(args, values...)
			continue
		}
		for placeholder, value := range scalars {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		args = append(args, arg)
	}
	return args
}

// commandWords splits a compiler setting such as "ccache gcc" into words.
func commandWords(command string) []string {
	words, err := shellquote.Split(command)
	if err != nil {
		return strings.Fields(command)
	}
	return words
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

// Predefined toolchain configurations

// NewUnixToolchain creates a toolchain for gcc/clang style drivers.
func NewUnixToolchain(cc, cxx string) *CommandToolchain {
	return NewCommandToolchain(&CommandToolchainConfig{
		Name: "Unix",
		CC:   cc,
		CXX:  cxx,
		CompileCommand: []string{
			placeholderCompiler, "-fPIC", placeholderFlags,
			"-c", placeholderInput, "-o", placeholderOutput,
		},
		LinkCommand: []string{
			placeholderCompiler, "-shared", placeholderInputs, placeholderFlags,
			"-o", placeholderOutput,
		},
		ObjectSuffix: ".o",
		Tools:        compilerRequirements(cc, cxx),
	})
}

// NewDarwinToolchain creates a toolchain for clang on macOS. Extension
// modules are linked as bundles with undefined symbols resolved at load time.
func NewDarwinToolchain(cc, cxx string) *CommandToolchain {
	return NewCommandToolchain(&CommandToolchainConfig{
		Name: "Darwin",
		CC:   cc,
		CXX:  cxx,
		CompileCommand: []string{
			placeholderCompiler, "-fPIC", placeholderFlags,
			"-c", placeholderInput, "-o", placeholderOutput,
		},
		LinkCommand: []string{
			placeholderCompiler, "-bundle", "-undefined", "dynamic_lookup",
			placeholderInputs, placeholderFlags, "-o", placeholderOutput,
		},
		ObjectSuffix: ".o",
		Tools:        compilerRequirements(cc, cxx),
	})
}

// NewMSVCToolchain creates a toolchain for cl.exe and link.exe.
func NewMSVCToolchain() *CommandToolchain {
	return NewCommandToolchain(&CommandToolchainConfig{
		Name: "MSVC",
		CC:   "cl",
		CXX:  "cl",
		CompileCommand: []string{
			placeholderCompiler, "/nologo", placeholderFlags,
			"/c", placeholderInput, "/Fo" + placeholderOutput,
		},
		LinkCommand: []string{
			"link", "/nologo", "/DLL", placeholderInputs, placeholderFlags,
			"/OUT:" + placeholderOutput,
		},
		ObjectSuffix: ".obj",
		Tools: []ToolRequirement{
			{Name: "cl", Purpose: "MSVC C/C++ compiler"},
			{Name: "link", Purpose: "MSVC linker"},
		},
	})
}

func compilerRequirements(cc, cxx string) []ToolRequirement {
	var requirements []ToolRequirement
	if words := commandWords(cc); len(words) > 0 {
		requirements = append(requirements, ToolRequirement{Name: words[0], Purpose: "C compiler"})
	}
	if cxx != "" && cxx != cc {
		if words := commandWords(cxx); len(words) > 0 {
			requirements = append(requirements, ToolRequirement{Name: words[0], Purpose: "C++ compiler"})
		}
	}
	return requirements
}
