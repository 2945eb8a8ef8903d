package extbuild

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// compileCall records one Compile invocation.
type compileCall struct {
	sources []string
	args    []string
	source  string // content of the first source at compile time
}

// linkCall records one LinkSharedLibrary invocation.
type linkCall struct {
	objects []string
	output  string
	args    []string
}

// stubToolchain accepts every flag except the rejected ones and writes
// placeholder objects and libraries so builds can find their outputs.
type stubToolchain struct {
	rejectCompile map[string]bool
	rejectLink    map[string]bool

	// compileErr, when set, is returned from Compile as is.
	compileErr error

	compiles []compileCall
	links    []linkCall
}

func newStubToolchain() *stubToolchain {
	return &stubToolchain{
		rejectCompile: make(map[string]bool),
		rejectLink:    make(map[string]bool),
	}
}

func (s *stubToolchain) rejectCompileFlags(flags ...string) *stubToolchain {
	for _, f := range flags {
		s.rejectCompile[f] = true
	}
	return s
}

func (s *stubToolchain) rejectLinkFlags(flags ...string) *stubToolchain {
	for _, f := range flags {
		s.rejectLink[f] = true
	}
	return s
}

func (s *stubToolchain) Compile(_ context.Context, sources []string, outputDir string, extraArgs []string) ([]string, error) {
	call := compileCall{sources: sources, args: append([]string{}, extraArgs...)}
	if len(sources) > 0 {
		if data, err := os.ReadFile(sources[0]); err == nil {
			call.source = string(data)
		}
	}
	s.compiles = append(s.compiles, call)

	if s.compileErr != nil {
		return nil, s.compileErr
	}
	for _, arg := range extraArgs {
		if s.rejectCompile[arg] {
			return nil, errors.Mark(errors.Newf("unrecognized command-line option %q", arg), ErrCompile)
		}
	}

	objects := make([]string, 0, len(sources))
	for _, src := range sources {
		object := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".o")
		if err := os.WriteFile(object, []byte("object"), 0o600); err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

func (s *stubToolchain) LinkSharedLibrary(_ context.Context, objects []string, output string, extraArgs []string) error {
	s.links = append(s.links, linkCall{objects: objects, output: output, args: append([]string{}, extraArgs...)})

	for _, arg := range extraArgs {
		if s.rejectLink[arg] {
			return errors.Mark(errors.Newf("unknown linker option %q", arg), ErrLink)
		}
	}
	return os.WriteFile(output, []byte("library"), 0o600)
}

// compiledWith reports whether any compile call used flag.
func (s *stubToolchain) compiledWith(flag string) bool {
	for _, call := range s.compiles {
		for _, arg := range call.args {
			if arg == flag {
				return true
			}
		}
	}
	return false
}
