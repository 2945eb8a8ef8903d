package extbuild

import "github.com/cockroachdb/errors"

// Sentinel errors. Match them with errors.Is; toolchain and manifest errors
// carry them as marks so the original message and details survive.
var (
	// ErrCompile marks a compiler-reported failure.
	ErrCompile = errors.New("compile failed")

	// ErrLink marks a linker-reported failure.
	ErrLink = errors.New("link failed")

	// ErrNoCXX11 is returned when neither C++14 nor C++11 is accepted.
	ErrNoCXX11 = errors.New("unsupported compiler: at least C++11 support is needed")

	// ErrNoToolchain is returned when no C/C++ toolchain can be resolved.
	ErrNoToolchain = errors.New("no usable C/C++ toolchain")

	// ErrInvalidManifest marks a manifest that failed to parse or validate.
	ErrInvalidManifest = errors.New("invalid extension manifest")
)
