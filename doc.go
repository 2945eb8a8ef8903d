// Package extbuild builds native C/C++ extension modules with the hardening
// and compatibility flags the host toolchain actually accepts.
//
// # Flag Probing
//
// A FlagProber tests, for one language, whether a set of compiler and linker
// flags works by compiling (and linking, when link flags are involved) a
// tiny probe program. Flags that already come from CFLAGS, CXXFLAGS,
// CPPFLAGS or LDFLAGS are never re-tested or duplicated.
//
// # Basic Usage
//
//	env, err := extbuild.EnvironmentFromOS()
//	if err != nil {
//	    return err
//	}
//
//	platform := extbuild.HostPlatform(env.CC)
//	toolchain, err := extbuild.NewToolchainFactory().ToolchainFor(platform, env)
//	if err != nil {
//	    return err
//	}
//
//	orchestrator := extbuild.NewOrchestrator(toolchain, platform, env,
//	    extbuild.WithLogger(logger))
//
//	results, err := orchestrator.Build(ctx, []*extbuild.Extension{extbuild.DefaultExtension()},
//	    &extbuild.BuildConfig{SourceDir: ".", DestPath: "build/lib"})
//
// # Flag Policy
//
//	MSVC        /DVERSION_INFO, /EHsc (not probed)
//	Unix-like   -DVERSION_INFO (not probed), then probed in order:
//	            -mmacosx-version-min, -stdlib=libc++      (macOS only)
//	            -std=c++14, else -std=c++11, else ErrNoCXX11
//	            -fvisibility=hidden, then -fvisibility-inlines-hidden
//	            -D_FORTIFY_SOURCE=2, -Wl,-z,relro, -Wl,-z,now
//	            -fstack-protector-strong, else -fstack-protector
//	MinGW       additionally -static-libgcc, -static-libstdc++
//
// Accepted flags are placed before each extension's own arguments, so flags
// written by the extension author always come last and win.
//
// # Architecture
//
//	Orchestrator
//	├── FlagProber (c)
//	├── FlagProber (c++)
//	└── Toolchain
//	    └── CommandToolchain (Unix, Darwin, MSVC presets via ToolchainFactory)
//
// Probing and building are sequential; nothing runs concurrently.
package extbuild
