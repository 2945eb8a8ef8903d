package extbuild

import (
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Version is the project version carried into the VERSION_INFO define.
const Version = "0.0.1a1"

// DefaultMacOSMinVersion is the oldest macOS release targeted by default.
const DefaultMacOSMinVersion = "10.7"

// cxx14ProbeSource exercises variable templates and generic lambdas
// together with the C++14 library. Compilers that accept -std=c++14 but pair
// it with an older standard library fail on this snippet.
const cxx14ProbeSource = `#include <memory>
#include <utility>

template <typename T>
constexpr bool fits_in_pointer = sizeof(T) <= sizeof(void*);

template <typename T>
struct holder {
  template <typename U>
  static constexpr bool same_size = sizeof(T) == sizeof(U);
};

int probe() {
  auto make = [](auto a, auto b) { return std::make_pair(a, b); };
  auto value = std::make_unique<int>(1);
  static_assert(fits_in_pointer<int>, "int fits in a pointer");
  static_assert(holder<int>::same_size<unsigned>, "int and unsigned match");
  return make(*value, 2.0).first;
}
`

// Orchestrator encodes which flags to attempt per platform and compiler
// family, applies the accepted flags to every extension and drives the
// build.
//
// An Orchestrator holds no state between calls: each Prepare creates fresh
// probers and a fresh scratch directory.
type Orchestrator struct {
	toolchain   Toolchain
	platform    Platform
	env         Environment
	logger      *zap.Logger
	versionInfo string
	scratchDir  string
	macOSMin    string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithVersionInfo sets the value of the VERSION_INFO define.
func WithVersionInfo(version string) Option {
	return func(o *Orchestrator) {
		if version != "" {
			o.versionInfo = version
		}
	}
}

// WithScratchDir probes inside dir instead of a temporary directory. The
// directory is created if needed and left in place afterwards.
func WithScratchDir(dir string) Option {
	return func(o *Orchestrator) {
		o.scratchDir = dir
	}
}

// WithMacOSMinVersion sets the minimum macOS deployment target.
func WithMacOSMinVersion(version string) Option {
	return func(o *Orchestrator) {
		if version != "" {
			o.macOSMin = version
		}
	}
}

// NewOrchestrator creates an Orchestrator for toolchain on platform, with env
// supplying the system default flags.
func NewOrchestrator(toolchain Toolchain, platform Platform, env Environment, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		toolchain:   toolchain,
		platform:    platform,
		env:         env,
		logger:      zap.NewNop(),
		versionInfo: Version,
		macOSMin:    DefaultMacOSMinVersion,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LanguageFlags lists the flags accepted for one language.
type LanguageFlags struct {
	CompileFlags []string `json:"compile_flags"`
	LinkFlags    []string `json:"link_flags"`
}

// FlagSet is a snapshot of the accepted flags per language.
type FlagSet struct {
	Platform Platform      `json:"platform"`
	C        LanguageFlags `json:"c"`
	CXX      LanguageFlags `json:"cxx"`
}

// Prepare probes the toolchain and applies the accepted flags onto every
// extension in exts.
//
// The only policy-level failure is ErrNoCXX11. Failing to create the scratch
// directory and unexpected toolchain errors are returned as they are.
func (o *Orchestrator) Prepare(ctx context.Context, exts []*Extension) (*FlagSet, error) {
	dir, cleanup, err := o.makeScratchDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	c := NewFlagProber(LangC, o.toolchain, dir, o.env.CompileDefaults(LangC), o.env.LinkDefaults(), o.logger)
	cxx := NewFlagProber(LangCXX, o.toolchain, dir, o.env.CompileDefaults(LangCXX), o.env.LinkDefaults(), o.logger)

	if err := o.configure(ctx, c, cxx); err != nil {
		return nil, err
	}

	for _, ext := range exts {
		ApplyFlags(ext, c, cxx)
		o.logger.Debug("applied flags",
			zap.String("extension", ext.Name),
			zap.Strings("compile_args", ext.CompileArgs),
			zap.Strings("link_args", ext.LinkArgs))
	}

	return &FlagSet{
		Platform: o.platform,
		C:        LanguageFlags{CompileFlags: c.CompileFlags(), LinkFlags: c.LinkFlags()},
		CXX:      LanguageFlags{CompileFlags: cxx.CompileFlags(), LinkFlags: cxx.LinkFlags()},
	}, nil
}

func (o *Orchestrator) makeScratchDir() (string, func(), error) {
	if o.scratchDir != "" {
		if err := os.MkdirAll(o.scratchDir, 0o755); err != nil {
			return "", nil, errors.Wrapf(err, "creating scratch directory %s", o.scratchDir)
		}
		return o.scratchDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "extbuild-probe-")
	if err != nil {
		return "", nil, errors.Wrap(err, "creating scratch directory")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// configure runs the flag policy for the platform.
func (o *Orchestrator) configure(ctx context.Context, c, cxx *FlagProber) error {
	o.logger.Info("probing toolchain flags", zap.Stringer("platform", o.platform))

	if o.platform.IsMSVC() {
		c.Add([]string{fmt.Sprintf(`/DVERSION_INFO=\"%s\"`, o.versionInfo)}, nil)
		cxx.Add([]string{"/EHsc"}, nil)
		return nil
	}

	if err := o.configureUnix(ctx, c, cxx); err != nil {
		return err
	}

	if o.platform.UsesStaticRuntime() {
		return o.configureStaticRuntime(ctx, c, cxx)
	}
	return nil
}

func (o *Orchestrator) configureUnix(ctx context.Context, c, cxx *FlagProber) error {
	c.Add([]string{fmt.Sprintf(`-DVERSION_INFO="%s"`, o.versionInfo)}, nil)

	if o.platform.IsDarwin() {
		minVersion := "-mmacosx-version-min=" + o.macOSDeploymentTarget()
		if _, err := c.AddIfSupported(ctx, []string{minVersion}, []string{minVersion}); err != nil {
			return err
		}
		if _, err := cxx.AddIfSupported(ctx, []string{"-stdlib=libc++"}, []string{"-stdlib=libc++"}); err != nil {
			return err
		}
	}

	if err := o.selectCXXStandard(ctx, cxx); err != nil {
		return err
	}

	hidden, err := c.AddIfSupported(ctx, []string{"-fvisibility=hidden"}, nil)
	if err != nil {
		return err
	}
	if hidden {
		if _, err := cxx.AddIfSupported(ctx, []string{"-fvisibility-inlines-hidden"}, nil); err != nil {
			return err
		}
	}

	return o.configureHardening(ctx, c)
}

// selectCXXStandard tries C++14, then C++11. Without either there is no
// point in continuing.
func (o *Orchestrator) selectCXXStandard(ctx context.Context, cxx *FlagProber) error {
	ok, err := cxx.Probe(ctx, []string{"-std=c++14"}, nil, cxx14ProbeSource)
	if err != nil || ok {
		return err
	}

	ok, err = cxx.AddIfSupported(ctx, []string{"-std=c++11"}, nil)
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithHint(
			errors.WithStack(ErrNoCXX11),
			"use a compiler that accepts -std=c++11 or newer, e.g. by setting CXX",
		)
	}

	o.logger.Warn("C++14 not supported, falling back to C++11")
	return nil
}

func (o *Orchestrator) configureHardening(ctx context.Context, c *FlagProber) error {
	if _, err := c.AddIfSupported(ctx, []string{"-D_FORTIFY_SOURCE=2"}, nil); err != nil {
		return err
	}
	if _, err := c.AddIfSupported(ctx, nil, []string{"-Wl,-z,relro"}); err != nil {
		return err
	}
	if _, err := c.AddIfSupported(ctx, nil, []string{"-Wl,-z,now"}); err != nil {
		return err
	}

	ok, err := c.AddIfSupported(ctx, []string{"-fstack-protector-strong"}, nil)
	if err != nil || ok {
		return err
	}
	_, err = c.AddIfSupported(ctx, []string{"-fstack-protector"}, nil)
	return err
}

// configureStaticRuntime links libgcc and libstdc++ statically on MinGW and
// Cygwin to avoid conflicts with whatever runtime DLLs are installed.
func (o *Orchestrator) configureStaticRuntime(ctx context.Context, c, cxx *FlagProber) error {
	if _, err := c.AddIfSupported(ctx, nil, []string{"-static-libgcc"}); err != nil {
		return err
	}
	_, err := cxx.AddIfSupported(ctx, nil, []string{"-static-libstdc++"})
	return err
}

// macOSDeploymentTarget returns the configured minimum, raised to
// MACOSX_DEPLOYMENT_TARGET when that names a newer release.
func (o *Orchestrator) macOSDeploymentTarget() string {
	target := o.macOSMin
	requested := o.env.MacOSDeploymentTarget
	if requested == "" {
		return target
	}

	minVersion, err := semver.NewVersion(target)
	if err != nil {
		o.logger.Warn("invalid minimum macOS version", zap.String("version", target), zap.Error(err))
		return requested
	}
	requestedVersion, err := semver.NewVersion(requested)
	if err != nil {
		o.logger.Warn("ignoring invalid "+EnvMacOSDeploymentTarget, zap.String("version", requested), zap.Error(err))
		return target
	}

	if requestedVersion.GreaterThan(minVersion) {
		return requested
	}
	return target
}
