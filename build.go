package extbuild

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Build probes the toolchain, applies the accepted flags to exts and then
// builds every extension in sequence.
//
// # Process Flow
//
//  1. Check required tools if the toolchain declares them (ToolChecker)
//  2. Prepare: probe flags and apply them to every extension
//  3. For each extension: compile every source, link the shared library,
//     install it into config.DestPath when set
//
// A Prepare failure (notably ErrNoCXX11) returns before anything is built.
//
// # Return Values
//
// Returns a BuildResult per processed extension and the first error
// encountered. With config.StopOnFailure processing stops after the first
// failed extension; otherwise all extensions are attempted.
//
// # Context Cancellation
//
// If the context is canceled between extensions, a BuildResult carrying the
// context error is added and processing stops.
func (o *Orchestrator) Build(ctx context.Context, exts []*Extension, config *BuildConfig) ([]*BuildResult, error) {
	if len(exts) == 0 {
		return nil, nil
	}

	if checker, ok := o.toolchain.(ToolChecker); ok {
		if err := checker.CheckTools(); err != nil {
			return nil, errors.WithHint(
				errors.Wrap(err, "build tools missing"),
				"set CC and CXX to point at an installed compiler",
			)
		}
	}

	if _, err := o.Prepare(ctx, exts); err != nil {
		return nil, err
	}

	if config == nil {
		config = &BuildConfig{}
	}
	cfg := *config
	if cfg.BuildDir == "" {
		dir, err := os.MkdirTemp("", "extbuild-")
		if err != nil {
			return nil, errors.Wrap(err, "creating build directory")
		}
		defer func() { _ = os.RemoveAll(dir) }()
		cfg.BuildDir = dir
	}

	var results []*BuildResult
	var firstError error

	for _, ext := range exts {
		// Check for context cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			if firstError == nil {
				firstError = ctxErr
			}
			results = append(results, &BuildResult{
				Name:    ext.Name,
				Success: false,
				Error:   ctxErr,
			})
			break
		}

		result, err := o.buildExtension(ctx, &cfg, ext)
		if err != nil {
			if firstError == nil {
				firstError = err
			}
			o.logger.Error("extension build failed", zap.String("extension", ext.Name), zap.Error(err))
		} else {
			o.logger.Info("extension built", zap.String("extension", ext.Name), zap.Strings("outputs", result.Extensions))
		}

		results = append(results, result)

		// Stop on first failure if configured
		if !result.Success && cfg.StopOnFailure {
			break
		}
	}

	return results, firstError
}

func (o *Orchestrator) buildExtension(ctx context.Context, config *BuildConfig, ext *Extension) (*BuildResult, error) {
	result, err := runCommonBuild(ctx, config, ext, CommonBuildSteps{
		ConfigureFunc: o.prepareBuildDir,
		BuildFunc:     o.compileAndLink,
		FindFunc:      o.findLibrary,
	})
	if err != nil {
		return result, err
	}

	installed, err := installLibraries(config, filepath.Join(config.BuildDir, ext.Name), result.Extensions)
	if err != nil {
		result.Success = false
		result.Error = err
		return result, err
	}
	result.Extensions = installed
	return result, nil
}

// prepareBuildDir creates the extension's build directory, removing old
// output first when CleanFirst is set.
func (o *Orchestrator) prepareBuildDir(_ context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error {
	if config.CleanFirst {
		if err := os.RemoveAll(workDir); err != nil {
			return errors.Wrapf(err, "cleaning %s", workDir)
		}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating build directory for %s", ext.Name)
	}
	if config.Verbose {
		result.Output = append(result.Output, "Build directory: "+workDir)
	}
	return nil
}

// compileAndLink compiles every source and links the extension library.
func (o *Orchestrator) compileAndLink(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error {
	if len(ext.Sources) == 0 {
		return errors.Newf("extension %s has no sources", ext.Name)
	}

	sources := resolve(config.SourceDir, ext.Sources)
	compileArgs := ext.compileArguments(o.platform, config.SourceDir)

	if config.Verbose {
		result.Output = append(result.Output, "Compile arguments: "+joinArgs(compileArgs))
	}

	objects, err := o.toolchain.Compile(ctx, sources, workDir, compileArgs)
	if err != nil {
		return errors.Wrapf(err, "compiling %s", ext.Name)
	}
	result.Output = append(result.Output, "Compiled "+joinArgs(objects))

	library := libraryPath(workDir, ext, o.platform)
	if err := os.MkdirAll(filepath.Dir(library), 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory for %s", ext.Name)
	}
	if config.Verbose {
		result.Output = append(result.Output, "Link arguments: "+joinArgs(ext.LinkArgs))
	}
	if err := o.toolchain.LinkSharedLibrary(ctx, objects, library, ext.LinkArgs); err != nil {
		return errors.Wrapf(err, "linking %s", ext.Name)
	}
	result.Output = append(result.Output, "Linked "+library)

	return nil
}

// findLibrary confirms the linked library exists.
func (o *Orchestrator) findLibrary(ext *Extension, workDir string) ([]string, error) {
	library := libraryPath(workDir, ext, o.platform)
	if _, err := os.Stat(library); err != nil {
		return nil, errors.Wrapf(err, "locating built library for %s", ext.Name)
	}
	return []string{library}, nil
}
