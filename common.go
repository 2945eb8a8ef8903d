package extbuild

import (
	"context"
	"path/filepath"
)

// runCommonBuild executes the standard 3-step build process for one
// extension inside config.BuildDir/<name>.
//
// If any step fails, processing stops, result.Error is set and the error is
// returned with Success=false. The BuildResult.Output field is populated by
// the step functions as they execute.
func runCommonBuild(ctx context.Context, config *BuildConfig, ext *Extension, steps CommonBuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		Name:    ext.Name,
		Success: false,
		Output:  []string{},
	}

	if err := checkName(ext.Name); err != nil {
		result.Error = err
		return result, err
	}
	workDir := filepath.Join(config.BuildDir, ext.Name)

	// Step 1: Configure/prepare the build
	if err := steps.ConfigureFunc(ctx, config, ext, workDir, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 2: Build/compile the extension
	if err := steps.BuildFunc(ctx, config, ext, workDir, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 3: Find the built extension files
	extensions, err := steps.FindFunc(ext, workDir)
	if err != nil {
		result.Error = err
		return result, err
	}

	result.Extensions = extensions
	result.Success = true
	return result, nil
}
