package extbuild

import "context"

// BuildResult contains the output and status of one extension build.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - Output lines describing the compile and link steps
//   - Extensions list of built (or installed) shared library paths
//   - Error information if the build failed
type BuildResult struct {
	Name       string   // Extension name
	Success    bool     // True if build completed successfully
	Output     []string // Lines of output from the build process
	Extensions []string // Paths to built extension files
	Error      error    // Error if build failed, nil otherwise
}

// BuildConfig contains configuration for the build process.
//
// Source paths:
//   - SourceDir: Root that relative sources and include dirs resolve against
//   - BuildDir: Where objects and libraries are written (temporary if empty)
//   - DestPath: Where built libraries are installed (not installed if empty)
//
// Build behavior:
//   - Verbose: Record every command step in BuildResult.Output
//   - CleanFirst: Remove the extension's build directory before building
//   - StopOnFailure: Stop after the first failed extension
type BuildConfig struct {
	// Source paths
	SourceDir string // Root for relative source and include paths
	BuildDir  string // Object and library output root
	DestPath  string // Install destination for built libraries

	// Build options
	Verbose    bool // Enable verbose output
	CleanFirst bool // Remove previous build output first

	// Failure handling
	StopOnFailure bool // Stop after the first failed extension build
}

// CommonBuildSteps defines the 3-step pattern every extension build follows:
//  1. Configure: prepare the extension's build directory
//  2. Build: compile every source and link the shared library
//  3. Find: locate the built library
type CommonBuildSteps struct {
	// ConfigureFunc prepares the build directory
	ConfigureFunc func(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error

	// BuildFunc compiles and links the extension
	BuildFunc func(ctx context.Context, config *BuildConfig, ext *Extension, workDir string, result *BuildResult) error

	// FindFunc locates the built files after the build completes
	FindFunc func(ext *Extension, workDir string) ([]string, error)
}
