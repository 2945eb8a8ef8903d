package extbuild

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var nativeLibraryExtensions = map[string]struct{}{
	".so":     {},
	".bundle": {},
	".dll":    {},
	".pyd":    {},
	".dylib":  {},
}

// libraryPath is where the linked library of ext is written inside workDir.
func libraryPath(workDir string, ext *Extension, p Platform) string {
	return filepath.Join(workDir, filepath.FromSlash(ext.LibraryName(p)))
}

// installLibraries copies built native libraries from workDir into
// config.DestPath, keeping their path relative to workDir, and returns the
// installed paths. Without a DestPath, or for files that are not native
// libraries, the built paths are returned unchanged.
func installLibraries(config *BuildConfig, workDir string, built []string) ([]string, error) {
	if len(built) == 0 {
		return nil, nil
	}
	if config.DestPath == "" {
		return built, nil
	}

	var installed []string
	for _, src := range built {
		if !isNativeLibrary(src) {
			installed = append(installed, src)
			continue
		}

		rel, err := filepath.Rel(workDir, src)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(src)
		}

		dest := filepath.Join(config.DestPath, safeRelativePath(rel))
		if err := copyFile(src, dest); err != nil {
			return nil, errors.Wrapf(err, "installing %s", filepath.Base(src))
		}
		installed = append(installed, dest)
	}

	return uniqueStrings(installed), nil
}

func isNativeLibrary(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := nativeLibraryExtensions[ext]
	return ok
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func safeRelativePath(path string) string {
	clean := filepath.Clean(path)
	if clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return clean
}
