package extbuild

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInstallLibrariesCopiesToDestPath(t *testing.T) {
	workDir := t.TempDir()
	destDir := t.TempDir()

	libDir := filepath.Join(workDir, "json", "ext")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("failed to create library directory: %v", err)
	}

	libPath := filepath.Join(libDir, "parser.so")
	if err := os.WriteFile(libPath, []byte("binary"), 0o600); err != nil {
		t.Fatalf("failed to write library: %v", err)
	}
	if err := os.Chmod(libPath, 0o755); err != nil {
		t.Fatalf("failed to chmod library: %v", err)
	}

	config := &BuildConfig{DestPath: destDir}

	installed, err := installLibraries(config, workDir, []string{libPath, libPath})
	if err != nil {
		t.Fatalf("installLibraries returned error: %v", err)
	}

	expected := filepath.Join(destDir, "json", "ext", "parser.so")
	if len(installed) != 1 || installed[0] != expected {
		t.Fatalf("expected installed paths [%s], got %v", expected, installed)
	}

	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("expected library copied to %s: %v", expected, err)
	}
}

func TestInstallLibrariesWithoutDestPath(t *testing.T) {
	workDir := t.TempDir()
	libPath := filepath.Join(workDir, "demo.so")

	installed, err := installLibraries(&BuildConfig{}, workDir, []string{libPath})
	if err != nil {
		t.Fatalf("installLibraries returned error: %v", err)
	}

	if len(installed) != 1 || installed[0] != libPath {
		t.Fatalf("expected built paths returned unchanged, got %v", installed)
	}
}

func TestInstallLibrariesReturnsOriginalPathsForNonNative(t *testing.T) {
	workDir := t.TempDir()
	destDir := t.TempDir()

	artifact := filepath.Join(workDir, "artifact.txt")
	if err := os.WriteFile(artifact, []byte("data"), 0o600); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	installed, err := installLibraries(&BuildConfig{DestPath: destDir}, workDir, []string{artifact})
	if err != nil {
		t.Fatalf("installLibraries returned error: %v", err)
	}

	if len(installed) != 1 || installed[0] != artifact {
		t.Fatalf("expected installed paths [%s], got %v", artifact, installed)
	}

	if _, err := os.Stat(filepath.Join(destDir, "artifact.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected artifact not to be copied, stat returned %v", err)
	}
}

func TestInstallLibrariesOutsideWorkDir(t *testing.T) {
	workDir := t.TempDir()
	otherDir := t.TempDir()
	destDir := t.TempDir()

	libPath := filepath.Join(otherDir, "stray.dll")
	if err := os.WriteFile(libPath, []byte("binary"), 0o600); err != nil {
		t.Fatalf("failed to write library: %v", err)
	}

	installed, err := installLibraries(&BuildConfig{DestPath: destDir}, workDir, []string{libPath})
	if err != nil {
		t.Fatalf("installLibraries returned error: %v", err)
	}

	expected := filepath.Join(destDir, "stray.dll")
	if len(installed) != 1 || installed[0] != expected {
		t.Fatalf("expected installed paths [%s], got %v", expected, installed)
	}
}

func TestInstallLibrariesMissingSource(t *testing.T) {
	workDir := t.TempDir()

	_, err := installLibraries(&BuildConfig{DestPath: t.TempDir()}, workDir, []string{filepath.Join(workDir, "gone.so")})
	if err == nil {
		t.Fatal("expected an error for a missing library")
	}
}

func TestSafeRelativePath(t *testing.T) {
	testCases := map[string]string{
		"demo.so":                   "demo.so",
		filepath.Join("a", "b.so"):  filepath.Join("a", "b.so"),
		filepath.Join("..", "x.so"): "x.so",
	}

	for input, expected := range testCases {
		if got := safeRelativePath(input); got != expected {
			t.Errorf("safeRelativePath(%q) = %q, expected %q", input, got, expected)
		}
	}
}
