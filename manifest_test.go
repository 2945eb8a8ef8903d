package extbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
project = "tensorstore"
version = "0.0.1a1"

[[extension]]
name = "tensorstore"
sources = ["tensorstore.cc"]
include_dirs = ["include"]
extra_compile_args = ["-O3"]
extra_link_args = ["-lm"]

[extension.define_macros]
NDEBUG = ""
LEVEL = "2"

[[extension]]
name = "_speedups"
sources = ["speedups.c"]
language = "c"
output = "pkg/_speedups.so"
`

func TestParseManifest(t *testing.T) {
	manifest, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "tensorstore", manifest.Project)
	assert.Equal(t, "0.0.1a1", manifest.Version)
	require.Len(t, manifest.Extensions, 2)
	assert.Equal(t, []string{"_speedups", "tensorstore"}, manifest.ExtensionNames())

	spec := manifest.Extensions[0]
	assert.Equal(t, []string{"include"}, spec.IncludeDirs)
	assert.Equal(t, map[string]string{"NDEBUG": "", "LEVEL": "2"}, spec.Defines)
	assert.Equal(t, []string{"-O3"}, spec.CompileArgs)
	assert.Equal(t, []string{"-lm"}, spec.LinkArgs)
}

func TestManifestBuildTargets(t *testing.T) {
	manifest, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	exts, err := manifest.BuildTargets()
	require.NoError(t, err)
	require.Len(t, exts, 2)

	assert.Equal(t, LangCXX, exts[0].Language, "inferred from the sources")
	assert.Equal(t, LangC, exts[1].Language)
	assert.Equal(t, "pkg/_speedups.so", exts[1].Output)

	exts[0].CompileArgs = append([]string{"-fvisibility=hidden"}, exts[0].CompileArgs...)
	exts[0].Defines["EXTRA"] = "1"

	again, err := manifest.BuildTargets()
	require.NoError(t, err)
	assert.Equal(t, []string{"-O3"}, again[0].CompileArgs, "targets are fresh copies")
	assert.NotContains(t, manifest.Extensions[0].Defines, "EXTRA")
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		contains string
	}{
		{name: "bad toml", manifest: "project = ", contains: "decoding manifest"},
		{name: "no extensions", manifest: `project = "x"`, contains: "validating manifest"},
		{
			name:     "missing name",
			manifest: "[[extension]]\nsources = [\"a.c\"]\n",
			contains: "Name",
		},
		{
			name:     "no sources",
			manifest: "[[extension]]\nname = \"a\"\nsources = []\n",
			contains: "Sources",
		},
		{
			name:     "blank source",
			manifest: "[[extension]]\nname = \"a\"\nsources = [\"\"]\n",
			contains: "Sources[0]",
		},
		{
			name:     "unknown language",
			manifest: "[[extension]]\nname = \"a\"\nsources = [\"a.f90\"]\nlanguage = \"fortran\"\n",
			contains: "Language",
		},
		{
			name:     "name with a path separator",
			manifest: "[[extension]]\nname = \"../src\"\nsources = [\"a.c\"]\n",
			contains: "Name",
		},
		{
			name:     "name with a backslash",
			manifest: "[[extension]]\nname = 'pkg\\mod'\nsources = [\"a.c\"]\n",
			contains: "Name",
		},
		{
			name:     "parent directory name",
			manifest: "[[extension]]\nname = \"..\"\nsources = [\"a.c\"]\n",
			contains: `extension name ".." must be a plain file name`,
		},
		{
			name:     "duplicate names",
			manifest: "[[extension]]\nname = \"a\"\nsources = [\"a.c\"]\n[[extension]]\nname = \"a\"\nsources = [\"b.c\"]\n",
			contains: `duplicate extension "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.manifest))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extbuild.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o600))

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, manifest.Extensions, 2)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultManifest(t *testing.T) {
	manifest := DefaultManifest()
	require.NoError(t, manifest.Validate())

	exts, err := manifest.BuildTargets()
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, DefaultExtensionName, exts[0].Name)
	assert.Equal(t, []string{"tensorstore.cc"}, exts[0].Sources)
	assert.Equal(t, LangCXX, exts[0].Language)
}
