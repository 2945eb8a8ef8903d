package extbuild

import (
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Manifest lists the extension modules of a project.
//
// Example extbuild.toml:
//
//	project = "tensorstore"
//	version = "0.0.1a1"
//
//	[[extension]]
//	name = "tensorstore"
//	sources = ["tensorstore.cc"]
//	language = "c++"
//	include_dirs = ["include"]
//	extra_compile_args = ["-O3"]
//
//	[extension.define_macros]
//	NDEBUG = ""
type Manifest struct {
	Project    string          `toml:"project"`
	Version    string          `toml:"version"`
	Extensions []ExtensionSpec `toml:"extension" validate:"required,min=1,dive"`
}

// ExtensionSpec is the manifest form of an Extension.
type ExtensionSpec struct {
	Name        string            `toml:"name" validate:"required,excludesall=/\\"`
	Sources     []string          `toml:"sources" validate:"required,min=1,dive,required"`
	Language    string            `toml:"language" validate:"omitempty,oneof=c c++ cxx cpp"`
	IncludeDirs []string          `toml:"include_dirs"`
	Defines     map[string]string `toml:"define_macros"`
	CompileArgs []string          `toml:"extra_compile_args"`
	LinkArgs    []string          `toml:"extra_link_args"`
	Output      string            `toml:"output"`
}

var manifestValidator = validator.New(validator.WithRequiredStructEnabled())

// DefaultManifest describes the tensorstore package: a single C++ module.
func DefaultManifest() *Manifest {
	ext := DefaultExtension()
	return &Manifest{
		Project: DefaultExtensionName,
		Version: Version,
		Extensions: []ExtensionSpec{{
			Name:     ext.Name,
			Sources:  ext.Sources,
			Language: ext.Language.String(),
		}},
	}
}

// LoadManifest reads and validates a TOML manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return manifest, nil
}

// ParseManifest decodes and validates a TOML manifest. Errors match
// ErrInvalidManifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding manifest"), ErrInvalidManifest)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Validate checks required fields and that extension names are unique.
func (m *Manifest) Validate() error {
	if err := manifestValidator.Struct(m); err != nil {
		return errors.Mark(errors.Wrap(err, "validating manifest"), ErrInvalidManifest)
	}

	seen := make(map[string]struct{}, len(m.Extensions))
	for _, spec := range m.Extensions {
		if err := checkName(spec.Name); err != nil {
			return errors.Mark(err, ErrInvalidManifest)
		}
		if _, ok := seen[spec.Name]; ok {
			return errors.Mark(errors.Newf("duplicate extension %q", spec.Name), ErrInvalidManifest)
		}
		seen[spec.Name] = struct{}{}
	}
	return nil
}

// ExtensionNames returns the extension names in sorted order.
func (m *Manifest) ExtensionNames() []string {
	names := make([]string, 0, len(m.Extensions))
	for _, spec := range m.Extensions {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

// BuildTargets converts the manifest into fresh Extension values. Each call
// returns new values, so applying flags to them never touches the manifest.
func (m *Manifest) BuildTargets() ([]*Extension, error) {
	exts := make([]*Extension, 0, len(m.Extensions))
	for _, spec := range m.Extensions {
		ext := &Extension{
			Name:        spec.Name,
			Sources:     append([]string{}, spec.Sources...),
			IncludeDirs: append([]string{}, spec.IncludeDirs...),
			CompileArgs: append([]string{}, spec.CompileArgs...),
			LinkArgs:    append([]string{}, spec.LinkArgs...),
			Output:      spec.Output,
		}
		if len(spec.Defines) > 0 {
			ext.Defines = make(map[string]string, len(spec.Defines))
			for name, value := range spec.Defines {
				ext.Defines[name] = value
			}
		}
		if spec.Language != "" {
			lang, err := ParseLanguage(spec.Language)
			if err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "extension %s", spec.Name), ErrInvalidManifest)
			}
			ext.Language = lang
		}
		ext.Language = ext.InferLanguage()
		exts = append(exts, ext)
	}
	return exts, nil
}
