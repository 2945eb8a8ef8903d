package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/contriboss/extbuild"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [extension...]",
	Short: "Probe flags and build the extension modules",
	Long: `Build every extension in the manifest (or only the named ones).

Without a manifest the tensorstore module (tensorstore.cc, C++) is built.
The build aborts before compiling anything if the toolchain supports
neither C++14 nor C++11.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("manifest", "", "extension manifest (TOML)")
	buildCmd.Flags().String("dest", "", "install built libraries into this directory")
	buildCmd.Flags().String("build-dir", "", "keep objects and libraries in this directory")
	buildCmd.Flags().String("source-dir", "", "resolve relative sources against this directory")
	buildCmd.Flags().Bool("clean", false, "remove previous build output first")
	buildCmd.Flags().Bool("keep-going", false, "build remaining extensions after a failure")
}

func runBuild(cmd *cobra.Command, args []string) error {
	for key, flag := range map[string]string{
		"manifest":    "manifest",
		"dest":        "dest",
		"build_dir":   "build-dir",
		"source_dir":  "source-dir",
		"clean_first": "clean",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	if keepGoing, _ := cmd.Flags().GetBool("keep-going"); keepGoing {
		v.Set("stop_on_failure", false)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}

	manifest, err := loadManifest(cfg.Manifest)
	if err != nil {
		return err
	}
	exts, err := selectExtensions(manifest, args)
	if err != nil {
		return err
	}

	orchestrator, _, err := newOrchestrator()
	if err != nil {
		return err
	}

	results, buildErr := orchestrator.Build(cmd.Context(), exts, &extbuild.BuildConfig{
		SourceDir:     cfg.SourceDir,
		BuildDir:      cfg.BuildDir,
		DestPath:      cfg.DestPath,
		Verbose:       cfg.Verbose,
		CleanFirst:    cfg.CleanFirst,
		StopOnFailure: cfg.StopOnFailure,
	})

	if cfg.JSON {
		if err := printResultsJSON(results); err != nil {
			return err
		}
	} else {
		printResults(results)
	}

	return buildErr
}

// defaultManifestFile is read when no --manifest is given. It doubles as the
// config file, so it only counts as a manifest when it declares extensions.
const defaultManifestFile = "extbuild.toml"

func loadManifest(path string) (*extbuild.Manifest, error) {
	if path != "" {
		return extbuild.LoadManifest(path)
	}

	data, err := os.ReadFile(defaultManifestFile)
	if os.IsNotExist(err) {
		return extbuild.DefaultManifest(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", defaultManifestFile)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err == nil {
		if _, declared := doc["extension"]; !declared {
			return extbuild.DefaultManifest(), nil
		}
	}

	manifest, err := extbuild.ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", defaultManifestFile)
	}
	return manifest, nil
}

func selectExtensions(manifest *extbuild.Manifest, names []string) ([]*extbuild.Extension, error) {
	exts, err := manifest.BuildTargets()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return exts, nil
	}

	byName := make(map[string]*extbuild.Extension, len(exts))
	for _, ext := range exts {
		byName[ext.Name] = ext
	}

	selected := make([]*extbuild.Extension, 0, len(names))
	for _, name := range names {
		ext, ok := byName[name]
		if !ok {
			return nil, errors.WithHintf(
				errors.Newf("unknown extension %q", name),
				"known extensions: %v", manifest.ExtensionNames(),
			)
		}
		selected = append(selected, ext)
	}
	return selected, nil
}

type resultJSON struct {
	Name       string   `json:"name"`
	Success    bool     `json:"success"`
	Extensions []string `json:"extensions,omitempty"`
	Output     []string `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func printResultsJSON(results []*extbuild.BuildResult) error {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		entry := resultJSON{Name: r.Name, Success: r.Success, Extensions: r.Extensions, Output: r.Output}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		out = append(out, entry)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "formatting results")
	}
	fmt.Println(string(data))
	return nil
}

func printResults(results []*extbuild.BuildResult) {
	for _, r := range results {
		if r.Success {
			fmt.Printf("✓ %s\n", r.Name)
			for _, path := range r.Extensions {
				fmt.Printf("    %s\n", path)
			}
		} else {
			fmt.Printf("✗ %s: %v\n", r.Name, r.Error)
		}
		if cfg.Verbose {
			for _, line := range r.Output {
				fmt.Printf("    | %s\n", line)
			}
		}
	}
}
