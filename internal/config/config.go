// Package config loads extbuild settings with viper.
//
// Precedence, highest first: command-line flags, EXTBUILD_* environment
// variables (and the plain toolchain variables CC, CFLAGS, ...), the
// extbuild.toml config file, defaults. An optional dotenv file is loaded
// into the process environment before anything is read.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/contriboss/extbuild"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the resolved command settings.
type Config struct {
	Manifest        string `mapstructure:"manifest"`
	SourceDir       string `mapstructure:"source_dir"`
	BuildDir        string `mapstructure:"build_dir"`
	DestPath        string `mapstructure:"dest"`
	VersionInfo     string `mapstructure:"version_info"`
	MacOSMinVersion string `mapstructure:"macos_min_version"`
	StopOnFailure   bool   `mapstructure:"stop_on_failure"`
	CleanFirst      bool   `mapstructure:"clean_first"`
	Verbose         bool   `mapstructure:"verbose"`
	JSON            bool   `mapstructure:"json"`
}

const (
	envPrefix      = "EXTBUILD"
	configName     = "extbuild"
	configType     = "toml"
	toolchainTable = "toolchain"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("manifest", "")
	v.SetDefault("source_dir", ".")
	v.SetDefault("build_dir", "")
	v.SetDefault("dest", "")
	v.SetDefault("version_info", extbuild.Version)
	v.SetDefault("macos_min_version", extbuild.DefaultMacOSMinVersion)
	v.SetDefault("stop_on_failure", true)
	v.SetDefault("clean_first", false)
	v.SetDefault("verbose", false)
	v.SetDefault("json", false)
}

// New creates a viper instance reading configFile (or ./extbuild.toml when
// empty and present) after loading envFile into the environment.
func New(configFile, envFile string) (*viper.Viper, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "loading env file %s", envFile)
		}
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The toolchain variables keep their conventional unprefixed names.
	for _, name := range extbuild.EnvironmentVariables {
		if err := v.BindEnv(toolchainKey(name), name); err != nil {
			return nil, errors.Wrapf(err, "binding %s", name)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
		return v, nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading extbuild.toml")
		}
	}

	return v, nil
}

// Load unmarshals the command settings from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// ToolchainVars returns the toolchain variables (CC, CFLAGS, ...) resolved
// from the environment or the [toolchain] table of the config file.
func ToolchainVars(v *viper.Viper) map[string]string {
	vars := make(map[string]string, len(extbuild.EnvironmentVariables))
	for _, name := range extbuild.EnvironmentVariables {
		vars[name] = v.GetString(toolchainKey(name))
	}
	return vars
}

// Environment resolves the toolchain variables into an extbuild.Environment.
func Environment(v *viper.Viper) (extbuild.Environment, error) {
	return extbuild.EnvironmentFromMap(ToolchainVars(v))
}

func toolchainKey(name string) string {
	return toolchainTable + "." + strings.ToLower(name)
}
