package main

import (
	"fmt"
	"os"

	"github.com/contriboss/extbuild"
	"github.com/contriboss/extbuild/internal/config"
	"github.com/contriboss/extbuild/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configFile string
	envFile    string

	v   *viper.Viper
	cfg *config.Config
	log = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "extbuild",
	Short: "Build native C/C++ extension modules with probed toolchain flags",
	Long: `extbuild probes the host C/C++ toolchain for hardening and
compatibility flags (C++ standard, symbol visibility, stack protection,
RELRO) and builds native extension modules with the flags it accepts.

System flags from CFLAGS, CXXFLAGS, CPPFLAGS and LDFLAGS are honored and
never re-tested.

Examples:
  extbuild build                      # Build the extensions in extbuild.toml
  extbuild build --dest build/lib     # ...and install the libraries
  extbuild flags --json               # Show which flags the toolchain accepts
  extbuild probe -- -fvisibility=hidden`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		v, err = config.New(configFile, envFile)
		if err != nil {
			return err
		}
		for _, name := range []string{"verbose", "json"} {
			if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		log = logger.New(logger.Options{Verbose: cfg.Verbose, JSON: cfg.JSON})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./extbuild.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading CC, CFLAGS, ...")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "JSON output")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

// newOrchestrator resolves the environment, platform and toolchain from the
// loaded configuration.
func newOrchestrator() (*extbuild.Orchestrator, *extbuild.CommandToolchain, error) {
	env, err := config.Environment(v)
	if err != nil {
		return nil, nil, err
	}

	platform := extbuild.HostPlatform(env.CC)
	toolchain, err := extbuild.NewToolchainFactory().ToolchainFor(platform, env)
	if err != nil {
		return nil, nil, err
	}

	cc, cxx := toolchain.Compilers()
	log.Debug("resolved toolchain",
		zap.String("toolchain", toolchain.Name()),
		zap.Stringer("platform", platform),
		zap.String("cc", cc),
		zap.String("cxx", cxx))

	orchestrator := extbuild.NewOrchestrator(toolchain, platform, env,
		extbuild.WithLogger(log),
		extbuild.WithVersionInfo(cfg.VersionInfo),
		extbuild.WithMacOSMinVersion(cfg.MacOSMinVersion),
	)
	return orchestrator, toolchain, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
