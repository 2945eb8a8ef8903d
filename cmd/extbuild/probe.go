package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/contriboss/extbuild"
	"github.com/contriboss/extbuild/internal/config"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [flags...]",
	Short: "Check whether the toolchain accepts a set of flags",
	Long: `Compile a minimal probe program with the given compiler flags (and link it
when --ldflags is set) and report whether the toolchain accepts them.

Flags already present in CFLAGS, CXXFLAGS, CPPFLAGS or LDFLAGS are
reported as supported without compiling.

Examples:
  extbuild probe -- -fvisibility=hidden
  extbuild probe --lang c++ -- -std=c++17
  extbuild probe --ldflags "-Wl,-z,relro -Wl,-z,now"`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().String("lang", "c", "probe language (c or c++)")
	probeCmd.Flags().String("ldflags", "", "linker flags to test, shell quoted")
	probeCmd.Flags().String("source", "", "file with the probe program (default: a two-argument add function)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := extbuild.ParseLanguage(langFlag)
	if err != nil {
		return err
	}

	ldflagsValue, _ := cmd.Flags().GetString("ldflags")
	ldflags, err := shellquote.Split(ldflagsValue)
	if err != nil {
		return errors.Wrap(err, "parsing --ldflags")
	}

	if len(args) == 0 && len(ldflags) == 0 {
		return errors.WithHint(errors.New("nothing to probe"), "pass compiler flags after -- or use --ldflags")
	}

	var source string
	if path, _ := cmd.Flags().GetString("source"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading probe source %s", path)
		}
		source = string(data)
	}

	_, toolchain, err := newOrchestrator()
	if err != nil {
		return err
	}
	env, err := config.Environment(v)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "extbuild-probe-")
	if err != nil {
		return errors.Wrap(err, "creating scratch directory")
	}
	defer os.RemoveAll(scratch)

	prober := extbuild.NewFlagProber(lang, toolchain, scratch, env.CompileDefaults(lang), env.LinkDefaults(), log)
	supported, err := prober.Probe(cmd.Context(), args, ldflags, source)
	if err != nil {
		return err
	}

	if supported {
		fmt.Println("yes")
		return nil
	}
	fmt.Println("no")
	return errors.Newf("%s toolchain rejected the flags", lang)
}
