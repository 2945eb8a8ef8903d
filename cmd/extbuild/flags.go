package main

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/contriboss/extbuild"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Show the flags the host toolchain accepts",
	Long: `Run the flag policy against the host toolchain without building anything
and print the accepted compile and link flags per language.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orchestrator, _, err := newOrchestrator()
		if err != nil {
			return err
		}

		flags, err := orchestrator.Prepare(cmd.Context(), nil)
		if err != nil {
			return err
		}

		if cfg.JSON {
			data, err := json.MarshalIndent(flags, "", "  ")
			if err != nil {
				return errors.Wrap(err, "formatting flags")
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Platform: %s\n", flags.Platform)
		printLanguageFlags(extbuild.LangC, flags.C)
		printLanguageFlags(extbuild.LangCXX, flags.CXX)
		return nil
	},
}

func printLanguageFlags(lang extbuild.Language, flags extbuild.LanguageFlags) {
	fmt.Printf("%s compile: %s\n", lang, shellquote.Join(flags.CompileFlags...))
	fmt.Printf("%s link:    %s\n", lang, shellquote.Join(flags.LinkFlags...))
}
