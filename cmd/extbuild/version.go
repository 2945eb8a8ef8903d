package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/contriboss/extbuild"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show extbuild version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		info := map[string]string{
			"version":  extbuild.Version,
			"platform": runtime.GOOS + "/" + runtime.GOARCH,
			"go":       runtime.Version(),
		}

		if cfg != nil && cfg.JSON {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Println(string(output))
			return
		}

		fmt.Printf("extbuild %s\n", info["version"])
		fmt.Printf("Platform: %s\n", info["platform"])
		fmt.Printf("Go: %s\n", info["go"])
	},
}
