package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roffe/muxscope"
	"github.com/roffe/muxscope/pkg/config"
)

var decodersCmd = &cobra.Command{
	Use:   "decoders",
	Short: "List available frame decoders",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, d := range muxscope.ListDecoders() {
			cfg := config.Default(d.Name)
			fmt.Printf("%-12s %-8s %dx%d full scale %d\n", d.Name, d.Transport, cfg.Rows, cfg.Cols, cfg.FullScale)
			fmt.Printf("%12s %s\n", "", d.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(decodersCmd)
}
