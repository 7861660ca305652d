package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch <input-dir> <output-dir>",
	Short: "Convert every supported file of a folder",
	Long: `batch converts the immediate files of input-dir one after another. Each
file becomes <name>[_suffix].zip in output-dir. Subfolders are not visited.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		suffix, _ := cmd.Flags().GetString("suffix")

		p := newPrinter(os.Stdout)
		conv, err := newConverter(p)
		if err != nil {
			return err
		}
		res, err := conv.ProcessFolder(cmd.Context(), args[0], args[1], suffix)
		if err != nil {
			return err
		}
		if res.Total() > 0 {
			p.Summary(len(res.Processed), len(res.Failed))
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d file(s) failed", len(res.Failed))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("suffix", "", "suffix appended to every package name")

	rootCmd.AddCommand(batchCmd)
}
