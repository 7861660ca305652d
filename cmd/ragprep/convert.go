package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert one document into a ZIP package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		suffix, _ := cmd.Flags().GetString("suffix")
		if out == "" {
			out = filepath.Dir(args[0])
		}

		p := newPrinter(os.Stdout)
		conv, err := newConverter(p)
		if err != nil {
			return err
		}
		zipPath, err := conv.ConvertFile(cmd.Context(), args[0], out, suffix)
		if err != nil {
			p.Status(fmt.Sprintf("Failed to process %s: %v", filepath.Base(args[0]), err))
			return err
		}
		p.Status(fmt.Sprintf("Successfully processed %s -> %s", filepath.Base(args[0]), zipPath))
		return nil
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output folder (default: the input file's folder)")
	convertCmd.Flags().String("suffix", "", "suffix appended to the package name")

	rootCmd.AddCommand(convertCmd)
}
