package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sebnyberg/platepatch"
)

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Slice a single image into patches",
	Args:  cobra.NoArgs,
	RunE:  runSlice,
}

func init() {
	sliceCmd.Flags().StringP("input", "i", "", "Source image")
	sliceCmd.Flags().StringP("output", "o", "", "Output directory")
	sliceCmd.MarkFlagRequired("input")
	sliceCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(sliceCmd)
}

func runSlice(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	res, err := platepatch.SliceFile(cmd.Context(), input, output, cfg.Prefix, cfg.Options(logger)...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: %dx%d -> %d patches of %dx%d (%s)\n",
		color.GreenString("sliced"), input,
		res.Width, res.Height, len(res.Patches), res.PatchWidth, res.PatchHeight, res.Backend)
	if dropW, dropH := res.Width-res.PatchWidth*res.Grid.Cols, res.Height-res.PatchHeight*res.Grid.Rows; dropW > 0 || dropH > 0 {
		fmt.Fprintf(out, "%s discarded %d right column(s) and %d bottom row(s)\n",
			color.YellowString("note"), dropW, dropH)
	}
	for _, p := range res.Patches {
		fmt.Fprintln(out, p.Path)
	}
	return nil
}
