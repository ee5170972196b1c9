package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sebnyberg/platepatch/plate"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Slice the source image of every plate in a directory",
	Args:  cobra.NoArgs,
	RunE:  runBatch,
}

func init() {
	batchCmd.Flags().StringP("dir", "d", "", "Directory with one subdirectory per plate")
	batchCmd.Flags().String("patches-dir", "", "Name of the per-plate patch directory")
	batchCmd.Flags().Bool("fail-fast", false, "Stop at the first failing plate")
	batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	reports, err := plate.Run(cmd.Context(), dir, plate.Options{
		PatchesDir: cfg.PatchesDir,
		Prefix:     cfg.Prefix,
		FailFast:   failFast,
		Slice:      cfg.Options(logger),
		Logger:     logger,
	})

	out := cmd.OutOrStdout()
	var ok int
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", color.RedString("FAIL"), r.Plate, r.Err)
			continue
		}
		ok++
		fmt.Fprintf(out, "%s %s: %s -> %d patches\n",
			color.GreenString("ok"), r.Plate, r.Source, len(r.Result.Patches))
	}
	fmt.Fprintf(out, "%d/%d plates sliced\n", ok, len(reports))
	return err
}
