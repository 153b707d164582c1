package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/census-cli/internal/census"
	"github.com/sells-group/census-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, map and aggregate every configured dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applyRunFlags(cmd)

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		runner, err := census.NewRunner(cfg, st)
		if err != nil {
			return err
		}

		results, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		formatYearResults(os.Stdout, results)
		verbose, _ := cmd.Flags().GetBool("totals")
		if verbose {
			for _, r := range results {
				if r.Err == nil {
					formatClassificationTotals(os.Stdout, r)
				}
			}
		}

		for _, r := range results {
			if r.Err == nil {
				return nil
			}
		}
		return eris.New("run: no dataset completed")
	},
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Census.Datasets, _ = flags.GetStringSlice("dataset")
	}
	if flags.Changed("filter") {
		cfg.Census.Filters, _ = flags.GetStringSlice("filter")
	}
	if flags.Changed("output-dir") {
		cfg.Census.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("parallel") {
		cfg.Census.Parallel, _ = flags.GetBool("parallel")
	}
	if flags.Changed("reference") {
		cfg.Census.Reference.Path, _ = flags.GetString("reference")
	}
}

func init() {
	runCmd.Flags().StringSlice("dataset", nil, "dataset folders, .zip archives or ftp directories (default from config)")
	runCmd.Flags().StringSlice("filter", nil, `row filters such as "scale != 8" (default from config)`)
	runCmd.Flags().String("output-dir", "", "write CSV and summary files to this directory")
	runCmd.Flags().Bool("parallel", false, "process years concurrently")
	runCmd.Flags().String("reference", "", "ISIC to ROC SIC reference table path or URL")
	runCmd.Flags().Bool("totals", true, "print per-classification asset totals")
	rootCmd.AddCommand(runCmd)
}

// formatYearResults writes one line per dataset to out.
func formatYearResults(out io.Writer, results []census.YearResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tYEAR\tFILES\tRECORDS\tSKIPPED\tFILTERED\tROWS\tASSET_TOTAL\tSTATUS")
	_, _ = fmt.Fprintln(w, "-------\t----\t-----\t-------\t-------\t--------\t----\t-----------\t------")

	for _, r := range results {
		year := "-"
		if r.Year != 0 {
			year = r.Year.String()
		}
		status := "ok"
		if r.Err != nil {
			status = "error: " + r.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Dataset,
			year,
			r.Files,
			r.Report.Records,
			r.Report.Skipped,
			r.Filtered,
			len(r.Rows),
			r.ByClassification.Total(),
			status,
		)
	}
	_ = w.Flush()
}

// formatClassificationTotals writes a dataset's asset totals per ISIC code,
// sorted by code.
func formatClassificationTotals(out io.Writer, r census.YearResult) {
	_, _ = fmt.Fprintf(out, "\n%s (%s)\n", r.Dataset, r.Year)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "ISIC\tASSET\t")
	for _, k := range r.ByClassification.Keys() {
		_, _ = fmt.Fprintf(w, "%s\t%d\t\n", k, r.ByClassification[k])
	}
	_ = w.Flush()
}
