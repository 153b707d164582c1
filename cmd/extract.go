package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/census-cli/internal/census"
	"github.com/sells-group/census-cli/internal/census/aggregate"
	"github.com/sells-group/census-cli/internal/census/extract"
	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/config"
	"github.com/sells-group/census-cli/internal/export"
	"github.com/sells-group/census-cli/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract <folder>",
	Short: "Extract one dataset folder to CSV without code mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, _ := cmd.Flags().GetStringSlice("filter")
		outPath, _ := cmd.Flags().GetString("out")

		var out io.Writer = os.Stdout
		if outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "extract: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		rep, n, err := runExtract(cmd.Context(), cfg.Census, args[0], filters, out)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stderr, "records=%d extracted=%d skipped=%d written=%d\n",
			rep.Records, rep.Extracted, rep.Skipped, n)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringSlice("filter", nil, `row filters such as "scale != 8"`)
	extractCmd.Flags().StringP("out", "o", "-", "output CSV path, - for stdout")
	rootCmd.AddCommand(extractCmd)
}

// extractedFields are the columns written before code mapping.
var extractedFields = []model.Field{
	model.FieldScale,
	model.FieldPrimary,
	model.FieldPrimaryShort,
	model.FieldAsset,
}

// runExtract collects folder, applies filters and writes the rows to out.
// folder is resolved against root_dir unless it exists as given.
func runExtract(ctx context.Context, cc config.CensusConfig, folder string, filters []string, out io.Writer) (extract.Report, int, error) {
	dir := folder
	if _, err := os.Stat(dir); err != nil && !filepath.IsAbs(folder) {
		dir = filepath.Join(cc.RootDir, folder)
	}

	s, err := schema.ForFolder(filepath.Base(filepath.Clean(dir)))
	if err != nil {
		return extract.Report{}, 0, err
	}

	preds := make([]aggregate.Predicate, 0, len(filters))
	for _, f := range filters {
		p, err := aggregate.ParsePredicate(f)
		if err != nil {
			return extract.Report{}, 0, err
		}
		preds = append(preds, p)
	}

	p := census.NewProcessor(s, census.ProcessorOptions{
		SkipMalformed: cc.SkipMalformed,
		SortFiles:     cc.SortFiles,
	})
	if err := p.Collect(ctx, dir); err != nil {
		return p.Report(), 0, err
	}
	if _, err := p.Filter(preds...); err != nil {
		return p.Report(), 0, err
	}

	rows, err := p.ExtractedRows()
	if err != nil {
		return p.Report(), 0, err
	}
	if err := export.WriteRowsCSV(out, extractedFields, rows); err != nil {
		return p.Report(), 0, err
	}
	return p.Report(), len(rows), nil
}
