//go:build !integration

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/census-cli/internal/census"
	"github.com/sells-group/census-cli/internal/census/aggregate"
	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/config"
)

func TestFormatYearResults(t *testing.T) {
	ok := census.YearResult{
		Dataset:          "85年AA290005",
		Year:             schema.Year85,
		Files:            2,
		Filtered:         1,
		ByClassification: aggregate.Result{"D": 100, "X": 30},
	}
	ok.Report.Records = 4
	ok.Report.Skipped = 1

	bad := census.YearResult{
		Dataset: "99年AA290009",
		Err:     errors.New("schema: unsupported year \"99\""),
	}

	var buf bytes.Buffer
	formatYearResults(&buf, []census.YearResult{ok, bad})

	out := buf.String()
	assert.Contains(t, out, "DATASET")
	assert.Contains(t, out, "ASSET_TOTAL")
	assert.Contains(t, out, "85年AA290005")
	assert.Contains(t, out, "130")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "99年AA290009")
	assert.Contains(t, out, "error: schema: unsupported year")
}

func TestFormatClassificationTotals(t *testing.T) {
	r := census.YearResult{
		Dataset:          "95年AA290007",
		Year:             schema.Year95,
		ByClassification: aggregate.Result{"G": -20, "D": 7},
	}

	var buf bytes.Buffer
	formatClassificationTotals(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "95年AA290007 (95)")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("D")), bytes.Index(buf.Bytes(), []byte("G")))
	assert.Contains(t, out, "-20")
}

func TestApplyRunFlags(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = &config.Config{Census: config.CensusConfig{
		Datasets: []string{"85年AA290005"},
		Filters:  []string{"scale != 8"},
	}}

	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringSlice("dataset", nil, "")
	cmd.Flags().StringSlice("filter", nil, "")
	cmd.Flags().String("output-dir", "", "")
	cmd.Flags().Bool("parallel", false, "")
	cmd.Flags().String("reference", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--dataset", "95年AA290007", "--parallel", "--output-dir", "out"}))

	applyRunFlags(cmd)

	assert.Equal(t, []string{"95年AA290007"}, cfg.Census.Datasets)
	assert.Equal(t, []string{"scale != 8"}, cfg.Census.Filters)
	assert.Equal(t, "out", cfg.Census.OutputDir)
	assert.True(t, cfg.Census.Parallel)
}
