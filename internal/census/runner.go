package census

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/census-cli/internal/census/aggregate"
	"github.com/sells-group/census-cli/internal/census/extract"
	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/census/sicmap"
	"github.com/sells-group/census-cli/internal/config"
	"github.com/sells-group/census-cli/internal/export"
	"github.com/sells-group/census-cli/internal/fetcher"
	"github.com/sells-group/census-cli/internal/model"
	"github.com/sells-group/census-cli/internal/store"
)

// YearResult is the outcome of one dataset. Err is set when the dataset was
// skipped or failed; the other datasets are unaffected.
type YearResult struct {
	Dataset          string
	Year             schema.Year
	Dir              string
	RunID            string
	Files            int
	Report           extract.Report
	Filtered         int
	Rows             []model.AnnotatedRow
	ByShortCode      aggregate.Result
	ByClassification aggregate.Result
	Warnings         []sicmap.Warning
	Err              error
}

// Summary condenses the result for persistence and reporting.
func (r YearResult) Summary() model.RunSummary {
	s := model.RunSummary{
		Files:      r.Files,
		Records:    r.Report.Records,
		Extracted:  r.Report.Extracted,
		Skipped:    r.Report.Skipped,
		Filtered:   r.Filtered,
		AssetTotal: r.ByClassification.Total(),
	}
	if len(r.Report.Reasons) > 0 {
		s.Reasons = make(map[string]int, len(r.Report.Reasons))
		for k, v := range r.Report.Reasons {
			s.Reasons[string(k)] = v
		}
	}
	return s
}

// Runner processes every configured dataset with its year's schema and
// reference column.
type Runner struct {
	cfg   config.CensusConfig
	fetch fetcher.Options
	store store.Store
	preds []aggregate.Predicate
}

// NewRunner parses the configured filters. st may be nil to skip
// persistence.
func NewRunner(cfg *config.Config, st store.Store) (*Runner, error) {
	preds := make([]aggregate.Predicate, 0, len(cfg.Census.Filters))
	for _, f := range cfg.Census.Filters {
		p, err := aggregate.ParsePredicate(f)
		if err != nil {
			return nil, eris.Wrapf(err, "census: filter %q", f)
		}
		preds = append(preds, p)
	}

	return &Runner{
		cfg: cfg.Census,
		fetch: fetcher.Options{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
		},
		store: st,
		preds: preds,
	}, nil
}

// Predicates returns the parsed filters.
func (r *Runner) Predicates() []aggregate.Predicate { return r.preds }

// Run processes the datasets, in parallel when configured. Per-dataset
// failures are recorded on the results; the returned error is reserved for
// the shared reference table and cancellation.
func (r *Runner) Run(ctx context.Context) ([]YearResult, error) {
	refRows, err := r.loadReference(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]YearResult, len(r.cfg.Datasets))

	if r.cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, ds := range r.cfg.Datasets {
			g.Go(func() error {
				results[i] = r.runDataset(gctx, ds, refRows)
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return results, eris.Wrap(err, "census: run")
		}
		return results, nil
	}

	for i, ds := range r.cfg.Datasets {
		if err := ctx.Err(); err != nil {
			return results[:i], eris.Wrap(err, "census: run")
		}
		results[i] = r.runDataset(ctx, ds, refRows)
	}
	return results, nil
}

// loadReference fetches the reference table when remote and reads its cells.
func (r *Runner) loadReference(ctx context.Context) ([][]string, error) {
	path, err := fetcher.Localize(ctx, r.cfg.Reference.Path, r.cfg.TempDir, r.fetch)
	if err != nil {
		return nil, eris.Wrap(err, "census: fetch reference")
	}
	rows, err := sicmap.ReadReference(ctx, path, sicmap.ReferenceOptions{
		Sheet:    r.cfg.Reference.Sheet,
		Encoding: r.cfg.Reference.Encoding,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("census: loaded reference table",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (r *Runner) runDataset(ctx context.Context, ds string, refRows [][]string) YearResult {
	res := YearResult{Dataset: datasetName(ds)}
	log := zap.L().With(zap.String("dataset", res.Dataset))

	s, err := schema.ForFolder(res.Dataset)
	if err != nil {
		res.Err = err
		log.Warn("census: skipping dataset", zap.Error(err))
		return res
	}
	res.Year = s.Year

	res.Err = r.process(ctx, ds, s, refRows, &res)
	if res.Err != nil {
		log.Error("census: dataset failed", zap.Error(res.Err))
	}

	if r.store != nil {
		if err := r.persist(ctx, &res); err != nil {
			log.Error("census: persist run", zap.Error(err))
			if res.Err == nil {
				res.Err = err
			}
		}
	}

	if res.Err == nil && r.cfg.OutputDir != "" {
		if err := r.export(&res); err != nil {
			log.Error("census: export", zap.Error(err))
			res.Err = err
		}
	}

	if res.Err == nil {
		log.Info("census: dataset complete",
			zap.String("year", res.Year.String()),
			zap.Int("rows", len(res.Rows)),
			zap.Int("skipped", res.Report.Skipped),
			zap.Int64("asset_total", res.ByClassification.Total()),
		)
	}
	return res
}

func (r *Runner) process(ctx context.Context, ds string, s schema.Schema, refRows [][]string, res *YearResult) error {
	dir, err := r.resolveDataset(ctx, ds, res.Dataset)
	if err != nil {
		return err
	}
	res.Dir = dir

	p := NewProcessor(s, ProcessorOptions{
		SkipMalformed: r.cfg.SkipMalformed,
		SortFiles:     r.cfg.SortFiles,
	})
	err = p.Collect(ctx, dir)
	res.Files = p.Files()
	res.Report = p.Report()
	if err != nil {
		return err
	}

	entries, err := sicmap.ParseReference(refRows, sicmap.ReferenceOptions{
		ClassificationColumn: r.cfg.Reference.ClassificationColumn,
		CodeColumn:           s.ReferenceColumn,
	})
	if err != nil {
		return err
	}
	table := sicmap.Build(entries)
	table.LogWarnings(zap.L().With(zap.String("year", s.Year.String())))
	res.Warnings = table.Warnings()

	if res.Filtered, err = p.Filter(r.preds...); err != nil {
		return err
	}
	if err := p.Annotate(table, sicmap.Options{ShortCodeFallback: r.cfg.ShortCodeFallback}); err != nil {
		return err
	}
	if res.ByShortCode, err = p.Aggregate(model.FieldPrimaryShort); err != nil {
		return err
	}
	if res.ByClassification, err = p.Aggregate(model.FieldClassification); err != nil {
		return err
	}
	res.Rows, err = p.Rows()
	return err
}

// resolveDataset turns a dataset entry into a local directory. Entries may be
// folders under root_dir, .zip archives (local or remote) or ftp directories.
func (r *Runner) resolveDataset(ctx context.Context, ds, name string) (string, error) {
	isZip := strings.EqualFold(filepath.Ext(strings.TrimRight(ds, "/")), ".zip")

	switch {
	case fetcher.IsRemote(ds) && isZip:
		archive, err := fetcher.Localize(ctx, ds, r.cfg.TempDir, r.fetch)
		if err != nil {
			return "", err
		}
		return r.unzip(archive, name)
	case fetcher.IsRemote(ds):
		u, err := url.Parse(ds)
		if err != nil || u.Scheme != "ftp" {
			return "", eris.Errorf("census: remote dataset %s must be a .zip archive or an ftp directory", ds)
		}
		dest := filepath.Join(r.cfg.TempDir, name)
		ftp := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: r.fetch.Timeout})
		if _, err := ftp.DownloadDir(ctx, ds, dest); err != nil {
			return "", err
		}
		return dest, nil
	case isZip:
		archive := r.localPath(ds)
		if _, err := os.Stat(archive); os.IsNotExist(err) {
			return "", &MissingDirectoryError{Path: archive}
		}
		return r.unzip(archive, name)
	default:
		return r.localPath(ds), nil
	}
}

func (r *Runner) localPath(ds string) string {
	if filepath.IsAbs(ds) {
		return ds
	}
	return filepath.Join(r.cfg.RootDir, ds)
}

// unzip extracts archive under temp_dir. An archive wrapping a single folder
// resolves to that folder.
func (r *Runner) unzip(archive, name string) (string, error) {
	dest := filepath.Join(r.cfg.TempDir, name)
	if _, err := fetcher.ExtractZIP(archive, dest); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", eris.Wrapf(err, "census: list %s", dest)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}

func (r *Runner) persist(ctx context.Context, res *YearResult) error {
	run, err := r.store.CreateRun(ctx, res.Year.String(), res.Dataset)
	if err != nil {
		return err
	}
	res.RunID = run.ID

	if res.Err != nil {
		return r.store.FailRun(ctx, run.ID, res.Err.Error())
	}

	if _, err := r.store.SaveRows(ctx, run.ID, res.Rows); err != nil {
		return err
	}
	if err := r.store.SaveAggregate(ctx, run.ID, model.FieldPrimaryShort, res.ByShortCode); err != nil {
		return err
	}
	if err := r.store.SaveAggregate(ctx, run.ID, model.FieldClassification, res.ByClassification); err != nil {
		return err
	}
	return r.store.CompleteRun(ctx, run.ID, res.Summary())
}

func (r *Runner) export(res *YearResult) error {
	dir, year := r.cfg.OutputDir, res.Year.String()

	if err := export.WriteFile(export.ExtractedPath(dir, year), func(w io.Writer) error {
		return export.WriteRowsCSV(w, model.Fields(), res.Rows)
	}); err != nil {
		return err
	}

	for key, result := range map[model.Field]aggregate.Result{
		model.FieldPrimaryShort:   res.ByShortCode,
		model.FieldClassification: res.ByClassification,
	} {
		if err := export.WriteFile(export.AggregatePath(dir, year, key), func(w io.Writer) error {
			return export.WriteAggregateCSV(w, key, result)
		}); err != nil {
			return err
		}
	}

	summary := export.Summary{
		Year:       year,
		Dataset:    res.Dataset,
		RunID:      res.RunID,
		RunSummary: res.Summary(),
		Filters:    predicateStrings(r.preds),
		Totals:     res.ByClassification,
	}
	for _, w := range res.Warnings {
		summary.Warnings = append(summary.Warnings, w.String())
	}
	for _, s := range res.Report.Samples {
		summary.Samples = append(summary.Samples, s.Error())
	}
	return export.WriteFile(export.SummaryPath(dir, year), func(w io.Writer) error {
		return export.WriteSummaryYAML(w, summary)
	})
}

// datasetName returns the folder name of a dataset entry: its last path
// element without a .zip suffix.
func datasetName(ds string) string {
	if u, err := url.Parse(ds); err == nil && fetcher.IsRemote(ds) {
		ds = u.Path
	}
	ds = strings.TrimRight(ds, `/\`)
	if i := strings.LastIndexAny(ds, `/\`); i >= 0 {
		ds = ds[i+1:]
	}
	if strings.EqualFold(filepath.Ext(ds), ".zip") {
		ds = ds[:len(ds)-len(".zip")]
	}
	return ds
}
