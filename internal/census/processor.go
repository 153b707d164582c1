// Package census drives extraction, code mapping and aggregation of census
// datasets, one survey year at a time.
package census

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/census-cli/internal/census/aggregate"
	"github.com/sells-group/census-cli/internal/census/extract"
	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/census/sicmap"
	"github.com/sells-group/census-cli/internal/model"
)

// State is a Processor lifecycle stage. Stages only move forward.
type State int

const (
	StateUncollected State = iota
	StateCollected
	StateAnnotated
	StateAggregated
)

func (s State) String() string {
	switch s {
	case StateUncollected:
		return "uncollected"
	case StateCollected:
		return "collected"
	case StateAnnotated:
		return "annotated"
	case StateAggregated:
		return "aggregated"
	default:
		return "unknown"
	}
}

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	SkipMalformed bool
	SortFiles     bool
	MaxSamples    int
}

// Processor accumulates the rows of one survey year. It is not safe for
// concurrent use.
type Processor struct {
	extractor *extract.Extractor
	sortFiles bool
	log       *zap.Logger

	state     State
	rows      []model.ExtractedRow
	annotated []model.AnnotatedRow
	report    extract.Report
	files     int
	filtered  int
}

// NewProcessor creates a Processor for schema s.
func NewProcessor(s schema.Schema, opts ProcessorOptions) *Processor {
	return &Processor{
		extractor: extract.New(s, extract.Options{
			SkipMalformed: opts.SkipMalformed,
			MaxSamples:    opts.MaxSamples,
		}),
		sortFiles: opts.SortFiles,
		log:       zap.L().With(zap.String("year", s.Year.String())),
	}
}

// Schema returns the layout the processor reads.
func (p *Processor) Schema() schema.Schema { return p.extractor.Schema() }

// State returns the current lifecycle stage.
func (p *Processor) State() State { return p.state }

// Report returns the record counts accumulated by Collect.
func (p *Processor) Report() extract.Report { return p.report }

// Files returns how many files Collect has read.
func (p *Processor) Files() int { return p.files }

// Filtered returns how many rows Filter has removed.
func (p *Processor) Filtered() int { return p.filtered }

// Collect reads every extension-less regular file in dir and appends its
// rows. Calling it again with another directory keeps appending. A failed
// call leaves the rows, file count and report as they were, so the same
// directory can be collected again. With SkipMalformed off, the first bad
// record fails the call.
func (p *Processor) Collect(ctx context.Context, dir string) error {
	if p.state > StateCollected {
		return &PreconditionError{Op: "collect", State: p.state, Need: StateCollected, AtMost: true}
	}

	files, err := p.listFiles(dir)
	if err != nil {
		return err
	}

	nrows, nfiles, report := len(p.rows), p.files, p.report.Clone()
	rollback := func() {
		p.rows = p.rows[:nrows]
		p.files = nfiles
		p.report = report
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			rollback()
			return eris.Wrap(err, "census: collect")
		}
		if err := p.collectFile(path); err != nil {
			rollback()
			return err
		}
	}

	p.state = StateCollected
	p.log.Info("census: collected dataset",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Int("rows", len(p.rows)),
		zap.Int("skipped", p.report.Skipped),
	)
	return nil
}

// listFiles returns the data files of dir, sorted when configured.
func (p *Processor) listFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil || os.IsNotExist(err) {
			return nil, &MissingDirectoryError{Path: dir}
		}
		return nil, eris.Wrapf(err, "census: stat %s", dir)
	}

	d, err := os.Open(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "census: open %s", dir)
	}
	defer d.Close() //nolint:errcheck

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, eris.Wrapf(err, "census: list %s", dir)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != "" {
			continue
		}
		names = append(names, e.Name())
	}
	if p.sortFiles {
		slices.Sort(names)
	}

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

func (p *Processor) collectFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "census: read %s", path)
	}
	records, err := extract.SplitRecords(data)
	if err != nil {
		return eris.Wrapf(err, "census: split %s", path)
	}

	rows, rep, err := p.extractor.Extract(filepath.Base(path), records)
	p.report.Merge(rep, p.extractor.MaxSamples())
	p.files++
	if err != nil {
		return err
	}
	p.rows = append(p.rows, rows...)

	p.log.Debug("census: collected file",
		zap.String("file", path),
		zap.Int("records", rep.Records),
		zap.Int("extracted", rep.Extracted),
		zap.Int("skipped", rep.Skipped),
	)
	return nil
}

// Filter keeps the rows matching every predicate and returns how many were
// removed. After Annotate it filters the annotated rows.
func (p *Processor) Filter(preds ...aggregate.Predicate) (int, error) {
	if p.state < StateCollected {
		return 0, &PreconditionError{Op: "filter", State: p.state, Need: StateCollected}
	}

	var removed int
	if p.state >= StateAnnotated {
		kept := aggregate.Filter(p.annotated, preds...)
		removed = len(p.annotated) - len(kept)
		p.annotated = kept
		p.rows = make([]model.ExtractedRow, len(kept))
		for i, r := range kept {
			p.rows[i] = r.ExtractedRow
		}
	} else {
		kept := aggregate.Filter(p.rows, preds...)
		removed = len(p.rows) - len(kept)
		p.rows = kept
	}

	p.filtered += removed
	if len(preds) > 0 {
		p.log.Info("census: filtered rows",
			zap.Strings("predicates", predicateStrings(preds)),
			zap.Int("removed", removed),
			zap.Int("kept", len(p.rows)),
		)
	}
	return removed, nil
}

// Annotate assigns a classification to every collected row.
func (p *Processor) Annotate(t *sicmap.Table, opts sicmap.Options) error {
	if p.state != StateCollected {
		return &PreconditionError{Op: "annotate", State: p.state, Need: StateCollected}
	}

	rows, err := t.Annotate(p.rows, opts)
	if err != nil {
		return eris.Wrap(err, "census: annotate")
	}
	p.annotated = rows
	p.state = StateAnnotated
	return nil
}

// Aggregate sums assets grouped by key. Grouping by classification needs
// annotated rows; the other columns only need collected rows.
func (p *Processor) Aggregate(key model.Field) (aggregate.Result, error) {
	need := StateCollected
	if key == model.FieldClassification {
		need = StateAnnotated
	}
	if p.state < need {
		return nil, &PreconditionError{Op: "aggregate by " + string(key), State: p.state, Need: need}
	}

	var (
		res aggregate.Result
		err error
	)
	if p.state >= StateAnnotated {
		res, err = aggregate.Sum(p.annotated, key)
	} else {
		res, err = aggregate.Sum(p.rows, key)
	}
	if err != nil {
		return nil, err
	}
	if p.state == StateAnnotated {
		p.state = StateAggregated
	}
	return res, nil
}

// ExtractedRows returns the collected rows.
func (p *Processor) ExtractedRows() ([]model.ExtractedRow, error) {
	if p.state < StateCollected {
		return nil, &PreconditionError{Op: "extracted rows", State: p.state, Need: StateCollected}
	}
	return p.rows, nil
}

// Rows returns the annotated rows.
func (p *Processor) Rows() ([]model.AnnotatedRow, error) {
	if p.state < StateAnnotated {
		return nil, &PreconditionError{Op: "rows", State: p.state, Need: StateAnnotated}
	}
	return p.annotated, nil
}

func predicateStrings(preds []aggregate.Predicate) []string {
	out := make([]string, len(preds))
	for i, pr := range preds {
		out[i] = pr.String()
	}
	return out
}
