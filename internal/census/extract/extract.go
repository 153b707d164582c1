// Package extract slices census records into rows using a year schema.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-cli/internal/census/schema"
	"github.com/sells-group/census-cli/internal/census/zoned"
	"github.com/sells-group/census-cli/internal/model"
)

// Reason classifies why a record was rejected.
type Reason string

// Rejection reasons.
const (
	ReasonShortRecord Reason = "short_record"
	ReasonAssetDecode Reason = "asset_decode"
	ReasonAssetParse  Reason = "asset_parse"
)

// MalformedRecordError reports a record that could not be turned into a row.
type MalformedRecordError struct {
	Source string // file the record came from
	Index  int    // 0-based position within Source
	Reason Reason
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("extract: %s record %d: %s", e.Source, e.Index, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Options controls extraction behavior.
type Options struct {
	// SkipMalformed skips bad records and counts them in the Report.
	// When false the first bad record aborts the batch.
	SkipMalformed bool
	// MaxSamples caps how many rejected-record errors the Report keeps.
	MaxSamples int
}

const defaultMaxSamples = 20

// Report counts what happened to the records of one or more batches.
type Report struct {
	Records   int                     `json:"records" yaml:"records"`
	Extracted int                     `json:"extracted" yaml:"extracted"`
	Skipped   int                     `json:"skipped" yaml:"skipped"`
	Reasons   map[Reason]int          `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Samples   []*MalformedRecordError `json:"-" yaml:"-"`
}

// Merge adds the counts of o into r.
func (r *Report) Merge(o Report, maxSamples int) {
	r.Records += o.Records
	r.Extracted += o.Extracted
	r.Skipped += o.Skipped
	for k, v := range o.Reasons {
		if r.Reasons == nil {
			r.Reasons = make(map[Reason]int)
		}
		r.Reasons[k] += v
	}
	for _, s := range o.Samples {
		if len(r.Samples) >= maxSamples {
			break
		}
		r.Samples = append(r.Samples, s)
	}
}

// Clone returns a copy of r that shares no maps or slices with it.
func (r *Report) Clone() Report {
	c := *r
	if r.Reasons != nil {
		c.Reasons = make(map[Reason]int, len(r.Reasons))
		for k, v := range r.Reasons {
			c.Reasons[k] = v
		}
	}
	c.Samples = append([]*MalformedRecordError(nil), r.Samples...)
	return c
}

func (r *Report) reject(err *MalformedRecordError, maxSamples int) {
	r.Skipped++
	if r.Reasons == nil {
		r.Reasons = make(map[Reason]int)
	}
	r.Reasons[err.Reason]++
	if len(r.Samples) < maxSamples {
		r.Samples = append(r.Samples, err)
	}
}

// Extractor turns raw records of one year into rows.
type Extractor struct {
	schema schema.Schema
	minLen int
	opts   Options
}

// New creates an Extractor for s.
func New(s schema.Schema, opts Options) *Extractor {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = defaultMaxSamples
	}
	return &Extractor{schema: s, minLen: s.MinLength(), opts: opts}
}

// Schema returns the layout the extractor reads.
func (e *Extractor) Schema() schema.Schema { return e.schema }

// MaxSamples returns the configured sample cap.
func (e *Extractor) MaxSamples() int { return e.opts.MaxSamples }

// Extract produces one row per record, preserving order. With SkipMalformed
// set, bad records are counted in the returned Report and left out of the
// rows; otherwise the first bad record is returned as a *MalformedRecordError
// together with the rows extracted before it.
func (e *Extractor) Extract(source string, records []string) ([]model.ExtractedRow, Report, error) {
	var rep Report
	rows := make([]model.ExtractedRow, 0, len(records))

	for i, rec := range records {
		rep.Records++
		row, err := e.ExtractRecord(rec)
		if err != nil {
			var mre *MalformedRecordError
			if !errors.As(err, &mre) {
				return rows, rep, err
			}
			mre.Source = source
			mre.Index = i
			rep.reject(mre, e.opts.MaxSamples)
			if !e.opts.SkipMalformed {
				return rows, rep, mre
			}
			continue
		}
		rows = append(rows, row)
		rep.Extracted++
	}

	return rows, rep, nil
}

// ExtractRecord slices a single record. Errors are *MalformedRecordError
// without Source or Index set.
func (e *Extractor) ExtractRecord(rec string) (model.ExtractedRow, error) {
	if len(rec) < e.minLen {
		return model.ExtractedRow{}, &MalformedRecordError{
			Reason: ReasonShortRecord,
			Err:    eris.Errorf("length %d, need %d", len(rec), e.minLen),
		}
	}

	primary := e.schema.Primary.Slice(rec)
	row := model.ExtractedRow{
		Scale:        e.schema.Scale.Slice(rec),
		Primary:      primary,
		PrimaryShort: primary[:2],
	}

	raw := e.schema.Asset.Slice(rec)
	switch e.schema.AssetEncoding {
	case schema.ZonedDecimal:
		n, err := zoned.Decode(raw)
		if err != nil {
			return model.ExtractedRow{}, &MalformedRecordError{Reason: ReasonAssetDecode, Err: err}
		}
		row.Asset = n
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return model.ExtractedRow{}, &MalformedRecordError{Reason: ReasonAssetParse, Err: err}
		}
		row.Asset = n
	}

	return row, nil
}
