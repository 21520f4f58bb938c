// Package telemetry provides the bounded-history accumulator used to
// buffer streaming pipeline measurements (tracking results, stage status,
// frame timing) for rate estimation and monitoring queries.
package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Row is one appended sample: a timestamp in seconds followed by the
// measurement values. Arity (1 + len(Values)) acts as the row's schema
// tag; rows of different arity may coexist across a schema change.
type Row struct {
	T      float64
	Values []float64
}

// Arity returns the total field count of the row, timestamp included.
func (r Row) Arity() int { return 1 + len(r.Values) }

// Table is a materialized, labeled snapshot of accumulator contents.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// ColumnMean returns the mean of column i, ignoring NaN padding from
// rows whose arity did not cover that column. Returns NaN for an
// unknown column or when no row carries it.
func (t Table) ColumnMean(i int) float64 {
	if i < 0 || i >= len(t.Columns) {
		return math.NaN()
	}
	vals := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if v := row[i]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// Accumulator is an append-only bounded time series with schema-aware
// slicing and rate estimation.
//
// It is a single-writer structure: one goroutine appends, other
// goroutines read only via the copying query methods driven by the owner
// (LastN, Snapshot). It deliberately performs no arity validation at
// append time so a live producer survives schema changes mid-stream.
type Accumulator struct {
	header   []string
	rows     []Row
	fpsRange int
	maxRows  int
}

// DefaultFPSRange is the window size used for rate estimation when the
// caller does not specify one.
const DefaultFPSRange = 10

// New creates an accumulator with the given rate-estimation window.
// maxRows bounds stored history; zero means unbounded.
func New(fpsRange, maxRows int) *Accumulator {
	if fpsRange < 1 {
		fpsRange = DefaultFPSRange
	}
	return &Accumulator{
		header:   []string{"t"},
		fpsRange: fpsRange,
		maxRows:  maxRows,
	}
}

// Reset clears stored rows. A non-nil header replaces the schema; the
// timestamp column is always implicit and prefixed.
func (a *Accumulator) Reset(header []string) {
	if header != nil {
		a.header = append([]string{"t"}, header...)
	}
	a.rows = a.rows[:0]
}

// Header returns the current schema, timestamp column included.
func (a *Accumulator) Header() []string {
	out := make([]string, len(a.header))
	copy(out, a.header)
	return out
}

// Len returns the number of stored rows.
func (a *Accumulator) Len() int { return len(a.rows) }

// Append stores a row. O(1); no validation against the header is
// performed so heterogeneous-arity rows may coexist.
func (a *Accumulator) Append(r Row) {
	a.rows = append(a.rows, r)
	if a.maxRows > 0 && len(a.rows) > a.maxRows {
		// Drop the oldest half in one move to amortize the copy.
		keep := a.maxRows / 2
		if keep < 1 {
			keep = 1
		}
		copy(a.rows, a.rows[len(a.rows)-keep:])
		a.rows = a.rows[:keep]
	}
}

// EstimateRate returns fpsRange / (tLast - tEarlier), where tEarlier is
// the timestamp fpsRange rows before the last: the window spans fpsRange
// sample intervals. It returns 0 until fpsRange+1 rows exist or when the
// interval is not positive; that is a recoverable fallback, not an
// error.
func (a *Accumulator) EstimateRate() float64 {
	n := len(a.rows)
	if n <= a.fpsRange {
		return 0
	}
	tLast := a.rows[n-1].T
	tFirst := a.rows[n-1-a.fpsRange].T
	dt := tLast - tFirst
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return 0
	}
	return float64(a.fpsRange) / dt
}

// LastN returns the most recent min(n, Len) rows, filtered to the
// maximal contiguous suffix whose arity matches the most recent row.
// This shields callers from schema-transition artifacts. With no stored
// rows it returns a single all-zero row matching the current header.
func (a *Accumulator) LastN(n int) []Row {
	if len(a.rows) == 0 {
		return []Row{{T: 0, Values: make([]float64, len(a.header)-1)}}
	}
	if n < 1 {
		n = 1
	}
	if n > len(a.rows) {
		n = len(a.rows)
	}
	window := a.rows[len(a.rows)-n:]
	want := window[len(window)-1].Arity()
	start := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Arity() != want {
			start = i + 1
			break
		}
	}
	out := make([]Row, len(window)-start)
	copy(out, window[start:])
	return out
}

// LastSeconds returns the rows spanning approximately the last t seconds,
// using the current rate estimate to size the window.
func (a *Accumulator) LastSeconds(t float64) []Row {
	n := int(math.Round(a.EstimateRate() * t))
	return a.LastN(n)
}

// Snapshot materializes all stored rows into a labeled table using the
// current header. Rows shorter than the header are padded with NaN;
// longer rows are truncated to the header width.
func (a *Accumulator) Snapshot() Table {
	cols := a.Header()
	rows := make([][]float64, len(a.rows))
	for i, r := range a.rows {
		row := make([]float64, len(cols))
		row[0] = r.T
		for j := 1; j < len(cols); j++ {
			if j-1 < len(r.Values) {
				row[j] = r.Values[j-1]
			} else {
				row[j] = math.NaN()
			}
		}
		rows[i] = row
	}
	return Table{Columns: cols, Rows: rows}
}
