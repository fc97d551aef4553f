package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	types "github.com/yungbote/simgraph/internal/domain"
	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
)

// InputError reports a malformed or unreachable dataset. It is fatal and is
// raised before any store interaction.
type InputError struct {
	Row    int
	Column string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	var b strings.Builder
	b.WriteString("dataset: ")
	if e.Row > 0 {
		fmt.Fprintf(&b, "row %d: ", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InputError) Unwrap() []error {
	if e.Err != nil {
		return []error{apperrors.ErrInvalidInput, e.Err}
	}
	return []error{apperrors.ErrInvalidInput}
}

// Schema fixes the columns a dataset must carry.
type Schema struct {
	IDColumn       string
	ClusterColumns []string
}

// DefaultClusterColumns returns c0..c(n-1).
func DefaultClusterColumns(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "c" + strconv.Itoa(i)
	}
	return out
}

// Dataset is the parsed input. Entities keep file order; that order is the
// row index used by every later stage.
type Dataset struct {
	Entities    []types.Entity
	Fingerprint string
}

// Vectors returns the score vectors in entity order.
func (d *Dataset) Vectors() [][]float64 {
	out := make([][]float64, len(d.Entities))
	for i := range d.Entities {
		out[i] = d.Entities[i].Scores
	}
	return out
}

// Load opens location and parses it against schema.
func Load(ctx context.Context, opener *Opener, location string, schema Schema) (*Dataset, error) {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Parse(rc, schema)
}

// Parse reads CSV with a header row. Extra columns are ignored; missing
// schema columns, blank or duplicate ids and non-finite scores are errors.
// The sha256 of the raw bytes is recorded as the dataset fingerprint.
func Parse(r io.Reader, schema Schema) (*Dataset, error) {
	if strings.TrimSpace(schema.IDColumn) == "" {
		return nil, &InputError{Reason: "identifier column not configured"}
	}
	if len(schema.ClusterColumns) == 0 {
		return nil, &InputError{Reason: "no cluster columns configured"}
	}

	h := sha256.New()
	cr := csv.NewReader(io.TeeReader(r, h))
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &InputError{Reason: "dataset is empty"}
	}
	if err != nil {
		return nil, &InputError{Reason: "read header", Err: err}
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	idCol, ok := index[schema.IDColumn]
	if !ok {
		return nil, &InputError{Column: schema.IDColumn, Reason: "missing identifier column"}
	}
	scoreCols := make([]int, len(schema.ClusterColumns))
	for i, name := range schema.ClusterColumns {
		col, ok := index[name]
		if !ok {
			return nil, &InputError{Column: name, Reason: "missing cluster column"}
		}
		scoreCols[i] = col
	}

	ds := &Dataset{}
	seen := map[string]int{}
	row := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, &InputError{Row: row, Reason: "read record", Err: err}
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			return nil, &InputError{Row: row, Column: schema.IDColumn, Reason: "blank identifier"}
		}
		if prev, dup := seen[id]; dup {
			return nil, &InputError{Row: row, Column: schema.IDColumn, Reason: fmt.Sprintf("duplicate identifier %q (first at row %d)", id, prev)}
		}
		seen[id] = row
		scores := make([]float64, len(scoreCols))
		for i, col := range scoreCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, &InputError{Row: row, Column: schema.ClusterColumns[i], Reason: "score is not numeric", Err: err}
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &InputError{Row: row, Column: schema.ClusterColumns[i], Reason: "score is not finite"}
			}
			scores[i] = v
		}
		ds.Entities = append(ds.Entities, types.Entity{ID: id, Scores: scores})
	}
	ds.Fingerprint = hex.EncodeToString(h.Sum(nil))
	return ds, nil
}
