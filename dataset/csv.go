package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// missingTokens are cell values read as missing, matching what pandas treats as NA.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// IsMissingToken reports whether a raw cell is read as missing.
func IsMissingToken(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

// ReadCSV loads a CSV file with a header row.
func ReadCSV(path string) (*Table, error) {
	return ReadCSVWithKinds(path, nil)
}

// ReadCSVWithKinds is ReadCSV with the kinds of some columns fixed in advance.
func ReadCSVWithKinds(path string, kinds map[string]Kind) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIngestionError("open", path, err)
	}
	defer f.Close()

	t, err := ParseCSVWithKinds(bufio.NewReader(f), kinds)
	if err != nil {
		return nil, errors.NewIngestionError("parse", path, err)
	}
	return t, nil
}

// ParseCSV reads a header row followed by records and infers every column's kind.
func ParseCSV(r io.Reader) (*Table, error) {
	return ParseCSVWithKinds(r, nil)
}

// ParseCSVWithKinds parses the columns named in kinds with ParseColumn and
// infers the rest. Inference data uses it so a column keeps the kind it had
// at training time whatever its values look like.
func ParseCSVWithKinds(r io.Reader, kinds map[string]Kind) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.ErrEmptyData
		}
		return nil, err
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	raw := make([][]string, len(names))
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, cell := range rec {
			raw[i] = append(raw[i], strings.TrimSpace(cell))
		}
	}
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, errors.ErrEmptyData
	}

	cols := make([]*Column, len(names))
	for i, name := range names {
		kind, ok := kinds[name]
		if !ok {
			cols[i] = InferColumn(name, raw[i])
			continue
		}
		c, err := ParseColumn(name, kind, raw[i])
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return NewTable(cols...)
}

// InferColumn decides a column's kind from its raw cells.
// A column is numeric when every non-missing cell parses as a float,
// categorical when none does, and ambiguous otherwise (including when every
// cell is missing).
func InferColumn(name string, raw []string) *Column {
	parsed := make([]float64, len(raw))
	numeric, text := 0, 0
	for i, s := range raw {
		if IsMissingToken(s) {
			parsed[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			text++
			continue
		}
		parsed[i] = v
		numeric++
	}

	switch {
	case numeric > 0 && text == 0:
		return &Column{Name: name, Kind: Numeric, Numbers: parsed}
	case text > 0 && numeric == 0:
		return &Column{Name: name, Kind: Categorical, Categories: normalizeMissing(raw)}
	default:
		return &Column{Name: name, Kind: Ambiguous, Categories: normalizeMissing(raw)}
	}
}

// ParseColumn builds a column of a known kind from raw cells, for example an
// inference record whose schema was fixed at training time.
func ParseColumn(name string, kind Kind, raw []string) (*Column, error) {
	switch kind {
	case Numeric:
		values := make([]float64, len(raw))
		for i, s := range raw {
			if IsMissingToken(s) {
				values[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %q is not a number", name, s)
			}
			values[i] = v
		}
		return NewNumericColumn(name, values), nil
	case Categorical:
		return NewCategoricalColumn(name, normalizeMissing(raw)), nil
	default:
		return nil, fmt.Errorf("column %q: cannot parse as %s", name, kind)
	}
}

func normalizeMissing(raw []string) []string {
	out := make([]string, len(raw))
	for i, s := range raw {
		if !IsMissingToken(s) {
			out[i] = strings.TrimSpace(s)
		}
	}
	return out
}

// WriteCSV writes the table with a header row, creating parent directories.
// Missing cells are written as empty fields.
func WriteCSV(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIngestionError("mkdir", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewIngestionError("create", path, err)
	}
	if err := EncodeCSV(f, t); err != nil {
		f.Close()
		return errors.NewIngestionError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIngestionError("close", path, err)
	}
	return nil
}

// EncodeCSV writes the table as CSV to w.
func EncodeCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	rec := make([]string, len(t.columns))
	for i := 0; i < t.Rows(); i++ {
		for j, c := range t.columns {
			rec[j] = c.String(i)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
