// Package dataset turns tabular CSV data into the ordered 2D point slice
// the clustering engine consumes: pick two numeric columns, extract them.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"web/kmeanslab/kmeans"
)

var (
	// ErrTooFewNumericColumns: the table has fewer than two numeric columns,
	// so no (x, y) projection exists.
	ErrTooFewNumericColumns = errors.New("dataset: at least two numeric columns required")

	// ErrNotNumeric: a selected column is not numeric.
	ErrNotNumeric = errors.New("dataset: selected column is not numeric")

	// ErrUnknownColumn: a selected column does not exist.
	ErrUnknownColumn = errors.New("dataset: unknown column")
)

// Table is a loaded dataframe plus the two columns currently projected
// onto the clustering plane.
type Table struct {
	Frame dataframe.DataFrame
	XCol  string
	YCol  string
}

// Load reads CSV data and projects onto the first two numeric columns.
func Load(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", df.Err)
	}

	numeric := NumericColumns(df)
	if len(numeric) < 2 {
		return nil, ErrTooFewNumericColumns
	}

	return &Table{
		Frame: df,
		XCol:  numeric[0],
		YCol:  numeric[1],
	}, nil
}

// Open reads a CSV file from disk.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// NumericColumns lists the names of int and float columns in table order.
func NumericColumns(df dataframe.DataFrame) []string {
	var cols []string
	types := df.Types()
	for i, name := range df.Names() {
		if types[i] == series.Int || types[i] == series.Float {
			cols = append(cols, name)
		}
	}
	return cols
}

// Select changes the projection to the named columns. Both must exist and
// be numeric.
func (t *Table) Select(xcol, ycol string) error {
	for _, col := range []string{xcol, ycol} {
		idx := -1
		for i, name := range t.Frame.Names() {
			if name == col {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		if typ := t.Frame.Types()[idx]; typ != series.Int && typ != series.Float {
			return fmt.Errorf("%w: %q is %s", ErrNotNumeric, col, typ)
		}
	}
	t.XCol = xcol
	t.YCol = ycol
	return nil
}

// Points extracts the projected columns as an ordered point slice. Row
// order matches the dataframe, so assignment indices line up with rows.
func (t *Table) Points() ([]kmeans.Point, error) {
	xs := t.Frame.Col(t.XCol).Float()
	ys := t.Frame.Col(t.YCol).Float()

	points := make([]kmeans.Point, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			return nil, fmt.Errorf("dataset: row %d has a missing or non-numeric value", i)
		}
		points[i] = kmeans.Point{X: xs[i], Y: ys[i]}
	}
	return points, nil
}
