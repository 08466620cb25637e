// Package export annotates the source table with cluster labels and builds
// the centroid table, mirroring the two outputs of the clustering session.
package export

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"web/kmeanslab/kmeans"
)

// ClusterColumn is the name of the appended label column.
const ClusterColumn = "cluster"

// Label returns the display label of a centroid index ("C1".."CK").
// Unassigned maps to the empty string.
func Label(c int) string {
	if c == kmeans.Unassigned {
		return ""
	}
	return fmt.Sprintf("C%d", c+1)
}

// Annotated appends a cluster label column to frame. Assignments must line
// up with the frame rows; nil assignments (no step taken yet) yield empty
// labels, as do points sitting in the stale window after a centroid delete.
func Annotated(frame dataframe.DataFrame, assignments []int) (dataframe.DataFrame, error) {
	if assignments != nil && len(assignments) != frame.Nrow() {
		return dataframe.DataFrame{}, fmt.Errorf("export: %d assignments for %d rows", len(assignments), frame.Nrow())
	}

	labels := make([]string, frame.Nrow())
	for i := range labels {
		if assignments != nil {
			labels[i] = Label(assignments[i])
		}
	}

	out := frame.Mutate(series.New(labels, series.String, ClusterColumn))
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("export: annotate: %w", out.Err)
	}
	return out, nil
}

// Centroids builds a table of centroid coordinates under the selected
// column names.
func Centroids(centroids []kmeans.Point, xName, yName string) dataframe.DataFrame {
	xs := make([]float64, len(centroids))
	ys := make([]float64, len(centroids))
	for i, c := range centroids {
		xs[i] = c.X
		ys[i] = c.Y
	}
	return dataframe.New(
		series.New(xs, series.Float, xName),
		series.New(ys, series.Float, yName),
	)
}

// PointsFrame builds a plain two-column frame from raw points, for
// sessions that were not loaded from a table.
func PointsFrame(points []kmeans.Point, xName, yName string) dataframe.DataFrame {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return dataframe.New(
		series.New(xs, series.Float, xName),
		series.New(ys, series.Float, yName),
	)
}

// WriteCSV renders any dataframe to w.
func WriteCSV(w io.Writer, frame dataframe.DataFrame) error {
	if err := frame.WriteCSV(w); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}
