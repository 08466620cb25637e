package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"web/kmeanslab/dataset"
	"web/kmeanslab/export"
	"web/kmeanslab/kmeans"
	"web/kmeanslab/plot"
)

var (
	csvPath   = flag.String("csv", "", "CSV file to cluster (generated points when empty)")
	xcol      = flag.String("x", "", "x column name (first numeric column when empty)")
	ycol      = flag.String("y", "", "y column name (second numeric column when empty)")
	numPoints = flag.Int("points", 500, "number of points to generate")
	numBlobs  = flag.Int("blobs", 3, "number of blobs to generate points around")
	k         = flag.Int("k", 3, "number of centroids")
	seed      = flag.Int64("seed", 42, "random seed")
	maxSteps  = flag.Int("maxsteps", 1000, "step cap")
	lines     = flag.Bool("lines", false, "draw lines from points to their centroids")
	outDir    = flag.String("out", "demo-out", "output directory")
)

func loadPoints() ([]kmeans.Point, *dataset.Table, error) {
	if *csvPath == "" {
		bounds := kmeans.Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
		return kmeans.GenerateBlobs(*numPoints, *numBlobs, bounds, *seed), nil, nil
	}

	table, err := dataset.Open(*csvPath)
	if err != nil {
		return nil, nil, err
	}
	if *xcol != "" || *ycol != "" {
		x, y := *xcol, *ycol
		if x == "" {
			x = table.XCol
		}
		if y == "" {
			y = table.YCol
		}
		if err := table.Select(x, y); err != nil {
			return nil, nil, err
		}
	}
	points, err := table.Points()
	if err != nil {
		return nil, nil, err
	}
	return points, table, nil
}

func writeFile(path string, render func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render(f)
}

func run() error {
	points, table, err := loadPoints()
	if err != nil {
		return err
	}

	engine, err := kmeans.New(points, kmeans.Options{K: *k, Seed: *seed})
	if err != nil {
		return err
	}

	fmt.Printf("Clustering %d points with k=%d\n", len(points), *k)
	start := time.Now()
	steps := 0
	for !engine.Converged() && steps < *maxSteps {
		engine.Step()
		steps++
	}
	fmt.Printf("Done after %d steps in %v (converged=%v)\n", steps, time.Since(start), engine.Converged())
	for i, g := range engine.GroupedPoints() {
		fmt.Printf("  %s: %d points\n", export.Label(i), len(g))
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return err
	}

	xName, yName := "x", "y"
	frame := export.PointsFrame(points, xName, yName)
	if table != nil {
		xName, yName = table.XCol, table.YCol
		frame = table.Frame
	}

	err = writeFile(filepath.Join(*outDir, "scatter.html"), func(f *os.File) error {
		return plot.RenderScatter(f, engine, xName, yName, plot.ScatterOptions{MembershipLines: *lines})
	})
	if err != nil {
		return err
	}

	err = writeFile(filepath.Join(*outDir, "sizes.html"), func(f *os.File) error {
		return plot.RenderSizes(f, engine)
	})
	if err != nil {
		return err
	}

	annotated, err := export.Annotated(frame, engine.Assignments())
	if err != nil {
		return err
	}
	err = writeFile(filepath.Join(*outDir, "clusters.csv"), func(f *os.File) error {
		return export.WriteCSV(f, annotated)
	})
	if err != nil {
		return err
	}

	err = writeFile(filepath.Join(*outDir, "centroids.csv"), func(f *os.File) error {
		return export.WriteCSV(f, export.Centroids(engine.Centroids(), xName, yName))
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote scatter.html, sizes.html, clusters.csv, centroids.csv to %s\n", *outDir)
	return nil
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}
