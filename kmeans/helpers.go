package kmeans

import "math/rand"

// GenerateTestPoints creates n uniformly random points within bounds.
// Use a fixed seed for reproducible runs.
func GenerateTestPoints(n int, bounds Bounds, seed int64) []Point {
	r := rand.New(rand.NewSource(seed))
	points := make([]Point, n)
	for i := 0; i < n; i++ {
		points[i] = Point{
			X: bounds.MinX + r.Float64()*(bounds.MaxX-bounds.MinX),
			Y: bounds.MinY + r.Float64()*(bounds.MaxY-bounds.MinY),
		}
	}
	return points
}

// GenerateBlobs creates n points spread over blobs gaussian clusters inside
// bounds. More interesting than uniform noise when demonstrating stepping.
func GenerateBlobs(n, blobs int, bounds Bounds, seed int64) []Point {
	if blobs < 1 {
		blobs = 1
	}
	r := rand.New(rand.NewSource(seed))

	centers := make([]Point, blobs)
	for i := range centers {
		centers[i] = Point{
			X: bounds.MinX + r.Float64()*(bounds.MaxX-bounds.MinX),
			Y: bounds.MinY + r.Float64()*(bounds.MaxY-bounds.MinY),
		}
	}

	// Spread each blob over ~5% of the box per axis.
	sx := (bounds.MaxX - bounds.MinX) * 0.05
	sy := (bounds.MaxY - bounds.MinY) * 0.05

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		c := centers[i%blobs]
		points[i] = Point{
			X: c.X + r.NormFloat64()*sx,
			Y: c.Y + r.NormFloat64()*sy,
		}
	}
	return points
}
