package kmeans

// Bounds is an axis-aligned bounding box over the dataset.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Extend expands bounds to include another point.
func (b *Bounds) Extend(x, y float64) {
	if x < b.MinX {
		b.MinX = x
	}
	if y < b.MinY {
		b.MinY = y
	}
	if x > b.MaxX {
		b.MaxX = x
	}
	if y > b.MaxY {
		b.MaxY = y
	}
}

func boundsOf(points []Point) Bounds {
	b := Bounds{
		MinX: points[0].X,
		MinY: points[0].Y,
		MaxX: points[0].X,
		MaxY: points[0].Y,
	}
	for _, p := range points[1:] {
		b.Extend(p.X, p.Y)
	}
	return b
}
