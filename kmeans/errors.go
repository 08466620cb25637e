package kmeans

import "errors"

// All engine errors are recoverable: a rejected operation leaves the
// Engine exactly as it was.
var (
	// ErrInvalidPhase: a phase-gated operation (add/move centroid) was
	// invoked between an assignment and the following update.
	ErrInvalidPhase = errors.New("kmeans: operation not allowed in current phase")

	// ErrInvalidCentroidCount: the operation would leave fewer than one
	// centroid.
	ErrInvalidCentroidCount = errors.New("kmeans: centroid count must stay at least 1")

	// ErrEmptyDataset: construction without any points.
	ErrEmptyDataset = errors.New("kmeans: empty dataset")

	// ErrInsufficientPoints: more centroids requested than points exist.
	ErrInsufficientPoints = errors.New("kmeans: fewer points than centroids")

	// ErrIndexOutOfRange: a centroid index at or above K.
	ErrIndexOutOfRange = errors.New("kmeans: centroid index out of range")
)
