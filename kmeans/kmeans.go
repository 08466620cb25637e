package kmeans

import (
	"fmt"
	"math/rand"
	"time"
)

// Point is a single observation in the two selected feature columns.
// The dataset is ordered and immutable for the lifetime of an Engine;
// assignment indices refer to positions in that order.
type Point struct {
	X, Y float64
}

// Phase says what the next Step call will do.
type Phase uint8

const (
	// PhaseAssign: the next Step (re)assigns every point to its nearest
	// centroid. Centroids just moved (or the session just started), so
	// structural edits are allowed in this phase.
	PhaseAssign Phase = iota
	// PhaseUpdate: the next Step moves every centroid to the mean of its
	// currently assigned points.
	PhaseUpdate
)

// Unassigned marks a point whose cluster membership is currently unknown:
// either no assignment phase has run yet, or its centroid was deleted and
// the next assignment phase has not recomputed it.
const Unassigned = -1

// Options configures a new Engine.
type Options struct {
	K    int   // number of centroids, defaults to 1
	Seed int64 // rng seed for centroid placement, 0 means time-based
}

// snapshot is one history entry: the full restorable state before a Step.
type snapshot struct {
	centroids   []Point
	assignments []int
	phase       Phase
}

// Engine performs k-means one phase at a time. Every operation is
// synchronous and runs to completion; the Engine does no locking and is not
// safe for concurrent use. Callers driving it from multiple goroutines
// (e.g. an autoplay timer) must serialize access themselves.
type Engine struct {
	points      []Point
	centroids   []Point
	assignments []int // nil until the first assignment phase
	phase       Phase
	converged   bool
	history     []snapshot
	bounds      Bounds
	rng         *rand.Rand
}

// New creates an Engine over points with opts.K randomly placed centroids.
// Centroid coordinates are drawn independently within the per-axis bounds
// of the dataset; exact duplicates are avoided when feasible.
func New(points []Point, opts Options) (*Engine, error) {
	if opts.K <= 0 {
		opts.K = 1
	}
	if len(points) == 0 {
		return nil, ErrEmptyDataset
	}
	if opts.K > len(points) {
		return nil, fmt.Errorf("%w: %d centroids requested for %d points", ErrInsufficientPoints, opts.K, len(points))
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	e := &Engine{
		points: points,
		bounds: boundsOf(points),
		phase:  PhaseAssign,
		rng:    rand.New(rand.NewSource(opts.Seed)),
	}
	for i := 0; i < opts.K; i++ {
		e.centroids = append(e.centroids, e.randomCentroid())
	}
	return e, nil
}

// NewWithCentroids creates an Engine with explicit centroid positions.
// Used for deterministic setups and for restoring saved sessions.
func NewWithCentroids(points []Point, centroids []Point) (*Engine, error) {
	if len(points) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(centroids) == 0 {
		return nil, ErrInvalidCentroidCount
	}
	if len(centroids) > len(points) {
		return nil, fmt.Errorf("%w: %d centroids requested for %d points", ErrInsufficientPoints, len(centroids), len(points))
	}
	return &Engine{
		points:    points,
		centroids: append([]Point(nil), centroids...),
		bounds:    boundsOf(points),
		phase:     PhaseAssign,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// randomCentroid draws a position within the dataset bounds, retrying a few
// times to dodge positions already taken by another centroid.
func (e *Engine) randomCentroid() Point {
	var p Point
	for attempt := 0; attempt < 10; attempt++ {
		p = Point{
			X: e.bounds.MinX + e.rng.Float64()*(e.bounds.MaxX-e.bounds.MinX),
			Y: e.bounds.MinY + e.rng.Float64()*(e.bounds.MaxY-e.bounds.MinY),
		}
		taken := false
		for _, c := range e.centroids {
			if c == p {
				taken = true
				break
			}
		}
		if !taken {
			break
		}
	}
	return p
}

// Step advances one phase. In PhaseAssign it recomputes every point's
// nearest centroid and flags convergence when the result matches the
// previous assignment exactly; in PhaseUpdate it moves every centroid to
// the mean of its assigned points, leaving empty centroids in place.
// The pre-step state is pushed onto history so StepBack can revert it.
func (e *Engine) Step() {
	e.pushSnapshot()

	if e.phase == PhaseAssign {
		next := e.assign()
		e.converged = e.assignments != nil && equalAssignments(next, e.assignments)
		e.assignments = next
		e.phase = PhaseUpdate
		return
	}

	e.updateCentroids()
	e.phase = PhaseAssign
}

// StepBack pops the most recent history entry and restores the exact
// pre-step centroids, assignments and phase. Returns false (and changes
// nothing) when there is no history to pop.
func (e *Engine) StepBack() bool {
	if len(e.history) == 0 {
		return false
	}
	top := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	e.centroids = top.centroids
	e.assignments = top.assignments
	e.phase = top.phase
	e.converged = false
	return true
}

func (e *Engine) pushSnapshot() {
	snap := snapshot{
		centroids: append([]Point(nil), e.centroids...),
		phase:     e.phase,
	}
	if e.assignments != nil {
		snap.assignments = append([]int(nil), e.assignments...)
	}
	e.history = append(e.history, snap)
}

// assign computes the nearest centroid for every point. Ties break toward
// the lowest centroid index. Squared distances are enough: only the
// ordering matters.
func (e *Engine) assign() []int {
	next := make([]int, len(e.points))
	for i, p := range e.points {
		best := 0
		bestDist := sqDist(p, e.centroids[0])
		for c := 1; c < len(e.centroids); c++ {
			if d := sqDist(p, e.centroids[c]); d < bestDist {
				best = c
				bestDist = d
			}
		}
		next[i] = best
	}
	return next
}

func (e *Engine) updateCentroids() {
	if e.assignments == nil {
		return
	}

	sums := make([]Point, len(e.centroids))
	counts := make([]int, len(e.centroids))
	for i, c := range e.assignments {
		if c == Unassigned {
			continue
		}
		sums[c].X += e.points[i].X
		sums[c].Y += e.points[i].Y
		counts[c]++
	}

	next := make([]Point, len(e.centroids))
	for c := range e.centroids {
		if counts[c] == 0 {
			// A centroid that owns no points stays where it is.
			next[c] = e.centroids[c]
			continue
		}
		inv := 1.0 / float64(counts[c])
		next[c] = Point{X: sums[c].X * inv, Y: sums[c].Y * inv}
	}
	e.centroids = next
}

// AddCentroid appends a centroid at a random position within the dataset
// bounds. Allowed only in PhaseAssign, after a full assignment+update cycle.
func (e *Engine) AddCentroid() error {
	if e.phase != PhaseAssign {
		return fmt.Errorf("%w: add centroid requires a completed step", ErrInvalidPhase)
	}
	return e.AddCentroidAt(e.randomCentroid())
}

// AddCentroidAt appends a centroid at p (e.g. from a chart click). Allowed
// only in PhaseAssign. Existing assignments are left stale until the next
// Step recomputes them.
func (e *Engine) AddCentroidAt(p Point) error {
	if e.phase != PhaseAssign {
		return fmt.Errorf("%w: add centroid requires a completed step", ErrInvalidPhase)
	}
	if len(e.centroids)+1 > len(e.points) {
		return fmt.Errorf("%w: %d centroids requested for %d points", ErrInsufficientPoints, len(e.centroids)+1, len(e.points))
	}
	e.centroids = append(e.centroids, p)
	e.converged = false
	return nil
}

// DeleteCentroid removes the centroid at index and compacts the indices
// above it. Points that belonged to the removed centroid become Unassigned
// until the next assignment phase; there is deliberately no implicit
// reassignment pass, so queries and exports in between see the documented
// stale window.
func (e *Engine) DeleteCentroid(index int) error {
	if index < 0 || index >= len(e.centroids) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(e.centroids))
	}
	if len(e.centroids) == 1 {
		return ErrInvalidCentroidCount
	}

	e.centroids = append(e.centroids[:index], e.centroids[index+1:]...)
	for i, c := range e.assignments {
		switch {
		case c == index:
			e.assignments[i] = Unassigned
		case c > index:
			e.assignments[i] = c - 1
		}
	}
	e.converged = false
	return nil
}

// MoveCentroid overwrites centroid index's position (drag-and-drop
// repositioning). Allowed only in PhaseAssign; the caller must Step to
// propagate the move into assignments.
func (e *Engine) MoveCentroid(index int, p Point) error {
	if e.phase != PhaseAssign {
		return fmt.Errorf("%w: move centroid requires a completed step", ErrInvalidPhase)
	}
	if index < 0 || index >= len(e.centroids) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(e.centroids))
	}
	e.centroids[index] = p
	e.converged = false
	return nil
}

// SetCentroidCount adds or deletes centroids (newest first) until exactly k
// remain. Growing is phase-gated like AddCentroid.
func (e *Engine) SetCentroidCount(k int) error {
	if k < 1 {
		return ErrInvalidCentroidCount
	}
	if k > len(e.points) {
		return fmt.Errorf("%w: %d centroids requested for %d points", ErrInsufficientPoints, k, len(e.points))
	}
	for len(e.centroids) < k {
		if err := e.AddCentroid(); err != nil {
			return err
		}
	}
	for len(e.centroids) > k {
		if err := e.DeleteCentroid(len(e.centroids) - 1); err != nil {
			return err
		}
	}
	return nil
}

// Points returns the dataset. Callers must not modify the result.
func (e *Engine) Points() []Point { return e.points }

// Centroids returns a copy of the current centroid positions.
func (e *Engine) Centroids() []Point {
	return append([]Point(nil), e.centroids...)
}

// Assignments returns a copy of the per-point centroid indices, or nil if
// no assignment phase has run yet. Values are in [0, K) or Unassigned.
func (e *Engine) Assignments() []int {
	if e.assignments == nil {
		return nil
	}
	return append([]int(nil), e.assignments...)
}

// GroupedPoints returns, per centroid index, the points currently assigned
// to it. Unassigned points are excluded, so before the first assignment
// phase every group is empty.
func (e *Engine) GroupedPoints() [][]Point {
	groups := make([][]Point, len(e.centroids))
	for i, c := range e.assignments {
		if c == Unassigned {
			continue
		}
		groups[c] = append(groups[c], e.points[i])
	}
	return groups
}

// StepCompleted reports whether the last Step finished a full cycle by
// moving centroids: structural edits and a fresh assignment are both valid.
func (e *Engine) StepCompleted() bool { return e.phase == PhaseAssign }

// Converged reports whether the last assignment phase reproduced the
// previous one exactly.
func (e *Engine) Converged() bool { return e.converged }

// StepCount returns the number of forward steps currently undoable.
func (e *Engine) StepCount() int { return len(e.history) }

// K returns the current number of centroids.
func (e *Engine) K() int { return len(e.centroids) }

// CurrentPhase returns what the next Step will do.
func (e *Engine) CurrentPhase() Phase { return e.phase }

// Bounds returns the dataset bounding box.
func (e *Engine) Bounds() Bounds { return e.bounds }

func sqDist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

func equalAssignments(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
