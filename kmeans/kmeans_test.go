package kmeans

import (
	"errors"
	"math"
	"testing"
)

// fourCorners is the two-blob dataset used throughout: two points on the
// left, two on the right.
func fourCorners(t *testing.T) *Engine {
	t.Helper()
	points := []Point{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
	e, err := NewWithCentroids(points, []Point{{0, 0}, {10, 0}})
	if err != nil {
		t.Fatalf("NewWithCentroids failed: %v", err)
	}
	return e
}

func TestAssignmentPhase(t *testing.T) {
	e := fourCorners(t)

	if e.StepCompleted() != true {
		t.Error("Expected a fresh engine to allow structural edits")
	}
	if e.Assignments() != nil {
		t.Error("Expected no assignments before the first step")
	}

	e.Step()

	expected := []int{0, 0, 1, 1}
	got := e.Assignments()
	if !equalAssignments(got, expected) {
		t.Errorf("Expected assignments %v, got %v", expected, got)
	}
	if e.StepCompleted() {
		t.Error("Expected an update phase to be pending after assigning")
	}
	if e.Converged() {
		t.Error("Expected no convergence after the first assignment")
	}
}

func TestUpdatePhase(t *testing.T) {
	e := fourCorners(t)
	e.Step() // assign
	e.Step() // update

	expected := []Point{{0, 0.5}, {10, 0.5}}
	got := e.Centroids()
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected centroid %d at %v, got %v", i, expected[i], got[i])
		}
	}
	if !e.StepCompleted() {
		t.Error("Expected the cycle to be complete after updating")
	}
}

func TestConvergence(t *testing.T) {
	e := fourCorners(t)
	e.Step() // assign [0,0,1,1]
	e.Step() // update
	e.Step() // assign, identical result

	if !e.Converged() {
		t.Error("Expected convergence after a repeated assignment")
	}
	if !equalAssignments(e.Assignments(), []int{0, 0, 1, 1}) {
		t.Errorf("Expected stable assignments, got %v", e.Assignments())
	}
}

func TestConvergenceIdempotent(t *testing.T) {
	e := fourCorners(t)
	for i := 0; i < 3; i++ {
		e.Step()
	}
	if !e.Converged() {
		t.Fatal("Expected convergence before the idempotence check")
	}

	centroids := e.Centroids()
	for i := 0; i < 4; i++ { // two more full cycles
		e.Step()
		if !e.Converged() {
			t.Errorf("Expected convergence to persist through step %d", i)
		}
	}
	for i, c := range e.Centroids() {
		if c != centroids[i] {
			t.Errorf("Expected centroid %d to stay at %v, got %v", i, centroids[i], c)
		}
	}
}

func TestAssignmentTieBreak(t *testing.T) {
	// Point at x=5 is exactly between both centroids.
	points := []Point{{0, 0}, {5, 0}, {10, 0}}
	e, err := NewWithCentroids(points, []Point{{0, 0}, {10, 0}})
	if err != nil {
		t.Fatalf("NewWithCentroids failed: %v", err)
	}
	e.Step()

	if got := e.Assignments()[1]; got != 0 {
		t.Errorf("Expected tie to break toward the lowest index, got %d", got)
	}
}

func TestEmptyClusterKeepsPosition(t *testing.T) {
	points := []Point{{0, 0}, {0, 1}, {0, 2}}
	far := Point{100, 100}
	e, err := NewWithCentroids(points, []Point{{0, 1}, far})
	if err != nil {
		t.Fatalf("NewWithCentroids failed: %v", err)
	}
	e.Step() // all points go to centroid 0
	e.Step() // update

	if got := e.Centroids()[1]; got != far {
		t.Errorf("Expected the empty centroid to stay at %v, got %v", far, got)
	}
	if got := e.Centroids()[0]; got != (Point{0, 1}) {
		t.Errorf("Expected centroid 0 at the cluster mean, got %v", got)
	}
}

func TestStepBackRoundTrip(t *testing.T) {
	e := fourCorners(t)
	origCentroids := e.Centroids()
	origAssignments := e.Assignments()
	origPhase := e.CurrentPhase()

	const steps = 5
	for i := 0; i < steps; i++ {
		e.Step()
	}
	if e.StepCount() != steps {
		t.Fatalf("Expected step count %d, got %d", steps, e.StepCount())
	}

	for i := 0; i < steps; i++ {
		if !e.StepBack() {
			t.Fatalf("Expected step back %d to succeed", i)
		}
	}

	if e.StepCount() != 0 {
		t.Errorf("Expected step count 0, got %d", e.StepCount())
	}
	if e.CurrentPhase() != origPhase {
		t.Errorf("Expected phase %v, got %v", origPhase, e.CurrentPhase())
	}
	for i, c := range e.Centroids() {
		if c != origCentroids[i] {
			t.Errorf("Expected centroid %d restored to %v, got %v", i, origCentroids[i], c)
		}
	}
	if got := e.Assignments(); !equalAssignments(got, origAssignments) {
		t.Errorf("Expected assignments restored to %v, got %v", origAssignments, got)
	}
}

func TestStepBackEmptyHistory(t *testing.T) {
	e := fourCorners(t)
	if e.StepBack() {
		t.Error("Expected step back on empty history to be a no-op")
	}
	if e.StepCount() != 0 {
		t.Errorf("Expected step count 0, got %d", e.StepCount())
	}
}

func TestStepBackClearsConvergence(t *testing.T) {
	e := fourCorners(t)
	for i := 0; i < 3; i++ {
		e.Step()
	}
	if !e.Converged() {
		t.Fatal("Expected convergence")
	}
	e.StepBack()
	if e.Converged() {
		t.Error("Expected step back to clear convergence")
	}
}

func TestAddCentroidPhaseGate(t *testing.T) {
	e := fourCorners(t)
	e.Step() // now awaiting update

	if err := e.AddCentroid(); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected ErrInvalidPhase mid-cycle, got %v", err)
	}
	if err := e.AddCentroidAt(Point{5, 5}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected ErrInvalidPhase mid-cycle, got %v", err)
	}
	if e.K() != 2 {
		t.Errorf("Expected K unchanged at 2, got %d", e.K())
	}
}

func TestAddCentroidAfterConvergence(t *testing.T) {
	e := fourCorners(t)
	for i := 0; i < 3; i++ {
		e.Step()
	}
	e.Step() // finish the cycle so edits are allowed
	if !e.Converged() {
		t.Fatal("Expected convergence")
	}

	if err := e.AddCentroidAt(Point{5, 5}); err != nil {
		t.Fatalf("AddCentroidAt failed: %v", err)
	}
	if e.K() != 3 {
		t.Errorf("Expected K=3, got %d", e.K())
	}
	if e.Converged() {
		t.Error("Expected adding a centroid to clear convergence")
	}
	// Assignments are stale until the next step recomputes them.
	if !equalAssignments(e.Assignments(), []int{0, 0, 1, 1}) {
		t.Errorf("Expected stale assignments, got %v", e.Assignments())
	}

	e.Step()
	for i, c := range e.Assignments() {
		if c == Unassigned {
			t.Errorf("Expected point %d assigned after the next step", i)
		}
	}
}

func TestAddCentroidInsufficientPoints(t *testing.T) {
	points := []Point{{0, 0}, {1, 1}}
	e, err := NewWithCentroids(points, []Point{{0, 0}, {1, 1}})
	if err != nil {
		t.Fatalf("NewWithCentroids failed: %v", err)
	}
	if err := e.AddCentroid(); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}
}

func TestDeleteCentroidStaleWindow(t *testing.T) {
	points := []Point{{0, 0}, {5, 0}, {10, 0}}
	e, err := NewWithCentroids(points, []Point{{0, 0}, {5, 0}, {10, 0}})
	if err != nil {
		t.Fatalf("NewWithCentroids failed: %v", err)
	}
	e.Step()
	e.Step()

	if err := e.DeleteCentroid(1); err != nil {
		t.Fatalf("DeleteCentroid failed: %v", err)
	}

	// The middle point lost its centroid; the last point's index compacted.
	expected := []int{0, Unassigned, 1}
	if got := e.Assignments(); !equalAssignments(got, expected) {
		t.Errorf("Expected assignments %v, got %v", expected, got)
	}

	groups := e.GroupedPoints()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 1 || len(groups[1]) != 1 {
		t.Errorf("Expected the unassigned point excluded from grouping, got %d/%d", len(groups[0]), len(groups[1]))
	}

	// The next assignment phase heals the stale window.
	e.Step()
	for i, c := range e.Assignments() {
		if c == Unassigned {
			t.Errorf("Expected point %d reassigned, got Unassigned", i)
		}
	}
}

func TestDeleteCentroidFloor(t *testing.T) {
	points := []Point{{0, 0}, {1, 1}}
	e, err := New(points, Options{K: 1, Seed: 42})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.DeleteCentroid(0); !errors.Is(err, ErrInvalidCentroidCount) {
		t.Errorf("Expected ErrInvalidCentroidCount, got %v", err)
	}
	if e.K() != 1 {
		t.Errorf("Expected K=1 preserved, got %d", e.K())
	}
}

func TestDeleteCentroidOutOfRange(t *testing.T) {
	e := fourCorners(t)
	if err := e.DeleteCentroid(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
	if err := e.DeleteCentroid(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestMoveCentroid(t *testing.T) {
	e := fourCorners(t)
	for i := 0; i < 3; i++ {
		e.Step()
	}
	e.Step() // complete the cycle

	if err := e.MoveCentroid(0, Point{3, 3}); err != nil {
		t.Fatalf("MoveCentroid failed: %v", err)
	}
	if got := e.Centroids()[0]; got != (Point{3, 3}) {
		t.Errorf("Expected centroid 0 at (3,3), got %v", got)
	}
	if e.Converged() {
		t.Error("Expected moving a centroid to clear convergence")
	}

	e.Step() // mid-cycle now
	if err := e.MoveCentroid(0, Point{4, 4}); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Expected ErrInvalidPhase mid-cycle, got %v", err)
	}
	if err := e.MoveCentroid(5, Point{4, 4}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestSetCentroidCount(t *testing.T) {
	points := GenerateTestPoints(50, Bounds{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}, 7)
	e, err := New(points, Options{K: 2, Seed: 7})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.SetCentroidCount(5); err != nil {
		t.Fatalf("SetCentroidCount grow failed: %v", err)
	}
	if e.K() != 5 {
		t.Errorf("Expected K=5, got %d", e.K())
	}

	if err := e.SetCentroidCount(1); err != nil {
		t.Fatalf("SetCentroidCount shrink failed: %v", err)
	}
	if e.K() != 1 {
		t.Errorf("Expected K=1, got %d", e.K())
	}

	if err := e.SetCentroidCount(0); !errors.Is(err, ErrInvalidCentroidCount) {
		t.Errorf("Expected ErrInvalidCentroidCount, got %v", err)
	}
	if err := e.SetCentroidCount(51); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Options{K: 1}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Expected ErrEmptyDataset, got %v", err)
	}
	if _, err := New([]Point{{0, 0}}, Options{K: 3}); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("Expected ErrInsufficientPoints, got %v", err)
	}

	// K defaults to 1 and centroids land inside the data bounds.
	points := GenerateTestPoints(20, Bounds{MinX: -5, MinY: 2, MaxX: 5, MaxY: 8}, 99)
	e, err := New(points, Options{Seed: 99})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.K() != 1 {
		t.Errorf("Expected default K=1, got %d", e.K())
	}
	b := e.Bounds()
	for i, c := range e.Centroids() {
		if c.X < b.MinX || c.X > b.MaxX || c.Y < b.MinY || c.Y > b.MaxY {
			t.Errorf("Expected centroid %d within %+v, got %v", i, b, c)
		}
	}
}

func TestGroupedPointsBeforeFirstAssignment(t *testing.T) {
	e := fourCorners(t)
	groups := e.GroupedPoints()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	for i, g := range groups {
		if len(g) != 0 {
			t.Errorf("Expected group %d empty before assignment, got %d points", i, len(g))
		}
	}
}

func TestAssignmentCorrectness(t *testing.T) {
	points := GenerateBlobs(200, 4, Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}, 11)
	e, err := New(points, Options{K: 4, Seed: 11})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Step()

	centroids := e.Centroids()
	for i, c := range e.Assignments() {
		assigned := sqDist(points[i], centroids[c])
		for j, other := range centroids {
			if sqDist(points[i], other) < assigned {
				t.Errorf("Point %d assigned to %d but centroid %d is strictly closer", i, c, j)
			}
		}
	}
}

func TestUpdateCorrectness(t *testing.T) {
	points := GenerateBlobs(200, 3, Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}, 23)
	e, err := New(points, Options{K: 3, Seed: 23})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.Step()
	assignments := e.Assignments()
	e.Step()

	const epsilon = 1e-9
	centroids := e.Centroids()
	for c := range centroids {
		var sumX, sumY float64
		var count int
		for i, a := range assignments {
			if a != c {
				continue
			}
			sumX += points[i].X
			sumY += points[i].Y
			count++
		}
		if count == 0 {
			continue
		}
		meanX, meanY := sumX/float64(count), sumY/float64(count)
		if math.Abs(centroids[c].X-meanX) > epsilon || math.Abs(centroids[c].Y-meanY) > epsilon {
			t.Errorf("Centroid %d at (%f,%f), expected mean (%f,%f)", c, centroids[c].X, centroids[c].Y, meanX, meanY)
		}
	}
}

func TestStepCountTracksHistory(t *testing.T) {
	e := fourCorners(t)
	for i := 0; i < 4; i++ {
		e.Step()
	}
	e.StepBack()
	e.StepBack()
	if e.StepCount() != 2 {
		t.Errorf("Expected step count 2, got %d", e.StepCount())
	}
	e.Step()
	if e.StepCount() != 3 {
		t.Errorf("Expected step count 3, got %d", e.StepCount())
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	e := fourCorners(t)
	e.Step()

	e.Centroids()[0] = Point{99, 99}
	if e.Centroids()[0] == (Point{99, 99}) {
		t.Error("Expected Centroids to return a copy")
	}

	e.Assignments()[0] = 7
	if e.Assignments()[0] == 7 {
		t.Error("Expected Assignments to return a copy")
	}
}
