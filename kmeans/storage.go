package kmeans

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Session snapshots are zstd-compressed little-endian binary: counts first,
// then flags, then the flat coordinate and assignment arrays, then every
// history entry in push order.

// SaveCompressed writes the full engine state, history included, to filename.
func (e *Engine) SaveCompressed(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %v", err)
	}
	defer enc.Close()

	// Sizes first for allocation
	binary.Write(enc, binary.LittleEndian, uint32(len(e.points)))
	binary.Write(enc, binary.LittleEndian, uint32(len(e.centroids)))
	binary.Write(enc, binary.LittleEndian, uint32(len(e.history)))

	// Flags
	binary.Write(enc, binary.LittleEndian, uint8(e.phase))
	binary.Write(enc, binary.LittleEndian, e.converged)
	binary.Write(enc, binary.LittleEndian, e.assignments != nil)

	writePoints(enc, e.points)
	writePoints(enc, e.centroids)
	writeAssignments(enc, e.assignments)

	for _, snap := range e.history {
		binary.Write(enc, binary.LittleEndian, uint32(len(snap.centroids)))
		binary.Write(enc, binary.LittleEndian, uint8(snap.phase))
		binary.Write(enc, binary.LittleEndian, snap.assignments != nil)
		writePoints(enc, snap.centroids)
		writeAssignments(enc, snap.assignments)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %v", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %v", err)
	}
	return nil
}

// LoadCompressed reconstructs an Engine saved with SaveCompressed.
func LoadCompressed(filename string) (*Engine, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	bufReader := bufio.NewReaderSize(file, 1024*1024)
	dec, err := zstd.NewReader(bufReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer dec.Close()

	var numPoints, numCentroids, numHistory uint32
	binary.Read(dec, binary.LittleEndian, &numPoints)
	binary.Read(dec, binary.LittleEndian, &numCentroids)
	binary.Read(dec, binary.LittleEndian, &numHistory)

	var phase uint8
	var converged, hasAssignments bool
	binary.Read(dec, binary.LittleEndian, &phase)
	binary.Read(dec, binary.LittleEndian, &converged)
	binary.Read(dec, binary.LittleEndian, &hasAssignments)

	points, err := readPoints(dec, numPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to read points: %v", err)
	}
	if len(points) == 0 {
		return nil, ErrEmptyDataset
	}
	if numCentroids == 0 {
		return nil, fmt.Errorf("%w: snapshot has no centroids", ErrInvalidCentroidCount)
	}
	centroids, err := readPoints(dec, numCentroids)
	if err != nil {
		return nil, fmt.Errorf("failed to read centroids: %v", err)
	}
	var assignments []int
	if hasAssignments {
		if assignments, err = readAssignments(dec, numPoints); err != nil {
			return nil, fmt.Errorf("failed to read assignments: %v", err)
		}
		if err := checkAssignmentRange(assignments, len(centroids)); err != nil {
			return nil, err
		}
	}

	history := make([]snapshot, 0, numHistory)
	for i := uint32(0); i < numHistory; i++ {
		var snapCentroids uint32
		var snapPhase uint8
		var snapHas bool
		binary.Read(dec, binary.LittleEndian, &snapCentroids)
		binary.Read(dec, binary.LittleEndian, &snapPhase)
		binary.Read(dec, binary.LittleEndian, &snapHas)

		if snapCentroids == 0 {
			return nil, fmt.Errorf("%w: history entry %d has no centroids", ErrInvalidCentroidCount, i)
		}
		snap := snapshot{phase: Phase(snapPhase)}
		if snap.centroids, err = readPoints(dec, snapCentroids); err != nil {
			return nil, fmt.Errorf("failed to read history entry %d: %v", i, err)
		}
		if snapHas {
			if snap.assignments, err = readAssignments(dec, numPoints); err != nil {
				return nil, fmt.Errorf("failed to read history entry %d: %v", i, err)
			}
			if err := checkAssignmentRange(snap.assignments, len(snap.centroids)); err != nil {
				return nil, fmt.Errorf("history entry %d: %v", i, err)
			}
		}
		history = append(history, snap)
	}

	return &Engine{
		points:      points,
		centroids:   centroids,
		assignments: assignments,
		phase:       Phase(phase),
		converged:   converged,
		history:     history,
		bounds:      boundsOf(points),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func writePoints(w io.Writer, points []Point) {
	for _, p := range points {
		binary.Write(w, binary.LittleEndian, p.X)
		binary.Write(w, binary.LittleEndian, p.Y)
	}
}

func writeAssignments(w io.Writer, assignments []int) {
	for _, c := range assignments {
		binary.Write(w, binary.LittleEndian, int32(c))
	}
}

func readPoints(r io.Reader, n uint32) ([]Point, error) {
	points := make([]Point, n)
	for i := range points {
		if err := binary.Read(r, binary.LittleEndian, &points[i].X); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &points[i].Y); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// checkAssignmentRange rejects snapshot assignments pointing outside
// [Unassigned, k); stepping an engine with one would index past the
// centroid slice.
func checkAssignmentRange(assignments []int, k int) error {
	for i, c := range assignments {
		if c < Unassigned || c >= k {
			return fmt.Errorf("assignment %d out of range: %d with %d centroids", i, c, k)
		}
	}
	return nil
}

func readAssignments(r io.Reader, n uint32) ([]int, error) {
	assignments := make([]int, n)
	for i := range assignments {
		var c int32
		if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
			return nil, err
		}
		assignments[i] = int(c)
	}
	return assignments, nil
}
