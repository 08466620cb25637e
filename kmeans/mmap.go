package kmeans

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/edsrzf/mmap-go"
)

// The mmap snapshot is the quick-share format: current state only, no
// history, fixed layout so the file size is known up front.

// MMapWriter handles writing to memory-mapped files
type MMapWriter struct {
	data   mmap.MMap
	offset int
}

func NewMMapWriter(data mmap.MMap) *MMapWriter {
	return &MMapWriter{data: data}
}

func (w *MMapWriter) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.data[w.offset:], v)
	w.offset += 4
}

func (w *MMapWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *MMapWriter) WriteFloat64(v float64) {
	binary.LittleEndian.PutUint64(w.data[w.offset:], math.Float64bits(v))
	w.offset += 8
}

// MMapReader handles reading from memory-mapped files
type MMapReader struct {
	data   mmap.MMap
	offset int
}

func NewMMapReader(data mmap.MMap) *MMapReader {
	return &MMapReader{data: data}
}

func (r *MMapReader) ReadUint32() uint32 {
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v
}

func (r *MMapReader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

func (r *MMapReader) ReadFloat64() float64 {
	v := binary.LittleEndian.Uint64(r.data[r.offset:])
	r.offset += 8
	return math.Float64frombits(v)
}

// Header: numPoints, numCentroids, phase, hasAssignments, converged.
const headerSize = 4 * 5

// calculateSize returns the exact file size needed for the snapshot.
func (e *Engine) calculateSize() int64 {
	size := int64(headerSize)

	// Points and centroids: two float64 each
	size += 16 * int64(len(e.points))
	size += 16 * int64(len(e.centroids))

	// Assignments: one int32 per point
	if e.assignments != nil {
		size += 4 * int64(len(e.points))
	}

	return size
}

// SaveMMap writes the current state (no history) through a memory mapping.
func (e *Engine) SaveMMap(filename string) error {
	size := e.calculateSize()

	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate file: %v", err)
	}

	mmapData, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to mmap file: %v", err)
	}
	defer mmapData.Unmap()

	writer := NewMMapWriter(mmapData)

	writer.WriteUint32(uint32(len(e.points)))
	writer.WriteUint32(uint32(len(e.centroids)))
	writer.WriteUint32(uint32(e.phase))
	if e.assignments != nil {
		writer.WriteUint32(1)
	} else {
		writer.WriteUint32(0)
	}
	if e.converged {
		writer.WriteUint32(1)
	} else {
		writer.WriteUint32(0)
	}

	for _, p := range e.points {
		writer.WriteFloat64(p.X)
		writer.WriteFloat64(p.Y)
	}
	for _, c := range e.centroids {
		writer.WriteFloat64(c.X)
		writer.WriteFloat64(c.Y)
	}
	if e.assignments != nil {
		for _, c := range e.assignments {
			writer.WriteInt32(int32(c))
		}
	}

	return mmapData.Flush()
}

// LoadMMap reconstructs an Engine from a SaveMMap snapshot. The restored
// engine starts with empty history.
func LoadMMap(filename string) (*Engine, error) {
	file, err := os.OpenFile(filename, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	mmapData, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap file: %v", err)
	}
	defer mmapData.Unmap()

	if len(mmapData) < headerSize {
		return nil, fmt.Errorf("snapshot truncated: %d bytes, want at least %d", len(mmapData), headerSize)
	}

	reader := NewMMapReader(mmapData)

	numPoints := reader.ReadUint32()
	numCentroids := reader.ReadUint32()
	phase := Phase(reader.ReadUint32())
	hasAssignments := reader.ReadUint32() == 1
	converged := reader.ReadUint32() == 1

	want := int64(headerSize) + 16*int64(numPoints) + 16*int64(numCentroids)
	if hasAssignments {
		want += 4 * int64(numPoints)
	}
	if int64(len(mmapData)) < want {
		return nil, fmt.Errorf("snapshot truncated: %d bytes, want %d", len(mmapData), want)
	}
	if numPoints == 0 {
		return nil, ErrEmptyDataset
	}
	if numCentroids == 0 {
		return nil, fmt.Errorf("%w: snapshot has no centroids", ErrInvalidCentroidCount)
	}

	points := make([]Point, numPoints)
	for i := range points {
		points[i].X = reader.ReadFloat64()
		points[i].Y = reader.ReadFloat64()
	}
	centroids := make([]Point, numCentroids)
	for i := range centroids {
		centroids[i].X = reader.ReadFloat64()
		centroids[i].Y = reader.ReadFloat64()
	}
	var assignments []int
	if hasAssignments {
		assignments = make([]int, numPoints)
		for i := range assignments {
			assignments[i] = int(reader.ReadInt32())
		}
		if err := checkAssignmentRange(assignments, len(centroids)); err != nil {
			return nil, err
		}
	}

	return &Engine{
		points:      points,
		centroids:   centroids,
		assignments: assignments,
		phase:       phase,
		converged:   converged,
		bounds:      boundsOf(points),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}
