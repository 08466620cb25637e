package runner

import (
	"sort"
	"time"

	"web/kmeanslab/kmeans"
)

// State is the JSON-friendly snapshot of a session, everything a renderer
// needs to redraw.
type State struct {
	ID            string           `json:"id"`
	K             int              `json:"k"`
	StepCount     int              `json:"stepCount"`
	StepCompleted bool             `json:"stepCompleted"`
	Converged     bool             `json:"converged"`
	Autoplay      bool             `json:"autoplay"`
	Centroids     []kmeans.Point   `json:"centroids"`
	Assignments   []int            `json:"assignments,omitempty"`
	Groups        [][]kmeans.Point `json:"groups"`
}

// Info is the list-view summary of a session.
type Info struct {
	ID           string    `json:"id"`
	NumPoints    int       `json:"numPoints"`
	K            int       `json:"k"`
	StepCount    int       `json:"stepCount"`
	Converged    bool      `json:"converged"`
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// stateLocked builds a State. Caller holds s.mu.
func (s *Session) stateLocked() State {
	return State{
		ID:            s.ID,
		K:             s.engine.K(),
		StepCount:     s.engine.StepCount(),
		StepCompleted: s.engine.StepCompleted(),
		Converged:     s.engine.Converged(),
		Autoplay:      s.autoplay,
		Centroids:     s.engine.Centroids(),
		Assignments:   s.engine.Assignments(),
		Groups:        s.engine.GroupedPoints(),
	}
}

func (s *Session) info(lastAccessed time.Time) Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		NumPoints:    len(s.engine.Points()),
		K:            s.engine.K(),
		StepCount:    s.engine.StepCount(),
		Converged:    s.engine.Converged(),
		Created:      s.Created,
		LastAccessed: lastAccessed,
	}
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastAccessed.After(infos[j].LastAccessed)
	})
}
