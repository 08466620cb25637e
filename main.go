package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"web/kmeanslab/dataset"
	"web/kmeanslab/export"
	"web/kmeanslab/kmeans"
	"web/kmeanslab/plot"
	"web/kmeanslab/runner"
)

const SESSION_SAVE_DIR = "data/sessions"

const defaultAutoplayInterval = time.Second

// LabServer glues the session runner to the HTTP surface. Sessions created
// from a CSV keep their source table so exports reproduce the original
// columns; generated sessions get a synthetic two-column table.
type LabServer struct {
	runner *runner.Runner
	log    *slog.Logger

	mu     sync.Mutex
	tables map[string]*dataset.Table // session ID -> source table
}

func NewLabServer(log *slog.Logger) *LabServer {
	return &LabServer{
		runner: runner.NewRunner(10, log),
		log:    log,
		tables: make(map[string]*dataset.Table),
	}
}

func generateSessionFilename(size int) string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New().String()[:8]
	return filepath.Join(SESSION_SAVE_DIR, fmt.Sprintf("session-%dp-%s-%s.zst", size, timestamp, id))
}

type createRequest struct {
	// Explicit points win over every other source.
	Points []kmeans.Point `json:"points"`
	// CSV file on disk, with optional column selection.
	CSV  string `json:"csv"`
	XCol string `json:"xcol"`
	YCol string `json:"ycol"`
	// Generated data, used when neither points nor csv are given.
	NumPoints int `json:"numPoints"`
	Blobs     int `json:"blobs"`

	K    int   `json:"k"`
	Seed int64 `json:"seed"`
}

// resolvePoints yields the dataset and its source table for one create
// request.
func (s *LabServer) resolvePoints(req createRequest) ([]kmeans.Point, *dataset.Table, error) {
	if len(req.Points) > 0 {
		return req.Points, nil, nil
	}

	if req.CSV != "" {
		table, err := dataset.Open(req.CSV)
		if err != nil {
			return nil, nil, err
		}
		if req.XCol != "" || req.YCol != "" {
			if err := table.Select(req.XCol, req.YCol); err != nil {
				return nil, nil, err
			}
		}
		points, err := table.Points()
		if err != nil {
			return nil, nil, err
		}
		return points, table, nil
	}

	n := req.NumPoints
	if n <= 0 {
		n = 200
	}
	blobs := req.Blobs
	if blobs <= 0 {
		blobs = 3
	}
	bounds := kmeans.Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	return kmeans.GenerateBlobs(n, blobs, bounds, req.Seed), nil, nil
}

// table returns the session's source table, synthesizing one from the raw
// points when the session was not created from a CSV.
func (s *LabServer) table(session *runner.Session) *dataset.Table {
	s.mu.Lock()
	table := s.tables[session.ID]
	s.mu.Unlock()
	if table != nil {
		return table
	}

	var frame *dataset.Table
	session.WithEngine(func(e *kmeans.Engine) error {
		frame = &dataset.Table{
			Frame: export.PointsFrame(e.Points(), "x", "y"),
			XCol:  "x",
			YCol:  "y",
		}
		return nil
	})
	return frame
}

// statusFor maps the recoverable engine/runner errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runner.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, kmeans.ErrInvalidPhase), errors.Is(err, runner.ErrAutoplayRunning):
		return http.StatusConflict
	case errors.Is(err, kmeans.ErrInvalidCentroidCount),
		errors.Is(err, kmeans.ErrInsufficientPoints),
		errors.Is(err, kmeans.ErrIndexOutOfRange),
		errors.Is(err, kmeans.ErrEmptyDataset):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *LabServer) session(c *gin.Context) (*runner.Session, bool) {
	session, err := s.runner.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return nil, false
	}
	return session, true
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := os.MkdirAll(SESSION_SAVE_DIR, 0755); err != nil {
		log.Error("failed to create session directory", "dir", SESSION_SAVE_DIR, "err", err)
	}

	server := NewLabServer(log)
	r := gin.Default()

	// Enable CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Create a session from explicit points, a CSV on disk, or generated
	// blobs.
	r.POST("/api/sessions", func(c *gin.Context) {
		var req createRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		points, table, err := server.resolvePoints(req)
		if err != nil {
			abortWith(c, err)
			return
		}

		engine, err := kmeans.New(points, kmeans.Options{K: req.K, Seed: req.Seed})
		if err != nil {
			abortWith(c, err)
			return
		}

		session := server.runner.Add(engine)
		if table != nil {
			server.mu.Lock()
			server.tables[session.ID] = table
			server.mu.Unlock()
		}
		c.JSON(http.StatusOK, session.State())
	})

	r.GET("/api/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, server.runner.List())
	})

	r.GET("/api/sessions/:id", func(c *gin.Context) {
		if session, ok := server.session(c); ok {
			c.JSON(http.StatusOK, session.State())
		}
	})

	r.DELETE("/api/sessions/:id", func(c *gin.Context) {
		if err := server.runner.Remove(c.Param("id")); err != nil {
			abortWith(c, err)
			return
		}
		server.mu.Lock()
		delete(server.tables, c.Param("id"))
		server.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"message": "Session removed"})
	})

	r.POST("/api/sessions/:id/step", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}
		state, err := session.Step()
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	r.POST("/api/sessions/:id/step-back", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}
		state, stepped, err := session.StepBack()
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stepped": stepped, "state": state})
	})

	// Add a centroid, at the click position when one is given.
	r.POST("/api/sessions/:id/centroids", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		var req struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		var state runner.State
		var err error
		if req.X != nil && req.Y != nil {
			state, err = session.AddCentroidAt(kmeans.Point{X: *req.X, Y: *req.Y})
		} else {
			state, err = session.AddCentroid()
		}
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	// Delete a centroid by index; "last" removes the newest.
	r.DELETE("/api/sessions/:id/centroids/:index", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		index := session.State().K - 1
		if raw := c.Param("index"); raw != "last" {
			var err error
			if index, err = strconv.Atoi(raw); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid index parameter"})
				return
			}
		}

		state, err := session.DeleteCentroid(index)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	// Move a centroid (drag-and-drop drop event).
	r.PUT("/api/sessions/:id/centroids/:index", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid index parameter"})
			return
		}

		var req struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		state, err := session.MoveCentroid(index, kmeans.Point{X: req.X, Y: req.Y})
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	// Resize to exactly k centroids (the spinner in a UI).
	r.PUT("/api/sessions/:id/k", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		var req struct {
			K int `json:"k"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		state, err := session.SetCentroidCount(req.K)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	})

	r.POST("/api/sessions/:id/autoplay/start", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		interval := defaultAutoplayInterval
		if raw := c.Query("intervalMs"); raw != "" {
			ms, err := strconv.Atoi(raw)
			if err != nil || ms <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid intervalMs parameter"})
				return
			}
			interval = time.Duration(ms) * time.Millisecond
		}

		if !session.StartAutoplay(interval) {
			c.JSON(http.StatusConflict, gin.H{"error": "Autoplay already running"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Autoplay started"})
	})

	r.POST("/api/sessions/:id/autoplay/stop", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}
		session.StopAutoplay()
		c.JSON(http.StatusOK, session.State())
	})

	// Save the session, history included.
	r.POST("/api/sessions/:id/save", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		var savePath string
		err := session.WithEngine(func(e *kmeans.Engine) error {
			savePath = generateSessionFilename(len(e.Points()))
			return e.SaveCompressed(savePath)
		})
		if err != nil {
			abortWith(c, err)
			return
		}
		log.Info("session saved", "id", session.ID, "path", savePath)
		c.JSON(http.StatusOK, gin.H{"message": "Session saved", "path": savePath})
	})

	// Load a saved session by the ID fragment of its filename.
	r.POST("/api/sessions/load/:id", func(c *gin.Context) {
		id := c.Param("id")

		files, err := os.ReadDir(SESSION_SAVE_DIR)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var sessionFile string
		for _, file := range files {
			if !file.IsDir() && strings.Contains(file.Name(), id) && filepath.Ext(file.Name()) == ".zst" {
				sessionFile = filepath.Join(SESSION_SAVE_DIR, file.Name())
				break
			}
		}
		if sessionFile == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("session file matching %s not found", id)})
			return
		}

		engine, err := kmeans.LoadCompressed(sessionFile)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session := server.runner.Add(engine)
		log.Info("session loaded", "id", session.ID, "path", sessionFile)
		c.JSON(http.StatusOK, session.State())
	})

	// Self-contained HTML charts of the current state.
	r.GET("/api/sessions/:id/plot", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		table := server.table(session)
		options := plot.ScatterOptions{
			MembershipLines: c.Query("lines") == "true" || c.Query("lines") == "1",
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		err := session.WithEngine(func(e *kmeans.Engine) error {
			return plot.RenderScatter(c.Writer, e, table.XCol, table.YCol, options)
		})
		if err != nil {
			abortWith(c, err)
		}
	})

	r.GET("/api/sessions/:id/plot/sizes", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		c.Header("Content-Type", "text/html; charset=utf-8")
		err := session.WithEngine(func(e *kmeans.Engine) error {
			return plot.RenderSizes(c.Writer, e)
		})
		if err != nil {
			abortWith(c, err)
		}
	})

	// Annotated CSV: the source table plus the cluster label column.
	r.GET("/api/sessions/:id/export", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		table := server.table(session)
		err := session.WithEngine(func(e *kmeans.Engine) error {
			annotated, err := export.Annotated(table.Frame, e.Assignments())
			if err != nil {
				return err
			}
			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", "attachment; filename=annotated.csv")
			return export.WriteCSV(c.Writer, annotated)
		})
		if err != nil {
			abortWith(c, err)
		}
	})

	// Centroid coordinate table as CSV.
	r.GET("/api/sessions/:id/export/centroids", func(c *gin.Context) {
		session, ok := server.session(c)
		if !ok {
			return
		}

		table := server.table(session)
		err := session.WithEngine(func(e *kmeans.Engine) error {
			c.Header("Content-Type", "text/csv")
			c.Header("Content-Disposition", "attachment; filename=centroids.csv")
			return export.WriteCSV(c.Writer, export.Centroids(e.Centroids(), table.XCol, table.YCol))
		})
		if err != nil {
			abortWith(c, err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", ":8000")
		if err := r.Run(":8000"); err != nil {
			log.Error("server error", "err", err)
		}
	}()

	<-quit
	log.Info("shutting down server")
}
