// Package server exposes the coverage monitor over REST and websockets.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/demoforge/mirror/internal/config"
	"github.com/demoforge/mirror/internal/coverage"
	"github.com/demoforge/mirror/internal/crawler"
	"github.com/demoforge/mirror/internal/events"
	"github.com/demoforge/mirror/internal/storage"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The monitor is a demo surface; cross-origin dashboards are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server hosts the coverage API and manages active crawl runs.
type Server struct {
	db     *storage.Database
	broker *events.Broker
	logger *logrus.Logger

	mu      sync.Mutex
	active  map[string]*activeRun
	baseCfg *config.CrawlConfig
}

type activeRun struct {
	crawler *crawler.Crawler
	cancel  context.CancelFunc
}

// New creates a server. db may be nil; run history is then unavailable.
func New(baseCfg *config.CrawlConfig, db *storage.Database, broker *events.Broker, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if broker == nil {
		broker = events.NewBroker(logger)
	}
	return &Server{
		db:      db,
		broker:  broker,
		logger:  logger,
		active:  make(map[string]*activeRun),
		baseCfg: baseCfg,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/runs", s.startRun)
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id/status", s.getStatus)
		api.GET("/runs/:id/summary", s.getSummary)
		api.GET("/runs/:id/subscribe", s.subscribe)
		api.DELETE("/runs/:id", s.cleanup)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type startRequest struct {
	SeedURL       string `json:"seed_url" binding:"required"`
	MaxPages      int    `json:"max_pages"`
	RunID         string `json:"run_id"`
	RespectRobots bool   `json:"respect_robots"`
}

// startRun launches a crawl in the background and returns its run ID.
func (s *Server) startRun(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := *s.baseCfg
	cfg.SeedURL = req.SeedURL
	cfg.SiteDomain = ""
	cfg.MaxPages = req.MaxPages
	cfg.RunID = req.RunID
	cfg.RespectRobots = req.RespectRobots

	cr, err := crawler.New(&cfg, s.db, s.broker, s.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[cr.RunID()] = &activeRun{crawler: cr, cancel: cancel}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.active, cr.RunID())
			s.mu.Unlock()
			cancel()
		}()
		if _, err := cr.Run(runCtx); err != nil {
			s.logger.WithError(err).WithField("run_id", cr.RunID()).Error("crawl run failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": cr.RunID()})
}

// getStatus returns the current coverage snapshot for a run.
func (s *Server) getStatus(c *gin.Context) {
	runID := c.Param("id")

	if run := s.lookupActive(runID); run != nil {
		c.JSON(http.StatusOK, run.crawler.Tracker().Snapshot())
		return
	}

	if s.db != nil {
		stored, err := s.db.GetRun(runID)
		if err == nil && stored != nil {
			c.JSON(http.StatusOK, coverage.Snapshot{
				RunID:           stored.RunID,
				Timestamp:       time.Now(),
				Phase:           coverage.Phase(stored.Phase),
				CoveragePct:     stored.CoveragePct,
				PagesCrawled:    stored.PagesCrawled,
				PagesFailed:     stored.PagesFailed,
				TotalKnownURLs:  stored.TotalKnownURLs,
				QualityTrend:    coverage.TrendInsufficient,
				PlateauDetected: stored.PlateauDetected,
				StopReason:      stored.StopReason,
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
}

// getSummary returns the final stats object for a run.
func (s *Server) getSummary(c *gin.Context) {
	runID := c.Param("id")

	if run := s.lookupActive(runID); run != nil {
		c.JSON(http.StatusOK, run.crawler.Tracker().Summary())
		return
	}

	if s.db != nil {
		stored, err := s.db.GetRun(runID)
		if err == nil && stored != nil {
			summary := coverage.Summary{
				RunID:           stored.RunID,
				Phase:           coverage.Phase(stored.Phase),
				CoveragePct:     stored.CoveragePct,
				PagesCrawled:    stored.PagesCrawled,
				PagesFailed:     stored.PagesFailed,
				TotalKnownURLs:  stored.TotalKnownURLs,
				AverageQuality:  stored.AverageQuality,
				PlateauDetected: stored.PlateauDetected,
				StopReason:      stored.StopReason,
			}
			if stored.FinishedAt != nil {
				summary.Elapsed = stored.FinishedAt.Sub(stored.StartedAt)
				summary.ElapsedSeconds = summary.Elapsed.Seconds()
			}
			c.JSON(http.StatusOK, summary)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
}

// listRuns returns the active runs with their live progress.
func (s *Server) listRuns(c *gin.Context) {
	s.mu.Lock()
	runs := make([]gin.H, 0, len(s.active))
	for runID, run := range s.active {
		snap := run.crawler.Tracker().Snapshot()
		runs = append(runs, gin.H{
			"run_id":        runID,
			"phase":         snap.Phase,
			"coverage_pct":  snap.CoveragePct,
			"pages_crawled": snap.PagesCrawled,
			"subscribers":   s.broker.SubscriberCount(runID),
		})
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// subscribe upgrades to a websocket and streams run events until the
// client disconnects.
func (s *Server) subscribe(c *gin.Context) {
	runID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.broker.Subscribe(runID)
	defer s.broker.Unsubscribe(runID, sub)

	// Reader goroutine detects client disconnects and pong frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := msg.Marshal()
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// cleanup cancels an active run, drops its subscribers and deletes its
// persisted state.
func (s *Server) cleanup(c *gin.Context) {
	runID := c.Param("id")

	if run := s.lookupActive(runID); run != nil {
		run.cancel()
	}
	s.broker.Cleanup(runID)

	if s.db != nil {
		if err := s.db.DeleteRun(runID); err != nil {
			s.logger.WithError(err).WithField("run_id", runID).Warn("failed to delete run rows")
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "status": "cleaned"})
}

func (s *Server) lookupActive(runID string) *activeRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[runID]
}
