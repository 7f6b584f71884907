// Package api serves the stored OLT and ONU state over HTTP: a JSON API
// under /api and a small HTML dashboard at /.
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/store"
)

//go:embed templates/*.html
var templates embed.FS

// Store is the read side of store.Store the API needs.
type Store interface {
	Olts(ctx context.Context) ([]store.OltSnapshot, error)
	Olt(ctx context.Context, name string) (store.OltSnapshot, error)
	Report(ctx context.Context, name string) (models.DeviceReport, error)
	Interfaces(ctx context.Context, name string) ([]store.InterfaceState, error)
	Onus(ctx context.Context, name string, f store.OnuFilter) ([]store.OnuState, error)
	Onu(ctx context.Context, mac string) (store.OnuState, error)
	Transitions(ctx context.Context, mac string, limit int) ([]store.OnuTransition, error)
	History(ctx context.Context, name string, limit int) ([]store.PollRecord, error)
}

// Trigger queues an out-of-schedule poll. *scheduler.Scheduler implements it.
type Trigger interface {
	Trigger(name string) bool
}

// Config controls the HTTP server.
type Config struct {
	// ListenAddr is the HTTP bind address (default ":8080").
	ListenAddr string

	// ShutdownTimeout bounds graceful shutdown (default 5 s).
	ShutdownTimeout time.Duration
}

// Server wraps the fiber application.
type Server struct {
	cfg     Config
	app     *fiber.App
	store   Store
	trigger Trigger
	logger  *slog.Logger
}

// New builds the server and registers every route. trigger may be nil, in
// which case POST /api/olts/:name/poll answers 503.
func New(cfg Config, st Store, trigger Trigger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	views, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err) // embedded at build time
	}
	engine := html.NewFileSystem(http.FS(views), ".html")
	engine.AddFunc("deref", func(b *bool) bool { return b != nil && *b })
	engine.AddFunc("ago", func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return time.Since(t).Truncate(time.Second).String()
	})

	s := &Server{cfg: cfg, store: st, trigger: trigger, logger: logger}
	s.app = fiber.New(fiber.Config{
		Views:                 engine,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

// App exposes the fiber application, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Serve listens until ctx is cancelled and then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api: listening", "addr", s.cfg.ListenAddr)
		errCh <- s.app.Listen(s.cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api: listen %s: %w", s.cfg.ListenAddr, err)
	case <-ctx.Done():
	}
	if err := s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.logger.Info("api: stopped")
	return nil
}

func (s *Server) routes() {
	s.app.Get("/", s.dashboard)
	s.app.Get("/olts/:name", s.oltPage)
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	api.Get("/olts", s.listOlts)
	api.Get("/olts/:name", s.getOlt)
	api.Get("/olts/:name/report", s.getReport)
	api.Get("/olts/:name/interfaces", s.getInterfaces)
	api.Get("/olts/:name/onus", s.getOnus)
	api.Get("/olts/:name/history", s.getHistory)
	api.Post("/olts/:name/poll", s.triggerPoll)
	api.Get("/onus/:mac", s.getOnu)
	api.Get("/onus/:mac/transitions", s.getTransitions)
}

// handleError maps store.ErrNotFound to 404 and everything else to a JSON
// error body with the fiber status, or 500.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.As(err, &fe):
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("api: request failed", "path", c.Path(), "error", err.Error())
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func queryLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
	}
	return n, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
