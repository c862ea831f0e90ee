// Package api serves the parse and repair operations over HTTP.
package api

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/insightdelivered/statement-agent/internal/artifact"
	"github.com/insightdelivered/statement-agent/internal/compare"
	"github.com/insightdelivered/statement-agent/internal/models"
	"github.com/insightdelivered/statement-agent/internal/repair"
	"github.com/insightdelivered/statement-agent/internal/workspace"
	"github.com/insightdelivered/statement-agent/internal/writer"
)

const Version = "2.0.0"

// ParseResponse is the JSON response of the parse endpoint.
type ParseResponse struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Target   string           `json:"target,omitempty"`
	Revision int              `json:"revision,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     [][]models.Value `json:"rows"`
	CSV      string           `json:"csv,omitempty"`
	Count    int              `json:"count"`
}

// RepairResponse is the JSON response of the repair endpoint.
type RepairResponse struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	RunID      string          `json:"run_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Iterations int             `json:"iterations"`
	Diff       string          `json:"diff,omitempty"`
	Report     *compare.Report `json:"report,omitempty"`
}

// Handler holds what the endpoints run against. Repairs share the artifact
// files on disk, so only one runs at a time.
type Handler struct {
	Store    artifact.Store
	Env      artifact.Env
	Loop     *repair.Loop
	MaxIters int
	MaxDiffs int
	Log      *zap.Logger

	mu sync.Mutex
}

func (h *Handler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// NewApp returns a fiber app with the API routes registered. Panics inside a
// handler become 500 JSON errors.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-agent",
		BodyLimit:             32 << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", HandleHealth)
	api.Post("/targets/:target/parse", h.HandleParse)
	api.Post("/targets/:target/repair", h.HandleRepair)
}

func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

// HandleParse runs the target's stored artifact over an uploaded statement.
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	target := c.Params("target")

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return fiber.NewError(fiber.StatusBadRequest, "Only PDF files are supported.")
	}

	a, err := h.Store.Load(target)
	switch errors.Cause(err) {
	case nil:
	case artifact.ErrNotFound:
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	dir, err := os.MkdirTemp("", "statement-")
	if err != nil {
		return errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "statement.pdf")
	if err := c.SaveFile(fh, path); err != nil {
		return errors.Wrap(err, "save uploaded file")
	}

	t, err := a.Run(h.Env, path)
	if err != nil {
		h.logger().Warn("parse failed", zap.String("target", target), zap.Error(err))
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	var csvBuf bytes.Buffer
	if err := (&writer.CSVWriter{}).Write(&csvBuf, t); err != nil {
		return err
	}
	rows := t.Rows
	if rows == nil {
		rows = [][]models.Value{}
	}
	return c.JSON(ParseResponse{
		Success:  true,
		Target:   target,
		Revision: a.Revision,
		Columns:  t.Columns,
		Rows:     rows,
		CSV:      csvBuf.String(),
		Count:    t.Len(),
	})
}

// HandleRepair runs the repair loop for a target. Running out of iterations
// is a normal response with status "exhausted".
func (h *Handler) HandleRepair(c *fiber.Ctx) error {
	if h.Loop == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "repair loop not configured")
	}
	cfg := repair.Config{
		Target:   c.Params("target"),
		MaxIters: c.QueryInt("max_iters", h.MaxIters),
		MaxDiffs: h.MaxDiffs,
	}
	if cfg.MaxIters < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "max_iters must be at least 1")
	}

	h.mu.Lock()
	res, err := h.Loop.Run(c.UserContext(), cfg)
	h.mu.Unlock()
	if err != nil {
		h.logger().Warn("repair failed", zap.String("target", cfg.Target), zap.Error(err))
		switch errors.Cause(err) {
		case workspace.ErrNotFound:
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case artifact.ErrMalformed, artifact.ErrParseMissing, repair.ErrParseFailed:
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	resp := RepairResponse{
		Success:    res.Status == repair.Success,
		RunID:      res.RunID,
		Status:     res.Status.String(),
		Iterations: res.Iterations,
		Diff:       res.Diff,
	}
	if !res.Report.OK() {
		resp.Report = &res.Report
	}
	return c.JSON(resp)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
