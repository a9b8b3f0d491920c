package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/hpungsan/memo/internal/config"
	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
	"github.com/hpungsan/memo/internal/repository"
	"github.com/hpungsan/memo/internal/session"
	"github.com/hpungsan/memo/internal/storage"
	"github.com/hpungsan/memo/internal/view"
)

// Handlers serves the note tools from one Session.
// mcp-go may dispatch calls concurrently, so every handler holds mu.
type Handlers struct {
	mu      sync.Mutex
	repo    *repository.Repository
	session *session.Session
	baseDir string
	now     func() time.Time

	// confirmDelete answers the session's confirmation for the note_delete call in flight.
	confirmDelete bool
}

// NewHandlers creates Handlers over repo. Exports are written under baseDir/exports.
func NewHandlers(repo *repository.Repository, cfg *config.Config, baseDir string, log zerolog.Logger) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Handlers{repo: repo, baseDir: baseDir, now: time.Now}
	h.session = session.New(repo,
		session.WithProjector(view.NewProjector(view.NewFormatter(cfg.TimeFormat))),
		session.WithNoticeDelay(cfg.SavedNoticeDelay()),
		session.WithConfirm(func(note.Note) bool { return h.confirmDelete }),
		session.WithLogger(log),
	)
	return h
}

// Request types for each tool

// OpenRequest represents the arguments for note_open.
type OpenRequest struct {
	ID string `json:"id"`
}

// SaveRequest represents the arguments for note_save.
type SaveRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// DeleteRequest represents the arguments for note_delete.
type DeleteRequest struct {
	Confirm bool `json:"confirm,omitempty"`
}

// SearchRequest represents the arguments for note_search.
type SearchRequest struct {
	Keyword string `json:"keyword,omitempty"`
}

// ExportRequest represents the arguments for note_export.
type ExportRequest struct {
	Format string `json:"format,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ExportResponse is the result of note_export.
type ExportResponse struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Handler implementations

// HandleCreate handles note_create.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.CreateRequested(ctx))
}

// HandleOpen handles note_open.
func (h *Handlers) HandleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[OpenRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.OpenRequested(id))
}

// HandleSave handles note_save.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.SaveRequested(ctx, input.Title, input.Content))
}

// HandleDelete handles note_delete.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirmDelete = input.Confirm
	defer func() { h.confirmDelete = false }()
	return successResult(h.session.DeleteRequested(ctx))
}

// HandleClose handles note_close.
func (h *Handlers) HandleClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.CloseRequested())
}

// HandleSearch handles note_search.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.SearchChanged(input.Keyword))
}

// HandleState handles note_state.
func (h *Handlers) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return successResult(h.session.State())
}

// HandleExport handles note_export. The destination must sit directly in
// the exports directory.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	format, err := storage.ParseExportFormat(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	exportDir := filepath.Join(h.baseDir, "exports")
	path := storage.DefaultExportPath(h.baseDir, format, now)
	if input.Path != "" {
		path = input.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(exportDir, path)
		}
	}
	if err := storage.ValidateExportPath(path, format, []string{exportDir}); err != nil {
		return errorResult(err), nil
	}

	notes := h.repo.All()
	if err := storage.ExportFile(path, notes, format, now); err != nil {
		return errorResult(err), nil
	}

	return successResult(ExportResponse{
		Path:       path,
		Format:     string(format),
		Count:      len(notes),
		ExportedAt: note.Millis(now),
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if mErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking file paths
		if mErr.Code != errors.ErrInternal && mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
