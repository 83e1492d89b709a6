package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"relaychat/internal/core"
	"relaychat/internal/store"
)

type createThreadRequest struct {
	Title      string           `json:"title"`
	Visibility store.Visibility `json:"visibility"`
}

func (s *Server) handleCreateThread(c echo.Context) error {
	var req createThreadRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	thread, err := s.repo.CreateThread(c.Request().Context(), store.NewThread{
		UserID:     principal(c),
		Title:      req.Title,
		Visibility: req.Visibility,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, thread)
}

func (s *Server) handleListThreads(c echo.Context) error {
	threads, err := s.repo.ListThreadsByUser(c.Request().Context(), principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, threads)
}

func (s *Server) handleGetThread(c echo.Context) error {
	thread, err := s.loadReadableThread(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, thread)
}

func (s *Server) handleDeleteThread(c echo.Context) error {
	thread, err := s.loadOwnedThread(c)
	if err != nil {
		return writeError(c, err)
	}
	if _, err := s.repo.DeleteThread(c.Request().Context(), thread.ID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type updateVisibilityRequest struct {
	Visibility store.Visibility `json:"visibility"`
}

func (s *Server) handleUpdateThreadVisibility(c echo.Context) error {
	var req updateVisibilityRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.Visibility != store.VisibilityPrivate && req.Visibility != store.VisibilityPublic {
		return writeError(c, core.NewInvalidRequestError("visibility must be private or public", nil))
	}

	thread, err := s.loadOwnedThread(c)
	if err != nil {
		return writeError(c, err)
	}
	updated, err := s.repo.UpdateThreadVisibility(c.Request().Context(), thread.ID, req.Visibility)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

type branchThreadRequest struct {
	AnchorMessageID string `json:"anchorMessageId"`
}

// handleBranchThread forks a thread at a message: the new thread starts with
// a copy of every message up to and including the anchor.
func (s *Server) handleBranchThread(c echo.Context) error {
	var req branchThreadRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.AnchorMessageID == "" {
		return writeError(c, core.NewInvalidRequestError("anchorMessageId is required", nil))
	}

	branched, err := s.repo.BranchFromMessage(c.Request().Context(), principal(c), c.Param("id"), req.AnchorMessageID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, branched)
}

type generateTitleRequest struct {
	Prompt string `json:"prompt"`
}

// handleGenerateTitle names a thread from its opening prompt. When the body
// carries no prompt, the first user message of the thread is used.
func (s *Server) handleGenerateTitle(c echo.Context) error {
	var req generateTitleRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}

	thread, err := s.loadOwnedThread(c)
	if err != nil {
		return writeError(c, err)
	}

	prompt := req.Prompt
	if prompt == "" {
		messages, err := s.repo.ListMessagesByThread(c.Request().Context(), thread.ID)
		if err != nil {
			return writeError(c, err)
		}
		for _, m := range messages {
			if m.Role == store.RoleUser {
				prompt = m.Content
				break
			}
		}
	}
	if prompt == "" {
		return writeError(c, core.NewInvalidRequestError("thread has no user message to derive a title from", nil))
	}

	title, err := s.titles.GenerateTitle(c.Request().Context(), thread.ID, prompt)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"title": title})
}

type createMessageRequest struct {
	Role    store.Role `json:"role"`
	Content string     `json:"content"`
	Parts   any        `json:"parts"`
	Model   string     `json:"model"`
}

func (s *Server) handleCreateMessage(c echo.Context) error {
	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.Role == "" || req.Content == "" {
		return writeError(c, core.NewInvalidRequestError("role and content are required", nil))
	}

	thread, err := s.loadOwnedThread(c)
	if err != nil {
		return writeError(c, err)
	}
	msg, err := s.repo.CreateMessage(c.Request().Context(), store.NewMessage{
		ThreadID: thread.ID,
		Role:     req.Role,
		Content:  req.Content,
		Parts:    req.Parts,
		Model:    req.Model,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleListMessages(c echo.Context) error {
	thread, err := s.loadReadableThread(c)
	if err != nil {
		return writeError(c, err)
	}
	messages, err := s.repo.ListMessagesByThread(c.Request().Context(), thread.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, messages)
}

// loadOwnedThread fetches the :id thread and verifies the caller owns it.
func (s *Server) loadOwnedThread(c echo.Context) (*store.Thread, error) {
	thread, err := s.repo.GetThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if thread.UserID != principal(c) {
		return nil, core.NewNotFoundError("thread not found")
	}
	return thread, nil
}

// loadReadableThread is loadOwnedThread relaxed for public threads.
func (s *Server) loadReadableThread(c echo.Context) (*store.Thread, error) {
	thread, err := s.repo.GetThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if thread.UserID != principal(c) && thread.Visibility != store.VisibilityPublic {
		return nil, core.NewNotFoundError("thread not found")
	}
	return thread, nil
}
