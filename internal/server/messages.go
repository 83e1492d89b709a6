package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"relaychat/internal/core"
	"relaychat/internal/store"
)

type updateMessageRequest struct {
	Content string `json:"content"`
	Parts   any    `json:"parts"`
}

func (s *Server) handleUpdateMessage(c echo.Context) error {
	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.Content == "" {
		return writeError(c, core.NewInvalidRequestError("content is required", nil))
	}

	msg, err := s.loadOwnedMessage(c)
	if err != nil {
		return writeError(c, err)
	}
	updated, err := s.repo.UpdateMessageContent(c.Request().Context(), msg.ID, req.Content, req.Parts)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteMessage(c echo.Context) error {
	msg, err := s.loadOwnedMessage(c)
	if err != nil {
		return writeError(c, err)
	}
	if _, err := s.repo.DeleteMessage(c.Request().Context(), msg.ID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleDeleteTrailing removes every message after the anchor, keeping the
// anchor itself. Used when regenerating a response.
func (s *Server) handleDeleteTrailing(c echo.Context) error {
	msg, err := s.loadOwnedMessage(c)
	if err != nil {
		return writeError(c, err)
	}
	deleted, err := s.repo.DeleteTrailingMessages(c.Request().Context(), msg.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deletedCount": deleted})
}

// handleDeleteInclusiveTrailing removes the anchor and everything after it.
func (s *Server) handleDeleteInclusiveTrailing(c echo.Context) error {
	msg, err := s.loadOwnedMessage(c)
	if err != nil {
		return writeError(c, err)
	}
	deleted, err := s.repo.DeleteMessageAndTrailing(c.Request().Context(), msg.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deletedCount": deleted})
}

// loadOwnedMessage fetches the :id message and verifies the caller owns the
// thread it belongs to. A message pointing at a missing thread is a data
// inconsistency and surfaces as such rather than as a permission error.
func (s *Server) loadOwnedMessage(c echo.Context) (*store.Message, error) {
	msg, err := s.repo.GetMessage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	thread, err := s.repo.ThreadForMessage(c.Request().Context(), msg)
	if err != nil {
		return nil, err
	}
	if thread.UserID != principal(c) {
		return nil, core.NewNotFoundError("message not found")
	}
	return msg, nil
}
