package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"relaychat/internal/core"
)

type createShareRequest struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
	Token     string `json:"token"`
}

// handleCreateShare mints a share link exposing a thread up to a message.
// A caller-supplied token is honoured when free; collisions are rejected
// rather than silently reassigned.
func (s *Server) handleCreateShare(c echo.Context) error {
	var req createShareRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	if req.ThreadID == "" || req.MessageID == "" {
		return writeError(c, core.NewInvalidRequestError("threadId and messageId are required", nil))
	}

	share, err := s.repo.CreateShare(c.Request().Context(), req.Token, req.ThreadID, principal(c), req.MessageID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, share)
}

func (s *Server) handleListShares(c echo.Context) error {
	shares, err := s.repo.ListSharesByUser(c.Request().Context(), principal(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, shares)
}

func (s *Server) handleDeleteShare(c echo.Context) error {
	deleted, err := s.repo.DeleteShare(c.Request().Context(), c.Param("token"), principal(c))
	if err != nil {
		return writeError(c, err)
	}
	if deleted == 0 {
		return writeError(c, core.NewNotFoundError("share not found"))
	}
	return c.NoContent(http.StatusNoContent)
}

// handleSharedThreadData is the public read side of a share link: the
// thread plus its messages up to the shared anchor, no authentication.
func (s *Server) handleSharedThreadData(c echo.Context) error {
	data, err := s.repo.GetSharedThreadData(c.Request().Context(), c.Param("token"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, data)
}
