package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tixo-social/tixo/automod"
	"github.com/tixo-social/tixo/chat"
	"github.com/tixo-social/tixo/content"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

// Rejection body: the machine-readable code plus the user-facing reason.
type RejectionError struct {
	GenericError
	ReasonCode string `json:"reason_code"`
}

const maxListLimit = 200

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var msg string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprintf("%v", he.Message)
	} else {
		msg = err.Error()
	}
	if code >= 500 {
		srv.logger.Warn("tixod-http-internal-error", "err", err)
		msg = "internal server error"
	}
	if !c.Response().Committed {
		c.JSON(code, GenericError{Error: http.StatusText(code), Message: msg})
	}
}

// Translates domain errors to HTTP responses. Errors not recognized here fall through to errorHandler as 500s.
func (srv *Server) errorResponse(c echo.Context, err error) error {
	var rej *automod.RejectedError
	switch {
	case errors.As(err, &rej) && rej.IsSuspended():
		return c.JSON(http.StatusForbidden, RejectionError{
			GenericError: GenericError{Error: "AccountSuspended", Message: rej.Verdict.Reason},
			ReasonCode:   rej.Verdict.ReasonCodeString(),
		})
	case errors.As(err, &rej):
		return c.JSON(http.StatusUnprocessableEntity, RejectionError{
			GenericError: GenericError{Error: "PolicyViolation", Message: rej.Verdict.Reason},
			ReasonCode:   rej.Verdict.ReasonCodeString(),
		})
	case errors.Is(err, automod.ErrProtectedFlag),
		errors.Is(err, content.ErrInvalidKind),
		errors.Is(err, content.ErrInvalidInput),
		errors.Is(err, content.ErrEmptySubmission),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrMissingSender):
		return c.JSON(http.StatusBadRequest, GenericError{Error: "InvalidRequest", Message: err.Error()})
	case errors.Is(err, chat.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, GenericError{Error: "RateLimitExceeded", Message: err.Error()})
	case errors.Is(err, content.ErrNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "ContentNotFound", Message: err.Error()})
	case errors.Is(err, chat.ErrConversationNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "ConversationNotFound", Message: err.Error()})
	}
	return err
}

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit))
	}
	return n, nil
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "tixod"})
}

type evaluateRequest struct {
	Text     string `json:"text"`
	AuthorID string `json:"author_id"`
}

// Evaluates text exactly as a submission would be. Violations count against author_id, if provided.
func (srv *Server) HandleEvaluate(c echo.Context) error {
	ctx := c.Request().Context()

	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := srv.engine.Evaluate(ctx, req.Text, req.AuthorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (srv *Server) HandleTrustState(c echo.Context) error {
	ctx := c.Request().Context()

	sum, err := srv.engine.AccountSummary(ctx, c.Param("user"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (srv *Server) HandleClearFlag(c echo.Context) error {
	ctx := c.Request().Context()

	user := c.Param("user")
	if err := srv.engine.ClearFlag(ctx, user, c.Param("flag")); err != nil {
		return srv.errorResponse(c, err)
	}
	sum, err := srv.engine.AccountSummary(ctx, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (srv *Server) HandleTermStats(c echo.Context) error {
	stats, err := srv.engine.TermStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"policy_version": srv.engine.Policy.Version,
		"terms":          stats,
	})
}

type reviewRequest struct {
	Status content.ModerationStatus `json:"status"`
}

func (srv *Server) HandleReviewContent(c echo.Context) error {
	ctx := c.Request().Context()

	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	item, err := srv.publisher.Review(ctx, c.Param("id"), req.Status)
	if err != nil {
		return srv.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (srv *Server) HandleCreateContent(c echo.Context) error {
	ctx := c.Request().Context()

	var req content.PublishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	item, err := srv.publisher.Publish(ctx, req)
	if err != nil {
		return srv.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (srv *Server) HandleListContent(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := content.ParseKind(c.Param("kind"))
	if err != nil {
		return srv.errorResponse(c, err)
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	items, err := srv.publisher.Store.List(ctx, kind, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
	})
}

func (srv *Server) HandleGetContent(c echo.Context) error {
	ctx := c.Request().Context()

	item, err := srv.publisher.Store.Get(ctx, c.Param("id"))
	if err != nil {
		return srv.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

type sendMessageRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

func (srv *Server) HandleSendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msgs, err := srv.gateway.Send(ctx, c.Param("id"), req.SenderID, req.Text)
	if err != nil {
		return srv.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": msgs,
	})
}

func (srv *Server) HandleListMessages(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = maxListLimit
	}
	msgs, err := srv.gateway.Messages(ctx, c.Param("id"), limit)
	if err != nil {
		return srv.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": msgs,
	})
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Streams messages appended to a conversation, as JSON text frames, until the client disconnects.
func (srv *Server) HandleSubscribe(c echo.Context) error {
	ctx := c.Request().Context()
	convID := c.Param("id")

	if _, err := srv.gateway.Store.GetConversation(ctx, convID); err != nil {
		return srv.errorResponse(c, err)
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := srv.logger.With("conversation", convID, "remote", c.RealIP())
	logger.Info("websocket connected")

	msgs, cancel := srv.gateway.Subscribe(convID)
	defer cancel()

	// read loop to detect disconnects; clients don't send anything meaningful
	disconnected := make(chan struct{})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				close(disconnected)
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-disconnected:
			logger.Info("websocket disconnected")
			return nil
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				logger.Info("websocket ping failed", "err", err)
				return nil
			}
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(msg); err != nil {
				logger.Info("websocket write error", "err", err)
				return nil
			}
		}
	}
}
