package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_roulette/internal/api/http/converter"
	"github.com/immxrtalbeast/axenix_roulette/internal/config"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/matchmaking"
	"github.com/immxrtalbeast/axenix_roulette/internal/repository"
	"github.com/immxrtalbeast/axenix_roulette/internal/service"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/sl"
)

const (
	defaultMatchesLimit = 20
	maxMatchesLimit     = 100
)

type CallController struct {
	calls    service.CallInteractor
	cfg      config.SignalingConfig
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewCallController(calls service.CallInteractor, cfg config.SignalingConfig, log *slog.Logger) *CallController {
	if log == nil {
		log = slog.Default()
	}
	return &CallController{
		calls: calls,
		cfg:   cfg,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *CallController) IssueIdentity(ctx *gin.Context) {
	id := c.calls.IssueIdentity(ctx.Request.Context())
	ctx.JSON(http.StatusOK, gin.H{"id": id})
}

func (c *CallController) ICEServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"ice_servers": c.calls.ICEServers()})
}

func (c *CallController) Stats(ctx *gin.Context) {
	stats, err := c.calls.Stats(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (c *CallController) GetSession(ctx *gin.Context) {
	id, ok := clientIDParam(ctx)
	if !ok {
		return
	}

	session, err := c.calls.Session(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(signalErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"session": converter.SessionToApi(session)})
}

func (c *CallController) ListMatches(ctx *gin.Context) {
	id, ok := clientIDParam(ctx)
	if !ok {
		return
	}

	limit := defaultMatchesLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxMatchesLimit)
	}

	matches, err := c.calls.ListMatches(ctx.Request.Context(), id, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"matches": converter.MatchesToApi(id, matches)})
}

func (c *CallController) GetMatch(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("matchID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	match, err := c.calls.GetMatch(ctx.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrMatchNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"match": converter.MatchToApi(match)})
}

// Signal is the request/response signal transport. Events caused by the
// signal are delivered over the sender's push channel, not in the response.
func (c *CallController) Signal(ctx *gin.Context) {
	type request struct {
		From    string          `json:"from" binding:"required"`
		Type    string          `json:"type" binding:"required"`
		Payload json.RawMessage `json:"payload"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.calls.RejectSignal(ctx.Request.Context(), "", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	from, err := domain.ParseClientID(req.From)
	if err != nil {
		c.calls.RejectSignal(ctx.Request.Context(), "", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return
	}

	sig := domain.NewSignal(domain.SignalType(req.Type), req.Payload)
	if err := c.calls.HandleSignal(ctx.Request.Context(), from, sig); err != nil {
		ctx.JSON(signalErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *CallController) WebSocket(ctx *gin.Context) {
	id, ok := clientIDQuery(ctx)
	if !ok {
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("client_id", id.String()), sl.Err(err))
		return
	}

	reqCtx := ctx.Request.Context()
	ch := newWSChannel(id, conn, c.cfg, c.log)
	go ch.writePump()

	c.calls.Connect(reqCtx, id, ch)
	ch.readPump(reqCtx, c.calls)

	c.calls.Disconnect(reqCtx, id, ch)
	_ = ch.Close()
}

func (c *CallController) Events(ctx *gin.Context) {
	id, ok := clientIDQuery(ctx)
	if !ok {
		return
	}

	header := ctx.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	ctx.Status(http.StatusOK)
	ctx.Writer.Flush()

	reqCtx := ctx.Request.Context()
	ch := newSSEChannel(c.cfg.EventBuffer)
	c.calls.Connect(reqCtx, id, ch)

	err := ch.stream(ctx.Writer, ctx.Writer.Flush, reqCtx.Done(), c.cfg.PingPeriod())
	if err != nil {
		c.log.Debug("event stream write failed", slog.String("client_id", id.String()), sl.Err(err))
	}

	c.calls.Disconnect(reqCtx, id, ch)
	_ = ch.Close()
}

func clientIDQuery(ctx *gin.Context) (domain.ClientID, bool) {
	id, err := domain.ParseClientID(ctx.Query("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return "", false
	}
	return id, true
}

func clientIDParam(ctx *gin.Context) (domain.ClientID, bool) {
	id, err := domain.ParseClientID(ctx.Param("clientID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
		return "", false
	}
	return id, true
}

func signalErrorStatus(err error) int {
	switch {
	case errors.Is(err, matchmaking.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, matchmaking.ErrMalformedSignal):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
