package sessionhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizsync/internal/domain"
	"quizsync/internal/services/gamesession"
	"quizsync/internal/session"
)

type Handler struct {
	svc gamesession.IGameSession
}

func New(svc gamesession.IGameSession) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/session", h.snapshot)
	r.PUT("/scope", h.setScope)
	r.DELETE("/scope", h.leave)
	r.POST("/commands/ready", h.command(h.svc.Ready))
	r.POST("/commands/start", h.command(h.svc.StartGame))
	r.POST("/commands/dice", h.command(h.svc.RollDice))
	r.POST("/commands/chat", h.chat)
	r.POST("/overlay/:kind/clear", h.clearOverlay)
}

// @Summary		Liveness and connection status
// @Tags			Session
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	snap := h.svc.Snapshot()
	c.JSON(http.StatusOK, HealthResponse{
		Status: snap.Status.String(),
		Scope:  snap.State.Scope.Key(),
	})
}

// @Summary		Current session snapshot
// @Tags			Session
// @Success		200	{object}	gamesession.Snapshot
// @Router			/session [get]
func (h *Handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// @Summary		Enter a channel or a game room
// @Tags			Session
// @Param			body	body	ScopeBody	true	"Target scope"
// @Success		204
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/scope [put]
func (h *Handler) setScope(ginCtx *gin.Context) {
	var body ScopeBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	var err error
	switch body.Kind {
	case domain.ScopeChannel:
		err = h.svc.EnterChannel(body.Channel)
	case domain.ScopeGameRoom:
		err = h.svc.EnterRoom(body.Channel, body.Room)
	}
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Leave the live context
// @Description	Unsubscribes everything and closes the connection before returning.
// @Tags			Session
// @Success		204
// @Router			/scope [delete]
func (h *Handler) leave(ginCtx *gin.Context) {
	if err := h.svc.Leave(); err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Room command
// @Description	Fire-and-forget. 503 means the frame was dropped because the connection is down or no room is entered.
// @Tags			Commands
// @Success		202	{object}	CommandResponse
// @Failure		503	{object}	CommandResponse
// @Router			/commands/{ready|start|dice} [post]
func (h *Handler) command(send func() bool) gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		respondSent(ginCtx, send())
	}
}

// @Summary		Send a chat message to the room
// @Tags			Commands
// @Param			body	body	ChatBody	true	"Message"
// @Success		202	{object}	CommandResponse
// @Failure		400	{object}	ErrorResponse
// @Failure		503	{object}	CommandResponse
// @Router			/commands/chat [post]
func (h *Handler) chat(ginCtx *gin.Context) {
	var body ChatBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	respondSent(ginCtx, h.svc.Chat(body.Message))
}

// @Summary		Dismiss a transient overlay
// @Tags			Session
// @Param			kind	path	string	true	"Overlay slot"	Enums(bubble,dice,hint)
// @Success		204
// @Failure		400	{object}	ErrorResponse
// @Router			/overlay/{kind}/clear [post]
func (h *Handler) clearOverlay(ginCtx *gin.Context) {
	if err := h.svc.ClearOverlay(session.OverlayKind(ginCtx.Param("kind"))); err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

func respondSent(ginCtx *gin.Context, sent bool) {
	if !sent {
		ginCtx.JSON(http.StatusServiceUnavailable, CommandResponse{Sent: false})
		return
	}
	ginCtx.JSON(http.StatusAccepted, CommandResponse{Sent: true})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gamesession.ErrInvalidScope), errors.Is(err, gamesession.ErrInvalidOverlay):
		return http.StatusBadRequest
	case errors.Is(err, gamesession.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
