package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizsync/internal/services/gamesession"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

type WsServer struct {
	hub      *Hub
	router   *Router
	svc      gamesession.IGameSession
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, svc gamesession.IGameSession) *WsServer {
	srv := &WsServer{
		hub:    h,
		router: NewRouter(),
		svc:    svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true }, // local consumers only
		},
	}
	srv.registerHandlers()
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	view := View(ginCtx.DefaultQuery("view", string(ViewSnapshot)))
	if !view.valid() {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "view must be snapshot or lifecycle"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(4096)

	conn := newClientConn(uuid.NewString(), view, rawConn)
	s.hub.Join(view, conn)
	zap.L().Debug("ws.joined", zap.String("conn_id", conn.id), zap.String("view", string(view)))

	if err := s.pushInitialSnapshot(conn); err != nil {
		zap.L().Warn("ws.snapshot", zap.String("conn_id", conn.id), zap.Error(err))
	}

	go s.reader(conn)
	go s.pinger(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, "session/ready",
		func(_ context.Context, _ *ConnContext, _ Empty) (AckBody, error) {
			return AckBody{Sent: s.svc.Ready()}, nil
		})
	Register(s.router, "session/start",
		func(_ context.Context, _ *ConnContext, _ Empty) (AckBody, error) {
			return AckBody{Sent: s.svc.StartGame()}, nil
		})
	Register(s.router, "session/dice",
		func(_ context.Context, _ *ConnContext, _ Empty) (AckBody, error) {
			return AckBody{Sent: s.svc.RollDice()}, nil
		})
	Register(s.router, "session/chat",
		func(_ context.Context, _ *ConnContext, req ChatRequest) (AckBody, error) {
			return AckBody{Sent: s.svc.Chat(req.Message)}, nil
		})
	Register(s.router, "session/clear_overlay",
		func(_ context.Context, _ *ConnContext, req ClearOverlayRequest) (Empty, error) {
			return Empty{}, s.svc.ClearOverlay(req.Kind)
		})
}

func (s *WsServer) pushInitialSnapshot(conn *clientConn) error {
	msg, err := frameFor(conn.view, s.svc.Snapshot())
	if err != nil {
		return err
	}
	return conn.write(websocket.TextMessage, msg)
}

func (s *WsServer) reader(conn *clientConn) {
	defer s.hub.Leave(conn.view, conn)

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ConnID: conn.id, View: conn.view, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}
		_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		_ = conn.writeJSON(map[string]any{
			"event": env.Event + "-ack",
			"body":  res,
		})
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.closed:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				s.hub.Leave(conn.view, conn)
				return
			}
		}
	}
}
