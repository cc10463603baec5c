package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quizsync/internal/http/sessionhandler"
	"quizsync/internal/services/gamesession"
	"quizsync/internal/ws"
)

type httpServer struct {
	listenPort uint16
	srv        *http.Server
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, svc gamesession.IGameSession) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		srv: &http.Server{
			Handler:           Engine(wsSrv, svc),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ctx: ctx,
	}
}

// Engine builds the router: access log, recovery, the local fan-out and
// the session API.
func Engine(wsSrv *ws.WsServer, svc gamesession.IGameSession) *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", wsSrv.Handle)

	sessionhandler.New(svc).Register(routerEngine)
	return routerEngine
}

// Start blocks until the server stops. After Dispose it returns nil.
func (h *httpServer) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.listenPort))
	if err != nil {
		return err
	}
	zap.L().Info("http.listen", zap.String("addr", ln.Addr().String()))

	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	// h.ctx is usually done by now; keep its values, drop its deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http.dispose", zap.Error(err))
		return err
	}
	return nil
}
