package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quizsync/internal/config"
	"quizsync/internal/database/db_client"
	"quizsync/internal/http/http_server"
	"quizsync/internal/redis/redis_client"
	"quizsync/internal/redis/snapshot_mirror"
	"quizsync/internal/services/gamesession"
	"quizsync/internal/session"
	"quizsync/internal/subscription"
	"quizsync/internal/syncdb"
	"quizsync/internal/transport"
	"quizsync/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()

	errRoomWithoutChannel = errors.New("--room needs --channel")
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	cobra.CheckErr(newCmd().ExecuteContext(ctx))
}

func run(ctx context.Context, opts *cliOpts, portOverride bool) error {
	if !opts.verbose {
		Log = Log.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
		zap.ReplaceGlobals(Log)
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if portOverride {
		cfg.HttpServerPort = opts.httpPort
		if err := cfg.Validate(); err != nil {
			Log.Fatal("Invalid --http-port", zap.Error(err))
		}
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Optional results archive
	var sinks []gamesession.ResultSink
	if cfg.PostgresArchiveEnabled {
		pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		archive := syncdb.NewArchive(pgDb)
		if err := archive.Migrate(ctx); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		sinks = append(sinks, archive)
		Log.Info("results archive enabled", zap.String("run_id", archive.RunID().String()))
	}

	// 3. Game session: transport, multiplexer, store, sender
	login := cfg.StompLogin
	if login == "" {
		login = cfg.Username
	}
	dialer := transport.NewStompDialer(transport.StompOptions{
		URL:          cfg.WsURL,
		Host:         cfg.StompHost,
		Login:        login,
		Passcode:     cfg.StompPasscode,
		Token:        cfg.AuthToken,
		HeartBeatOut: cfg.HeartbeatOutgoing,
		HeartBeatIn:  cfg.HeartbeatIncoming,
	})
	svc := gamesession.New(ctx, dialer, gamesession.Options{
		Connection: transport.Options{
			ReconnectDelay:    cfg.ReconnectDelay,
			ReconnectMaxDelay: cfg.ReconnectMaxDelay,
			DialTimeout:       cfg.DialTimeout,
		},
		Session: session.Options{
			RollTimeout: cfg.RollAnimationTimeout,
			ChatHistory: cfg.ChatHistory,
		},
		Topics: subscription.Topics{
			TopicPrefix: cfg.TopicPrefix,
			UserPrefix:  cfg.UserPrefix,
		},
		AppPrefix: cfg.AppPrefix,
		Sinks:     sinks,
	})
	defer svc.Close()

	g, gctx := errgroup.WithContext(ctx)

	// 4. Optional Redis mirror
	if cfg.RedisMirrorEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		mirror := snapshot_mirror.New(redisClient, 0)
		g.Go(func() error {
			mirror.Run(gctx, svc)
			return nil
		})
	}

	// 5. Local WebSocket fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, svc)
	g.Go(func() error {
		ws.Feed(gctx, hub, svc)
		return nil
	})

	// 6. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, svc)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Dispose()
	})

	// 7. Initial scope
	switch {
	case opts.room != "":
		err = svc.EnterRoom(opts.channel, opts.room)
	case opts.channel != "":
		err = svc.EnterChannel(opts.channel)
	}
	if err != nil {
		Log.Fatal("Failed to enter initial scope", zap.Error(err))
	}

	err = g.Wait()
	Log.Info("shutting down")
	return err
}
