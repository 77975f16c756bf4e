package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"go-dm/internal/alog"
	"go-dm/internal/bootstrap"
	"go-dm/internal/config"
	"go-dm/internal/metrics"
	httpapi "go-dm/internal/presentation/http"
	"go-dm/internal/transport/tcp"
	"go-dm/internal/transport/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	alog.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.EnableMetrics {
		metrics.Init()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "dm_server")
	if err != nil {
		alog.Logger().WithError(err).Fatal("启动失败")
	}
	defer app.Close()

	// 进程内定时对账；独立部署 view_repair 时可将 repairInterval 置 0
	go app.RunRepairLoop(ctx)

	var wsHandler gin.HandlerFunc
	if app.Redis != nil {
		wsSrv := &ws.Server{JWTSecret: cfg.JWTSecret, Messaging: app.Messaging, Redis: app.Redis}
		wsHandler = wsSrv.Handle

		tcpSrv := &tcp.Server{Addr: cfg.TCPAddr, JWTSecret: cfg.JWTSecret, Redis: app.Redis}
		go func() {
			if err := tcpSrv.Start(ctx); err != nil {
				alog.Logger().WithError(err).Error("tcp gateway stopped")
			}
		}()
	} else {
		alog.Logger().Warn("未配置 Redis，实时推送与限流关闭")
	}

	r := httpapi.NewRouter(httpapi.RouterConfig{
		Messaging:     app.Messaging,
		JWTSecret:     cfg.JWTSecret,
		EnableMetrics: cfg.EnableMetrics,
		WS:            wsHandler,
		Health:        app.Health,
	})
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		alog.Logger().WithField("addr", cfg.ListenAddr).Info("dm_server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			alog.Logger().WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
