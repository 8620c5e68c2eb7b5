// Package app wires the repositories, services and controller together
// and runs the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voiceroom/server/internal/controller"
	connInmemory "github.com/voiceroom/server/internal/repository/connection/inmemory"
	mediaRedis "github.com/voiceroom/server/internal/repository/media/redis"
	roomRedis "github.com/voiceroom/server/internal/repository/room/redis"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/internal/service/media"
	"github.com/voiceroom/server/internal/service/room"
	"github.com/voiceroom/server/pkg/ctxlogger"
	"github.com/voiceroom/server/pkg/keylock"
	"github.com/voiceroom/server/pkg/profanity"
	"github.com/voiceroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	MembersLimit  int           `json:"members_limit"`
	SyncInterval  time.Duration `json:"sync_interval"`
	RoomTTL       time.Duration `json:"room_ttl"`
	BlockedWords  []string      `json:"blocked_words"`
	RedisHost     string        `json:"redis_host"`
	RedisPort     int           `json:"redis_port"`
	RedisPassword string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.MembersLimit < 1 {
		return fmt.Errorf("members limit must be greater than 0")
	}
	if cfg.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if cfg.RoomTTL <= 0 {
		return fmt.Errorf("room ttl must be positive")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomRedis.NewRepo(rc, cfg.RoomTTL)
	mediaRepo := mediaRedis.NewRepo(rc, cfg.RoomTTL)
	connRepo := connInmemory.NewRepo()

	gateway := broadcast.NewGateway(connRepo, logger)
	locker := keylock.New()
	filter := profanity.NewFilter(cfg.BlockedWords)

	roomService := room.NewService(roomRepo, gateway, locker, filter, cfg.MembersLimit, logger)
	mediaService := media.NewService(mediaRepo, roomRepo, gateway, locker, cfg.SyncInterval, logger)

	ctrl := controller.NewController(roomService, mediaService, gateway, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.Mux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		mediaService.Shutdown()
		gateway.Shutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
