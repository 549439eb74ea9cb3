package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/archive"
	"github.com/mhardt/gambit/internal/config"
	"github.com/mhardt/gambit/internal/netio"
	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	client := netio.NewClient(cfg.ServerBaseURL)

	dial := func(token string) netio.Socket {
		ws := netio.NewWebSocket(cfg.ServerWSURL, cfg.WSMaxReconnects, time.Duration(cfg.WSReconnectDelay)*time.Millisecond)
		ws.SetHeaderProvider(func() map[string]string {
			return map[string]string{"Authorization": "Bearer " + token}
		})
		ws.OnStateChange(func(state netio.WebSocketState) {
			obslog.L().Info("ws_state", zap.String("state", string(state)))
		})
		return ws
	}

	sess := session.New(client, dial)

	var store *archive.Store
	if cfg.RedisURL != "" {
		store, err = archive.NewStore(cfg.RedisURL)
		if err != nil {
			obslog.L().Warn("archive_store_unavailable", zap.Error(err))
			store = nil
		}
	}
	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Warn("archive_repository_unavailable", zap.Error(err))
			repo = nil
		}
	}

	sh := newShell(cfg, sess, store, repo)
	sh.registerListeners()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh.run(ctx)

	sess.Reset(context.Background())
	if store != nil {
		_ = store.Close()
	}
	if repo != nil {
		_ = repo.Close()
	}
}
