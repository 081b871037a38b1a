package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"mural-service/internal/mural"
	"mural-service/internal/playlog"
	"mural-service/internal/realtime"
	"mural-service/internal/store"
)

func main() {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if lj := setupLogging(cfg.LogFile); lj != nil {
		defer lj.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	for _, dir := range []string{cfg.MediaDir, cfg.StateDir} {
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			log.Fatalf("mural: create %s: %v", dir, err)
		}
	}

	lib := store.NewLibrary(fs, cfg.MediaDir, cfg.MaxUploadBytes)
	conf := store.NewConfig(fs, cfg.MediaDir)
	users := store.NewUsers(fs, filepath.Join(cfg.StateDir, "users.json"))

	created, err := users.Bootstrap(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("mural: bootstrap admin: %v", err)
	}
	if created {
		log.Printf("mural: created admin account %q", cfg.AdminUsername)
	} else if list, err := users.List(); err == nil && len(list) == 0 {
		log.Printf("mural: no accounts yet; set ADMIN_USERNAME and ADMIN_PASSWORD to create one")
	}

	var plays playlog.Store = playlog.Nop{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("mural: failed to connect to DB: %v", err)
		}
		defer pool.Close()

		if err := playlog.AutoMigrate(ctx, pool); err != nil {
			log.Fatalf("mural: migrate error: %v", err)
		}
		plays = playlog.NewPostgresStore(pool)
	} else {
		log.Printf("mural: DATABASE_URL not set, plays are not stored")
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	var bus realtime.Publisher = realtime.NewLocalBus(hub)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("mural: invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		rb := realtime.NewRedisBus(rdb, hub, realtime.DefaultChannel)
		go func() {
			if err := rb.Run(ctx); err != nil {
				log.Printf("mural: redis bus stopped: %v", err)
			}
		}()
		bus = rb
	}

	srv := mural.NewServer(mural.Options{
		Library:       lib,
		Config:        conf,
		Users:         users,
		Plays:         plays,
		Bus:           bus,
		Socket:        realtime.NewHandler(hub, cfg.SocketOrigins...),
		JWTSecret:     cfg.JWTSecret,
		SessionTTL:    cfg.SessionTTL,
		PlayerToken:   cfg.PlayerToken,
		MaxUpload:     cfg.MaxUploadBytes,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	// no write timeout: uploads and the push socket are long-lived
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("mural listening on :%s (media %s)", cfg.Port, cfg.MediaDir)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Fatalf("mural: %v", err)
	}
	log.Printf("mural: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("mural: graceful shutdown failed: %v", err)
		_ = httpSrv.Close()
	}
	log.Printf("mural: stopped")
}

// setupLogging tees the standard logger into a rotated file when path is
// set.
func setupLogging(path string) io.Closer {
	if path == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}
