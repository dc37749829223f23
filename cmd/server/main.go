package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/config"
	"github.com/hongminglow/portal-be/internal/logger"
	"github.com/hongminglow/portal-be/internal/server"
	"github.com/hongminglow/portal-be/internal/storage"
	"github.com/hongminglow/portal-be/internal/storage/memory"
	"github.com/hongminglow/portal-be/internal/storage/postgres"
)

func main() {
	envLoaded := godotenv.Load() == nil

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)
	if !envLoaded {
		lg.Info("no .env file found; relying on existing environment")
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		lg.Fatal("init store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	service := accounts.NewService(store, hasher, accounts.Options{
		PrimaryAdminEmail: cfg.PrimaryAdmin.Email,
		Logger:            lg.Named("accounts"),
	})
	gate, err := accounts.NewGate(store, hasher, lg.Named("gate"))
	if err != nil {
		lg.Fatal("init session gate", zap.Error(err))
	}

	if err := service.EnsurePrimaryAdmin(ctx, cfg.PrimaryAdmin.Username, cfg.PrimaryAdmin.Password); err != nil {
		lg.Fatal("bootstrap primary admin", zap.String("email", logger.MaskEmail(cfg.PrimaryAdmin.Email)), zap.Error(err))
	}

	srv, err := server.New(cfg, server.Deps{
		Service: service,
		Gate:    gate,
		Sessions: auth.NewCookieStore(auth.CookieOptions{
			Name:   cfg.Session.CookieName,
			Secret: cfg.Session.Secret,
			Issuer: cfg.Session.Issuer,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.Secure,
		}),
		Logger: lg.Named("http"),
	})
	if err != nil {
		lg.Fatal("build server", zap.Error(err))
	}

	go func() {
		lg.Info("portal backend listening", zap.String("addr", cfg.HTTPAddress()), zap.String("store", cfg.StoreDriver))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		lg.Error("graceful shutdown error", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.UserStore, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		return memory.New(), func() {}, nil
	}
	store, err := postgres.NewUserStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
