package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	grpcctx "github.com/dtroode/srplogin/internal/api/grpc/context"
	"github.com/dtroode/srplogin/internal/api/http/admin"
	"github.com/dtroode/srplogin/internal/api/grpc/router"
	grpcServer "github.com/dtroode/srplogin/internal/api/grpc/server"
	"github.com/dtroode/srplogin/internal/config"
	"github.com/dtroode/srplogin/internal/logger"
	"github.com/dtroode/srplogin/internal/metrics"
	"github.com/dtroode/srplogin/internal/model"
	"github.com/dtroode/srplogin/internal/repository/memory"
	"github.com/dtroode/srplogin/internal/repository/postgres"
	"github.com/dtroode/srplogin/internal/server"
	"github.com/dtroode/srplogin/internal/service"
	"github.com/dtroode/srplogin/internal/session"
	"github.com/dtroode/srplogin/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel).With("server", cfg.ServerName)

	accounts, closeAccounts := openAccountStore(ctx, cfg, logger)
	defer closeAccounts()

	store := session.NewStore()
	m := metrics.New(store.AuthenticatedCount)
	tickets := token.NewJWT(cfg.JWT.Secret, cfg.ServerName, cfg.JWT.TicketTTL)

	loginService := service.NewLogin(store, accounts, tickets, nil, m, service.LoginConfig{
		RegistrationEnabled: cfg.Auth.RegistrationEnabled,
		MaxAuthenticated:    cfg.Auth.MaxAuthenticated,
	}, logger)
	reaper := session.NewReaper(store, cfg.Auth.HandshakeTimeout, cfg.Auth.ReapInterval, logger, m.ObserveReaped)

	grpcSrv := grpcServer.NewGRPCServer(router.New(loginService, grpcctx.NewManager(), logger).Register(), fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	logAppVersion()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server on", "address", grpcSrv.Address())
		return grpcSrv.Start(sl)
	})
	g.Go(func() error {
		return reaper.Run(gctx)
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		if cfg.Admin.Token != "" {
			admin.NewHandler(loginService, accounts, cfg.Admin.Token, logger).Register(mux)
		} else {
			logger.Info("admin routes disabled, ADMIN_TOKEN is empty")
		}

		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Starting metrics server on", "address", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", grpcSrv.Address())
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("error during metrics server shutdown", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
}

// accountRepository is what both storage backends provide.
type accountRepository interface {
	model.AccountStore
	model.AccountBanner
}

func openAccountStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (accountRepository, func()) {
	if cfg.Database.Backend == config.BackendMemory {
		logger.Warn("using in-memory account store, accounts are lost on restart")
		return memory.NewAccountRepository(), func() {}
	}

	db, err := postgres.NewConection(ctx, cfg.Database.DSN, cfg.ServerName)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	return postgres.NewAccountRepository(db, cfg.ServerName), func() { _ = db.Close() }
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
