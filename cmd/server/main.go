package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jessevdk/go-flags"
	"github.com/jrsteele09/go-auth-client/authflow"
	"github.com/jrsteele09/go-auth-client/flowstore"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/sessionstore"
	"github.com/jrsteele09/go-auth-client/tokenexchange"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const sessionSweepInterval = time.Hour

type options struct {
	Port     string `short:"p" long:"port" description:"Listen port, overrides PORT"`
	Env      string `short:"e" long:"env" description:"Environment name, overrides ENV"`
	LogLevel string `short:"l" long:"log-level" description:"debug, info, warn or error, overrides AUTH_LOG_LEVEL"`
}

func main() {
	opts := &options{}
	if _, err := flags.ParseArgs(opts, os.Args[1:]); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(opts *options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(config.Overrides{Port: opts.Port, Env: opts.Env, LogLevel: opts.LogLevel})
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeSessions, err := openSessionStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeSessions()

	controller, err := newController(ctx, c, sessions)
	if err != nil {
		return err
	}
	handler, err := server.New(c, controller)
	if err != nil {
		return err
	}

	appServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	metricsMux := http.NewServeMux()
	metricsMux.Handle(server.RouteMetrics, promhttp.Handler())
	metricsServer := &http.Server{Addr: c.GetMetricsPort(), Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listenAndServe(appServer) })
	g.Go(func() error { return listenAndServe(metricsServer) })
	if sqlite, ok := sessions.(*sessionstore.SQLiteRepo); ok {
		g.Go(func() error { return sweepSessions(gctx, sqlite, c.GetSessionTTL()) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(appServer, metricsServer)
	})
	return g.Wait()
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func openSessionStore(ctx context.Context, c config.Config) (sessionstore.Store, func(), error) {
	if c.GetSessionBackend() == config.SessionBackendMemory {
		log.Warn().Msg("Using in-memory session store, sessions are lost on restart")
		return sessionstore.NewInMemoryRepo(), func() {}, nil
	}

	path := c.GetSessionDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("[openSessionStore] create data folder: %w", err)
	}
	repo, err := sessionstore.NewSQLiteRepo(ctx, path, c.GetSessionEncryptionKey())
	if err != nil {
		return nil, nil, err
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Err(err).Msg("failed to close session store")
		}
	}, nil
}

func newController(ctx context.Context, c config.Config, sessions sessionstore.Store) (*authflow.Controller, error) {
	httpClient := &http.Client{Timeout: c.GetHTTPTimeout()}

	endpoints, err := provider.NewEndpoints(c.GetProviderDomain(), c.GetClientID())
	if err != nil {
		return nil, err
	}

	var verifier authflow.IDTokenVerifier
	if issuer := c.GetOIDCIssuer(); issuer != "" {
		discovered, err := provider.Discover(ctx, httpClient, issuer, c.GetProviderDomain(), c.GetClientID())
		if err != nil {
			return nil, err
		}
		endpoints = discovered.Endpoints
		verifier = tokenexchange.NewIDTokenVerifier(discovered.OIDC, c.GetClientID())
		log.Info().Str("issuer", issuer).Msg("ID token verification enabled")
	}

	return authflow.New(authflow.Config{
		Endpoints:     endpoints,
		RedirectURI:   c.GetCallbackURL(),
		LogoutURI:     c.GetLandingURL(),
		Scopes:        c.GetScopes(),
		VerifyIDToken: verifier != nil,
	}, authflow.Dependencies{
		FlowStore:    flowstore.NewInMemoryRepo(c.GetFlowTTL()),
		SessionStore: sessions,
		Tokens:       tokenexchange.New(endpoints, c.GetClientSecret(), c.GetCallbackURL(), httpClient),
		Verifier:     verifier,
		Logger:       log.Logger,
	})
}

// sweepSessions deletes stored sessions idle for longer than ttl.
func sweepSessions(ctx context.Context, repo *sessionstore.SQLiteRepo, ttl time.Duration) error {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := repo.DeleteStaleBefore(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("swept stale sessions")
			}
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(servers ...*http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server.Shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
