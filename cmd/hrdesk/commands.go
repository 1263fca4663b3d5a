package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/maruel/hrdesk/internal/auth"
	"github.com/maruel/hrdesk/internal/config"
	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/kv"
	"github.com/maruel/hrdesk/internal/metrics"
	"github.com/maruel/hrdesk/internal/server"
)

// app is the storage and services shared by every command.
type app struct {
	storage kv.Storage
	store   *hr.Store
	hr      *hr.Service
	auth    *auth.Service
}

// open opens the configured storage and loads the document. obs may be nil.
func open(ctx context.Context, cfg *config.Config, obs *metrics.Collector) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	storage, err := kv.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	opts := hr.Options{Key: cfg.Key}
	if cfg.SeedFile != "" {
		if opts.Seed, err = hr.LoadSeedFile(cfg.SeedFile, time.Now()); err != nil {
			_ = storage.Close()
			return nil, err
		}
	}
	var authObs auth.Observer
	if obs != nil {
		opts.Observer = obs
		authObs = obs
	}
	st, res := hr.Open(ctx, storage, opts)
	if res.Status == hr.LoadRecovered {
		slog.WarnContext(ctx, "Replaced unreadable document with seed data", "key", st.Key(), "err", res.Err)
	}
	svc := hr.NewService(st)
	return &app{storage: storage, store: st, hr: svc, auth: auth.NewService(svc, authObs)}, nil
}

// close retries a failed write once and closes the storage.
func (a *app) close(ctx context.Context) error {
	var err error
	if a.store.Dirty() {
		if err = a.store.Flush(); err != nil {
			slog.ErrorContext(ctx, "Document not persisted", "err", err)
		}
	}
	return errors.Join(err, a.storage.Close())
}

// watcher is implemented by kv.Dir and kv.GitHistory.
type watcher interface {
	Watch(ctx context.Context, key string, fn func(value string)) error
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	collector := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := open(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := a.close(ctx); err == nil {
			err = err2
		}
	}()

	if cfg.Watch {
		w, ok := a.storage.(watcher)
		if !ok {
			return errors.New("-watch requires the dir storage")
		}
		key := a.store.Key()
		if err := w.Watch(ctx, key, func(string) {
			collector.ExternalChange()
			slog.WarnContext(ctx, "Document modified by another process; it will be overwritten by the next change", "key", key)
		}); err != nil {
			return fmt.Errorf("failed to watch storage: %w", err)
		}
	}

	secret, err := cfg.Secret()
	if err != nil {
		return fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	version, _, _, _ := getBuildInfo()
	srv := server.New(&server.Options{
		HR:         a.hr,
		Auth:       a.auth,
		Metrics:    collector,
		Gatherer:   reg,
		JWTSecret:  secret,
		SessionTTL: cfg.SessionTTL,
		LoginRate:  cfg.LoginRate,
		LoginBurst: cfg.LoginBurst,
		Version:    version,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP,
		Handler:           srv.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", cfg.HTTP, "storage", cfg.Storage.Driver, "version", version)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printSchema() error {
	b, err := hr.SchemaJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", b)
	return err
}

// runSession runs one of the local session commands.
func runSession(ctx context.Context, cfg *config.Config, cmd string, args []string) (err error) {
	a, err := open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := a.close(ctx); err == nil {
			err = err2
		}
	}()
	s := auth.NewSession(a.auth, a.storage)
	switch cmd {
	case "register":
		if len(args) != 4 {
			return errors.New("usage: register <first> <last> <email> <password>")
		}
		acc, err := s.Register(args[0], args[1], args[2], args[3])
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s; run \"hrdesk verify\" to simulate the verification email.\n", acc.Email)
	case "verify":
		var email string
		switch len(args) {
		case 0:
			if email, err = s.VerifyPending(); err != nil {
				return err
			}
		case 1:
			email = args[0]
			if err := s.VerifyEmail(email); err != nil {
				return err
			}
		default:
			return errors.New("usage: verify [email]")
		}
		fmt.Printf("Verified %s\n", email)
	case "login":
		if len(args) != 2 {
			return errors.New("usage: login <email> <password>")
		}
		acc, err := s.Login(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s)\n", acc.FullName(), acc.Role)
	case "logout":
		if len(args) != 0 {
			return errors.New("usage: logout")
		}
		if err := s.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out")
	case "whoami":
		acc, err := s.RequireAuthenticated()
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s> %s\n", acc.FullName(), acc.Email, acc.Role)
	}
	return nil
}

func printHistory(ctx context.Context, cfg *config.Config, args []string) (err error) {
	n := 20
	if len(args) > 1 {
		return errors.New("usage: history [n]")
	}
	if len(args) == 1 {
		if n, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}
	a, err := open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := a.close(ctx); err == nil {
			err = err2
		}
	}()
	g, ok := a.storage.(*kv.GitHistory)
	if !ok {
		return errors.New("history requires -git-history")
	}
	changes, err := g.History(n)
	if err != nil {
		return err
	}
	for _, c := range changes {
		fmt.Printf("%.8s %s %s\n", c.Hash, c.When.Format(time.DateTime), c.Message)
	}
	return nil
}
