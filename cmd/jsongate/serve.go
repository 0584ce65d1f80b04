package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jsongate "github.com/reoring/jsongate"
	"github.com/reoring/jsongate/config"
	"github.com/reoring/jsongate/i18n"
	"github.com/reoring/jsongate/middleware"
	ginmw "github.com/reoring/jsongate/middleware/gin"
)

type serveOptions struct {
	cfgPath string
	listen  string
	dev     bool
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion endpoint over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, nil)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", "jsongate.yaml", "config yaml path")
	fs.StringVar(&opts.listen, "listen", "", "http listen address (overrides http.listen and JSONGATE_LISTEN)")
	fs.BoolVar(&opts.dev, "dev", os.Getenv("ENV") == "dev", "gin debug mode")
	return cmd
}

// server holds the runtime in effect; reloads swap it atomically.
type server struct {
	runtime atomic.Pointer[config.Runtime]
}

func (s *server) pipeline() *jsongate.Pipeline {
	if rt := s.runtime.Load(); rt != nil {
		return rt.Pipeline
	}
	return nil
}

// runServe serves until ctx is done. ready, when set, receives the bound
// address once the listener is up.
func runServe(ctx context.Context, opts serveOptions, ready chan<- net.Addr) error {
	rt, err := config.LoadRuntime(opts.cfgPath)
	if err != nil {
		return err
	}
	cfg := rt.Config

	log, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.Named("main")

	srv := &server{}
	srv.runtime.Store(rt)

	if !opts.dev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	router := ginmw.NewRouter(srv.pipeline, ginmw.RouterOptions{
		Options: ginmw.Options{
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			Logger:       log.Named("http"),
			Policy: middleware.Policy{
				Verbosity:             cfg.HTTP.Verbosity,
				SchemaViolationStatus: cfg.HTTP.SchemaViolationStatus,
				Translator:            i18n.New(cfg.Logging.Lang),
			},
		},
		Accept: cfg.HTTP.Accept,
	})

	addr := cfg.HTTP.Listen
	if l := strings.TrimSpace(opts.listen); l != "" {
		addr = l
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	httpsrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", ln.Addr().String()),
			zap.Stringer("limits", rt.Pipeline.Limits()), zap.String("binding", rt.Pipeline.Binding().String()))
		if ready != nil {
			ready <- ln.Addr()
		}
		if err := httpsrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpsrv.Shutdown(shutdownCtx)
	})
	if cfg.Reload.Enabled {
		w := config.NewWatcher(opts.cfgPath, rt, log.Named("reload"), func(next *config.Runtime) {
			srv.runtime.Store(next)
		})
		g.Go(func() error { return w.Run(gctx) })
	}

	err = g.Wait()
	log.Info("server closed")
	return err
}
