// Package app wires configuration, logging, persistence and transport into
// a running scale server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/MerchantPug/Pehkui/internal/config"
	"github.com/MerchantPug/Pehkui/internal/hub"
	servernet "github.com/MerchantPug/Pehkui/internal/net"
	"github.com/MerchantPug/Pehkui/internal/observability"
	"github.com/MerchantPug/Pehkui/internal/persist"
	"github.com/MerchantPug/Pehkui/internal/telemetry"
	"github.com/MerchantPug/Pehkui/logging"
	loggingSinks "github.com/MerchantPug/Pehkui/logging/sinks"
	"github.com/MerchantPug/Pehkui/scale"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger     telemetry.Logger
	ConfigPath string
	// Getenv overrides os.Getenv for configuration overrides.
	Getenv func(string) string
	// Stdout receives console and unpathed JSON log output.
	Stdout io.Writer
}

// Server is an assembled but not yet running server.
type Server struct {
	Config     *config.Config
	Registries *scale.Registries
	Hub        *hub.Hub
	Router     *logging.Router
	Metrics    *logging.Metrics
	Memory     *loggingSinks.MemorySink
	Store      *persist.Store
	Handler    http.Handler

	logger telemetry.Logger
}

// Build loads configuration and constructs every component without
// starting the loop or binding a port.
func Build(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := conf.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	regs := scale.NewRegistries()
	if err := conf.Catalog.Bootstrap(regs); err != nil {
		return nil, err
	}

	routerCfg, err := conf.Logging.RouterConfig()
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	namedSinks, memory, err := loggingSinks.FromConfig(routerCfg, stdout)
	if err != nil {
		return nil, err
	}
	metrics := &logging.Metrics{}
	router, err := logging.NewRouter(routerCfg, namedSinks, logging.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging router: %w", err)
	}

	store := persist.NewStore(nil)
	if conf.Persistence.Enabled {
		opened, err := persist.Open(conf.Persistence.AppName)
		if err != nil {
			logger.Printf("persistence unavailable, continuing without saves: %v", err)
		} else {
			store = opened
		}
	}

	h := hub.New(regs, hub.Config{
		CommandCapacity:  conf.Server.CommandCapacity,
		DefaultTickDelay: conf.Server.DefaultTickDelay,
		AutosaveTicks:    uint64(max(conf.Persistence.AutosaveTicks, 0)),
		AutoTrack:        conf.Server.AutoTrack,
		Logger:           telemetry.PublisherLogger(router, logging.SeverityWarn),
		Metrics:          telemetry.WrapMetrics(metrics),
		Publisher:        router,
		Store:            store,
	})

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		Logger:        logger,
		Publisher:     router,
		Metrics:       metrics,
		Router:        router,
		TickRate:      conf.Server.TickRate,
		Observability: observability.Config{EnablePprof: conf.Observability.EnablePprof},
	})

	return &Server{
		Config:     conf,
		Registries: regs,
		Hub:        h,
		Router:     router,
		Metrics:    metrics,
		Memory:     memory,
		Store:      store,
		Handler:    handler,
		logger:     logger,
	}, nil
}

// Serve runs the simulation loop and HTTP server on ln until ctx is
// cancelled, then shuts both down and flushes the logging router.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := s.Hub.Run(loopCtx, s.Config.Server.TickInterval()); err != nil {
			s.logger.Printf("simulation loop stopped: %v", err)
		}
	}()

	srv := &http.Server{Handler: s.Handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	s.logger.Printf("server listening on %s", ln.Addr())

	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && result == nil {
		result = fmt.Errorf("server shutdown: %w", err)
	}
	stopLoop()
	<-loopDone
	s.Hub.Close()
	if err := s.Router.Close(shutdownCtx); err != nil {
		s.logger.Printf("failed to close logging router: %v", err)
	}
	return result
}

// Run builds the server and serves on the configured address until ctx is
// cancelled.
func Run(ctx context.Context, cfg Config) error {
	srv, err := Build(cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", srv.Config.Server.ListenAddr)
	if err != nil {
		srv.Router.Close(ctx)
		return fmt.Errorf("listen on %s: %w", srv.Config.Server.ListenAddr, err)
	}
	return srv.Serve(ctx, ln)
}
