package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"arena-timer/internal/client"
	"arena-timer/internal/config"
	"arena-timer/internal/logger"
	"arena-timer/internal/metrics"
	"arena-timer/internal/service"
	"arena-timer/internal/timerctl"
	"arena-timer/internal/transport"
)

type runOptions struct {
	configPath  string
	host        string
	port        int
	path        string
	listen      string
	socketIO    bool
	noReconnect bool
	verbosity   int
}

func runCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the timer server and serve the status API",
		Long: `Run the timer client until interrupted.

Settings come from the config file, then from flags. Without a host the
client idles until a POST to /api/websocket/connect.

Examples:
  arena-timer run
  arena-timer run --host=192.168.1.100 --port=8765
  arena-timer run --config=/etc/arena-timer.json -v 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	opts.bind(cmd)

	return cmd
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", config.ConfigFileName, "Config file")
	cmd.Flags().StringVarP(&o.host, "host", "H", "", "Timer server host (default from config)")
	cmd.Flags().IntVarP(&o.port, "port", "p", 0, "Timer server port (default from config)")
	cmd.Flags().StringVar(&o.path, "path", "", "Upgrade path (default from config)")
	cmd.Flags().StringVarP(&o.listen, "listen", "l", "", "Status API address (default from config)")
	cmd.Flags().BoolVar(&o.socketIO, "socketio", false, "Force Socket.IO mode")
	cmd.Flags().BoolVar(&o.noReconnect, "no-reconnect", false, "Disable automatic reconnection")
	cmd.Flags().IntVarP(&o.verbosity, "verbose", "v", 0, "Log verbosity")
}

// config loads the config file and applies flag overrides. A missing file
// is only an error when --config was given.
func (o *runOptions) config(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) || flags.Changed("config") {
			return nil, err
		}
		cfg = config.New()
	}

	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("path") {
		cfg.Path = o.path
	}
	if flags.Changed("listen") {
		cfg.Listen = o.listen
	}
	if flags.Changed("socketio") {
		cfg.SocketIOMode = o.socketIO
	}
	if flags.Changed("no-reconnect") {
		reconnect := !o.noReconnect
		cfg.AutoReconnect = &reconnect
	}
	if flags.Changed("verbose") {
		cfg.LogVerbosity = o.verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.SetVerbosity(cfg.LogVerbosity)
	log := logger.GetLogger("arena-timer")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts, err := cfg.ClientOptions()
	if err != nil {
		return err
	}
	opts.Metrics = metrics.New(metrics.WithRegistry(registry))
	opts.Logger = logger.GetLogger("client")

	countdown := timerctl.NewCountdown(timerctl.DefaultResetMinutes*time.Minute, nil)
	sink := timerctl.NewSink(countdown, logger.GetLogger("timerctl"))
	c := client.New(transport.TCPFactory(cfg.DialTimeoutDuration()), sink, opts)

	runner := service.NewRunner(c, cfg.PollIntervalDuration(), logger.GetLogger("runner"))
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	if cfg.Host != "" {
		if err := runner.Connect(ctx, cfg.Host, uint16(cfg.Port), cfg.Path); err != nil {
			log.Error(err, "initial connect failed", "host", cfg.Host, "port", cfg.Port)
		}
	}

	var srv *http.Server
	if cfg.Listen != "" {
		srv = &http.Server{
			Addr: cfg.Listen,
			Handler: service.NewRouter(service.APIConfig{
				Controller: runner,
				Timer:      countdown,
				Gatherer:   registry,
				Logger:     logger.GetLogger("http"),
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go serve(srv, log)
	}

	<-ctx.Done()
	log.Info("shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(err, "status API shutdown")
		}
	}
	return <-done
}

func serve(srv *http.Server, log logr.Logger) {
	log.Info("status API listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err, "status API stopped")
	}
}
