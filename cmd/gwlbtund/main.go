// gwlbtund is the Geneve data-plane endpoint daemon for an AWS Gateway
// Load Balancer target: it terminates GWLB's Geneve encapsulation,
// optionally tracks inner TCP/UDP/ICMP flows, and answers the
// balancer's HTTP health probes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/netplane-oss/gwlbtun/internal/config"
	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
	"github.com/netplane-oss/gwlbtun/internal/geneve"
	"github.com/netplane-oss/gwlbtun/internal/metrics"
	"github.com/netplane-oss/gwlbtun/internal/netio"
	appversion "github.com/netplane-oss/gwlbtun/internal/version"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath        = flag.String("config", "", "path to configuration file (YAML)")
		noDaemon          = flag.Bool("no-daemon", false, "log to stderr instead of the configured log file")
		logLevel          = flag.String("log-level", "", "override log.level (debug, info, warn, error)")
		logFile           = flag.String("log-file", "", "override log.file")
		enableFlowTracker = flag.Bool("enable-flow-tracker", true, "track inner flows and their TCP state")
		udpOnly           = flag.Bool("udp-only", false, "force udp-bind mode regardless of configured mode")
		showVersion       = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(appversion.Full("gwlbtund"))
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *udpOnly {
		cfg.Mode = config.ModeUDP
	}

	logger, closeLog, err := newLogger(cfg.Log, *noDaemon)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to open log file",
			slog.String("error", err.Error()))
		return 1
	}
	defer closeLog()

	logger.Info("gwlbtund starting",
		slog.String("version", appversion.Version),
		slog.String("mode", cfg.Mode),
		slog.Int("geneve_port", int(cfg.Geneve.Port)),
		slog.Int("health_port", int(cfg.Health.Port)),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	var tracker *flowtrack.Tracker
	if *enableFlowTracker {
		tracker = flowtrack.New(logger.With(slog.String("component", "flowtrack")), flowtrack.Config{
			Timeout:           cfg.Flow.Timeout,
			TCPNonSynBlock:    cfg.Flow.TCPNonSynBlock,
			TCPImmediateClean: cfg.Flow.TCPImmediateClean,
		})
		tracker.Metrics = collector
		defer tracker.Close()
	}

	if err := runServers(cfg, tracker, collector, reg, logger); err != nil {
		logger.Error("gwlbtund exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("gwlbtund stopped")
	return 0
}

// runServers opens the configured sockets, then runs the receive loop and
// the metrics HTTP server under an errgroup with signal-aware shutdown.
// The reference daemon traps SIGTSTP in addition to SIGTERM because it
// runs under a process supervisor that stops it with SIGTSTP rather than
// SIGTERM; both are honored here.
func runServers(
	cfg *config.Config,
	tracker *flowtrack.Tracker,
	collector *metrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	recv, closeSockets, err := buildReceiver(cfg, tracker, collector, logger)
	if err != nil {
		return fmt.Errorf("build receiver: %w", err)
	}
	defer closeSockets()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGTSTP)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("receive loop starting")
		return recv.Run(gCtx)
	})

	metricsSrv := metrics.NewHTTPServer(cfg.Metrics.Addr, reg, tracker)
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// buildReceiver opens the sockets named by cfg.Mode and wires them,
// along with the flow tracker and metrics collector, into a
// netio.Receiver. The returned close function releases every opened
// socket, including when a later socket in the sequence fails to open.
func buildReceiver(
	cfg *config.Config,
	tracker *flowtrack.Tracker,
	collector *metrics.Collector,
	logger *slog.Logger,
) (*netio.Receiver, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("error closing socket", slog.String("error", err.Error()))
			}
		}
	}

	recv := &netio.Receiver{
		Logger:          logger.With(slog.String("component", "receiver")),
		GenevePort:      cfg.Geneve.Port,
		ParseGeneveOpts: true,
		ChecksumOffload: cfg.Checksum.Offload,
		Tracker:         tracker,
		Metrics:         collector,
	}

	switch cfg.Mode {
	case config.ModeRaw:
		recv.Mode = geneve.ModeRawSocket

		raw, err := netio.NewRawSocket(logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open raw data socket: %w", err)
		}
		closers = append(closers, raw.Close)
		recv.Raw = raw

		announce, err := netio.NewAnnounceSocket(logger, cfg.Geneve.Port)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open announce socket: %w", err)
		}
		closers = append(closers, announce.Close)
		recv.Announce = announce

	case config.ModeUDP:
		recv.Mode = geneve.ModeUDPBind

		udp, err := netio.NewUDPSocket(logger, cfg.Geneve.Port)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open udp data socket: %w", err)
		}
		closers = append(closers, udp.Close)
		recv.UDP = udp
	}

	health, err := netio.NewHealthListener(logger, cfg.Health.Port)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("open health listener: %w", err)
	}
	closers = append(closers, health.Close)
	recv.Health = health

	return recv, closeAll, nil
}

// newLogger builds the daemon's structured logger, writing JSON to the
// configured log file, or to stderr when no file is configured or
// foreground mode is requested. The returned close function must be
// called before the process exits.
func newLogger(cfg config.LogConfig, noDaemon bool) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Level)}

	if cfg.File == "" || noDaemon {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}

	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}
