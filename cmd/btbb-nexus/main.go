package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/capture"
	"github.com/dbehnke/btbb-nexus/pkg/config"
	"github.com/dbehnke/btbb-nexus/pkg/database"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/dbehnke/btbb-nexus/pkg/metrics"
	"github.com/dbehnke/btbb-nexus/pkg/mqtt"
	"github.com/dbehnke/btbb-nexus/pkg/oui"
	"github.com/dbehnke/btbb-nexus/pkg/piconet"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
	"github.com/dbehnke/btbb-nexus/pkg/web"
	flag "github.com/spf13/pflag"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

type options struct {
	configFile  string
	captureFile string
	lap         string
	uap         int
	clock       int
	maxPackets  int
	showVersion bool
	validate    bool
	serve       bool
}

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	var opts options
	fs := flag.NewFlagSet("btbb-nexus", flag.ContinueOnError)
	fs.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")
	fs.StringVarP(&opts.captureFile, "capture", "f", "", "Capture file to scan (overrides capture.file)")
	fs.StringVarP(&opts.lap, "lap", "l", "", "Only sniff this LAP (hex)")
	fs.IntVarP(&opts.uap, "uap", "u", 0, "Known UAP (0-255)")
	fs.IntVar(&opts.clock, "clock", 0, "Known CLK6-1 at the first packet (0-63)")
	fs.IntVar(&opts.maxPackets, "max-packets", 0, "Stop after this many packets (0 is unlimited)")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "Show version information")
	fs.BoolVar(&opts.validate, "validate", false, "Validate configuration and exit")
	fs.BoolVar(&opts.serve, "serve", false, "Keep the web and metrics servers running after the scan")
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	return opts, fs, nil
}

// applyOverrides copies explicitly set flags over the loaded configuration
func applyOverrides(cfg *config.Config, opts options, fs *flag.FlagSet) {
	if fs.Changed("capture") {
		cfg.Capture.File = opts.captureFile
	}
	if fs.Changed("lap") {
		cfg.Baseband.LAP = opts.lap
	}
	if fs.Changed("uap") {
		cfg.Baseband.UAP = opts.uap
		cfg.Baseband.UAPKnown = true
	}
	if fs.Changed("clock") {
		cfg.Baseband.Clock = opts.clock
		cfg.Baseband.ClockKnown = true
	}
	if fs.Changed("max-packets") {
		cfg.Baseband.MaxPackets = opts.maxPackets
	}
}

// snifferConfig converts the baseband section. The configuration must
// already be validated.
func snifferConfig(b config.BasebandConfig) (sniffer.Config, error) {
	sc := sniffer.Config{
		UAP:        uint8(b.UAP),
		UAPKnown:   b.UAPKnown,
		Clock:      uint32(b.Clock),
		ClockKnown: b.ClockKnown,
		MaxPackets: b.MaxPackets,
	}
	if b.LAP != "" {
		lap, err := config.ParseLAP(b.LAP)
		if err != nil {
			return sc, err
		}
		sc.LAP = &lap
	}
	return sc, nil
}

func main() {
	opts, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("BTBB-Nexus %s (commit %s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}
	web.SetVersionInfo(version, commit, buildTime)

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, opts, fs)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if opts.validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	if err := run(cfg, opts.serve, log); err != nil {
		log.Error("btbb-nexus failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, serve bool, log *logger.Logger) error {
	log.Info("Starting BTBB-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sc, err := snifferConfig(cfg.Baseband)
	if err != nil {
		return err
	}

	// Storage
	var piconetRepo *database.PiconetRepository
	var packetRepo *database.PacketRepository
	var vendorRepo *database.VendorRepository
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
		piconetRepo = database.NewPiconetRepository(db.GetDB())
		packetRepo = database.NewPacketRepository(db.GetDB())
		vendorRepo = database.NewVendorRepository(db.GetDB())
	}

	// OUI registry
	if cfg.OUI.Enabled && vendorRepo != nil {
		syncer := oui.NewSyncer(oui.Config{
			URL:          cfg.OUI.URL,
			SyncInterval: cfg.OUI.SyncInterval,
		}, vendorRepo, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncer.Start(ctx)
		}()
	}

	tracker := piconet.NewTracker(piconet.Config{
		UAP:        sc.UAP,
		UAPKnown:   sc.UAPKnown,
		MaxGapBits: cfg.Baseband.StaleGapBits,
	}, piconetRepo, packetRepo, log)

	snif := sniffer.New(sc, log)
	snif.AddSink(tracker)

	// Metrics
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		tracker.SetGauge(collector)
		snif.AddSink(collector)

		if cfg.Metrics.Prometheus.Enabled {
			metricsServer := metrics.NewPrometheusServer(metrics.PrometheusConfig{
				Enabled: true,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			}, collector, log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
					log.Error("Prometheus metrics server error", logger.Error(err))
				}
			}()
		}
	}

	// MQTT
	if cfg.MQTT.Enabled {
		publisher := mqtt.New(mqtt.Config{
			Enabled:     cfg.MQTT.Enabled,
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			Retained:    cfg.MQTT.Retained,
		}, log.WithComponent("mqtt"))
		if err := publisher.Start(ctx); err != nil {
			// Scanning still works without the broker
			log.Warn("MQTT publisher unavailable", logger.Error(err))
		} else {
			defer publisher.Stop()
			snif.AddSink(publisher)
		}
	}

	// Web
	if cfg.Web.Enabled {
		deps := web.Dependencies{
			Piconets: piconetRepo,
			Packets:  packetRepo,
			Vendors:  vendorRepo,
			Tracker:  tracker,
		}
		if collector != nil {
			deps.Stats = collector
		}
		server := web.NewServer(cfg.Web, deps, log.WithComponent("web"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		snif.AddSink(server.GetHub())
	}

	// Servers stop before storage closes
	defer func() {
		cancel()
		wg.Wait()
	}()

	if cfg.Capture.File != "" {
		if err := scanFile(ctx, snif, cfg.Capture, log); err != nil {
			return err
		}
	} else {
		log.Warn("No capture file configured")
	}

	if !serve {
		return nil
	}

	log.Info("Scan complete, serving until interrupted")
	<-ctx.Done()
	log.Info("Shutting down")
	return nil
}

func scanFile(ctx context.Context, snif *sniffer.Sniffer, cc config.CaptureConfig, log *logger.Logger) error {
	start := time.Now()
	bits, err := capture.Load(cc.File, capture.Options{
		Format:      capture.Format(cc.Format),
		Compression: capture.Compression(cc.Compression),
	})
	if err != nil {
		return fmt.Errorf("failed to load capture: %w", err)
	}
	log.Info("Capture loaded",
		logger.String("file", cc.File),
		logger.Int("bits", len(bits)),
		logger.Duration("elapsed", time.Since(start)))

	result, err := snif.Scan(ctx, bits)
	if err != nil {
		return err
	}

	log.Info("Scan finished",
		logger.String("scan_id", result.ScanID.String()),
		logger.Int("packets", result.PacketCount()),
		logger.Int("headers_decoded", result.HeadersDecoded),
		logger.Int("hec_failures", result.HECFailures),
		logger.Int("laps", len(result.LAPs)),
		logger.Bool("truncated", result.Truncated))
	for lap, n := range result.LAPs {
		log.Info("Piconet",
			logger.Hex("lap", uint64(lap), 6),
			logger.Int("packets", n))
	}
	return nil
}
