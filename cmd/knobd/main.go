package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"knobd/internal/haptic"
	"knobd/internal/mqttbus"
	"knobd/internal/rotary"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("knobd v%s\n", version)
	fmt.Println("Rotary knob controller daemon: screens, MQTT feeds and haptic feedback")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  knobd [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Flags override values from the config file.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  knobd -config /etc/knobd/config.yaml")
	fmt.Println("  knobd -encoder-backend virtual -mqtt-broker tcp://localhost:1883 -log-level debug")
	fmt.Println()
}

func main() {
	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		encoderBackend = flag.String("encoder-backend", "", "Encoder backend: gpiocdev|virtual")
		gpioChip       = flag.String("gpio-chip", "", "GPIO character device (e.g. gpiochip0)")
		invertDir      = flag.Bool("invert", false, "Invert encoder direction")
		mqttBroker     = flag.String("mqtt-broker", "", "MQTT broker URL (e.g. tcp://192.168.1.2:1883); empty disables MQTT")
		mqttEnabled    = flag.Bool("mqtt", false, "Enable MQTT")
		hapticEnabled  = flag.Bool("haptic", false, "Probe the DRV2605 haptic driver")
		hapticBus      = flag.String("haptic-bus", "", "I2C bus name for the haptic driver (e.g. 1)")
		ipcSocket      = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpPort       = flag.Int("http-port", 0, "HTTP port for /ws/state and /healthz (0 disables)")
		statePath      = flag.String("state-path", "", "Settings file path")
		logLevelStr    = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		fileCfg, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}

	// Only flags given on the command line override the file.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var ov FlagOverrides
	if set["encoder-backend"] {
		ov.EncoderBackend = encoderBackend
	}
	if set["gpio-chip"] {
		ov.GPIOChip = gpioChip
	}
	if set["invert"] {
		ov.InvertDir = invertDir
	}
	if set["mqtt-broker"] {
		ov.MQTTBroker = mqttBroker
	}
	if set["mqtt"] {
		ov.MQTTEnabled = mqttEnabled
	}
	if set["haptic"] {
		ov.HapticEnabled = hapticEnabled
	}
	if set["haptic-bus"] {
		ov.HapticBus = hapticBus
	}
	if set["ipc-socket"] {
		ov.IPCSocketPath = ipcSocket
	}
	if set["http-port"] {
		ov.HTTPPort = httpPort
	}
	if set["state-path"] {
		ov.StatePath = statePath
	}
	if set["log-level"] {
		ov.LogLevel = logLevelStr
	}
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("knobd exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 128)

	// Settings
	store := newFileSettingsStore(cfg.State.Path)
	settings, found, err := store.Load()
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "error", err)
	}
	logger.Info("settings loaded", "path", store.Path(), "found", found,
		"brightness", settings.Brightness, "haptic", settings.HapticEnabled)

	// Haptics
	var drv haptic.Driver
	if cfg.Haptic.Enabled {
		d, err := haptic.Open(cfg.Haptic.Bus)
		if err != nil {
			logger.Warn("haptic driver unavailable, continuing without haptics", "bus", cfg.Haptic.Bus, "error", err)
		} else {
			defer d.Close()
			drv = d
		}
	}
	player := haptic.NewPlayer(drv, logger)
	player.SetEnabled(settings.HapticEnabled)
	if err := player.SetIntensity(cfg.Haptic.Intensity); err != nil {
		logger.Warn("set haptic intensity failed", "error", err)
	}

	fx := &Effects{
		Haptics:  player,
		Settings: store,
		System:   newHostSystem(cfg.System.RebootCommand, logger),
	}

	// MQTT
	var mqttMgr *mqttbus.Manager
	if cfg.MQTT.Enabled {
		opts, err := cfg.ToMQTTOptions()
		if err != nil {
			return err
		}
		opts.OnConnectionChange = func(connected bool) {
			select {
			case events <- MQTTConnectionChanged{Connected: connected, At: time.Now()}:
			default:
				logger.Warn("event queue full, dropping mqtt connection change", "connected", connected)
			}
		}
		router := mqttbus.NewRouter(logger)
		registerFeeds(router, events, logger)

		mqttMgr, err = mqttbus.NewManager(opts, router, logger)
		if err != nil {
			return err
		}
		for _, t := range cfg.MQTT.ExtraTopics {
			if err := mqttMgr.AddTopic(t); err != nil {
				return fmt.Errorf("mqtt.extra_topics: %w", err)
			}
		}
		fx.Publisher = mqttMgr
	}

	// Encoder
	rcfg := cfg.ToRotaryConfig()
	src, err := openEncoderSource(cfg, rcfg, logger)
	if err != nil {
		return err
	}
	enc, err := rotary.New(rcfg, src)
	if err != nil {
		src.Close()
		return err
	}
	if err := src.Attach(enc); err != nil {
		src.Close()
		return err
	}
	dispatcher, err := rotary.NewDispatcher(enc.Queue(), func(ev rotary.Event) {
		select {
		case events <- RotaryInput{Input: ev}:
		default:
			logger.Warn("event queue full, dropping knob input", "input", ev.String())
		}
	}, logger, rotary.WithPollInterval(time.Duration(cfg.Encoder.PollIntervalMS)*time.Millisecond))
	if err != nil {
		src.Close()
		return err
	}

	start, _ := parseScreen(cfg.UI.StartScreen)
	state := NewDaemonState(start, settings, time.Now())

	wsServer := NewServer(logger, events, ServerConfig{})

	logger.Info("knobd starting",
		"version", version,
		"encoder", cfg.Encoder.Backend,
		"mqtt", cfg.MQTT.Enabled,
		"haptic", player.Available(),
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	g, gctx := errgroup.WithContext(ctx)

	// The source stops delivering edges before the dispatcher stops draining.
	dctx, dcancel := context.WithCancel(context.Background())
	defer dcancel()
	g.Go(func() error {
		<-gctx.Done()
		return stopEncoder(src, enc, dcancel, logger)
	})
	g.Go(func() error { return dispatcher.Run(dctx) })

	g.Go(func() error {
		runDaemon(gctx, events, fx, cfg.ToReducerConfig(), state, cfg.UI.TickHz, broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		wsServer.Hub().Run(gctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(gctx, wsServer.Hub(), broadcasts, logger)
		return nil
	})
	g.Go(func() error { return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger) })
	if cfg.HTTP.Port > 0 {
		g.Go(func() error { return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPRouter(wsServer, events, logger), logger) })
	}
	if mqttMgr != nil {
		g.Go(func() error { return mqttMgr.Run(gctx) })
	}

	events <- PlayHaptic{Pattern: haptic.Startup.String()}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("knobd stopped")
	return err
}

// stopEncoder closes src and only then cancels the dispatcher, so no edge
// lands in the queue after draining has stopped.
func stopEncoder(src rotary.Source, enc *rotary.Encoder, cancel context.CancelFunc, logger *slog.Logger) error {
	err := src.Close()
	cancel()
	st := enc.Stats()
	logger.Info("encoder stopped", "accepted", st.Accepted, "rejected", st.Rejected, "noise", st.Noise, "dropped", st.Dropped)
	return err
}

// openEncoderSource opens the configured edge source.
func openEncoderSource(cfg Config, rcfg rotary.Config, logger *slog.Logger) (rotary.Source, error) {
	switch cfg.Encoder.Backend {
	case "virtual":
		logger.Info("using virtual encoder; knob input arrives over IPC only")
		return rotary.NewVirtualPins(rcfg), nil
	default:
		src, err := rotary.OpenCdev(cfg.Encoder.Chip, rcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open encoder: %w", err)
		}
		return src, nil
	}
}
