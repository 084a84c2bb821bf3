// retroswiper - card-swipe game selector for arcade cabinets
//
// Installed as <root>/bin/retroswiper, it changes into <root>, indexes
// <root>/roms, starts a random game and then switches games whenever a card
// is swiped through the reader. It takes no flags; behaviour is configured
// through <root>/retroswiper.toml and RETROSWIPER_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"retroswiper/internal/config"
	"retroswiper/internal/emulator"
	"retroswiper/internal/inhibit"
	"retroswiper/internal/keystroke"
	"retroswiper/internal/library"
	"retroswiper/internal/logging"
	"retroswiper/internal/selector"
	"retroswiper/internal/session"
)

const appName = "retroswiper"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root, err := installRoot()
	if err != nil {
		return fmt.Errorf("locate install root: %w", err)
	}
	if err := os.Chdir(root); err != nil {
		return fmt.Errorf("enter install root: %w", err)
	}

	loader := config.NewLoader(config.Path(root))
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg, root)
	if err != nil {
		return err
	}
	defer logger.Close()
	logging.SetDefault(logger)
	logger.Info("starting", "root", root, "config", cfg.String())

	device, err := findReader(cfg)
	if errors.Is(err, keystroke.ErrDeviceNotFound) {
		fmt.Println("Card swiper not connected.")
		fmt.Println("The only model currently supported is MSR90")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("card reader found", "device", device)

	platforms := emulator.Platforms(cfg)
	idx, err := buildIndex(cfg, platforms, logger)
	if err != nil {
		return err
	}

	inhibitor := newInhibitor(cfg, logger)
	if c, ok := inhibitor.(interface{ Close() error }); ok {
		defer c.Close()
	}

	launcher := emulator.New(platforms, logger.WithComponent("emulator").Logger)
	sup, err := session.New(session.Config{
		Index:     idx,
		Selector:  selector.New(idx, cfg.SelectionRoot(), selector.NewClockSource()),
		Launcher:  session.Emulators(launcher),
		Reader:    session.Swipes(keystroke.NewReader(cfg.Reader.Helper, device)),
		Inhibitor: inhibitor,
		Grace:     cfg.TeardownGrace(),
		Logger:    logger.WithComponent("session").Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Kiosk.WatchConfig {
		watchConfig(ctx, loader, cfg.Library.Dir, sup, logger)
	}

	if err := sup.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// installRoot is the parent of the directory holding the executable.
// RETROSWIPER_ROOT overrides it.
func installRoot() (string, error) {
	if v := os.Getenv("RETROSWIPER_ROOT"); v != "" {
		return filepath.Abs(v)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(filepath.Dir(exe)), nil
}

func newLogger(cfg *config.Config, root string) (*logging.Logger, error) {
	logCfg, err := cfg.LoggerConfig(root)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	logCfg.Component = appName
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func findReader(cfg *config.Config) (string, error) {
	if cfg.Device.Path != "" {
		return cfg.Device.Path, nil
	}
	device, err := keystroke.Discover(cfg.Device.DescriptorPath, cfg.Device.Marker)
	if err != nil && !errors.Is(err, keystroke.ErrDeviceNotFound) {
		return "", fmt.Errorf("discover card reader: %w", err)
	}
	return device, err
}

func buildIndex(cfg *config.Config, platforms []emulator.Platform, logger *logging.Logger) (*library.Index, error) {
	log := logger.WithComponent("library")

	idx, err := library.Build(cfg.Library.Dir, emulator.Groups(platforms))
	if err != nil {
		return nil, fmt.Errorf("build library: %w", err)
	}
	for _, key := range idx.Keys() {
		if !idx.Playable(key) {
			log.Debug("entry will not be picked at random", "key", key)
		}
	}
	log.Info("library indexed", "entries", idx.Len(), "playable", len(idx.PlayableKeys()))
	return idx, nil
}

func newInhibitor(cfg *config.Config, logger *logging.Logger) session.Inhibitor {
	if !cfg.Kiosk.InhibitScreensaver {
		return inhibit.Noop{}
	}
	log := logger.WithComponent("inhibit")
	ss, err := inhibit.Connect(appName, log.Logger)
	if err != nil {
		log.Warn("screensaver inhibition unavailable", "error", err)
		return inhibit.Noop{}
	}
	return ss
}

// watchConfig applies platform table and log level changes while running.
// libraryDir is the directory the index was built from.
func watchConfig(ctx context.Context, loader *config.Loader, libraryDir string, sup *session.Supervisor, logger *logging.Logger) {
	log := logger.WithComponent("config")

	loader.OnChange(func(c *config.Config) {
		sup.SetPlatforms(reloadPlatforms(libraryDir, c, log))
		if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
			logger.SetLevel(level)
		}
		log.Info("configuration reloaded", "config", c.String())
	})

	if err := loader.Watch(); err != nil {
		log.Warn("config watch disabled", "error", err)
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				log.Error("config reload rejected", "error", err)
			}
		}
	}()
}

// reloadPlatforms builds the platform table from a reloaded config. The
// index is only built at startup, so platform directories stay anchored to
// libraryDir; a new library.dir takes effect after a restart.
func reloadPlatforms(libraryDir string, c *config.Config, log *logging.Logger) []emulator.Platform {
	if c.Library.Dir == libraryDir {
		return emulator.Platforms(c)
	}
	log.Warn("library.dir change ignored until restart", "current", libraryDir, "requested", c.Library.Dir)
	pinned := c.Clone()
	pinned.Library.Dir = libraryDir
	return emulator.Platforms(pinned)
}
