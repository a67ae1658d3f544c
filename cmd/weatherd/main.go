package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/weatherstation/internal/client"
	"github.com/afroash/weatherstation/internal/config"
	"github.com/afroash/weatherstation/internal/models"
	"github.com/afroash/weatherstation/internal/sensor"
	"github.com/afroash/weatherstation/internal/server"
	"github.com/afroash/weatherstation/internal/storage"
	"github.com/afroash/weatherstation/internal/weather"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "configs/station.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single wake cycle, upload if due, and exit")
	rainWake := flag.Bool("rain-wake", false, "the rain gauge interrupt woke the station; record a tip first")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	logger.Info().
		Str("version", version).
		Str("station_id", cfg.Station.ID).
		Str("timezone", cfg.Station.Timezone).
		Bool("once", *once).
		Msg("Starting weather station")
	logger.Debug().Str("config", cfg.String()).Msg("Loaded configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, *rainWake, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Station stopped with error")
	}
	logger.Info().Msg("Station stopped")
}

// app is the wired station. uploader, cache and pruner are nil when uploads
// are disabled or the cache is in memory.
type app struct {
	cfg      *config.Config
	info     *models.StationInfo
	store    storage.RecordStore
	hw       *hardware
	station  *weather.Station
	reader   *sensor.Reader
	uploader *client.Uploader
	cache    *storage.SQLiteStore
	pruner   *storage.Pruner
	status   *server.Server
	closers  []io.Closer
	logger   zerolog.Logger
}

func run(ctx context.Context, cfg *config.Config, once, rainWake bool, logger zerolog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.reader.ReadOnce(rainWake)
	if err != nil {
		if once {
			return fmt.Errorf("wake cycle failed: %w", err)
		}
		logger.Error().Err(err).Msg("Initial wake cycle failed")
	} else {
		a.handleSnapshot(ctx, snap)
	}

	if once {
		a.finishOnce(ctx)
		return nil
	}
	return a.serve(ctx)
}

// finishOnce is the tail of a single-shot run: the cache gets its one
// pruning pass and a memory queue is flushed before the process exits.
func (a *app) finishOnce(ctx context.Context) {
	if a.pruner != nil {
		a.pruner.RunOnce()
	}
	// A memory queue does not outlive the process
	if a.uploader != nil && a.cache == nil {
		if _, err := a.uploader.Flush(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Upload failed, snapshot dropped")
		}
	}
}

func newApp(cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{
		cfg:    cfg,
		info:   models.NewStationInfo(cfg.Station.ID, cfg.Station.Nickname, cfg.Station.Timezone, version),
		logger: logger,
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if err := a.openStorage(); err != nil {
		return a, err
	}

	hw, err := openHardware(cfg.Hardware, logger.With().Str("component", "hardware").Logger())
	if err != nil {
		return a, fmt.Errorf("failed to open hardware: %w", err)
	}
	a.hw = hw
	a.closers = append(a.closers, hw)

	a.station = weather.NewStation(a.store, weather.SystemClock{}, hw.speed, hw.vane, weather.StationConfig{
		Constants:          cfg.Constants(),
		Location:           cfg.Location(),
		DirectionOffset:    cfg.Station.WindDirectionOffset,
		SeaLevelPressure:   cfg.Station.SeaLevelPressure,
		Altitude:           cfg.Station.HeightAboveSeaLevel,
		USBTemperatureTrim: cfg.USBTemperatureTrim(),
		SampleWindow:       cfg.Station.WindSampleWindow,
	}, logger.With().Str("component", "station").Logger())

	a.reader = sensor.NewReader(a.station, sensor.ReaderConfig{
		Environment: hw.env,
		Light:       hw.light,
		USBPower:    hw.usbPower,
		RainLine:    hw.rain,
		Interval:    cfg.Station.ReadingInterval,
	}, logger.With().Str("component", "reader").Logger())

	if err := a.openUploader(); err != nil {
		return a, err
	}

	if cfg.Server.Enabled {
		a.status = server.New(server.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			AuthToken:      cfg.Server.AuthToken,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			HistorySize:    cfg.Server.HistorySize,
		}, a.station, a.info, logger.With().Str("component", "server").Logger())
		a.registerStats()
	}

	return a, nil
}

// openStorage opens the daily record store and, when configured, the
// SQLite upload cache.
func (a *app) openStorage() error {
	logger := a.logger.With().Str("component", "storage").Logger()
	cfg := a.cfg.Storage

	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err := storage.NewSQLiteStore(cfg.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		a.store = db
		a.closers = append(a.closers, db)
		if cfg.UploadCachePath == "" {
			a.cache = db
		}
	default:
		fs, err := storage.NewFileStore(cfg.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open record store: %w", err)
		}
		a.store = fs
		a.closers = append(a.closers, fs)
	}

	if cfg.UploadCachePath != "" && a.cfg.Upload.Destination != config.DestinationNone {
		if err := os.MkdirAll(filepath.Dir(cfg.UploadCachePath), 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		cache, err := storage.NewSQLiteStore(cfg.UploadCachePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open upload cache: %w", err)
		}
		a.cache = cache
		a.closers = append(a.closers, cache)
	}
	return nil
}

// openUploader builds the publisher for the configured destination.
func (a *app) openUploader() error {
	cfg := a.cfg.Upload
	logger := a.logger.With().Str("component", "uploader").Logger()

	var publisher client.Publisher
	switch cfg.Destination {
	case config.DestinationWebSocket:
		publisher = client.NewWebSocketPublisher(client.WebSocketConfig{
			URL:       cfg.URL,
			AuthToken: cfg.AuthToken,
			Timeout:   cfg.Timeout,
		}, logger)
	case config.DestinationMQTT:
		publisher = client.NewMQTTPublisher(client.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    a.cfg.Station.ID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Timeout:     cfg.Timeout,
		}, logger)
	default:
		logger.Info().Msg("Uploads disabled")
		return nil
	}

	var queue client.Queue
	if a.cache != nil {
		queue = a.cache
		a.pruner = storage.NewPruner(a.cache, storage.PrunerConfig{
			MaxAge: a.cfg.Storage.CacheMaxAge,
			Period: time.Hour,
		}, a.logger.With().Str("component", "pruner").Logger())
	} else {
		queue = client.NewMemoryQueue(cfg.QueueSize, true)
	}

	a.uploader = client.NewUploader(queue, publisher, a.info, client.UploaderConfig{
		Frequency: cfg.UploadFrequency,
	}, logger)
	return nil
}

// registerStats exposes component stats on the status API.
func (a *app) registerStats() {
	api := a.status.API()
	api.AddStats("rain", func() (any, error) {
		return a.station.PendingRain()
	})
	if a.uploader != nil {
		api.AddStats("uploader", func() (any, error) {
			return a.uploader.Stats(), nil
		})
	}
	if a.pruner != nil {
		api.AddStats("pruner", func() (any, error) {
			return a.pruner.Stats(), nil
		})
	}
	if db, ok := a.store.(*storage.SQLiteStore); ok {
		api.AddStats("storage", func() (any, error) {
			return db.GetStorageStats()
		})
	}
}

// handleSnapshot hands a finished cycle to the uploader and status server.
func (a *app) handleSnapshot(ctx context.Context, snap models.Snapshot) {
	a.logger.Info().Str("snapshot", snap.String()).Msg("Wake cycle complete")

	if a.uploader != nil {
		if err := a.uploader.Submit(ctx, snap); err != nil {
			a.logger.Error().Err(err).Msg("Failed to cache snapshot")
		}
	}
	if a.status != nil {
		a.status.Publish(models.NewSnapshotMessage(a.info, snap))
	}
}

// serve runs the reader, pruner and status server until ctx is cancelled.
func (a *app) serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.reader.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("reader: %w", err)
		}
	}()

	if a.pruner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.pruner.Run(ctx)
		}()
	}

	if a.status != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.status.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	logger := a.logger
	logger.Info().Dur("interval", a.cfg.Station.ReadingInterval).Msg("Station running")

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			runErr = err
			break loop
		case snap := <-a.reader.Snapshots():
			a.handleSnapshot(ctx, snap)
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Component failed, shutting down")
	}
	cancel()
	wg.Wait()

	// ctx is done by now, so the final flush gets its own deadline
	if a.uploader != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Upload.Timeout)
		if n, err := a.uploader.Flush(flushCtx); err != nil {
			logger.Warn().Err(err).Int("sent", n).Msg("Final upload failed, snapshots stay cached")
		} else if n > 0 {
			logger.Info().Int("sent", n).Msg("Flushed cached snapshots")
		}
		cancel()
	}

	return runErr
}

// Close releases storage and hardware in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Msg("Errors while closing")
		return err
	}
	return nil
}
