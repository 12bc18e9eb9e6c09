package main

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/abandoned-explorer/internal/broadcast"
	"github.com/mr1hm/abandoned-explorer/internal/config"
	"github.com/mr1hm/abandoned-explorer/internal/geocode"
	"github.com/mr1hm/abandoned-explorer/internal/ingestion"
	"github.com/mr1hm/abandoned-explorer/internal/metrics"
	"github.com/mr1hm/abandoned-explorer/internal/overpass"
	"github.com/mr1hm/abandoned-explorer/internal/publish"
	"github.com/mr1hm/abandoned-explorer/internal/ratelimit"
	"github.com/mr1hm/abandoned-explorer/internal/regions"
	"github.com/mr1hm/abandoned-explorer/internal/repository"
)

// app holds everything a command needs, built from config.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	store       *repository.Store
	catalog     *regions.Catalog
	broadcaster *broadcast.Broadcaster
	publisher   *publish.KafkaWriter
	manager     *ingestion.Manager
}

type appOptions struct {
	// stream enables the broadcaster for the SSE endpoint.
	stream bool
}

func newApp(cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	clock := clockwork.NewRealClock()
	m := metrics.NewMetrics()

	store, err := repository.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	catalog, err := regions.Load(cfg.Scraper.RegionsFile)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   store,
		catalog: catalog,
	}

	nominatim := geocode.NewClient(cfg.Geocode.URL, cfg.Scraper.UserAgent, cfg.Geocode.Timeout, m, logger)
	geocoder := geocode.NewCachedGeocoder(nominatim, cfg.Geocode.CacheSize, m)

	var addresses ingestion.AddressResolver = ingestion.FastAddresses{}
	if cfg.Geocode.Mode == config.GeocodeAccurate {
		addresses = ingestion.NewReverseAddresses(
			geocoder,
			ratelimit.NewScheduler(clock, cfg.Geocode.ReverseDelay),
			cfg.Geocode.ReverseTimeout,
			logger,
		)
	}

	deps := ingestion.Deps{
		Builder:    overpass.NewBuilder(geocode.NewPlaceResolver(geocoder, geocode.DefaultPlaceOffset, cfg.Geocode.Timeout), logger),
		Source:     overpass.NewClient(cfg.Overpass.URL, cfg.Scraper.UserAgent, cfg.Overpass.Timeout, clock, m, logger),
		Normalizer: ingestion.NewNormalizer(addresses, clock, m, logger),
		Repo:       store,
		Catalog:    catalog,
		Clock:      clock,
		Metrics:    m,
		Logger:     logger,
	}

	if opts.stream {
		a.broadcaster = broadcast.NewBroadcaster(cfg.Worker.BufferSize, m)
		deps.Broadcaster = a.broadcaster
	}
	if cfg.Kafka.Enabled() {
		a.publisher = publish.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		deps.Publisher = a.publisher
	}

	a.manager = ingestion.NewManager(ingestion.OptionsFromConfig(cfg), deps)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("error closing kafka writer", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}
