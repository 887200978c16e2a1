package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/api"
	"github.com/nerrad567/gray-logic-installer/internal/hardware"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/mqtt"
)

// healthCheckTimeout bounds the startup health checks.
const healthCheckTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve wires every component and blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	log.Info("starting installer console",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	provider, db, err := openProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	cache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeCache(); closeErr != nil {
			log.Error("error closing cache", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := allocator.NewPrometheusRecorder(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	svc, err := allocator.NewService(allocator.Options{
		Provider: provider,
		Cache:    cache,
		Recorder: recorder,
		Logger:   log.Component("allocator"),

		FetchTimeout: cfg.SnapshotTimeout(),
		Notifier: allocator.NotifierFunc(func(_ context.Context, n allocator.Notice) {
			hub.PublishNotice(n)
		}),
		OnScan: occupancyWriter(influxClient, cfg.Site.ID),
		OnInvalidate: func(_ context.Context, key allocator.Key) {
			hub.PublishPlacementChanged(api.PlacementChanged{
				CentralID: key.CentralID,
				Direction: key.Direction,
				Reason:    api.ReasonRefreshed,
			})
		},
	})
	if err != nil {
		return fmt.Errorf("creating allocator: %w", err)
	}

	// Connect to MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		var stop func()
		mqttClient, stop, err = startCommitListener(cfg, log, svc, recorder, hub)
		if err != nil {
			return err
		}
		defer stop()
	} else {
		log.Info("MQTT disabled, cache relies on TTL and manual invalidation")
	}

	srv, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.Component("api"),
		Allocator:   svc,
		Gatherer:    reg,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	if cfg.Security.JWT.Secret == "" {
		log.Warn("authentication disabled, set security.jwt.secret to require tokens")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed", "addr", srv.Addr().String())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startCommitListener connects to the broker and invalidates snapshots on
// every commit announcement. stop unsubscribes and disconnects.
func startCommitListener(
	cfg *config.Config,
	log *logging.Logger,
	svc *allocator.Service,
	recorder *allocator.PrometheusRecorder,
	hub *api.Hub,
) (*mqtt.Client, func(), error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected", "restored", client.Subscriptions())
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", client.ClientID(),
	)

	listener, err := allocator.NewCommitListener(allocator.CommitListenerOptions{
		Service:    svc,
		Subscriber: client,
		Topic:      mqtt.Topics{}.AllCentralPlacementCommits(),
		QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // validated 0..2
		Logger:     log.Component("commits"),
		OnCommit: func(ev allocator.CommitEvent) {
			recorder.ObserveCommit(ev.Direction)
			hub.PublishPlacementChanged(api.PlacementChangedFromCommit(ev))
		},
	})
	if err == nil {
		err = listener.Start()
	}
	if err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting commit listener: %w", err)
	}

	stop := func() {
		if stopErr := listener.Stop(); stopErr != nil {
			log.Error("error stopping commit listener", "error", stopErr)
		}
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}
	return client, stop, nil
}

// occupancyWriter records every scanned port in InfluxDB. A nil client
// disables the hook.
func occupancyWriter(client *influxdb.Client, siteID string) func(context.Context, string, hardware.Direction, []allocator.PortAvailability) {
	if client == nil {
		return nil
	}
	return func(_ context.Context, centralID string, dir hardware.Direction, ports []allocator.PortAvailability) {
		for _, p := range ports {
			client.WritePortOccupancy(portOccupancy(siteID, centralID, dir, p))
		}
	}
}

func portOccupancy(siteID, centralID string, dir hardware.Direction, p allocator.PortAvailability) influxdb.PortOccupancy {
	return influxdb.PortOccupancy{
		SiteID:        siteID,
		CentralID:     centralID,
		Direction:     string(dir),
		Port:          p.Port,
		KeysLimit:     p.KeysLimit,
		KeysAvailable: p.KeysAvailable,
		SlotsOccupied: len(p.SequenceOccupied),
		Available:     p.Available,
		Malformed:     p.Malformed,
	}
}

// healthCheck verifies every started component. Nil components are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var errs []error
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	if srv != nil {
		if err := srv.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api: %w", err))
		}
	}
	return errors.Join(errs...)
}
