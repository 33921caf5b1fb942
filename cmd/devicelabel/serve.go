package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicelabel-core/internal/api"
	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/database"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/logging"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/redis"
	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
	"github.com/nerrad567/devicelabel-core/internal/telemetry"
)

// syncQueueSize bounds pending MQTT sync requests; extra requests are dropped.
const syncQueueSize = 16

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

The database is migrated and the system template seeded on start. MQTT,
InfluxDB and the Redis cache are connected when enabled in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// runServe wires the service and blocks until ctx is cancelled.
// Deferred Close() calls run in reverse order of connection.
func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	log.Info("starting devicelabel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	catalogRepo := catalog.NewSQLiteRepository(a.db.DB)
	if seeded, seedErr := catalog.SeedSystem(ctx, catalogRepo); seedErr != nil {
		return fmt.Errorf("seeding system template: %w", seedErr)
	} else if seeded {
		log.Info("system template seeded")
	}

	cache, redisClient, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", "error", closeErr)
			}
		}()
	}

	// MQTT (optional): match events, inventory events, sync requests
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", cfg.MQTT.Broker.Addr(),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional): resolution metrics
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			queued, failed := influxClient.Stats()
			log.Info("closing InfluxDB connection", "points_queued", queued, "failed_batches", failed)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Component("influxdb").Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var observers []matching.Observer
	if influxClient != nil {
		observers = append(observers, telemetry.NewInfluxObserver(influxClient))
	}
	if mqttClient != nil {
		matchEvents := telemetry.NewMQTTObserver(mqttClient, byte(cfg.MQTT.QoS), telemetry.DefaultQueueSize)
		matchEvents.SetLogger(log.Component("telemetry"))
		defer matchEvents.Close()
		observers = append(observers, matchEvents)
	}

	var resolverOpts []matching.Option
	if len(observers) > 0 {
		resolverOpts = append(resolverOpts, matching.WithObserver(telemetry.NewFanout(observers...)))
	}
	resolver := matching.NewResolver(catalogRepo, cache, resolverOpts...)
	resolver.SetLogger(log.Component("resolver"))

	auditRepo := audit.NewSQLiteRepository(a.db.DB)
	inventoryRepo := inventory.NewSQLiteRepository(a.db.DB)

	merakiClient := meraki.NewClient(cfg.Meraki)
	merakiClient.SetLogger(log.Component("meraki"))

	syncer := inventory.NewSyncer(inventoryRepo, merakiClient)
	syncer.SetLogger(log.Component("inventory"))
	syncer.SetAudit(auditRepo, audit.SourceAPI)
	if mqttClient != nil {
		syncer.SetPublisher(mqttClient)
		busSyncer := inventory.NewSyncer(inventoryRepo, merakiClient)
		busSyncer.SetLogger(log.Component("inventory"))
		busSyncer.SetAudit(auditRepo, audit.SourceBus)
		busSyncer.SetPublisher(mqttClient)
		if subErr := subscribeSyncRequests(ctx, mqttClient, busSyncer, log.Component("mqtt")); subErr != nil {
			log.Warn("failed to subscribe to sync requests", "error", subErr)
		}
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Export:    cfg.Export,
		Logger:    log,
		Catalog:   catalogRepo,
		Inventory: inventoryRepo,
		Resolver:  resolver,
		Syncer:    syncer,
		Audit:     auditRepo,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, a.db, mqttClient, influxClient, redisClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"address", cfg.API.Addr(),
		"cache_backend", cfg.Cache.Backend,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// buildCache returns the configured match cache. For the memory backend the
// sweeper runs until ctx is cancelled; for Redis the client is returned so
// the caller can close it.
func buildCache(ctx context.Context, cfg *config.Config, log *logging.Logger) (matching.Cache, *redis.Client, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		cache := matching.NewRedisCache(client.Cmdable(), cfg.Cache.KeyPrefix, cfg.Cache.TTL())
		cache.SetLogger(log.Component("cache"))
		log.Info("match cache: redis", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL())
		return cache, client, nil

	default:
		cache := matching.NewMemoryCache(cfg.Cache.TTL(), matching.WithShards(cfg.Cache.Shards))
		go cache.Run(ctx, cfg.Cache.SweepInterval())
		log.Info("match cache: memory", "ttl", cfg.Cache.TTL(), "shards", cfg.Cache.Shards)
		return cache, nil, nil
	}
}

// connectionSyncer is the part of inventory.Syncer the sync-request worker uses.
type connectionSyncer interface {
	Sync(ctx context.Context, connectionID string) (inventory.SyncResult, error)
}

// subscriber is the part of mqtt.Client used for sync requests.
type subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// subscribeSyncRequests syncs a connection whenever a message arrives on
// devicelabel/inventory/{id}/sync. Requests are handled one at a time by a
// worker that stops with ctx.
func subscribeSyncRequests(ctx context.Context, sub subscriber, syncer connectionSyncer, log *logging.Logger) error {
	queue := make(chan string, syncQueueSize)

	handler := func(topic string, _ []byte) error {
		id, ok := mqtt.ConnectionFromSyncRequest(topic)
		if !ok {
			return fmt.Errorf("unexpected sync request topic %q", topic)
		}
		select {
		case queue <- id:
			return nil
		default:
			return fmt.Errorf("sync queue full, dropping request for %s", id)
		}
	}

	if err := sub.Subscribe(mqtt.Topics{}.AllSyncRequests(), 1, handler); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-queue:
				if _, err := syncer.Sync(ctx, id); err != nil {
					log.Warn("requested sync failed", "connection_id", id, "error", err)
				}
			}
		}
	}()
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Disabled components are passed as nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, redisClient *redis.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
