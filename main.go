package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"sharecrop/internal/analytics"
	"sharecrop/internal/api"
	"sharecrop/internal/auth"
	"sharecrop/internal/catalog"
	"sharecrop/internal/config"
	"sharecrop/internal/database"
	"sharecrop/internal/database/migrations"
	"sharecrop/internal/geocode"
	"sharecrop/internal/kafka"
	"sharecrop/internal/listing"
	"sharecrop/internal/logger"
	"sharecrop/internal/notify"
	"sharecrop/internal/order"
	"sharecrop/internal/purchase"
	purchaselock "sharecrop/internal/purchase/redis"
	"sharecrop/internal/rabbitmq"
	"sharecrop/internal/session"
	"sharecrop/internal/store"
	"sharecrop/internal/voucher"
)

// watchLockExpiry reports purchase locks that expired instead of being
// released, which means a purchase died half way.
func watchLockExpiry(ctx context.Context, rdb *redis.Client, log *logger.Logger) {
	if _, err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
		return
	}
	pubsub := rdb.PSubscribe(ctx, fmt.Sprintf("__keyevent@%d__:expired", rdb.Options().DB))
	log.Info("REDIS", "Subscribed to expired purchase lock events")

	go func() {
		defer pubsub.Close()
		for msg := range pubsub.Channel() {
			if listingID, ok := strings.CutPrefix(msg.Payload, purchaselock.KeyPrefix); ok {
				log.Warn("PURCHASE", fmt.Sprintf("Purchase lock for listing %s expired without release", listingID))
			}
		}
	}()
}

func openRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func openKV(ctx context.Context, cfg *config.Config, bunDB *bun.DB, rdb *redis.Client, log *logger.Logger) store.KV {
	if rdb != nil && cfg.Redis.UseForStore {
		log.Info("STORE", "Using redis for marketplace collections")
		return store.NewRedisKV(rdb)
	}

	kv := store.NewSQLKV(bunDB)
	if cfg.Database.Driver == "postgres" {
		if !cfg.Database.MigrationsRun {
			return kv
		}
		runner := migrations.NewRunner(bunDB, log)
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migration failed: %v", err))
		}
		return kv
	}
	if err := kv.CreateTable(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create kv table: %v", err))
	}
	return kv
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting sharecrop marketplace")
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = openRedis(ctx, cfg.Redis, log)
		defer rdb.Close()
		watchLockExpiry(ctx, rdb, log)
	}

	st := store.New(openKV(ctx, cfg, bunDB, rdb, log), log, cfg.Market.StartingCoins)

	var geoCache geocode.Cache = geocode.NewMemoryCache()
	if rdb != nil {
		geoCache = geocode.NewRedisCache(rdb, cfg.Redis.GeocodeTTL)
	}
	var geoClient *geocode.Client
	if cfg.Geocoder.AccessToken != "" {
		geoClient = geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.AccessToken, cfg.Geocoder.Timeout, geoCache, log)
	} else {
		log.Warn("GEOCODE", "MAPBOX_TOKEN not set, place names fall back to coordinates")
	}

	var provider catalog.Provider = catalog.NewEmbeddedProvider(cfg.Catalog.SimulateFailure, cfg.Catalog.Latency)
	if cfg.Catalog.URL != "" {
		provider = catalog.NewHTTPProvider(cfg.Catalog.URL, &http.Client{Timeout: 10 * time.Second})
		log.Info("CATALOG", fmt.Sprintf("Using remote catalog at %s", cfg.Catalog.URL))
	}

	var guard purchase.Guard = purchase.NewMemoryGuard()
	if rdb != nil {
		guard = purchaselock.NewRedis(rdb, cfg.Redis.LockTTL, log)
	}

	aggregator := listing.NewAggregator(provider, st, log)
	workflow := purchase.NewWorkflow(st, guard, aggregator, log, purchase.Settings{
		CoinValue:         int64(cfg.Market.CoinValue),
		RentalTermMonths:  cfg.Market.RentalTermMonths,
		HighlightDuration: cfg.Market.HighlightDuration,
	})
	defer workflow.Highlighter.Stop()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, kafka.TopicNames(cfg.Kafka.Topics), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		workflow.Events = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	var queue notify.QueuePublisher
	if cfg.RabbitMQ.Enabled {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ)
		if err != nil {
			log.Fatal("RABBITMQ", fmt.Sprintf("Failed to connect: %v", err))
		}
		defer publisher.Close()
		queue = publisher
		log.Info("RABBITMQ", fmt.Sprintf("Publishing notifications to queue %s", cfg.RabbitMQ.Queue))
	}

	var sink *analytics.Sink
	if cfg.ClickHouse.Enabled {
		sink, err = analytics.NewSink(cfg.ClickHouse)
		if err != nil {
			log.Fatal("CLICKHOUSE", fmt.Sprintf("Failed to connect: %v", err))
		}
		defer sink.Close()
		if err := sink.EnsureSchema(ctx); err != nil {
			log.Fatal("CLICKHOUSE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		// with kafka enabled the analytics worker records purchases instead
		if producer == nil {
			workflow.Analytics = sink
		}
	}

	hub := notify.NewHub()
	dispatcher := notify.NewDispatcher(hub, queue, log)
	workflow.Notifier = dispatcher

	var orderEvents order.KafkaPublisher
	if producer != nil {
		orderEvents = producer
	}
	orders := order.NewOrderService(st, orderEvents, dispatcher, log)

	var listingGeocoder listing.Geocoder
	var sessionGeocoder session.Geocoder
	var apiGeocoder api.Geocoder
	if geoClient != nil {
		listingGeocoder, sessionGeocoder, apiGeocoder = geoClient, geoClient, geoClient
	}

	handler := &api.Handler{
		Store:         st,
		Listings:      aggregator,
		Authoring:     listing.NewAuthoring(st, listingGeocoder, log),
		Purchases:     workflow,
		Orders:        orders,
		Notifications: notify.NewService(st),
		Hub:           hub,
		Sessions:      session.NewRegistry(sessionGeocoder, workflow, log, cfg.Market.PopupWidth, cfg.Market.PopupHeight),
		Vouchers:      voucher.NewGenerator(cfg.Auth.VoucherSecret),
		VoucherPDF:    voucher.NewPDFRenderer(cfg.Auth.VoucherFont),
		Geocoder:      apiGeocoder,
		Logger:        log,
		PopupWidth:    cfg.Market.PopupWidth,
		PopupHeight:   cfg.Market.PopupHeight,
	}
	if sink != nil {
		handler.Analytics = sink
	}

	var verifier auth.Verifier = auth.NewHMACVerifier(cfg.Auth.JWTSecret)
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("Failed to discover OIDC issuer: %v", err))
		}
		verifier = oidcVerifier
		log.Info("AUTH", fmt.Sprintf("Verifying tokens issued by %s", cfg.Auth.OIDCIssuer))
	} else {
		log.Warn("AUTH", "OIDC_ISSUER not set, accepting HS256 tokens signed with JWT_SECRET")
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(verifier),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Sharecrop running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		os.Exit(1)
	}
	log.Info("HTTP", "✅ Sharecrop shutdown complete")
}
