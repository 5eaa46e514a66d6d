// cmd/inventory-service/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"swiftcart/internal/pkg/config"
	"swiftcart/internal/pkg/logger"
	"swiftcart/internal/pkg/mq"
	"swiftcart/internal/pkg/tracing"
	"swiftcart/internal/service/inventory/application"
	"swiftcart/internal/service/inventory/infrastructure"
	"swiftcart/internal/service/inventory/infrastructure/adapter"
	"swiftcart/internal/service/inventory/interfaces"
)

// main 是应用的"组装根" (Composition Root)：
// 创建并组装所有依赖项，然后启动消费者、发布器和 HTTP 面。
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.ServiceName)
	log := &logger.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracer
	tp, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	tracer := otel.Tracer(cfg.ServiceName)

	// MySQL
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	store := infrastructure.NewGormInventoryStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	log.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("connected to redis")

	stockStore := adapter.NewStockRedisAdapter(rdb)
	idemMarker := adapter.NewIdempotencyRedisAdapter(rdb, cfg.Idempotency.TTL)

	// 用账本预热缓存计数器：缓存允许落后，账本永远是事实
	warmStockCounters(ctx, store, stockStore)

	// Kafka
	orderReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID)
	dltReader := mq.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, cfg.Kafka.GroupID+"-dlt")
	inventoryWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.InventoryTopic)
	dltWriter := mq.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic)

	// 应用服务
	guard := application.NewIdempotencyGuard(idemMarker, store)
	engine := application.NewReservationEngine(stockStore, cfg.Redis.OpTimeout)
	appSvc := application.NewInventoryApplicationService(store, guard, engine, tracer, cfg.Processing.Timeout)

	// 适配器
	consumer := interfaces.NewOrderConsumerAdapter(orderReader, appSvc, mq.NewFailureHandler(dltWriter))
	dltConsumer := interfaces.NewDltConsumerAdapter(dltReader)
	publisher := infrastructure.NewOutboxPublisher(store,
		adapter.NewInventoryKafkaAdapter(inventoryWriter),
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	consumer.Start(ctx)
	dltConsumer.Start(ctx)
	publisher.Start(ctx)

	// HTTP 面：健康检查 + 指标
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.HTTPPort), Handler: mux}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msgf("%s listening", cfg.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		consumer.Stop(shutdownCtx)
		dltConsumer.Stop(shutdownCtx)
		publisher.Stop()
		inventoryWriter.Close()
		dltWriter.Close()

		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
	log.Info().Msg("Service gracefully shut down.")
}

// warmStockCounters 把权威库存写入缓存计数器。
// 失败只告警：运行期的兜底和再同步会逐步纠正缓存。
func warmStockCounters(ctx context.Context, store *infrastructure.GormInventoryStore, stock *adapter.StockRedisAdapter) {
	records, err := store.ListInventory(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Failed to list inventory for cache warmup")
		return
	}
	for _, rec := range records {
		if err := stock.SetStock(ctx, rec.ProductID, rec.Quantity); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", rec.ProductID).
				Msg("Failed to warm stock counter")
		}
	}
	logger.Ctx(ctx).Info().Int("products", len(records)).Msg("Stock counters warmed from ledger")
}
