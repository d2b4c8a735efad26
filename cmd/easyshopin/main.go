package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pranjal1404/easyshopin/internal/cart"
	"github.com/pranjal1404/easyshopin/internal/catalog"
	"github.com/pranjal1404/easyshopin/internal/checkout"
	"github.com/pranjal1404/easyshopin/internal/gateway"
	"github.com/pranjal1404/easyshopin/internal/order"
	"github.com/pranjal1404/easyshopin/internal/payment"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI     string
	MongoDB      string
	RedisAddr    string
	CartCacheTTL time.Duration
	KafkaAddrs   []string

	PostgresHost          string
	PostgresPort          int
	PostgresUser          string
	PostgresPassword      string
	PostgresDB            string
	OrdersMigrationsPath  string
	CatalogDBPath         string
	CatalogMigrationsPath string

	PaymentProvider string
	StripeAPIKey    string
	Currency        string

	ShippingFlat     decimal.Decimal
	FreeShippingOver decimal.Decimal
	TaxRate          decimal.Decimal
}

func loadConfig() *Config {
	kafkaAddrs := []string(nil)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		kafkaAddrs = strings.Split(v, ",")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:     getEnv("MONGO_URI", ""),
		MongoDB:      getEnv("MONGO_DB", "easyshopin"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		CartCacheTTL: time.Duration(getEnvInt("CART_CACHE_TTL_MINUTES", 15)) * time.Minute,
		KafkaAddrs:   kafkaAddrs,

		PostgresHost:          getEnv("POSTGRES_HOST", ""),
		PostgresPort:          getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:          getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:      getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:            getEnv("POSTGRES_DB", "easyshopin"),
		OrdersMigrationsPath:  getEnv("ORDERS_MIGRATIONS_PATH", "migrations/orders"),
		CatalogDBPath:         getEnv("CATALOG_DB_PATH", ""),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "migrations/catalog"),

		PaymentProvider: getEnv("PAYMENT_PROVIDER", "simulated"),
		StripeAPIKey:    getEnv("STRIPE_API_KEY", ""),
		Currency:        getEnv("CURRENCY", "USD"),

		ShippingFlat:     getEnvDecimal("SHIPPING_FLAT", "10"),
		FreeShippingOver: getEnvDecimal("FREE_SHIPPING_OVER", "100"),
		TaxRate:          getEnvDecimal("TAX_RATE", "0.15"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	v := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(defaultValue)
	}
	return d
}

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if getEnv("LOG_PRETTY", "") == "true" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	cfg := loadConfig()
	rules := cart.PricingRules{
		ShippingFlat:     cfg.ShippingFlat,
		FreeShippingOver: cfg.FreeShippingOver,
		TaxRate:          cfg.TaxRate,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog: sqlite when a path is configured, in-memory otherwise.
	var catalogStore catalog.Store
	if cfg.CatalogDBPath != "" {
		sqliteStore, err := catalog.NewSQLiteStore(cfg.CatalogDBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open catalog database")
		}
		if err := sqliteStore.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run catalog migrations")
		}
		catalogStore = sqliteStore
		log.Info().Str("path", cfg.CatalogDBPath).Msg("catalog backed by sqlite")
	} else {
		mem := catalog.NewMemoryStore()
		seedCatalog(ctx, mem, log)
		catalogStore = mem
		log.Info().Msg("catalog backed by memory store")
	}
	defer catalogStore.Close()

	// Cart storage: MongoDB when configured, in-memory otherwise.
	var cartRepo cart.Repository
	if cfg.MongoURI != "" {
		db, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongodb")
		}
		defer db.Client().Disconnect(context.Background())
		cartRepo = cart.NewMongoRepository(db)
		log.Info().Msg("carts backed by mongodb")
	} else {
		cartRepo = cart.NewMemoryRepository()
		log.Info().Msg("carts backed by memory store")
	}

	var cartCache cart.Cache = cart.NoopCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to ping redis")
		}
		defer rdb.Close()
		cartCache = cart.NewRedisCache(rdb, cfg.CartCacheTTL)
		log.Info().Msg("cart cache backed by redis")
	}

	// Order of record: Postgres when configured, in-memory otherwise.
	var records order.Records
	if cfg.PostgresHost != "" {
		cred := &order.PostgresCredentials{
			Host:              cfg.PostgresHost,
			Port:              cfg.PostgresPort,
			User:              cfg.PostgresUser,
			Password:          cfg.PostgresPassword,
			DBName:            cfg.PostgresDB,
			MigrationsDirPath: cfg.OrdersMigrationsPath,
		}
		pg, err := order.NewPostgresRecords(cred, rules)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		if err := pg.RunMigrations(cred); err != nil {
			log.Fatal().Err(err).Msg("failed to run order migrations")
		}
		records = pg
		log.Info().Msg("orders backed by postgres")
	} else {
		records = order.NewMemoryRecords(rules)
		log.Info().Msg("orders backed by memory store")
	}
	defer records.Close()

	cartService := cart.NewService(cartRepo, cartCache, catalogStore, rules, log)
	checkoutCtrl := checkout.NewController(cartService, checkout.DefaultMethods)
	orderService := order.NewService(records, cartService, checkoutCtrl, catalogStore, log)

	var provider payment.Provider
	switch cfg.PaymentProvider {
	case "stripe":
		sp, err := payment.NewStripeProvider(cfg.StripeAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure stripe provider")
		}
		provider = sp
	default:
		provider = payment.NewSimulatedProvider(payment.RandomOutcome{FailurePercent: 5})
	}
	coordinator := payment.NewCoordinator(payment.NewBreakerProvider(provider), records, cfg.Currency, log)

	if len(cfg.KafkaAddrs) > 0 {
		poller := order.NewOutboxPoller(records, log, cfg.KafkaAddrs...)
		go poller.Run(ctx)
		log.Info().Strs("brokers", cfg.KafkaAddrs).Msg("outbox poller started")
	}

	router := gateway.NewRouter(gateway.Deps{
		Catalog:  catalogStore,
		Carts:    cartService,
		Checkout: checkoutCtrl,
		Orders:   orderService,
		Payments: coordinator,
		Timeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

// seedCatalog loads a few demo products so the memory-backed setup is
// browsable out of the box.
func seedCatalog(ctx context.Context, store catalog.Store, log zerolog.Logger) {
	products := []*catalog.Product{
		{ID: 1, Name: "Airpods Wireless Bluetooth Headphones", Brand: "Apple", Image: "/images/airpods.jpg", Price: decimal.NewFromFloat(89.99), CountInStock: 10},
		{ID: 2, Name: "iPhone 13 Pro 256GB Memory", Brand: "Apple", Image: "/images/phone.jpg", Price: decimal.NewFromFloat(599.99), CountInStock: 7},
		{ID: 3, Name: "Cannon EOS 80D DSLR Camera", Brand: "Cannon", Image: "/images/camera.jpg", Price: decimal.NewFromFloat(929.99), CountInStock: 5},
		{ID: 4, Name: "Sony Playstation 5", Brand: "Sony", Image: "/images/playstation.jpg", Price: decimal.NewFromFloat(399.99), CountInStock: 11},
		{ID: 5, Name: "Logitech G-Series Gaming Mouse", Brand: "Logitech", Image: "/images/mouse.jpg", Price: decimal.NewFromFloat(49.99), CountInStock: 7},
		{ID: 6, Name: "Amazon Echo Dot 3rd Generation", Brand: "Amazon", Image: "/images/alexa.jpg", Price: decimal.NewFromFloat(29.99), CountInStock: 0},
	}
	for _, p := range products {
		if err := store.Save(ctx, p); err != nil {
			log.Warn().Err(err).Int64("product_id", p.ID).Msg("failed to seed product")
		}
	}
}
