/**
 * @description
 * This is the main entry point for the issuer service. It is responsible for
 * initializing all components of the service, including configuration, the
 * in-memory ledger engine, the issuer component, the audit-event store, the
 * message broker, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/engine, internal/store:
 *   Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tari-project/stable-coin/internal/api"
	"github.com/tari-project/stable-coin/internal/app"
	"github.com/tari-project/stable-coin/internal/config"
	"github.com/tari-project/stable-coin/internal/domain"
	"github.com/tari-project/stable-coin/internal/engine"
	"github.com/tari-project/stable-coin/internal/store"
	rmrabbit "github.com/tari-project/stable-coin/pkg/rabbitmq"
)

// storeSink persists audit events through the repository.
type storeSink struct {
	repo store.Repository
}

func (s storeSink) Publish(ctx context.Context, event domain.Event) error {
	return s.repo.RecordEvent(ctx, event)
}

// rabbitSink forwards audit events to the message broker.
type rabbitSink struct {
	producer rmrabbit.Publisher
	exchange string
}

func (s rabbitSink) Publish(ctx context.Context, event domain.Event) error {
	return s.producer.PublishAuditEvent(ctx, s.exchange, event)
}

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	settings, err := cfg.TokenSettings()
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"token settings invalid\" err=%v", err)
	}
	initialSupply, err := cfg.InitialSupplyAmount()
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"initial supply invalid\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting issuerd\" port=%s symbol=%s", cfg.ServerPort, cfg.TokenSymbol)

	// Establish a connection pool to the PostgreSQL database when configured.
	// Without a database the audit trail degrades to the in-memory repository.
	var repository store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}
		poolConfig.MaxConns = 20
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		// Disable prepared statement caching to prevent conflicts
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()

		if err := store.Migrate(context.Background(), dbpool); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"migration failed\" err=%v", err)
		}
		repository = store.NewPostgresRepository(dbpool)
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	} else {
		repository = store.NewMemoryRepository()
		log.Println("level=warn component=bootstrap msg=\"no database configured; audit events held in memory\"")
	}

	// Initialize the RabbitMQ producer to publish events.
	// This service only needs to publish, so we use a producer.
	var rabbitProducer rmrabbit.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
			rabbitProducer = &rmrabbit.EventProducerFallback{}
		} else {
			defer producer.Close()
			rabbitProducer = producer
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		}
	} else {
		rabbitProducer = &rmrabbit.EventProducerFallback{}
		log.Println("level=warn component=bootstrap msg=\"no rabbitmq configured; audit events not published\"")
	}

	// Compose the audit-event sinks.
	sink := app.MultiSink{Sinks: []app.EventSink{
		app.LogSink{},
		storeSink{repo: repository},
		rabbitSink{producer: rabbitProducer, exchange: cfg.AuditEventExchange},
	}}

	// Create the ledger engine and instantiate the issuer component.
	eng := engine.New()
	issuer, adminBadge, err := app.Instantiate(eng, settings, app.InstantiateParams{
		InitialSupply: initialSupply,
		TokenSymbol:   cfg.TokenSymbol,
		Metadata: map[string]string{
			"provider_name": cfg.ProviderName,
		},
		ViewKey:            cfg.ViewKey,
		EnableWrappedToken: cfg.EnableWrappedToken,
	}, sink)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"issuer instantiation failed\" err=%v", err)
	}

	// Bootstrap the first admin account and deposit the initial admin badge.
	// The badge authorizes its own first deposit via a bucket proof.
	adminAccount := eng.CreateAccount()
	bootstrapAuth := engine.NewAuth(string(adminAccount.Address()), adminBadge.Proof())
	if err := eng.AccountDeposit(adminAccount, adminBadge, bootstrapAuth); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"admin badge deposit failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"admin account created\" account=%s", adminAccount.Address())

	// Initialize the API handlers.
	issuerHandlers := api.NewIssuerHandlers(issuer, eng, repository)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/", api.IssuerRoutes(issuerHandlers, cfg.JWTSecret))

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
