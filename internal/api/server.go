package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vaidashi/dispatch-engine/internal/analytics"
	"github.com/vaidashi/dispatch-engine/internal/clients"
	"github.com/vaidashi/dispatch-engine/internal/config"
	"github.com/vaidashi/dispatch-engine/internal/database"
	"github.com/vaidashi/dispatch-engine/internal/handlers"
	"github.com/vaidashi/dispatch-engine/internal/matching"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/outbox"
	"github.com/vaidashi/dispatch-engine/internal/pricing"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	"github.com/vaidashi/dispatch-engine/internal/routing"
	"github.com/vaidashi/dispatch-engine/internal/service"
	"github.com/vaidashi/dispatch-engine/internal/workers"
	"github.com/vaidashi/dispatch-engine/pkg/circuitbreaker"
	"github.com/vaidashi/dispatch-engine/pkg/kafka"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
	"github.com/vaidashi/dispatch-engine/pkg/middleware"
	"github.com/vaidashi/dispatch-engine/pkg/retry"
)

const requestIDHeader = "X-Request-ID"

// DeliveryService is the delivery lifecycle as seen by the HTTP layer
type DeliveryService interface {
	CreateDelivery(ctx context.Context, in service.CreateDeliveryInput) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, in service.UpdateStatusInput) (*models.TrackingEvent, *models.Delivery, error)
	GetTracking(ctx context.Context, deliveryID string) (*service.TrackingSnapshot, error)
	RateDelivery(ctx context.Context, in service.RateDeliveryInput) (*models.Delivery, error)
}

// DispatchService prices and matches shipments
type DispatchService interface {
	Quote(ctx context.Context, req models.ShipmentRequest, zoneID string) (*pricing.CostBreakdown, error)
	Match(ctx context.Context, req models.ShipmentRequest, maxDistanceKm *float64) ([]matching.CarrierCandidate, error)
}

// RouteService runs and promotes route optimizations
type RouteService interface {
	Optimize(ctx context.Context, in service.OptimizeInput) (*models.RouteOptimization, error)
	OptimizeBatch(ctx context.Context, inputs []service.OptimizeInput) ([]*models.RouteOptimization, error)
	Compare(ctx context.Context, in service.OptimizeInput) (map[routing.Algorithm]*routing.Result, error)
	GetOptimization(ctx context.Context, optimizationID string) (*models.RouteOptimization, error)
	Promote(ctx context.Context, in service.PromoteInput) (*models.Route, error)
	GetRoute(ctx context.Context, routeID string) (*models.Route, error)
}

// AnalyticsService reports carrier and zone metrics
type AnalyticsService interface {
	CarrierPerformance(ctx context.Context, carrierID string, from, to *time.Time) (*analytics.CarrierMetrics, error)
	ZoneAnalytics(ctx context.Context, zoneID string) (*analytics.ZoneMetrics, error)
}

// FleetService onboards carriers, vehicles and zones
type FleetService interface {
	RegisterCarrier(ctx context.Context, c *models.Carrier) (*models.Carrier, error)
	GetCarrier(ctx context.Context, id string) (*models.Carrier, error)
	VerifyCarrier(ctx context.Context, id string) (*models.Carrier, error)
	RegisterVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	RegisterZone(ctx context.Context, z *models.DeliveryZone) (*models.DeliveryZone, error)
}

// DeadLetterAdmin is the dead letter table as seen by the admin endpoints
type DeadLetterAdmin interface {
	ListByStatus(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error)
	GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	Requeue(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}

// HealthChecker reports whether the database is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators behind the HTTP routes
type Dependencies struct {
	Deliveries  DeliveryService
	Dispatch    DispatchService
	Routes      RouteService
	Analytics   AnalyticsService
	Fleet       FleetService
	DeadLetters DeadLetterAdmin
	Health      HealthChecker
	Breaker     *circuitbreaker.CircuitBreaker
	RateLimiter *middleware.RateLimiterMiddleware
}

type Server struct {
	config     *config.Config
	logger     logger.Logger
	router     *mux.Router
	httpServer *http.Server

	deliveries  DeliveryService
	dispatch    DispatchService
	routes      RouteService
	analytics   AnalyticsService
	fleet       FleetService
	deadLetters DeadLetterAdmin
	health      HealthChecker
	breaker     *circuitbreaker.CircuitBreaker
	rateLimiter *middleware.RateLimiterMiddleware

	db                  *database.Database
	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor
	kafkaProducer       *kafka.Producer
	kafkaConsumer       *kafka.Consumer
	orchestrator        *workers.Orchestrator
}

// NewServer connects to the database and message broker, wires the services
// and starts the background processors.
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	db, err := database.New(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, err
	}

	if err := db.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		db.Close()
		return nil, err
	}

	// Repositories
	store := repository.NewSQLStore(db, logger)
	outboxRepo := repository.NewOutboxRepository(db.DB, logger)
	dlqRepo := repository.NewDeadLetterRepository(db.DB, logger)

	// Domain services
	estimator := pricing.NewEstimator(rateTable(cfg.Rates))
	matcher := matching.NewMatcher(estimator, matching.TransportersOnly)
	optimizer := routing.NewOptimizer(cfg.Routing.BatchConcurrency, logger)

	deliveryService := service.NewDeliveryService(store, estimator, matching.TransportersOnly, logger)
	dispatchService := service.NewDispatchService(store, estimator, matcher, cfg.Matching.DefaultMaxDistanceKm, logger)
	routeService := service.NewRouteService(store, optimizer, logger)
	analyticsService := service.NewAnalyticsService(store, logger)
	fleetService := service.NewFleetService(store, logger)

	// Order service client, guarded by a breaker the admin API can inspect
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "order-service",
		FailureThreshold: int64(cfg.Orders.BreakerThreshold),
		ResetTimeout:     cfg.Orders.BreakerResetTimeout,
		HalfOpenMaxCalls: 1,
	})
	orderClient := clients.NewOrderClient(clients.OrderClientConfig{
		BaseURL:     cfg.Orders.BaseURL,
		Timeout:     cfg.Orders.Timeout,
		MaxAttempts: cfg.Orders.MaxAttempts,
	}, breaker, logger)

	// Outbox and dead letter processors
	outboxProcessor := outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollingInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
	}, logger)

	deadLetterProcessor := outbox.NewDeadLetterProcessor(dlqRepo, outbox.DeadLetterProcessorConfig{
		PollingInterval: cfg.Outbox.DLQPollingInterval,
		BatchSize:       cfg.Outbox.DLQBatchSize,
		MaxRetries:      cfg.Outbox.DLQMaxRetries,
		BackoffStrategy: retry.ReplayBackoff(),
	}, logger)

	server := &Server{
		config:              cfg,
		logger:              logger,
		db:                  db,
		outboxProcessor:     outboxProcessor,
		deadLetterProcessor: deadLetterProcessor,
	}

	// Notifications go to Kafka when it is enabled, otherwise to the log
	var notifier outbox.MessageHandler = outbox.NewLoggingHandler(logger)

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, logger)
		if err != nil {
			logger.Error("Failed to create Kafka producer", "error", err)
			db.Close()
			return nil, err
		}
		server.kafkaProducer = producer
		notifier = outbox.NewKafkaHandler(producer, cfg.Kafka.DeliveryEventsTopic, logger)

		consumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.VehiclePingsTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, logger)
		if err != nil {
			// Non-fatal: positions simply stop updating
			logger.Error("Failed to create Kafka consumer", "error", err)
		} else {
			consumer.RegisterHandler(cfg.Kafka.VehiclePingsTopic, handlers.NewVehicleLocationHandler(fleetService, logger))
			server.kafkaConsumer = consumer
		}
	}

	orderHandler := outbox.NewOrderStatusHandler(orderClient, logger)

	for _, p := range []interface {
		RegisterHandler(string, outbox.MessageHandler)
	}{outboxProcessor, deadLetterProcessor} {
		p.RegisterHandler(models.EventDeliveryCreated, notifier)
		p.RegisterHandler(models.EventDeliveryStatusChanged, notifier)
		p.RegisterHandler(models.EventOrderStatusMirror, orderHandler)
	}

	server.orchestrator = workers.NewOrchestrator([]workers.Worker{
		workers.NewZoneStatsWorker(analyticsService, cfg.Workers.ZoneStatsSchedule, logger),
	}, logger)

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:  cfg.RateLimit.GlobalTokens,
		GlobalRefillRate: cfg.RateLimit.GlobalRefill,
		IPMaxTokens:      cfg.RateLimit.IPTokens,
		IPRefillRate:     cfg.RateLimit.IPRefill,
	}, logger)

	server.init(Dependencies{
		Deliveries:  deliveryService,
		Dispatch:    dispatchService,
		Routes:      routeService,
		Analytics:   analyticsService,
		Fleet:       fleetService,
		DeadLetters: dlqRepo,
		Health:      store,
		Breaker:     breaker,
		RateLimiter: rateLimiter,
	})

	// Start the background work
	outboxProcessor.Start()
	deadLetterProcessor.Start()

	if err := server.orchestrator.Start(context.Background()); err != nil {
		logger.Error("Failed to start workers", "error", err)
	}

	if server.kafkaConsumer != nil {
		if err := server.kafkaConsumer.Start(); err != nil {
			logger.Error("Failed to start Kafka consumer", "error", err)
		}
	}

	return server, nil
}

// newServer builds a server around deps without any background work
func newServer(cfg *config.Config, deps Dependencies, logger logger.Logger) *Server {
	s := &Server{config: cfg, logger: logger}
	s.init(deps)
	return s
}

func (s *Server) init(deps Dependencies) {
	s.deliveries = deps.Deliveries
	s.dispatch = deps.Dispatch
	s.routes = deps.Routes
	s.analytics = deps.Analytics
	s.fleet = deps.Fleet
	s.deadLetters = deps.DeadLetters
	s.health = deps.Health
	s.breaker = deps.Breaker
	s.rateLimiter = deps.RateLimiter

	s.router = mux.NewRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests, then stops the background work and
// closes connections
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.orchestrator != nil {
		s.orchestrator.Stop()
	}

	// Stop the processors
	if s.outboxProcessor != nil {
		s.outboxProcessor.Stop()
	}
	if s.deadLetterProcessor != nil {
		s.deadLetterProcessor.Stop()
	}

	// Stop the Kafka consumer
	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	// Close the Kafka producer
	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", "error", err)
		}
	}

	return err
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Middleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Dispatch
	api.HandleFunc("/quotes", s.quoteHandler).Methods(http.MethodPost)
	api.HandleFunc("/matches", s.matchHandler).Methods(http.MethodPost)

	// Deliveries
	api.HandleFunc("/deliveries", s.createDeliveryHandler).Methods(http.MethodPost)
	api.HandleFunc("/deliveries/{id}/tracking", s.getTrackingHandler).Methods(http.MethodGet)
	api.HandleFunc("/deliveries/{id}/status", s.updateDeliveryStatusHandler).Methods(http.MethodPost)
	api.HandleFunc("/deliveries/{id}/rating", s.rateDeliveryHandler).Methods(http.MethodPost)

	// Routes
	api.HandleFunc("/routes/optimize", s.optimizeRouteHandler).Methods(http.MethodPost)
	api.HandleFunc("/routes/optimize/batch", s.optimizeBatchHandler).Methods(http.MethodPost)
	api.HandleFunc("/routes/compare", s.compareRoutesHandler).Methods(http.MethodPost)
	api.HandleFunc("/routes/promote", s.promoteRouteHandler).Methods(http.MethodPost)
	api.HandleFunc("/routes/optimizations/{id}", s.getOptimizationHandler).Methods(http.MethodGet)
	api.HandleFunc("/routes/{id}", s.getRouteHandler).Methods(http.MethodGet)

	// Analytics
	api.HandleFunc("/analytics/carriers/{id}", s.carrierPerformanceHandler).Methods(http.MethodGet)
	api.HandleFunc("/analytics/zones/{id}", s.zoneAnalyticsHandler).Methods(http.MethodGet)

	// Onboarding
	api.HandleFunc("/carriers", s.registerCarrierHandler).Methods(http.MethodPost)
	api.HandleFunc("/carriers/{id}", s.getCarrierHandler).Methods(http.MethodGet)
	api.HandleFunc("/carriers/{id}/verify", s.verifyCarrierHandler).Methods(http.MethodPost)
	api.HandleFunc("/vehicles", s.registerVehicleHandler).Methods(http.MethodPost)
	api.HandleFunc("/vehicles/{id}", s.getVehicleHandler).Methods(http.MethodGet)
	api.HandleFunc("/zones", s.registerZoneHandler).Methods(http.MethodPost)

	// Admin API for monitoring and management
	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	if s.deadLetters != nil {
		admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
		admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
		admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	}
	if s.breaker != nil {
		admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
		admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	}
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

// requestIDMiddleware tags each request with an id, reusing the caller's
// X-Request-ID when present
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		s.logger.Info("Request processed",
			"req_id", logger.RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}

// rateTable overlays the configured rates on the default table, keeping the
// default priority multipliers
func rateTable(cfg config.RateConfig) pricing.RateTable {
	rates := pricing.DefaultRateTable()

	if cfg.Version != "" {
		rates.Version = cfg.Version
	}
	rates.Base = cfg.Base
	rates.PerKm = cfg.PerKm
	rates.PerKg = cfg.PerKg
	rates.PerM3 = cfg.PerM3

	return rates
}
