package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/database"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// Reader is the read side shared by plain connections, transactions and snapshots
type Reader interface {
	GetCarrier(ctx context.Context, id string) (*models.Carrier, error)
	GetVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, availableOnly bool) ([]*models.Vehicle, error)
	GetDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error)
	ListCarrierDeliveries(ctx context.Context, carrierID string, from, to *time.Time) ([]*models.Delivery, error)
	ListDeliveries(ctx context.Context) ([]*models.Delivery, error)
	ListTrackingEvents(ctx context.Context, deliveryID string) ([]*models.TrackingEvent, error)
	GetZone(ctx context.Context, id string) (*models.DeliveryZone, error)
	ListActiveZones(ctx context.Context) ([]*models.DeliveryZone, error)
	GetRoute(ctx context.Context, routeID string) (*models.Route, error)
	GetOptimization(ctx context.Context, optimizationID string) (*models.RouteOptimization, error)
}

// Writer holds the mutations. Every method runs inside a transaction.
type Writer interface {
	CreateCarrier(ctx context.Context, c *models.Carrier) error
	VerifyCarrier(ctx context.Context, id string, at time.Time) error
	RecordCarrierOutcome(ctx context.Context, id string, successful bool) error
	AddCarrierRating(ctx context.Context, id string, rating int) error

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	ClaimVehicle(ctx context.Context, id string) (*models.Vehicle, error)
	ReleaseVehicle(ctx context.Context, id string) error
	RecordVehicleDelivery(ctx context.Context, id string, distanceKm float64) error
	AddVehicleRating(ctx context.Context, id string, rating int) error

	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDeliveryForUpdate(ctx context.Context, deliveryID string) (*models.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, d *models.Delivery) error
	UpdateDeliveryRating(ctx context.Context, d *models.Delivery) error

	CreateTrackingEvent(ctx context.Context, e *models.TrackingEvent) error

	CreateZone(ctx context.Context, z *models.DeliveryZone) error
	UpdateZoneStats(ctx context.Context, zoneID string, total, successful int, at time.Time) error

	CreateOptimization(ctx context.Context, o *models.RouteOptimization) error
	GetOptimizationForUpdate(ctx context.Context, optimizationID string) (*models.RouteOptimization, error)
	MarkOptimizationUsed(ctx context.Context, optimizationID, routeID string) error
	CreateRoute(ctx context.Context, r *models.Route) error
	MarkRouteUsed(ctx context.Context, routeID string, at time.Time) error

	Enqueue(ctx context.Context, message *models.OutboxMessage) error
}

// Tx is a unit of work
type Tx interface {
	Reader
	Writer
}

// Store is the transactional entry point used by the services
type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	ReadSnapshot(ctx context.Context, fn func(r Reader) error) error
	UpdateVehicleLocation(ctx context.Context, id string, c geo.Coordinate, label string, at time.Time) error
	Ping(ctx context.Context) error
}

type queries struct {
	*CarrierRepository
	*VehicleRepository
	*DeliveryRepository
	*TrackingRepository
	*ZoneRepository
	*RouteRepository
	*OutboxRepository
}

func newQueries(q sqlx.ExtContext, logger logger.Logger) *queries {
	return &queries{
		CarrierRepository:  NewCarrierRepository(q, logger),
		VehicleRepository:  NewVehicleRepository(q, logger),
		DeliveryRepository: NewDeliveryRepository(q, logger),
		TrackingRepository: NewTrackingRepository(q, logger),
		ZoneRepository:     NewZoneRepository(q, logger),
		RouteRepository:    NewRouteRepository(q, logger),
		OutboxRepository:   NewOutboxRepository(q, logger),
	}
}

// SQLStore implements Store on top of a sqlx connection pool
type SQLStore struct {
	*queries
	db     *database.Database
	logger logger.Logger
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(db *database.Database, logger logger.Logger) *SQLStore {
	return &SQLStore{
		queries: newQueries(db.DB, logger),
		db:      db,
		logger:  logger,
	}
}

// RunInTx runs fn in a read-write transaction, committing if fn returns nil
func (s *SQLStore) RunInTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx)

	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrDatabase, err)
	}

	// Rollback transaction if any error occurs
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				s.logger.Error("Failed to rollback transaction", "error", rollbackErr)
			}
		}
	}()

	if err = fn(newQueries(tx, s.logger)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}

	return nil
}

// ReadSnapshot runs fn against a read-only repeatable-read transaction
func (s *SQLStore) ReadSnapshot(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.db.BeginSnapshot(ctx)

	if err != nil {
		return fmt.Errorf("%w: begin snapshot: %v", ErrDatabase, err)
	}
	defer func() {
		// read-only, so rollback and commit are equivalent
		_ = tx.Rollback()
	}()

	return fn(newQueries(tx, s.logger))
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
