package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// memData is an in-memory stand-in for the database. It implements
// repository.Tx without locking; memStore serializes access to it.
type memData struct {
	carriers      map[string]models.Carrier
	vehicles      map[string]models.Vehicle
	deliveries    map[string]models.Delivery
	deliveryOrder []string
	events        []models.TrackingEvent
	zones         map[string]models.DeliveryZone
	routes        map[string]models.Route
	optimizations map[string]models.RouteOptimization
	outbox        []models.OutboxMessage
	nextID        int64

	enqueueErr error
}

func (m *memData) clone() *memData {
	c := *m
	c.carriers = make(map[string]models.Carrier, len(m.carriers))
	for k, v := range m.carriers {
		c.carriers[k] = v
	}
	c.vehicles = make(map[string]models.Vehicle, len(m.vehicles))
	for k, v := range m.vehicles {
		c.vehicles[k] = v
	}
	c.deliveries = make(map[string]models.Delivery, len(m.deliveries))
	for k, v := range m.deliveries {
		c.deliveries[k] = v
	}
	c.zones = make(map[string]models.DeliveryZone, len(m.zones))
	for k, v := range m.zones {
		c.zones[k] = v
	}
	c.routes = make(map[string]models.Route, len(m.routes))
	for k, v := range m.routes {
		c.routes[k] = v
	}
	c.optimizations = make(map[string]models.RouteOptimization, len(m.optimizations))
	for k, v := range m.optimizations {
		c.optimizations[k] = v
	}
	c.deliveryOrder = append([]string(nil), m.deliveryOrder...)
	c.events = append([]models.TrackingEvent(nil), m.events...)
	c.outbox = append([]models.OutboxMessage(nil), m.outbox...)
	return &c
}

func (m *memData) GetCarrier(_ context.Context, id string) (*models.Carrier, error) {
	c, ok := m.carriers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memData) CreateCarrier(_ context.Context, c *models.Carrier) error {
	if _, ok := m.carriers[c.ID]; ok {
		return repository.ErrDatabase
	}
	m.carriers[c.ID] = *c
	return nil
}

func (m *memData) updateCarrier(id string, fn func(c *models.Carrier)) error {
	c, ok := m.carriers[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&c)
	m.carriers[id] = c
	return nil
}

func (m *memData) VerifyCarrier(_ context.Context, id string, at time.Time) error {
	return m.updateCarrier(id, func(c *models.Carrier) {
		c.IsVerified = true
		if c.VerifiedAt == nil {
			c.VerifiedAt = &at
		}
	})
}

func (m *memData) RecordCarrierOutcome(_ context.Context, id string, successful bool) error {
	return m.updateCarrier(id, func(c *models.Carrier) { c.RecordOutcome(successful) })
}

func (m *memData) AddCarrierRating(_ context.Context, id string, rating int) error {
	return m.updateCarrier(id, func(c *models.Carrier) { c.AddRating(rating) })
}

func (m *memData) GetVehicle(_ context.Context, id string) (*models.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (m *memData) ListVehicles(_ context.Context, availableOnly bool) ([]*models.Vehicle, error) {
	ids := make([]string, 0, len(m.vehicles))
	for id := range m.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := []*models.Vehicle{}
	for _, id := range ids {
		v := m.vehicles[id]
		if availableOnly && !(v.IsActive && v.IsAvailable) {
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

func (m *memData) GetDelivery(_ context.Context, deliveryID string) (*models.Delivery, error) {
	d, ok := m.deliveries[deliveryID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *memData) ListCarrierDeliveries(_ context.Context, carrierID string, from, to *time.Time) ([]*models.Delivery, error) {
	out := []*models.Delivery{}
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if d.CarrierID != carrierID {
			continue
		}
		if from != nil && d.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && d.CreatedAt.After(*to) {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

func (m *memData) ListDeliveries(_ context.Context) ([]*models.Delivery, error) {
	out := make([]*models.Delivery, 0, len(m.deliveryOrder))
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		out = append(out, &d)
	}
	return out, nil
}

func (m *memData) ListTrackingEvents(_ context.Context, deliveryID string) ([]*models.TrackingEvent, error) {
	out := []*models.TrackingEvent{}
	for _, e := range m.events {
		if e.DeliveryID == deliveryID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *memData) GetZone(_ context.Context, id string) (*models.DeliveryZone, error) {
	z, ok := m.zones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &z, nil
}

func (m *memData) ListActiveZones(_ context.Context) ([]*models.DeliveryZone, error) {
	ids := make([]string, 0, len(m.zones))
	for id, z := range m.zones {
		if z.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]*models.DeliveryZone, 0, len(ids))
	for _, id := range ids {
		z := m.zones[id]
		out = append(out, &z)
	}
	return out, nil
}

func (m *memData) GetRoute(_ context.Context, routeID string) (*models.Route, error) {
	r, ok := m.routes[routeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memData) GetOptimization(_ context.Context, optimizationID string) (*models.RouteOptimization, error) {
	o, ok := m.optimizations[optimizationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (m *memData) CreateVehicle(_ context.Context, v *models.Vehicle) error {
	if _, ok := m.vehicles[v.ID]; ok {
		return repository.ErrDatabase
	}
	m.vehicles[v.ID] = *v
	return nil
}

func (m *memData) ClaimVehicle(_ context.Context, id string) (*models.Vehicle, error) {
	v, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !v.IsActive || !v.IsAvailable {
		return nil, repository.ErrVehicleUnavailable
	}
	v.IsAvailable = false
	m.vehicles[id] = v
	return &v, nil
}

func (m *memData) updateVehicle(id string, fn func(v *models.Vehicle)) error {
	v, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&v)
	m.vehicles[id] = v
	return nil
}

func (m *memData) ReleaseVehicle(_ context.Context, id string) error {
	return m.updateVehicle(id, func(v *models.Vehicle) { v.IsAvailable = true })
}

func (m *memData) RecordVehicleDelivery(_ context.Context, id string, distanceKm float64) error {
	return m.updateVehicle(id, func(v *models.Vehicle) {
		v.TotalDeliveries++
		v.TotalDistanceKm += distanceKm
	})
}

func (m *memData) AddVehicleRating(_ context.Context, id string, rating int) error {
	return m.updateVehicle(id, func(v *models.Vehicle) { v.AddRating(rating) })
}

func (m *memData) CreateDelivery(_ context.Context, d *models.Delivery) error {
	m.nextID++
	d.ID = m.nextID
	m.deliveries[d.DeliveryID] = *d
	m.deliveryOrder = append(m.deliveryOrder, d.DeliveryID)
	return nil
}

func (m *memData) GetDeliveryForUpdate(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return m.GetDelivery(ctx, deliveryID)
}

func (m *memData) UpdateDeliveryStatus(_ context.Context, d *models.Delivery) error {
	if _, ok := m.deliveries[d.DeliveryID]; !ok {
		return repository.ErrNotFound
	}
	m.deliveries[d.DeliveryID] = *d
	return nil
}

func (m *memData) UpdateDeliveryRating(ctx context.Context, d *models.Delivery) error {
	return m.UpdateDeliveryStatus(ctx, d)
}

func (m *memData) CreateTrackingEvent(_ context.Context, e *models.TrackingEvent) error {
	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, *e)
	return nil
}

func (m *memData) CreateZone(_ context.Context, z *models.DeliveryZone) error {
	m.zones[z.ID] = *z
	return nil
}

func (m *memData) UpdateZoneStats(_ context.Context, zoneID string, total, successful int, at time.Time) error {
	z, ok := m.zones[zoneID]
	if !ok {
		return repository.ErrNotFound
	}
	z.TotalDeliveries, z.SuccessfulDeliveries, z.StatsRefreshedAt = total, successful, &at
	m.zones[zoneID] = z
	return nil
}

func (m *memData) CreateOptimization(_ context.Context, o *models.RouteOptimization) error {
	m.nextID++
	o.ID = m.nextID
	m.optimizations[o.OptimizationID] = *o
	return nil
}

func (m *memData) GetOptimizationForUpdate(ctx context.Context, optimizationID string) (*models.RouteOptimization, error) {
	return m.GetOptimization(ctx, optimizationID)
}

func (m *memData) MarkOptimizationUsed(_ context.Context, optimizationID, routeID string) error {
	o, ok := m.optimizations[optimizationID]
	if !ok {
		return repository.ErrNotFound
	}
	o.IsUsed = true
	o.CreatedRouteID = &routeID
	m.optimizations[optimizationID] = o
	return nil
}

func (m *memData) CreateRoute(_ context.Context, r *models.Route) error {
	m.routes[r.RouteID] = *r
	return nil
}

func (m *memData) MarkRouteUsed(_ context.Context, routeID string, at time.Time) error {
	r, ok := m.routes[routeID]
	if !ok {
		return repository.ErrNotFound
	}
	r.TimesUsed++
	r.LastUsed = &at
	m.routes[routeID] = r
	return nil
}

func (m *memData) Enqueue(_ context.Context, message *models.OutboxMessage) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.nextID++
	message.ID = m.nextID
	m.outbox = append(m.outbox, *message)
	return nil
}

// memStore serializes transactions and rolls back on error
type memStore struct {
	mu  sync.Mutex
	txs int
	*memData
}

func newMemStore() *memStore {
	return &memStore{memData: &memData{
		carriers:      map[string]models.Carrier{},
		vehicles:      map[string]models.Vehicle{},
		deliveries:    map[string]models.Delivery{},
		zones:         map[string]models.DeliveryZone{},
		routes:        map[string]models.Route{},
		optimizations: map[string]models.RouteOptimization{},
	}}
}

func (s *memStore) RunInTx(_ context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txs++
	snapshot := s.memData.clone()
	if err := fn(s.memData); err != nil {
		*s.memData = *snapshot
		return err
	}
	return nil
}

func (s *memStore) ReadSnapshot(_ context.Context, fn func(r repository.Reader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.memData)
}

func (s *memStore) UpdateVehicleLocation(_ context.Context, id string, c geo.Coordinate, label string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.LocationUpdatedAt != nil && at.Before(*v.LocationUpdatedAt) {
		return nil
	}
	v.SetLocation(c, label, at)
	s.vehicles[id] = v
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }

// outboxEvents returns the queued event types in enqueue order
func (s *memStore) outboxEvents(eventType string) []models.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.OutboxMessage
	for _, m := range s.outbox {
		if eventType == "" || m.EventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

var _ repository.Store = (*memStore)(nil)
