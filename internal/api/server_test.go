package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/analytics"
	"github.com/vaidashi/dispatch-engine/internal/config"
	"github.com/vaidashi/dispatch-engine/internal/matching"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/pricing"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	"github.com/vaidashi/dispatch-engine/internal/routing"
	"github.com/vaidashi/dispatch-engine/internal/service"
	"github.com/vaidashi/dispatch-engine/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// fakeServices implements every service interface the router needs
type fakeServices struct {
	createIn  service.CreateDeliveryInput
	statusIn  service.UpdateStatusInput
	rateIn    service.RateDeliveryInput
	optimize  []service.OptimizeInput
	promoteIn service.PromoteInput
	quoteZone string
	matchMax  *float64
	from, to  *time.Time
	vehicle   *models.Vehicle
	carrier   *models.Carrier

	candidates []matching.CarrierCandidate
	err        error
	pingErr    error
}

func (f *fakeServices) CreateDelivery(ctx context.Context, in service.CreateDeliveryInput) (*models.Delivery, error) {
	f.createIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Delivery{DeliveryID: "DEL-1", OrderRef: in.OrderRef, Status: models.DeliveryStatusAssigned}, nil
}

func (f *fakeServices) UpdateStatus(ctx context.Context, in service.UpdateStatusInput) (*models.TrackingEvent, *models.Delivery, error) {
	f.statusIn = in
	if f.err != nil {
		return nil, nil, f.err
	}
	pickedUp := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	return &models.TrackingEvent{DeliveryID: in.DeliveryID, Status: in.Status},
		&models.Delivery{DeliveryID: in.DeliveryID, Status: in.Status, ActualPickupTime: &pickedUp},
		nil
}

func (f *fakeServices) GetTracking(ctx context.Context, deliveryID string) (*service.TrackingSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.TrackingSnapshot{Delivery: &models.Delivery{DeliveryID: deliveryID}}, nil
}

func (f *fakeServices) RateDelivery(ctx context.Context, in service.RateDeliveryInput) (*models.Delivery, error) {
	f.rateIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Delivery{DeliveryID: in.DeliveryID, Rating: &in.Rating}, nil
}

func (f *fakeServices) Quote(ctx context.Context, req models.ShipmentRequest, zoneID string) (*pricing.CostBreakdown, error) {
	f.quoteZone = zoneID
	if f.err != nil {
		return nil, f.err
	}
	return &pricing.CostBreakdown{Total: 250, Priority: req.Priority}, nil
}

func (f *fakeServices) Match(ctx context.Context, req models.ShipmentRequest, maxDistanceKm *float64) ([]matching.CarrierCandidate, error) {
	f.matchMax = maxDistanceKm
	return f.candidates, f.err
}

func (f *fakeServices) Optimize(ctx context.Context, in service.OptimizeInput) (*models.RouteOptimization, error) {
	f.optimize = append(f.optimize, in)
	if f.err != nil {
		return nil, f.err
	}
	return &models.RouteOptimization{OptimizationID: "OPT-1", VehicleID: in.VehicleID}, nil
}

func (f *fakeServices) OptimizeBatch(ctx context.Context, inputs []service.OptimizeInput) ([]*models.RouteOptimization, error) {
	f.optimize = append(f.optimize, inputs...)
	out := make([]*models.RouteOptimization, len(inputs))
	for i, in := range inputs {
		out[i] = &models.RouteOptimization{VehicleID: in.VehicleID}
	}
	return out, f.err
}

func (f *fakeServices) Compare(ctx context.Context, in service.OptimizeInput) (map[routing.Algorithm]*routing.Result, error) {
	return map[routing.Algorithm]*routing.Result{
		routing.AlgorithmBasic:  {Success: true, Algorithm: routing.AlgorithmBasic},
		routing.AlgorithmGreedy: {Success: true, Algorithm: routing.AlgorithmGreedy},
	}, f.err
}

func (f *fakeServices) GetOptimization(ctx context.Context, optimizationID string) (*models.RouteOptimization, error) {
	return &models.RouteOptimization{OptimizationID: optimizationID}, f.err
}

func (f *fakeServices) Promote(ctx context.Context, in service.PromoteInput) (*models.Route, error) {
	f.promoteIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Route{RouteID: "RTE-1", Name: in.Name}, nil
}

func (f *fakeServices) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Route{RouteID: routeID}, nil
}

func (f *fakeServices) CarrierPerformance(ctx context.Context, carrierID string, from, to *time.Time) (*analytics.CarrierMetrics, error) {
	f.from, f.to = from, to
	return &analytics.CarrierMetrics{CarrierID: carrierID}, f.err
}

func (f *fakeServices) ZoneAnalytics(ctx context.Context, zoneID string) (*analytics.ZoneMetrics, error) {
	return &analytics.ZoneMetrics{ZoneID: zoneID}, f.err
}

func (f *fakeServices) RegisterCarrier(ctx context.Context, c *models.Carrier) (*models.Carrier, error) {
	f.carrier = c
	c.ID = "CAR-1"
	return c, f.err
}

func (f *fakeServices) GetCarrier(ctx context.Context, id string) (*models.Carrier, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Carrier{ID: id}, nil
}

func (f *fakeServices) VerifyCarrier(ctx context.Context, id string) (*models.Carrier, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Carrier{ID: id, IsVerified: true}, nil
}

func (f *fakeServices) RegisterVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	f.vehicle = v
	v.ID = "VEH-1"
	return v, f.err
}

func (f *fakeServices) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Vehicle{ID: id}, nil
}

func (f *fakeServices) RegisterZone(ctx context.Context, z *models.DeliveryZone) (*models.DeliveryZone, error) {
	z.ID = "ZONE-1"
	return z, f.err
}

func (f *fakeServices) Ping(ctx context.Context) error { return f.pingErr }

type fakeDeadLetters struct {
	messages  map[int64]*models.DeadLetterMessage
	requeued  []int64
	discarded map[int64]string
}

func (f *fakeDeadLetters) ListByStatus(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error) {
	var out []*models.DeadLetterMessage
	for _, m := range f.messages {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeDeadLetters) GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

func (f *fakeDeadLetters) Requeue(ctx context.Context, id int64) error {
	f.requeued = append(f.requeued, id)
	return nil
}

func (f *fakeDeadLetters) MarkAsDiscarded(ctx context.Context, id int64, reason string) error {
	if _, ok := f.messages[id]; !ok {
		return repository.ErrNotFound
	}
	f.discarded[id] = reason
	return nil
}

type testEnv struct {
	server  *Server
	svc     *fakeServices
	dlq     *fakeDeadLetters
	breaker *circuitbreaker.CircuitBreaker
}

func newTestEnv() *testEnv {
	svc := &fakeServices{}
	dlq := &fakeDeadLetters{
		messages: map[int64]*models.DeadLetterMessage{
			1: {ID: 1, EventType: models.EventOrderStatusMirror, Status: models.DeadLetterStatusPending},
			2: {ID: 2, EventType: models.EventDeliveryCreated, Status: models.DeadLetterStatusResolved},
		},
		discarded: map[int64]string{},
	}
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "order-service", FailureThreshold: 1, ResetTimeout: time.Hour})

	s := newServer(&config.Config{Port: 0}, Dependencies{
		Deliveries:  svc,
		Dispatch:    svc,
		Routes:      svc,
		Analytics:   svc,
		Fleet:       svc,
		DeadLetters: dlq,
		Health:      svc,
		Breaker:     breaker,
	}, logger.NewNop())

	return &testEnv{server: s, svc: svc, dlq: dlq, breaker: breaker}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, ApiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)

	var resp ApiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, resp
}

const deliveryBody = `{
	"order_ref": "ORD-1",
	"carrier_id": "CAR-1",
	"vehicle_id": "VEH-1",
	"pickup": {"address": "Moi Avenue", "latitude": -1.2864, "longitude": 36.8172, "contact_name": "Amina", "contact_phone": "0700000001"},
	"dropoff": {"address": "Oginga Odinga St", "latitude": -0.0917, "longitude": 34.768, "contact_name": "Otieno", "contact_phone": "0700000002"},
	"scheduled_pickup_time": "2024-03-01T08:00:00Z",
	"scheduled_delivery_time": "2024-03-01T18:00:00Z",
	"priority": "high",
	"weight_kg": 10,
	"special_handling": ["fragile"]
}`

func TestCreateDelivery(t *testing.T) {
	env := newTestEnv()

	rec, resp := env.do(t, http.MethodPost, "/api/v1/deliveries", deliveryBody)
	if rec.Code != http.StatusCreated || !resp.Success {
		t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
	}

	in := env.svc.createIn
	if in.OrderRef != "ORD-1" || in.Priority != models.PriorityHigh || in.Pickup.Coordinate.Latitude != -1.2864 {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Dropoff.ContactName != "Otieno" || len(in.SpecialHandling) != 1 {
		t.Fatalf("unexpected dropoff %+v", in.Dropoff)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/v1/deliveries", `{"order_ref":`},
		{"missing order", "/api/v1/deliveries", `{"carrier_id":"CAR-1"}`},
		{"latitude out of range", "/api/v1/quotes", `{"pickup":{"latitude":91,"longitude":0},"dropoff":{"latitude":0,"longitude":0}}`},
		{"missing coordinate", "/api/v1/quotes", `{"pickup":{"latitude":1},"dropoff":{"latitude":0,"longitude":0}}`},
		{"unknown priority", "/api/v1/matches", `{"pickup":{"latitude":0,"longitude":0},"dropoff":{"latitude":0,"longitude":0},"priority":"asap"}`},
		{"rating out of range", "/api/v1/deliveries/DEL-1/rating", `{"rating":6}`},
		{"status required", "/api/v1/deliveries/DEL-1/status", `{"location":"Nakuru"}`},
		{"empty batch", "/api/v1/routes/optimize/batch", `{"requests":[]}`},
		{"promote without name", "/api/v1/routes/promote", `{"optimization_id":"OPT-1"}`},
		{"vehicle type", "/api/v1/vehicles", `{"carrier_id":"CAR-1","vehicle_type":"boat","max_weight_kg":10}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()

			rec, resp := env.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest || resp.Success || resp.Error == "" {
				t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
			}
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{apperrors.NewNotFoundErrorf("delivery", "DEL-9"), http.StatusNotFound},
		{apperrors.NewConflictError("vehicle VEH-1 is not available"), http.StatusConflict},
		{apperrors.NewValidationError("status", "terminal"), http.StatusBadRequest},
		{apperrors.NewDependencyError("database", errors.New("refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		env := newTestEnv()
		env.svc.err = tt.err

		rec, resp := env.do(t, http.MethodGet, "/api/v1/deliveries/DEL-9/tracking", "")
		if rec.Code != tt.code || resp.Success {
			t.Fatalf("%v: status = %d, want %d", tt.err, rec.Code, tt.code)
		}
		if tt.code == http.StatusInternalServerError && resp.Error != "internal server error" {
			t.Fatalf("internal error leaked: %q", resp.Error)
		}
	}
}

func TestUpdateStatusPassesPathID(t *testing.T) {
	env := newTestEnv()

	rec, resp := env.do(t, http.MethodPost, "/api/v1/deliveries/DEL-7/status",
		`{"status":"in_transit","location":"Nakuru","coordinate":{"latitude":-0.30,"longitude":36.08},"readings":{"temperature":4.5}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	data := resp.Data.(map[string]interface{})
	event, ok := data["event"].(map[string]interface{})
	if !ok || event["status"] != "in_transit" {
		t.Fatalf("event missing from response: %#v", data)
	}
	delivery, ok := data["delivery"].(map[string]interface{})
	if !ok || delivery["status"] != "in_transit" || delivery["actual_pickup_time"] == nil {
		t.Fatalf("updated delivery missing from response: %#v", data)
	}

	in := env.svc.statusIn
	if in.DeliveryID != "DEL-7" || in.Status != models.DeliveryStatusInTransit || in.Coordinate == nil {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Readings.Temperature == nil || *in.Readings.Temperature != 4.5 {
		t.Fatalf("readings not passed through")
	}
}

func TestQuoteAndMatch(t *testing.T) {
	env := newTestEnv()

	rec, _ := env.do(t, http.MethodPost, "/api/v1/quotes",
		`{"pickup":{"latitude":-1.28,"longitude":36.82},"dropoff":{"latitude":-0.09,"longitude":34.77},"weight_kg":5,"zone_id":"ZONE-1"}`)
	if rec.Code != http.StatusOK || env.svc.quoteZone != "ZONE-1" {
		t.Fatalf("status = %d, zone = %q", rec.Code, env.svc.quoteZone)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/matches",
		`{"pickup":{"latitude":-1.28,"longitude":36.82},"dropoff":{"latitude":-0.09,"longitude":34.77},"max_distance_km":25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.svc.matchMax == nil || *env.svc.matchMax != 25 {
		t.Fatalf("max distance not passed")
	}
	if list, ok := resp.Data.([]interface{}); !ok || len(list) != 0 {
		t.Fatalf("empty match should be [], got %#v", resp.Data)
	}
}

func TestRouteEndpoints(t *testing.T) {
	env := newTestEnv()

	rec, _ := env.do(t, http.MethodPost, "/api/v1/routes/optimize",
		`{"vehicle_id":"VEH-1","algorithm":"greedy","start":{"latitude":-1.28,"longitude":36.82},"waypoints":[{"latitude":-0.3,"longitude":36.08},{"latitude":-0.09,"longitude":34.77}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("optimize status = %d", rec.Code)
	}
	if in := env.svc.optimize[0]; len(in.Waypoints) != 2 || in.Start == nil || in.End != nil || in.Algorithm != routing.AlgorithmGreedy {
		t.Fatalf("unexpected optimize input %+v", in)
	}

	rec, resp := env.do(t, http.MethodPost, "/api/v1/routes/optimize/batch",
		`{"requests":[{"vehicle_id":"VEH-1"},{"vehicle_id":"VEH-2"}]}`)
	if rec.Code != http.StatusCreated || len(resp.Data.([]interface{})) != 2 {
		t.Fatalf("batch status = %d, data = %#v", rec.Code, resp.Data)
	}

	rec, resp = env.do(t, http.MethodPost, "/api/v1/routes/compare", `{"vehicle_id":"VEH-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("compare status = %d", rec.Code)
	}
	if _, ok := resp.Data.(map[string]interface{})["greedy"]; !ok {
		t.Fatalf("compare should be keyed by algorithm: %#v", resp.Data)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/routes/promote", `{"optimization_id":"OPT-1","name":"Nairobi to Kisumu"}`)
	if rec.Code != http.StatusCreated || env.svc.promoteIn.Name != "Nairobi to Kisumu" {
		t.Fatalf("promote status = %d, input = %+v", rec.Code, env.svc.promoteIn)
	}

	if rec, _ = env.do(t, http.MethodGet, "/api/v1/routes/RTE-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get route status = %d", rec.Code)
	}
	if rec, _ = env.do(t, http.MethodGet, "/api/v1/routes/optimizations/OPT-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get optimization status = %d", rec.Code)
	}
}

func TestCarrierPerformanceWindow(t *testing.T) {
	env := newTestEnv()

	rec, _ := env.do(t, http.MethodGet, "/api/v1/analytics/carriers/CAR-1?start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.svc.from == nil || env.svc.to == nil || !env.svc.from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window not parsed: %v %v", env.svc.from, env.svc.to)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/analytics/carriers/CAR-1?start=yesterday", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timestamp status = %d", rec.Code)
	}

	if rec, _ = env.do(t, http.MethodGet, "/api/v1/analytics/zones/ZONE-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("zone status = %d", rec.Code)
	}
}

func TestOnboarding(t *testing.T) {
	env := newTestEnv()

	rec, _ := env.do(t, http.MethodPost, "/api/v1/carriers",
		`{"name":"Rift Haulage","role":"transporter","operating_areas":["Nairobi","Nakuru"],"accepting_orders":false}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("carrier status = %d", rec.Code)
	}
	if c := env.svc.carrier; c.Name != "Rift Haulage" || c.IsAcceptingOrders || len(c.OperatingAreas) != 2 {
		t.Fatalf("carrier not passed: %+v", c)
	}
	if rec, _ = env.do(t, http.MethodPost, "/api/v1/carriers", `{"role":"transporter"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("nameless carrier status = %d", rec.Code)
	}
	if rec, _ = env.do(t, http.MethodPost, "/api/v1/carriers", `{"name":"Lake Couriers"}`); rec.Code != http.StatusCreated || !env.svc.carrier.IsAcceptingOrders {
		t.Fatalf("accepting_orders should default to true, status = %d", rec.Code)
	}
	rec, resp := env.do(t, http.MethodPost, "/api/v1/carriers/CAR-1/verify", "")
	if rec.Code != http.StatusOK || resp.Data.(map[string]interface{})["is_verified"] != true {
		t.Fatalf("verify status = %d, data = %#v", rec.Code, resp.Data)
	}
	if rec, _ = env.do(t, http.MethodGet, "/api/v1/carriers/CAR-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get carrier status = %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/vehicles",
		`{"carrier_id":"CAR-1","vehicle_type":"truck","max_weight_kg":5000,"coordinate":{"latitude":-1.28,"longitude":36.82}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("vehicle status = %d", rec.Code)
	}
	if loc, ok := env.svc.vehicle.Location(); !ok || loc.Latitude != -1.28 {
		t.Fatalf("vehicle location not passed: %+v", env.svc.vehicle)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/zones",
		`{"name":"Nairobi CBD","center":{"latitude":-1.28,"longitude":36.82},"radius_km":5,"base_cost":80,"cost_per_km":12}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("zone status = %d", rec.Code)
	}

	if rec, _ = env.do(t, http.MethodGet, "/api/v1/vehicles/VEH-1", ""); rec.Code != http.StatusOK {
		t.Fatalf("get vehicle status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	if rec, resp := env.do(t, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d", rec.Code)
	}

	env.svc.pingErr = errors.New("connection refused")
	if rec, resp := env.do(t, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusServiceUnavailable || resp.Success {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeadLetterAdmin(t *testing.T) {
	env := newTestEnv()

	rec, resp := env.do(t, http.MethodGet, "/api/v1/admin/dead-letters", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	page := resp.Data.(map[string]interface{})
	if page["total_count"].(float64) != 1 || page["status"] != "pending" {
		t.Fatalf("unexpected page %#v", page)
	}

	if rec, _ = env.do(t, http.MethodGet, "/api/v1/admin/dead-letters?status=lost", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status filter = %d", rec.Code)
	}

	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/1/retry", ""); rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d", rec.Code)
	}
	if len(env.dlq.requeued) != 1 || env.dlq.requeued[0] != 1 {
		t.Fatalf("requeued = %v", env.dlq.requeued)
	}

	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/2/retry", ""); rec.Code != http.StatusConflict {
		t.Fatalf("resolved retry status = %d", rec.Code)
	}
	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/99/retry", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing retry status = %d", rec.Code)
	}
	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/abc/retry", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rec.Code)
	}

	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/1/discard", `{"reason":"order cancelled"}`); rec.Code != http.StatusOK {
		t.Fatalf("discard status = %d", rec.Code)
	}
	if env.dlq.discarded[1] != "order cancelled" {
		t.Fatalf("discard reason = %q", env.dlq.discarded[1])
	}
	if rec, _ = env.do(t, http.MethodPost, "/api/v1/admin/dead-letters/99/discard", `{}`); rec.Code != http.StatusNotFound {
		t.Fatalf("missing discard status = %d", rec.Code)
	}
}

func TestCircuitBreakerAdmin(t *testing.T) {
	env := newTestEnv()
	env.breaker.Failure()

	_, resp := env.do(t, http.MethodGet, "/api/v1/admin/circuit-breaker", "")
	if state := resp.Data.(map[string]interface{})["state"]; state != "open" {
		t.Fatalf("state = %v, want open", state)
	}

	if rec, _ := env.do(t, http.MethodPost, "/api/v1/admin/circuit-breaker/reset", ""); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if env.breaker.GetState() != circuitbreaker.StateClosed {
		t.Fatalf("breaker not reset")
	}

	_, resp = env.do(t, http.MethodGet, "/api/v1/admin/rate-limits", "")
	if enabled := resp.Data.(map[string]interface{})["enabled"]; enabled != false {
		t.Fatalf("rate limits = %#v", resp.Data)
	}
}
