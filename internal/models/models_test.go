package models

import (
	"strings"
	"testing"
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("DEL")
	if !strings.HasPrefix(id, "DEL-") || len(id) != 12 {
		t.Fatalf("GenerateID = %q", id)
	}
	if id == GenerateID("DEL") {
		t.Fatalf("ids should be unique")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := []DeliveryStatus{
		DeliveryStatusDelivered, DeliveryStatusCompleted, DeliveryStatusCancelled,
		DeliveryStatusReturned, DeliveryStatusFailed,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}

	open := []DeliveryStatus{
		DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit, DeliveryStatusOutForDelivery,
	}
	for _, s := range open {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}

	if DeliveryStatus("lost").IsValid() {
		t.Fatalf("unknown status reported valid")
	}
}

func TestVehicleLocationAndRating(t *testing.T) {
	v := &Vehicle{Make: "Isuzu", Model: "NPR", LicensePlate: "KBX 123A"}

	if _, ok := v.Location(); ok {
		t.Fatalf("new vehicle should have unknown location")
	}

	v.SetLocation(geo.Coordinate{Latitude: -1.28, Longitude: 36.82}, "Nairobi depot", time.Now())
	loc, ok := v.Location()
	if !ok || loc.Latitude != -1.28 {
		t.Fatalf("Location = %v, %v", loc, ok)
	}

	v.AddRating(5)
	v.AddRating(3)
	if v.AverageRating != 4 || v.RatingCount != 2 {
		t.Fatalf("rating = %v over %d", v.AverageRating, v.RatingCount)
	}

	if v.Descriptor() != "Isuzu NPR (KBX 123A)" {
		t.Fatalf("Descriptor = %q", v.Descriptor())
	}
}

func TestCoordinateColumns(t *testing.T) {
	raw, err := EncodeJSON([]geo.Coordinate{{Latitude: 1, Longitude: 2}})
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	cs, err := DecodeCoordinates(raw)
	if err != nil || len(cs) != 1 || cs[0].Longitude != 2 {
		t.Fatalf("DecodeCoordinates = %v, %v", cs, err)
	}

	c, err := DecodeCoordinate([]byte("null"))
	if err != nil || c != nil {
		t.Fatalf("null coordinate decoded to %v, %v", c, err)
	}
}

func TestOrderStatusMirrorEventRoundTrip(t *testing.T) {
	d := &Delivery{DeliveryID: "DEL-1", OrderRef: "ORD-9", CarrierID: "C1", Status: DeliveryStatusDelivered}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := NewOrderStatusMirrorEvent(d, OrderStatusDelivered, now)
	if err != nil {
		t.Fatalf("NewOrderStatusMirrorEvent: %v", err)
	}
	if msg.EventType != EventOrderStatusMirror || msg.AggregateID != "DEL-1" || msg.Status != OutboxStatusPending {
		t.Fatalf("unexpected message: %+v", msg)
	}

	var signal OrderStatusSignal
	event, err := DecodeEvent(msg.Payload, &signal)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if signal.OrderRef != "ORD-9" || signal.Status != OrderStatusDelivered {
		t.Fatalf("signal = %+v", signal)
	}
	if !event.OccurredAt.Equal(now) {
		t.Fatalf("OccurredAt = %v", event.OccurredAt)
	}
}

func TestStatusChangedEventCarriesRecipients(t *testing.T) {
	d := &Delivery{DeliveryID: "DEL-2", OrderRef: "ORD-1", CarrierID: "C7", DropoffContactPhone: "+254700000000", Status: DeliveryStatusPickedUp}

	msg, err := NewDeliveryStatusChangedEvent(d, DeliveryStatusAssigned, time.Now())
	if err != nil {
		t.Fatalf("NewDeliveryStatusChangedEvent: %v", err)
	}

	var n DeliveryNotification
	if _, err := DecodeEvent(msg.Payload, &n); err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if n.PreviousStatus != DeliveryStatusAssigned || n.NewStatus != DeliveryStatusPickedUp {
		t.Fatalf("notification = %+v", n)
	}
	if len(n.RecipientRefs) != 3 || n.RecipientRefs[0] != "carrier:C7" {
		t.Fatalf("RecipientRefs = %v", n.RecipientRefs)
	}
}
