// Package analytics aggregates delivery records into carrier and zone metrics.
// Every function here is pure: callers supply the dataset.
package analytics

import (
	"strings"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// CarrierMetrics summarizes a carrier's deliveries over a period
type CarrierMetrics struct {
	CarrierID            string     `json:"carrier_id"`
	CarrierName          string     `json:"carrier_name,omitempty"`
	From                 *time.Time `json:"from,omitempty"`
	To                   *time.Time `json:"to,omitempty"`
	TotalDeliveries      int        `json:"total_deliveries"`
	SuccessfulDeliveries int        `json:"successful_deliveries"`
	FailedDeliveries     int        `json:"failed_deliveries"`
	SuccessRate          float64    `json:"success_rate"`
	OnTimeDeliveries     int        `json:"on_time_deliveries"`
	OnTimeRate           float64    `json:"on_time_rate"`
	RatedDeliveries      int        `json:"rated_deliveries"`
	AverageRating        float64    `json:"average_rating"`
	TotalRevenue         float64    `json:"total_revenue"`
}

// ZoneMetrics summarizes deliveries associated with a zone
type ZoneMetrics struct {
	ZoneID                     string   `json:"zone_id"`
	ZoneName                   string   `json:"zone_name"`
	TotalDeliveries            int      `json:"total_deliveries"`
	SuccessfulDeliveries       int      `json:"successful_deliveries"`
	SuccessRate                float64  `json:"success_rate"`
	AverageDeliveryTimeMinutes *float64 `json:"average_delivery_time_minutes"`
	BaseCost                   float64  `json:"base_cost"`
	CostPerKm                  float64  `json:"cost_per_km"`
	ServiceDays                string   `json:"service_days"`
	ServiceHours               string   `json:"service_hours"`
	IsActive                   bool     `json:"is_active"`
}

// Rate returns part/whole, or 0 when whole is 0.
func Rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// CarrierPerformance computes metrics for carrierID. Deliveries belonging to
// other carriers, or created outside [from, to], are ignored. Nil bounds are open.
func CarrierPerformance(carrierID string, deliveries []*models.Delivery, from, to *time.Time) CarrierMetrics {
	m := CarrierMetrics{CarrierID: carrierID, From: from, To: to}
	ratingSum := 0

	for _, d := range deliveries {
		if d.CarrierID != carrierID {
			continue
		}
		if from != nil && d.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && d.CreatedAt.After(*to) {
			continue
		}

		m.TotalDeliveries++
		m.TotalRevenue += d.DeliveryCost

		switch d.Status {
		case models.DeliveryStatusDelivered:
			m.SuccessfulDeliveries++
			if d.ActualDeliveryTime != nil && !d.ActualDeliveryTime.After(d.ScheduledDeliveryTime) {
				m.OnTimeDeliveries++
			}
		case models.DeliveryStatusFailed, models.DeliveryStatusCancelled:
			m.FailedDeliveries++
		}

		if d.Rating != nil {
			m.RatedDeliveries++
			ratingSum += *d.Rating
		}
	}

	m.SuccessRate = Rate(m.SuccessfulDeliveries, m.TotalDeliveries)
	m.OnTimeRate = Rate(m.OnTimeDeliveries, m.TotalDeliveries)
	if m.RatedDeliveries > 0 {
		m.AverageRating = float64(ratingSum) / float64(m.RatedDeliveries)
	}

	return m
}

// ZoneMatcher associates a delivery with a zone.
type ZoneMatcher func(zone *models.DeliveryZone, d *models.Delivery) bool

// MatchZone accepts a delivery whose drop-off address mentions the zone name,
// ignoring case, or whose drop-off lies inside the zone's geofence.
func MatchZone(zone *models.DeliveryZone, d *models.Delivery) bool {
	if zone.Name != "" && strings.Contains(strings.ToLower(d.DropoffAddress), strings.ToLower(zone.Name)) {
		return true
	}
	if center, radius, ok := zone.Geofence(); ok {
		return geo.Within(center, d.Dropoff(), radius)
	}
	return false
}

// ZoneAnalytics computes metrics for the deliveries match associates with zone.
// A nil match uses MatchZone.
func ZoneAnalytics(zone *models.DeliveryZone, deliveries []*models.Delivery, match ZoneMatcher) ZoneMetrics {
	if match == nil {
		match = MatchZone
	}

	m := ZoneMetrics{
		ZoneID:       zone.ID,
		ZoneName:     zone.Name,
		BaseCost:     zone.BaseCost,
		CostPerKm:    zone.CostPerKm,
		ServiceDays:  zone.ServiceDays,
		ServiceHours: zone.ServiceHours,
		IsActive:     zone.IsActive,
	}

	var totalMinutes float64
	timed := 0

	for _, d := range deliveries {
		if !match(zone, d) {
			continue
		}

		m.TotalDeliveries++
		if d.Status == models.DeliveryStatusDelivered {
			m.SuccessfulDeliveries++
		}

		if d.ActualPickupTime != nil && d.ActualDeliveryTime != nil {
			totalMinutes += d.ActualDeliveryTime.Sub(*d.ActualPickupTime).Minutes()
			timed++
		}
	}

	m.SuccessRate = Rate(m.SuccessfulDeliveries, m.TotalDeliveries)
	if timed > 0 {
		avg := totalMinutes / float64(timed)
		m.AverageDeliveryTimeMinutes = &avg
	}

	return m
}
