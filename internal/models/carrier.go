package models

import (
	"time"

	"github.com/lib/pq"
)

// Carrier is the transport company or individual that owns vehicles and
// accepts delivery assignments
type Carrier struct {
	ID                   string         `db:"id" json:"id"`
	Name                 string         `db:"name" json:"name"`
	Role                 string         `db:"role" json:"role"`
	RegistrationNumber   string         `db:"registration_number" json:"registration_number,omitempty"`
	Phone                string         `db:"phone" json:"phone,omitempty"`
	Email                string         `db:"email" json:"email,omitempty"`
	OperatingAreas       pq.StringArray `db:"operating_areas" json:"operating_areas"`
	IsVerified           bool           `db:"is_verified" json:"is_verified"`
	VerifiedAt           *time.Time     `db:"verified_at" json:"verified_at,omitempty"`
	IsActive             bool           `db:"is_active" json:"is_active"`
	IsAcceptingOrders    bool           `db:"is_accepting_orders" json:"is_accepting_orders"`
	TotalDeliveries      int            `db:"total_deliveries" json:"total_deliveries"`
	SuccessfulDeliveries int            `db:"successful_deliveries" json:"successful_deliveries"`
	AverageRating        float64        `db:"average_rating" json:"average_rating"`
	RatingCount          int            `db:"rating_count" json:"rating_count"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// CanAcceptDeliveries reports whether new assignments may go to the carrier
func (c *Carrier) CanAcceptDeliveries() bool {
	return c.IsActive && c.IsAcceptingOrders
}

// RecordOutcome counts a delivery that reached a terminal status.
func (c *Carrier) RecordOutcome(successful bool) {
	c.TotalDeliveries++
	if successful {
		c.SuccessfulDeliveries++
	}
}

// AddRating folds a 1-5 rating into the rolling average.
func (c *Carrier) AddRating(rating int) {
	total := c.AverageRating*float64(c.RatingCount) + float64(rating)
	c.RatingCount++
	c.AverageRating = total / float64(c.RatingCount)
}
