// Package lifecycle enforces the delivery status state machine.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
)

// position on the forward chain; side branches are absent
var chain = map[models.DeliveryStatus]int{
	models.DeliveryStatusAssigned:       0,
	models.DeliveryStatusPickedUp:       1,
	models.DeliveryStatusInTransit:      2,
	models.DeliveryStatusOutForDelivery: 3,
	models.DeliveryStatusDelivered:      4,
	models.DeliveryStatusCompleted:      5,
}

// CheckTransition reports whether a delivery in status from may move to status to.
//
// Terminal states admit nothing. Repeating the current status is allowed so that
// additional checkpoints can be recorded. Moves along the forward chain may skip
// steps but never go back. Failed, returned and cancelled are reachable from any
// non-terminal status.
func CheckTransition(from, to models.DeliveryStatus) error {
	if !to.IsValid() {
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if from.IsTerminal() {
		return apperrors.NewConflictError(fmt.Sprintf("delivery is %s and can no longer change status", from)).
			WithContext("from", string(from)).
			WithContext("to", string(to))
	}
	if from == to {
		return nil
	}

	toPos, onChain := chain[to]
	if !onChain {
		return nil
	}

	fromPos, ok := chain[from]
	if !ok {
		return apperrors.NewValidationError("status", fmt.Sprintf("cannot move from %s to %s", from, to))
	}
	if toPos < fromPos {
		return apperrors.NewValidationError("status", fmt.Sprintf("cannot move back from %s to %s", from, to))
	}

	return nil
}

// Apply moves d to status to at the given time, setting the first-occurrence
// timestamps. It does not validate; call CheckTransition first.
func Apply(d *models.Delivery, to models.DeliveryStatus, at time.Time) {
	switch to {
	case models.DeliveryStatusPickedUp:
		if d.ActualPickupTime == nil {
			d.ActualPickupTime = &at
		}
	case models.DeliveryStatusDelivered:
		if d.ActualDeliveryTime == nil {
			d.ActualDeliveryTime = &at
		}
	}

	d.Status = to
	d.UpdatedAt = at
}

// StatusMessage is the checkpoint text written for a status change.
func StatusMessage(to models.DeliveryStatus) string {
	return "Status updated to: " + string(to)
}

// ReleasesVehicle reports whether reaching to frees the assigned vehicle.
func ReleasesVehicle(to models.DeliveryStatus) bool {
	return to.IsTerminal()
}
