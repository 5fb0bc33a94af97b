package order

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the state of a stock reservation
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFinalized ReservationStatus = "finalized"
	ReservationReleased  ReservationStatus = "released"
)

// ReservationRequest asks to hold quantity of a variant
type ReservationRequest struct {
	VariantID uuid.UUID
	Quantity  int
	Name      string // used in the insufficient-stock message
}

// StockReservation holds inventory for an open checkout session
type StockReservation struct {
	ID         uuid.UUID
	VariantID  uuid.UUID
	Quantity   int
	SessionKey string
	Status     ReservationStatus
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Available returns inventory minus active reservations, never negative
func Available(inventory, reserved int) int {
	if a := inventory - reserved; a > 0 {
		return a
	}
	return 0
}
