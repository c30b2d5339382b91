package domain

import (
	"time"

	"github.com/google/uuid"
)

type OperationType string

const (
	OperationAdjustment  OperationType = "Adjustment"
	OperationReservation OperationType = "Reservation"
)

// Known reports whether the coordinator knows how to apply the type.
func (t OperationType) Known() bool {
	return t == OperationAdjustment || t == OperationReservation
}

// Operation is a single submitted mutation. OperationID is the idempotency key.
type Operation struct {
	OperationID     uuid.UUID     `json:"operation_id"`
	Sku             int64         `json:"sku"`
	Delta           int           `json:"delta"`
	Type            OperationType `json:"type"`
	Reason          string        `json:"reason,omitempty"`
	ExpectedVersion int           `json:"expected_version"`
	StoreID         string        `json:"store_id"`
	SubmittedAt     time.Time     `json:"submitted_at"`
}

type ChangeLogEntry struct {
	Position  int64     `json:"position"`
	Operation Operation `json:"operation"`
}
