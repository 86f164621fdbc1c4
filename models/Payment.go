package models

import (
	"time"

	"gorm.io/gorm"
)

//goland:noinspection ALL
const (
	PSTATE_INITIATED = "initiated"
	PSTATE_AWAITING  = "awaiting_callback"
	PSTATE_CONFIRMED = "confirmed"
	PSTATE_FAILED    = "failed"
	PSTATE_EXPIRED   = "expired"
)

const PMETHOD_MPESA = "mpesa"

type Payment struct {
	gorm.Model

	BookingID uint `gorm:"index"`

	Amount        float64
	PhoneNumber   string
	PaymentMethod string

	IsPaid        bool
	TransactionID string
	PaymentDate   *time.Time

	State string `gorm:"index;default:initiated"`

	// Provider-issued id from the STK push acknowledgement; primary
	// correlation key for inbound callbacks.
	CheckoutRequestID string `gorm:"index"`
}
