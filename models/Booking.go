package models

import (
	"time"

	"gorm.io/gorm"
)

// Booking rows are owned by the booking CRUD service; this service only
// references them from payments.
type Booking struct {
	gorm.Model

	UserID uint
	RoomID uint

	CheckIn  time.Time
	CheckOut time.Time

	TotalAmount float64

	Payments []Payment
}
