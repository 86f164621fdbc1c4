package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	val "github.com/go-ozzo/ozzo-validation"
	"go.nhat.io/otelsql/attribute"

	"github.com/dev-m-josh/final-project-sub001/assert"
	"github.com/dev-m-josh/final-project-sub001/kernel"
	"github.com/dev-m-josh/final-project-sub001/models"
	"github.com/dev-m-josh/final-project-sub001/mpesa"
)

type InitiatePaymentDto struct {
	BookingId uint    `json:"bookingId"`
	Amount    float64 `json:"amount"`
	Phone     string  `json:"phone"`
}

func (dto InitiatePaymentDto) Validate() error {
	return val.ValidateStruct(&dto,
		val.Field(&dto.BookingId, val.Required),
		val.Field(&dto.Amount, val.Required, val.Min(0.01)),
		val.Field(&dto.Phone, val.Required),
	)
}

// InitiatePayment creates (or reuses) the payment record for a booking and
// submits the STK push. A 201 here only means the gateway accepted the
// instruction; the record stays unpaid until its callback is reconciled.
func InitiatePayment(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("payment_initiate.handler")

	assert.NotNil(rt.AppRuntime.Mpesa, "mpesa client != nil")

	var dto InitiatePaymentDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		rt.Ef(http.StatusBadRequest, "bad request: %v", err)
		return
	}
	if err := dto.Validate(); err != nil {
		rt.E(http.StatusBadRequest, err)
		return
	}

	// Reject a bad phone before any record or network call is made.
	phone, err := mpesa.NormalizePhone(dto.Phone)
	if err != nil {
		rt.E(http.StatusBadRequest, err)
		return
	}

	var booking models.Booking
	found, err := rt.First(&booking, "id = ?", dto.BookingId)
	if !found {
		if err != nil {
			rt.Ef(http.StatusInternalServerError, "failed to query database: %v", err)
			return
		}
		rt.Ef(http.StatusNotFound, "booking with ID '%d' not found", dto.BookingId)
		return
	}

	// An earlier unpaid attempt for the booking is retried on the same
	// record rather than piling up rows.
	pmt := models.Payment{
		BookingID:     booking.ID,
		PaymentMethod: models.PMETHOD_MPESA,
		State:         models.PSTATE_INITIATED,
	}
	_, err = rt.First(&pmt, "booking_id = ? AND is_paid = ?", booking.ID, false)
	if err != nil {
		rt.Ef(http.StatusInternalServerError, "failed to query database: %v", err)
		return
	}

	pmt.Amount = dto.Amount
	pmt.PhoneNumber = phone
	pmt.State = models.PSTATE_INITIATED

	result := rt.DB.Save(&pmt)
	if result.Error != nil {
		rt.Ef(http.StatusInternalServerError, "failed to save payment: %v", result.Error)
		return
	}

	rt.Span.SetAttributes(attribute.KeyValue("payment.id", int(pmt.ID)))

	ack, err := rt.AppRuntime.Mpesa.STKPush(rt.SpanContext, pmt.ID, dto.Amount, dto.Phone)
	if err != nil {
		if errors.Is(err, mpesa.ErrInvalidPhoneFormat) {
			rt.E(http.StatusBadRequest, err)
			return
		}
		rt.Ef(http.StatusBadGateway, "failed to initiate payment: %v", err)
		return
	}

	pmt.CheckoutRequestID = ack.CheckoutRequestID
	pmt.State = models.PSTATE_AWAITING

	result = rt.DB.Save(&pmt)
	if result.Error != nil {
		rt.Ef(http.StatusInternalServerError, "failed to save payment: %v", result.Error)
		return
	}

	c.JSON(http.StatusCreated, &gin.H{
		"paymentId":         pmt.ID,
		"merchantRequestId": ack.MerchantRequestID,
		"checkoutRequestId": ack.CheckoutRequestID,
		"customerMessage":   ack.CustomerMessage,
	})
	rt.EndBlock()
}
