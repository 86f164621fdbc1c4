package payments

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-m-josh/final-project-sub001/kernel"
	"github.com/dev-m-josh/final-project-sub001/models"
)

// PaymentStatus lets the booking flow poll where a payment stands while its
// callback is outstanding.
func PaymentStatus(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("payment_status.handler")

	paymentId := c.Param("id")

	var pmt models.Payment
	found, err := rt.First(&pmt, "id = ?", paymentId)
	if !found {
		if err != nil {
			rt.Ef(http.StatusInternalServerError, "failed to query database: %v", err)
			return
		}
		rt.Ef(http.StatusNotFound, "payment with ID '%s' not found", paymentId)
		return
	}

	var paidAt string
	if pmt.PaymentDate != nil {
		paidAt = pmt.PaymentDate.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, &gin.H{
		"paymentId":     pmt.ID,
		"bookingId":     pmt.BookingID,
		"state":         pmt.State,
		"isPaid":        pmt.IsPaid,
		"transactionId": pmt.TransactionID,
		"paymentDate":   paidAt,
	})
	rt.EndBlock()
}
