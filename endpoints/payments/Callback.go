package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dev-m-josh/final-project-sub001/kernel"
	"github.com/dev-m-josh/final-project-sub001/mpesa"
)

// PaymentCallback is the webhook Daraja posts the asynchronous STK result
// to. Every syntactically parseable callback is ACKed with ResultCode 0,
// whatever reconciliation decided -- anything else invites provider-side
// retry storms for notifications this service can never match.
func PaymentCallback(c *gin.Context) {
	rt := c.MustGet("rt").(*kernel.RequestRuntime)
	rt.NewChildTracer("payment_callback.handler")

	var envelope mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		rt.Ef(http.StatusBadRequest, "invalid callback body: %v", err)
		return
	}

	correlationId := c.Query("paymentId")

	reconciler := mpesa.NewReconciler(rt.AppRuntime.Payments)
	err := reconciler.Reconcile(rt.SpanContext, correlationId, &envelope)

	outcome := "reconciled"
	switch {
	case err == nil:
	case errors.Is(err, mpesa.ErrInvalidCorrelation):
		outcome = "invalid_correlation"
		log.Warn().Err(err).Str("correlation_id", correlationId).Msg("dropping malformed callback")
	case errors.Is(err, mpesa.ErrUnreconciledCallback):
		outcome = "unmatched"
		log.Warn().Err(err).Str("correlation_id", correlationId).Msg("callback matches no payment; treating as unreconcilable")
	default:
		outcome = "error"
		log.Error().Err(err).Str("correlation_id", correlationId).Msg("reconciliation failed")
		rt.Span.RecordError(err)
	}

	rt.AppRuntime.Diagnostic.CountCallback(rt.SpanContext, outcome)

	c.JSON(http.StatusOK, &gin.H{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
	rt.EndBlock()
}
