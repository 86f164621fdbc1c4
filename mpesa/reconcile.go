package mpesa

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// PaymentStore is the slice of the payment record store the reconciler
// needs. The production implementation is backed by the relational store;
// tests use an in-memory fake.
type PaymentStore interface {
	// FindIDByCheckoutRequestID resolves a provider-issued checkout request
	// id to a payment id, returning 0 when no payment carries it.
	FindIDByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (uint, error)

	// MarkPaid applies the settlement as a single conditional update keyed
	// by payment id: paid flag, receipt, confirmed state, payment date.
	// Re-applying it to an already-confirmed payment is a no-op that still
	// reports found=true. found=false means no such payment exists.
	MarkPaid(ctx context.Context, paymentID uint, receipt string) (found bool, err error)

	// MarkFailed records a failed or cancelled attempt. Only a payment
	// still awaiting its callback transitions; paid fields are untouched,
	// so the payment stays retryable by a new initiate.
	MarkFailed(ctx context.Context, paymentID uint) (found bool, err error)
}

// Reconciler correlates inbound gateway notifications to payment records and
// transitions each record at most once. Safe for concurrent use: every
// mutation is a conditional update scoped by payment id, so duplicate
// callbacks for the same payment converge to the same final state.
type Reconciler struct {
	store PaymentStore
}

func NewReconciler(store PaymentStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile processes one provider notification. correlationID is the raw
// paymentId query parameter echoed back on the callback URL; the
// provider-issued checkout request id inside the envelope takes precedence
// when it resolves, the query parameter is the fallback.
//
// The returned error is for logging and classification only -- the webhook
// must ACK the provider for every syntactically parseable callback, whatever
// Reconcile reports.
func (rc *Reconciler) Reconcile(ctx context.Context, correlationID string, envelope *CallbackEnvelope) error {
	cb := envelope.Body.StkCallback
	if cb == nil {
		return fmt.Errorf("%w: envelope carries no stkCallback", ErrInvalidCorrelation)
	}

	paymentID, err := rc.resolvePaymentID(ctx, correlationID, cb)
	if err != nil {
		return err
	}

	if !cb.Succeeded() {
		log.Info().
			Uint("payment_id", paymentID).
			Int("result_code", cb.ResultCode).
			Str("result_desc", cb.ResultDesc).
			Msg("payment attempt failed; leaving record unpaid")

		found, err := rc.store.MarkFailed(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to record failed attempt: %v", err)
		}
		if !found {
			return fmt.Errorf("%w: payment %d", ErrUnreconciledCallback, paymentID)
		}
		return nil
	}

	receipt, ok := cb.ReceiptNumber()
	if !ok {
		// Tolerated, but a successful callback should carry a receipt.
		log.Warn().Uint("payment_id", paymentID).Msg("successful callback carries no receipt number")
	}

	found, err := rc.store.MarkPaid(ctx, paymentID, receipt)
	if err != nil {
		return fmt.Errorf("failed to mark payment %d paid: %v", paymentID, err)
	}
	if !found {
		return fmt.Errorf("%w: payment %d", ErrUnreconciledCallback, paymentID)
	}

	log.Info().Uint("payment_id", paymentID).Str("receipt", receipt).Msg("payment reconciled")
	return nil
}

func (rc *Reconciler) resolvePaymentID(ctx context.Context, correlationID string, cb *StkCallback) (uint, error) {
	if cb.CheckoutRequestID != "" {
		id, err := rc.store.FindIDByCheckoutRequestID(ctx, cb.CheckoutRequestID)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve checkout request id: %v", err)
		}
		if id != 0 {
			return id, nil
		}
	}

	n, err := strconv.ParseUint(correlationID, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCorrelation, correlationID)
	}
	return uint(n), nil
}
