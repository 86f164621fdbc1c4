package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/dev-m-josh/final-project-sub001/kernel"
	"github.com/dev-m-josh/final-project-sub001/models"
	"github.com/dev-m-josh/final-project-sub001/mpesa"
)

type stubStore struct {
	checkouts map[string]uint
	payments  map[uint]*models.Payment

	findErr error
	markErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		checkouts: make(map[string]uint),
		payments:  make(map[uint]*models.Payment),
	}
}

func (s *stubStore) add(id uint, checkoutRequestID string) *models.Payment {
	p := &models.Payment{State: models.PSTATE_AWAITING}
	p.ID = id
	s.payments[id] = p
	if checkoutRequestID != "" {
		s.checkouts[checkoutRequestID] = id
	}
	return p
}

func (s *stubStore) FindIDByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (uint, error) {
	if s.findErr != nil {
		return 0, s.findErr
	}
	return s.checkouts[checkoutRequestID], nil
}

func (s *stubStore) MarkPaid(ctx context.Context, paymentID uint, receipt string) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return false, nil
	}
	if p.State != models.PSTATE_CONFIRMED {
		p.IsPaid = true
		p.TransactionID = receipt
		p.State = models.PSTATE_CONFIRMED
	}
	return true, nil
}

func (s *stubStore) MarkFailed(ctx context.Context, paymentID uint) (bool, error) {
	p, ok := s.payments[paymentID]
	if !ok {
		return false, nil
	}
	if p.State == models.PSTATE_AWAITING {
		p.State = models.PSTATE_FAILED
	}
	return true, nil
}

func newCallbackRouter(store mpesa.PaymentStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	art := &kernel.AppRuntime{
		Payments: store,
		Diagnostic: &kernel.AppDiagnostic{
			Tracer: otel.Tracer("test-tracer"),
			Meter:  otel.Meter("test-meter"),
		},
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		rt := kernel.InitRequest(art, c)
		c.Set("rt", rt)
		c.Next()
		rt.Finish()
	})
	r.POST("/payments/callback", PaymentCallback)
	return r
}

func postCallback(t *testing.T, r *gin.Engine, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/callback"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func successBody(checkoutRequestID string) string {
	return fmt.Sprintf(`{"Body":{"stkCallback":{"CheckoutRequestID":%q,"ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"MpesaReceiptNumber","Value":"QAX123"}]}}}}`, checkoutRequestID)
}

func assertAck(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var rsp struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rsp); err != nil {
		t.Fatalf("failed to unmarshal ACK body %q: %v", w.Body.String(), err)
	}
	if rsp.ResultCode != 0 {
		t.Errorf("ResultCode = %d, want 0", rsp.ResultCode)
	}
}

func TestPaymentCallback_AcksReconciledCallback(t *testing.T) {
	store := newStubStore()
	p := store.add(42, "ws_CO_1")
	r := newCallbackRouter(store)

	w := postCallback(t, r, "?paymentId=42", successBody("ws_CO_1"))

	assertAck(t, w)
	if !p.IsPaid || p.TransactionID != "QAX123" {
		t.Errorf("payment not settled: %+v", p)
	}
}

func TestPaymentCallback_AcksUnmatchedCorrelation(t *testing.T) {
	store := newStubStore()
	r := newCallbackRouter(store)

	// No payment exists for either correlation key; the gateway must still
	// be ACKed or it retries a notification we can never match.
	w := postCallback(t, r, "?paymentId=99", successBody("ws_CO_unknown"))

	assertAck(t, w)
}

func TestPaymentCallback_AcksInvalidCorrelation(t *testing.T) {
	store := newStubStore()
	store.add(42, "ws_CO_1")
	r := newCallbackRouter(store)

	for _, query := range []string{"", "?paymentId=abc", "?paymentId=0"} {
		w := postCallback(t, r, query, successBody(""))
		assertAck(t, w)
	}
	if store.payments[42].IsPaid {
		t.Error("invalid correlation must not settle anything")
	}
}

func TestPaymentCallback_AcksNoStkCallback(t *testing.T) {
	store := newStubStore()
	r := newCallbackRouter(store)

	w := postCallback(t, r, "?paymentId=42", `{"Body":{}}`)

	assertAck(t, w)
}

func TestPaymentCallback_AcksOnStoreError(t *testing.T) {
	store := newStubStore()
	store.add(42, "ws_CO_1")
	store.markErr = fmt.Errorf("connection refused")
	r := newCallbackRouter(store)

	w := postCallback(t, r, "?paymentId=42", successBody("ws_CO_1"))

	assertAck(t, w)
}

func TestPaymentCallback_AcksOnLookupError(t *testing.T) {
	store := newStubStore()
	store.findErr = fmt.Errorf("connection refused")
	r := newCallbackRouter(store)

	w := postCallback(t, r, "?paymentId=42", successBody("ws_CO_1"))

	assertAck(t, w)
}

func TestPaymentCallback_RejectsUnparseableBody(t *testing.T) {
	store := newStubStore()
	r := newCallbackRouter(store)

	w := postCallback(t, r, "?paymentId=42", `{"Body":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unparseable JSON", w.Code)
	}
}

func TestPaymentCallback_FailedResultAckedAndRetryable(t *testing.T) {
	store := newStubStore()
	p := store.add(42, "ws_CO_1")
	r := newCallbackRouter(store)

	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	w := postCallback(t, r, "?paymentId=42", body)

	assertAck(t, w)
	if p.IsPaid {
		t.Error("cancelled attempt must not mark the payment paid")
	}
	if p.State != models.PSTATE_FAILED {
		t.Errorf("State = %q, want failed", p.State)
	}
}
