package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"
	"go.opentelemetry.io/otel/trace"
)

const timestampLayout = "20060102150405"

type Config struct {
	BaseURL string // sandbox or production API host

	Shortcode      string
	Passkey        string
	ConsumerKey    string
	ConsumerSecret string

	// CallbackURL is the publicly reachable webhook; the payment id is
	// appended as a query parameter so the callback can be correlated
	// even when the provider omits the checkout request id.
	CallbackURL string
}

// Client talks to the Daraja STK push API. It owns a TokenCache, so a single
// Client instance should be shared by all request handlers.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *TokenCache
}

func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	c.tokens = NewTokenCache(c.exchangeToken)
	return c
}

// newClientWithHTTP points the client at a fake gateway in tests.
func newClientWithHTTP(cfg Config, httpClient *http.Client) *Client {
	c := &Client{cfg: cfg, http: httpClient}
	c.tokens = NewTokenCache(c.exchangeToken)
	return c
}

// Acknowledgement is the gateway's synchronous response to an STK push. It
// means the push was accepted, not that anything was paid.
type Acknowledgement struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkPushRequest struct {
	BusinessShortCode string  `json:"BusinessShortCode"`
	Password          string  `json:"Password"`
	Timestamp         string  `json:"Timestamp"`
	TransactionType   string  `json:"TransactionType"`
	Amount            float64 `json:"Amount"`
	PartyA            string  `json:"PartyA"`
	PartyB            string  `json:"PartyB"`
	PhoneNumber       string  `json:"PhoneNumber"`
	CallBackURL       string  `json:"CallBackURL"`
	AccountReference  string  `json:"AccountReference"`
	TransactionDesc   string  `json:"TransactionDesc"`
}

type stkPushError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// password is provider-mandated: base64(shortcode || passkey || timestamp).
// The timestamp is time-bound, so this is recomputed per request, never
// cached.
func (c *Client) password(ts time.Time) (string, string) {
	timestamp := ts.Format(timestampLayout)
	raw := c.cfg.Shortcode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw)), timestamp
}

// STKPush submits a push-payment request for the given payment record. The
// phone is normalized first; a bad phone fails before any network call.
// Success only means the provider accepted the instruction -- the payment is
// settled later (or never) via the callback.
func (c *Client) STKPush(ctx context.Context, paymentID uint, amount float64, rawPhone string) (*Acknowledgement, error) {
	span := trace.SpanFromContext(ctx)

	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := c.password(time.Now())

	payload := &stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       fmt.Sprintf("%s?paymentId=%d", c.cfg.CallbackURL, paymentID),
		AccountReference:  fmt.Sprintf("booking-payment-%d", paymentID),
		TransactionDesc:   "Hotel booking payment",
	}

	j, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not marshal data: %v", err)
	}

	u := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", c.cfg.BaseURL)
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewBuffer(j))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %v", err)
	}

	requestId := uuid.NewString()
	r.Header.Add("Content-Type", "application/json")
	r.Header.Add("Authorization", "Bearer "+token)
	r.Header.Add("X-Request-ID", requestId)
	span.SetAttributes(attribute.KeyValue("mpesa.request_id", requestId))

	rsp, err := c.http.Do(r)
	if err != nil {
		return nil, fmt.Errorf("%w: could not execute request: %v", ErrPushPaymentRejected, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Warn().Err(err).Msg("could not close response body")
		}
	}(rsp.Body)

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	span.SetAttributes(attribute.KeyValue("mpesa.response", string(body)))

	if rsp.StatusCode != http.StatusOK {
		var e stkPushError
		if err := json.Unmarshal(body, &e); err == nil && e.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrPushPaymentRejected, e.ErrorMessage, e.ErrorCode)
		}
		return nil, fmt.Errorf("%w: gateway returned a non-OK status code: %d", ErrPushPaymentRejected, rsp.StatusCode)
	}

	var ack Acknowledgement
	if err = json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("could not unmarshal data: %v", err)
	}
	if ack.ResponseCode != "" && ack.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrPushPaymentRejected, ack.ResponseDescription)
	}

	return &ack, nil
}
