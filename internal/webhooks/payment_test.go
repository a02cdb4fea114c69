package webhooks

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voiceai-billing/internal/billing"

	"github.com/gin-gonic/gin"
)

var paymentNow = time.Unix(1700000000, 0).UTC()

func paymentRouter(svc *billing.Service, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &PaymentHandler{
		Billing:   svc,
		Secret:    []byte(secret),
		Tolerance: 5 * time.Minute,
		clock:     func() time.Time { return paymentNow },
	}
	r := gin.New()
	r.POST("/webhooks/payments", h.Handle)
	return r
}

func postPayment(r *gin.Engine, body, sig string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	r.ServeHTTP(w, req)
	return w
}

const rechargeBody = `{"id":"evt_42","client_id":"client-1","amount_minor":2500,"currency":"USD","kind":"recharge"}`

func TestPaymentWebhook_CreditsBalance(t *testing.T) {
	store, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")

	sig := Sign([]byte("whsec_test"), paymentNow, []byte(rechargeBody))
	w := postPayment(r, rechargeBody, sig)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"balance_after_minor":12500`) {
		t.Fatalf("expected credited balance, got %s", w.Body.String())
	}
	if len(store.Transactions()) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.Transactions()))
	}
}

func TestPaymentWebhook_DuplicateEventIsAcknowledged(t *testing.T) {
	store, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")
	sig := Sign([]byte("whsec_test"), paymentNow, []byte(rechargeBody))

	if w := postPayment(r, rechargeBody, sig); w.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", w.Code)
	}
	w := postPayment(r, rechargeBody, sig)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "already_processed") {
		t.Fatalf("expected already_processed, got %s", w.Body.String())
	}
	if len(store.Transactions()) != 1 {
		t.Fatalf("duplicate must not re-credit")
	}
}

func TestPaymentWebhook_RejectsBadSignature(t *testing.T) {
	store, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")

	cases := []struct {
		name string
		sig  string
	}{
		{"missing header", ""},
		{"wrong secret", Sign([]byte("whsec_other"), paymentNow, []byte(rechargeBody))},
		{"stale timestamp", Sign([]byte("whsec_test"), paymentNow.Add(-time.Hour), []byte(rechargeBody))},
		{"garbage", "t=abc,v1=zz"},
	}
	for _, tc := range cases {
		if w := postPayment(r, rechargeBody, tc.sig); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
	if len(store.Transactions()) != 0 {
		t.Fatalf("rejected deliveries must write nothing")
	}
}

func TestPaymentWebhook_SignatureCoversExactBody(t *testing.T) {
	store, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")

	tampered := strings.Replace(rechargeBody, "2500", "250000", 1)
	sig := Sign([]byte("whsec_test"), paymentNow, []byte(rechargeBody))
	if w := postPayment(r, tampered, sig); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered body, got %d", w.Code)
	}
	if len(store.Transactions()) != 0 {
		t.Fatalf("tampered delivery must write nothing")
	}
}

func TestPaymentWebhook_ValidationErrors(t *testing.T) {
	_, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")

	sign := func(body string) string { return Sign([]byte("whsec_test"), paymentNow, []byte(body)) }

	badKind := `{"id":"evt_1","client_id":"client-1","amount_minor":100,"kind":"refund"}`
	if w := postPayment(r, badKind, sign(badKind)); w.Code != http.StatusBadRequest {
		t.Fatalf("bad kind: expected 400, got %d", w.Code)
	}

	zeroAmount := `{"id":"evt_2","client_id":"client-1","amount_minor":0,"kind":"recharge"}`
	if w := postPayment(r, zeroAmount, sign(zeroAmount)); w.Code != http.StatusBadRequest {
		t.Fatalf("zero amount: expected 400, got %d", w.Code)
	}

	ghost := `{"id":"evt_3","client_id":"ghost","amount_minor":100,"kind":"recharge"}`
	if w := postPayment(r, ghost, sign(ghost)); w.Code != http.StatusNotFound {
		t.Fatalf("unknown client: expected 404, got %d", w.Code)
	}
}

func TestPaymentWebhook_SubscriptionKind(t *testing.T) {
	store, svc := newBillingFixture()
	r := paymentRouter(svc, "whsec_test")

	body := `{"id":"evt_sub","client_id":"client-1","amount_minor":9900,"kind":"subscription"}`
	w := postPayment(r, body, Sign([]byte("whsec_test"), paymentNow, []byte(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	txs := store.Transactions()
	if len(txs) != 1 || string(txs[0].Kind) != "subscription" {
		t.Fatalf("expected subscription transaction, got %+v", txs)
	}
}
