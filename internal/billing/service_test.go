package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceai-billing/internal/audit"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/ledger"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string // kind entries in order
	fail bool
}

func (f *fakeNotifier) Notify(ctx context.Context, clientID, kind, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("notifier down")
	}
	f.sent = append(f.sent, kind)
	return nil
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func testPolicy() Policy {
	return Policy{
		DefaultRatePerMinuteMinor: 16,
		Currency:                  "USD",
		LowBalanceThresholdMinor:  500,
	}
}

func newTestService(store *MemoryStore, n *fakeNotifier, policy Policy) *Service {
	svc := NewService(store, n, audit.NewService(audit.NewMemoryRepo()), policy)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc
}

func seedClient(store *MemoryStore, balanceMinor int64) clients.Client {
	c := clients.Client{
		ID:           "client-1",
		Name:         "Acme Clinics",
		Email:        "billing@acme.test",
		WebhookToken: "tok-acme",
		Status:       clients.ClientStatusActive,
		Currency:     "USD",
		BalanceMinor: balanceMinor,
	}
	store.AddClient(c)
	return c
}

func callEvent(externalID string, durationMs int64) CallEvent {
	start := time.Unix(1699990000, 0).UTC()
	return CallEvent{
		ExternalID: externalID,
		StartedAt:  start,
		EndedAt:    start.Add(time.Duration(durationMs) * time.Millisecond),
		DurationMs: durationMs,
		Transcript: "hello",
		Successful: true,
		Sentiment:  "positive",
	}
}

func TestProcessCallEvent_BillsOnce(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 1000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	r, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("call-1", 61000))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Duplicate {
		t.Fatalf("first delivery must not be a duplicate")
	}
	if r.BillableMinutes != 2 || r.CostMinor != 32 {
		t.Fatalf("expected 2 min / 32 minor, got %d / %d", r.BillableMinutes, r.CostMinor)
	}
	if r.BalanceAfterMinor != 968 {
		t.Fatalf("expected balance 968, got %d", r.BalanceAfterMinor)
	}

	// Second delivery of the same event: success, no second charge.
	r2, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("call-1", 61000))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !r2.Duplicate {
		t.Fatalf("expected duplicate receipt")
	}
	if r2.BalanceAfterMinor != 968 {
		t.Fatalf("duplicate must not change balance, got %d", r2.BalanceAfterMinor)
	}

	if got := len(store.Calls()); got != 1 {
		t.Fatalf("expected exactly 1 call record, got %d", got)
	}
	if got := len(store.Transactions()); got != 1 {
		t.Fatalf("expected exactly 1 transaction, got %d", got)
	}
}

func TestProcessCallEvent_ConcurrentDuplicateDelivery(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 10000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("call-raced", 90000))
			if err != nil {
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(store.Calls()); got != 1 {
		t.Fatalf("expected 1 call record under race, got %d", got)
	}
	txs := store.Transactions()
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction under race, got %d", len(txs))
	}
	c, _ := store.ClientByID(context.Background(), "client-1")
	if c.BalanceMinor != 10000-32 {
		t.Fatalf("expected single debit, balance %d", c.BalanceMinor)
	}
}

func TestProcessCallEvent_CostRounding(t *testing.T) {
	cases := []struct {
		durationMs int64
		wantCost   int64
	}{
		{1500, 16},
		{61000, 32},
		{120000, 32},
	}
	for _, tc := range cases {
		store := NewMemoryStore()
		seedClient(store, 1000)
		svc := newTestService(store, &fakeNotifier{}, testPolicy())

		r, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("call-x", tc.durationMs))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if r.CostMinor != tc.wantCost {
			t.Fatalf("duration %d: expected cost %d, got %d", tc.durationMs, tc.wantCost, r.CostMinor)
		}
	}
}

func TestProcessCallEvent_PerClientRateOverride(t *testing.T) {
	store := NewMemoryStore()
	store.AddClient(clients.Client{
		ID:                 "client-2",
		WebhookToken:       "tok-premium",
		Status:             clients.ClientStatusActive,
		Currency:           "USD",
		RatePerMinuteMinor: 25,
		BalanceMinor:       1000,
	})
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	r, err := svc.ProcessCallEvent(context.Background(), "tok-premium", callEvent("call-p", 61000))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.CostMinor != 50 {
		t.Fatalf("expected per-client rate 25*2=50, got %d", r.CostMinor)
	}
}

type fixedRates struct{ rate int64 }

func (f fixedRates) RateFor(ctx context.Context, client clients.Client, at time.Time) int64 {
	return f.rate
}

func TestProcessCallEvent_RateSourceOverridesClientRate(t *testing.T) {
	store := NewMemoryStore()
	store.AddClient(clients.Client{
		ID:                 "client-3",
		WebhookToken:       "tok-plan",
		Status:             clients.ClientStatusActive,
		Currency:           "USD",
		RatePerMinuteMinor: 20,
		BalanceMinor:       1000,
	})
	svc := newTestService(store, &fakeNotifier{}, testPolicy()).WithRateSource(fixedRates{rate: 10})

	r, err := svc.ProcessCallEvent(context.Background(), "tok-plan", callEvent("call-rs", 61000))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.CostMinor != 20 {
		t.Fatalf("expected plan rate 10*2=20, got %d", r.CostMinor)
	}
}

func TestProcessCallEvent_LedgerConsistency(t *testing.T) {
	store := NewMemoryStore()
	c := seedClient(store, 1000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	events := []struct {
		id  string
		dur int64
	}{
		{"c1", 1500}, {"c2", 61000}, {"c3", 120000}, {"c4", 30000},
	}
	for _, ev := range events {
		if _, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent(ev.id, ev.dur)); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}

	var sum int64
	for _, tx := range store.Transactions() {
		if !tx.Consistent() {
			t.Fatalf("inconsistent transaction: %+v", tx)
		}
		sum += tx.AmountMinor
	}
	cur, _ := store.ClientByID(context.Background(), c.ID)
	if cur.BalanceMinor != c.BalanceMinor+sum {
		t.Fatalf("balance %d != initial %d + sum %d", cur.BalanceMinor, c.BalanceMinor, sum)
	}
}

func TestProcessCallEvent_LowBalanceCrossingNotifiesOnce(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 600) // 6.00, threshold 5.00
	n := &fakeNotifier{}
	svc := newTestService(store, n, testPolicy())

	// 10 minutes at 16 minor -> 160 deduction: 600 -> 440, crosses 500.
	if _, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("lc-1", 10*60*1000)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if kinds := n.kinds(); len(kinds) != 1 || kinds[0] != "low_balance" {
		t.Fatalf("expected exactly one low_balance notification, got %v", kinds)
	}

	// Next deduction stays below threshold: no second alert.
	if _, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("lc-2", 10*60*1000)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if kinds := n.kinds(); len(kinds) != 1 {
		t.Fatalf("expected no further notifications, got %v", kinds)
	}
}

func TestProcessCallEvent_NotifierFailureDoesNotFailBilling(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 600)
	n := &fakeNotifier{fail: true}
	svc := newTestService(store, n, testPolicy())

	r, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("nf-1", 10*60*1000))
	if err != nil {
		t.Fatalf("billing must not fail on notifier error: %v", err)
	}
	if r.BalanceAfterMinor != 440 {
		t.Fatalf("expected debit applied, balance %d", r.BalanceAfterMinor)
	}
}

func TestProcessCallEvent_UnknownTokenRejected(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 1000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	_, err := svc.ProcessCallEvent(context.Background(), "tok-bogus", callEvent("call-1", 61000))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(store.Calls()) != 0 || len(store.Transactions()) != 0 {
		t.Fatalf("rejection must not write rows")
	}
}

func TestProcessCallEvent_MissingCallIDRejected(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 1000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	_, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("", 61000))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(store.Calls()) != 0 || len(store.Transactions()) != 0 {
		t.Fatalf("rejection must not write rows")
	}
}

func TestProcessCallEvent_ZeroDurationRecordsCallWithoutCharge(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 1000)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	r, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("zero-1", 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.CostMinor != 0 || r.BillableMinutes != 0 {
		t.Fatalf("zero duration must not bill, got %d / %d", r.CostMinor, r.BillableMinutes)
	}
	if len(store.Calls()) != 1 {
		t.Fatalf("expected call record")
	}
	if len(store.Transactions()) != 0 {
		t.Fatalf("zero-cost call must not write a transaction")
	}
}

func TestProcessCallEvent_SuspendsOnNegativeBalance(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 10) // 0.10
	policy := testPolicy()
	policy.SuspendOnNegative = true
	svc := newTestService(store, &fakeNotifier{}, policy)

	r, err := svc.ProcessCallEvent(context.Background(), "tok-acme", callEvent("neg-1", 61000))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.BalanceAfterMinor != -22 {
		t.Fatalf("expected balance -22, got %d", r.BalanceAfterMinor)
	}
	c, _ := store.ClientByID(context.Background(), "client-1")
	if c.Status != clients.ClientStatusSuspended {
		t.Fatalf("expected client suspended, got %q", c.Status)
	}
}

func TestProcessPayment_CreditsOncePerEventID(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 100)
	n := &fakeNotifier{}
	svc := newTestService(store, n, testPolicy())

	ev := PaymentEvent{EventID: "evt_1", ClientID: "client-1", AmountMinor: 2500, Kind: ledger.TransactionKindRecharge}

	r, err := svc.ProcessPayment(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Duplicate || r.BalanceAfterMinor != 2600 {
		t.Fatalf("expected credit to 2600, got %+v", r)
	}

	r2, err := svc.ProcessPayment(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !r2.Duplicate {
		t.Fatalf("expected duplicate receipt")
	}
	if r2.BalanceAfterMinor != 2600 {
		t.Fatalf("duplicate must not re-credit, got %d", r2.BalanceAfterMinor)
	}
	if len(store.Transactions()) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.Transactions()))
	}
	if kinds := n.kinds(); len(kinds) != 1 || kinds[0] != "recharge" {
		t.Fatalf("expected one recharge notification, got %v", kinds)
	}
}

func TestProcessPayment_ValidatesKindAndAmount(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 100)
	svc := newTestService(store, &fakeNotifier{}, testPolicy())

	_, err := svc.ProcessPayment(context.Background(), PaymentEvent{EventID: "e", ClientID: "client-1", AmountMinor: 0, Kind: ledger.TransactionKindRecharge})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for zero amount, got %v", err)
	}

	_, err = svc.ProcessPayment(context.Background(), PaymentEvent{EventID: "e", ClientID: "client-1", AmountMinor: 100, Kind: ledger.TransactionKindCallCharge})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for bad kind, got %v", err)
	}

	_, err = svc.ProcessPayment(context.Background(), PaymentEvent{EventID: "e", ClientID: "ghost", AmountMinor: 100, Kind: ledger.TransactionKindRecharge})
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestAdjustBalance_WritesAuditTrail(t *testing.T) {
	store := NewMemoryStore()
	seedClient(store, 100)
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(store, &fakeNotifier{}, audit.NewService(auditRepo), testPolicy())
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	res, err := svc.AdjustBalance(context.Background(), "staff-1", "admin", "10.0.0.1", "client-1", -40, "billing correction")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.BalanceAfterMinor != 60 {
		t.Fatalf("expected balance 60, got %d", res.BalanceAfterMinor)
	}

	evs := auditRepo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(evs))
	}
	if evs[0].Type != audit.EventTypeBalanceAdjustment || evs[0].TransactionID != res.TransactionID {
		t.Fatalf("unexpected audit event: %+v", evs[0])
	}

	if _, err := svc.AdjustBalance(context.Background(), "staff-1", "admin", "", "client-1", 0, "nope"); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for zero delta, got %v", err)
	}
	if _, err := svc.AdjustBalance(context.Background(), "staff-1", "admin", "", "client-1", 10, ""); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for missing reason, got %v", err)
	}
}
