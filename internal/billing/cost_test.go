package billing

import "testing"

func TestBillableMinutes(t *testing.T) {
	cases := []struct {
		durationMs int64
		want       int
	}{
		{0, 0},
		{-5, 0},
		{500, 1},    // sub-second call still bills a full minute
		{1500, 1},   // 1.5s -> 1 min
		{59999, 1},  // 59s -> 1 min
		{60000, 1},  // 60s exactly -> 1 min
		{61000, 2},  // 61s -> 2 min
		{120000, 2}, // 120s exactly -> 2 min
		{120999, 2}, // floor to 120s -> 2 min
		{121000, 3},
	}
	for _, c := range cases {
		if got := billableMinutes(c.durationMs); got != c.want {
			t.Fatalf("billableMinutes(%d) = %d, want %d", c.durationMs, got, c.want)
		}
	}
}

func TestCallCostMinor(t *testing.T) {
	// At the platform rate of 16 minor units per minute.
	cases := []struct {
		durationMs int64
		want       int64
	}{
		{1500, 16},
		{61000, 32},
		{120000, 32},
	}
	for _, c := range cases {
		if got := callCostMinor(c.durationMs, 16); got != c.want {
			t.Fatalf("callCostMinor(%d, 16) = %d, want %d", c.durationMs, got, c.want)
		}
	}
}

func TestCrossedLowBalance(t *testing.T) {
	if !crossedLowBalance(600, 450, 500) {
		t.Fatalf("expected crossing from 600 to 450")
	}
	if crossedLowBalance(450, 300, 500) {
		t.Fatalf("already below threshold must not re-trigger")
	}
	if crossedLowBalance(600, 550, 500) {
		t.Fatalf("staying above threshold must not trigger")
	}
	if !crossedLowBalance(500, 499, 500) {
		t.Fatalf("expected crossing from exactly at threshold")
	}
}
