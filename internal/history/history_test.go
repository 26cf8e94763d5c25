package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()

	hist, err := NewHistory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return hist
}

func TestHistory_RecordDelivery(t *testing.T) {
	hist := newTestHistory(t)

	duration := 0.25
	commit := "abc123def456"
	id, err := hist.RecordDelivery(context.Background(), &Delivery{
		DeliveryID:      "72d3162e-cc78-11e3-81ab-4c9367dc0958",
		Event:           "push",
		Ref:             "refs/heads/main",
		Action:          ActionPulled,
		StatusCode:      200,
		SignatureStatus: "verified",
		DurationSeconds: &duration,
		CommitHash:      &commit,
	})
	if err != nil {
		t.Fatalf("Failed to record delivery: %v", err)
	}

	if id == 0 {
		t.Error("Expected non-zero delivery ID")
	}
}

func TestHistory_GetLatestDelivery(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	if _, err := hist.RecordDelivery(ctx, &Delivery{Event: "push", Action: ActionIgnored, StatusCode: 200}); err != nil {
		t.Fatalf("Failed to record first delivery: %v", err)
	}

	errMsg := "exit status 1"
	if _, err := hist.RecordDelivery(ctx, &Delivery{Event: "push", Action: ActionFailed, StatusCode: 500, ErrorMessage: &errMsg}); err != nil {
		t.Fatalf("Failed to record second delivery: %v", err)
	}

	latest, err := hist.GetLatestDelivery(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest delivery: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected latest delivery to be non-nil")
	}

	if latest.Action != ActionFailed {
		t.Errorf("Expected latest action %q, got %q", ActionFailed, latest.Action)
	}
	if latest.StatusCode != 500 {
		t.Errorf("Expected status code 500, got %d", latest.StatusCode)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != errMsg {
		t.Errorf("Expected error message %q, got %v", errMsg, latest.ErrorMessage)
	}
	if latest.ReceivedAt.IsZero() {
		t.Error("Expected received_at to be set")
	}
}

func TestHistory_GetLatestDelivery_NoRecords(t *testing.T) {
	hist := newTestHistory(t)

	latest, err := hist.GetLatestDelivery(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on empty table, got: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil on empty table, got: %v", latest)
	}
}

func TestHistory_ListDeliveries(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		duration := float64(i)
		_, err := hist.RecordDelivery(ctx, &Delivery{
			Event:           "push",
			Action:          ActionTouched,
			StatusCode:      200,
			ReceivedAt:      base.Add(time.Duration(i) * time.Minute),
			DurationSeconds: &duration,
		})
		if err != nil {
			t.Fatalf("Failed to record delivery %d: %v", i, err)
		}
	}

	deliveries, err := hist.ListDeliveries(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to list deliveries: %v", err)
	}

	if len(deliveries) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(deliveries))
	}

	// newest first
	if deliveries[0].DurationSeconds == nil || *deliveries[0].DurationSeconds != 4.0 {
		t.Errorf("Expected first record duration 4.0, got %v", deliveries[0].DurationSeconds)
	}
	if !deliveries[0].ReceivedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("Expected received_at %v, got %v", base.Add(4*time.Minute), deliveries[0].ReceivedAt)
	}
}

func TestHistory_ListDeliveries_Empty(t *testing.T) {
	hist := newTestHistory(t)

	deliveries, err := hist.ListDeliveries(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to list deliveries: %v", err)
	}
	if deliveries == nil || len(deliveries) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", deliveries)
	}
}

func TestHistory_ListDeliveries_InvalidLimit(t *testing.T) {
	hist := newTestHistory(t)

	for _, limit := range []int{0, -1} {
		if _, err := hist.ListDeliveries(context.Background(), limit); err == nil {
			t.Errorf("ListDeliveries(%d) should fail", limit)
		}
	}
}

func TestHistory_CountByAction(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	actions := []string{ActionPulled, ActionPulled, ActionIgnored, ActionRejected}
	for _, action := range actions {
		if _, err := hist.RecordDelivery(ctx, &Delivery{Action: action, StatusCode: 200}); err != nil {
			t.Fatalf("Failed to record delivery: %v", err)
		}
	}

	counts, err := hist.CountByAction(ctx)
	if err != nil {
		t.Fatalf("Failed to count deliveries: %v", err)
	}

	want := map[string]int{ActionPulled: 2, ActionIgnored: 1, ActionRejected: 1}
	if len(counts) != len(want) {
		t.Errorf("Expected %d actions, got %d (%v)", len(want), len(counts), counts)
	}
	for action, n := range want {
		if counts[action] != n {
			t.Errorf("Expected %d %q deliveries, got %d", n, action, counts[action])
		}
	}
}
