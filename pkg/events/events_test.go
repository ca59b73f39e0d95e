package events

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMemoryPublisherRecordsInOrder(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()
	for _, typ := range []string{LoanRequested, LoanApproved, LoanReturned} {
		if err := p.Publish(ctx, Event{ID: typ, Type: typ}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if got := strings.Join(p.Types(), ","); got != "loan.requested,loan.approved,loan.returned" {
		t.Fatalf("unexpected types %s", got)
	}
	evs := p.Events()
	evs[0].Type = "mutated"
	if p.Events()[0].Type != LoanRequested {
		t.Fatalf("Events must return a copy")
	}
}

func TestMemoryPublisherHonorsCanceledContext(t *testing.T) {
	p := NewMemoryPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, Event{Type: LoanRequested}); err == nil {
		t.Fatalf("expected canceled context error")
	}
	if len(p.Events()) != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	body, err := encode(Event{ID: "e-1", Type: LoanApproved, ActorID: "owner", SubjectID: "l-1", OccurredAt: at})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != LoanApproved || decoded["subjectId"] != "l-1" || decoded["occurredAt"] != "2024-01-15T09:00:00Z" {
		t.Fatalf("unexpected body %s", body)
	}
	if _, ok := decoded["payload"]; ok {
		t.Fatalf("empty payload should be omitted")
	}
}

func TestNewAMQPPublisherRequiresURL(t *testing.T) {
	if p, err := NewAMQPPublisher("  ", ""); err == nil || p != nil {
		t.Fatalf("expected constructor error for empty url")
	}
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("BOOKAN_TEST_AMQP_URL")
	if url == "" {
		t.Skip("BOOKAN_TEST_AMQP_URL not set")
	}
	p, err := NewAMQPPublisher(url, "bookan.test")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if err := p.Publish(context.Background(), Event{ID: "e-1", Type: LoanRequested, OccurredAt: time.Now().UTC()}); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
