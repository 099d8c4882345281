package events

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestPublishDisabledIsNoop(t *testing.T) {
	p := NewPublisher("", "studio.billing")
	if p.Enabled() {
		t.Fatal("publisher without URL reports enabled")
	}
	if err := p.Publish(context.Background(), "credits.granted", map[string]any{"user_id": "u1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestPublishBacksOffAfterFailedDial(t *testing.T) {
	p := NewPublisher("amqp://guest:guest@"+unusedAddr(t)+"/", "studio.billing")
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	err := p.Publish(ctx, "credits.granted", map[string]any{"user_id": "u1"})
	if err == nil || errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("first publish err = %v, want dial error", err)
	}

	for i := 0; i < 100; i++ {
		if err := p.Publish(ctx, "credits.granted", map[string]any{"user_id": "u1"}); !errors.Is(err, ErrBrokerUnavailable) {
			t.Fatalf("publish %d err = %v, want ErrBrokerUnavailable", i, err)
		}
	}

	now = now.Add(redialPause)
	if err := p.Publish(ctx, "credits.granted", map[string]any{"user_id": "u1"}); err == nil || errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("publish after pause err = %v, want a fresh dial error", err)
	}
	p.Close()
}
