package stream

import (
	"context"
	"testing"
	"time"

	"krona.org/internal/account"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	evt := account.Event{Type: account.EventAccountCreated, AccountID: "team"}
	s.Publish(evt)

	for _, ch := range []<-chan account.Event{a, b} {
		select {
		case got := <-ch:
			if got.AccountID != "team" {
				t.Fatalf("unexpected event %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after unsubscribe must not panic.
	s.Publish(account.Event{Type: account.EventAccountDeleted})
}

func TestPublishDropsWhenSubscriberIsSlow(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	// Fill the buffer past capacity; Publish must never block.
	for i := 0; i < 64; i++ {
		s.Publish(account.Event{Type: account.EventAccountUpdated, AccountID: "team"})
	}
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 16 {
				t.Fatalf("buffered %d events", n)
			}
			return
		}
	}
}
