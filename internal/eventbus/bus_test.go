package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx, TopicResolve)
	defer sub.Close()

	b.Publish(context.Background(), TopicResolve, "done")

	select {
	case ev := <-sub.Ch:
		if ev.Topic != TopicResolve || ev.Data != "done" {
			t.Errorf("got %+v, want topic=%s data=done", ev, TopicResolve)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNoSubscribersDoesNotBlock(t *testing.T) {
	b := New(4)
	b.Publish(context.Background(), TopicQuery, struct{}{})
}

func TestSubscribeUnsubscribesOnContextCancel(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, TopicReferral)

	cancel()

	select {
	case _, ok := <-sub.Ch:
		if ok {
			t.Error("channel should be closed after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel was never closed")
	}
}

func TestPublishDropsWhenSubscriberSlow(t *testing.T) {
	b := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx, TopicQuery)
	defer sub.Close()

	// Fill the buffered channel, then publish again; the second publish
	// must not block even though nothing is draining sub.Ch.
	b.Publish(context.Background(), TopicQuery, 1)
	b.Publish(context.Background(), TopicQuery, 2)
}
