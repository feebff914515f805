// Package broadcast provides topic-based, type-safe message fan-out.
//
//	b := broadcast.NewMemoryBroadcaster[Payload](16, broadcast.WithReplay(1024, 10))
//	defer b.Close()
//
//	sub := b.Subscribe(ctx, "users.42")
//	defer sub.Close()
//
//	_ = b.Broadcast(ctx, broadcast.Message[Payload]{Topic: "users.42", Data: p})
//
//	for msg := range sub.Receive() {
//		handle(msg.Data)
//	}
//
// Subscriptions end when their context is cancelled, when Close is called,
// when their buffer overflows, or when the broadcaster closes. With
// WithReplay, the most recent messages of recently used topics are kept in
// an LRU cache and replayed to new subscribers.
package broadcast
