package notifications_test

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type invoicePaid struct {
	notifications.Meta
	Number string
}

func (invoicePaid) NotificationType() string { return "invoice_paid" }

func (invoicePaid) Via(notifications.Recipient) []string {
	return []string{"database", "console"}
}

func (n invoicePaid) ToDatabase(context.Context, notifications.Recipient) (map[string]any, error) {
	return notifications.NewDatabaseMessage("Invoice paid", "Invoice "+n.Number+" was paid").
		WithLevel(notifications.LevelSuccess).
		ToMap(), nil
}

func (n invoicePaid) RenderFor(_ context.Context, channel string, _ notifications.Recipient) (any, error) {
	if channel == "console" {
		return "invoice " + n.Number + " paid", nil
	}
	return nil, nil
}

// Example demonstrates synchronous delivery through a stored feed and a
// custom channel.
func Example() {
	ctx := context.Background()
	storage := notifications.NewMemoryStorage()

	registry := notifications.NewRegistry()
	registry.Register(notifications.DriverDatabase, notifications.DatabaseDriver(storage))
	registry.Set("console", notifications.ChannelFunc(func(ctx context.Context, r notifications.Recipient, msg notifications.Message) (any, error) {
		text, err := notifications.Render(ctx, msg.Notification, msg.Channel, r)
		if err != nil {
			return nil, err
		}
		fmt.Println(text)
		return nil, nil
	}))

	dispatcher := notifications.NewDispatcher(registry, notifications.WithDispatcherLogger(discardLogger()))
	manager := notifications.NewManager(dispatcher, storage)

	customer := notifications.Identity{Type: "customers", Key: "42"}
	if err := manager.Notify(ctx, customer, invoicePaid{Number: "INV-7"}); err != nil {
		panic(err)
	}

	unread, err := manager.Unread(ctx, customer)
	if err != nil {
		panic(err)
	}
	fmt.Println(len(unread), unread[0].Type, unread[0].Data["message"])

	// Output:
	// invoice INV-7 paid
	// 1 invoice_paid Invoice INV-7 was paid
}

// ExampleRoute demonstrates notifying an address that has no stored
// identity. The database channel skips it.
func ExampleRoute() {
	ctx := context.Background()
	registry := notifications.NewRegistry()
	registry.Set("mail", notifications.ChannelFunc(func(_ context.Context, r notifications.Recipient, msg notifications.Message) (any, error) {
		addr, _ := notifications.RouteFor(r, msg.Channel)
		fmt.Println("mail to", addr)
		return nil, nil
	}))

	dispatcher := notifications.NewDispatcher(registry, notifications.WithDispatcherLogger(discardLogger()))
	n := greeting{Channels: []string{"mail"}}

	if err := dispatcher.Send(ctx, n, notifications.Route("mail", "ops@example.com")); err != nil {
		panic(err)
	}

	// Output:
	// mail to ops@example.com
}
