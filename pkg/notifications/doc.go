// Package notifications fans notifications out to recipients through named
// delivery channels.
//
// # Architecture
//
//   - Notification: declares channels per recipient (Via), renders itself per
//     channel (ToDatabase, ToMail, ToBroadcast, ToWebhook, RenderFor) and
//     carries dispatch metadata (Meta, Queueable).
//   - Recipient: an Identity-bearing entity or an Anonymous set of routes.
//     Router and LocalePreferrer are optional capabilities.
//   - Channel: one transport. Built-in drivers are database, mail,
//     broadcast and webhook.
//   - Registry: resolves channel names to lazily built instances from
//     ChannelConfig entries, typically loaded from YAML.
//   - Dispatcher: the engine. It queues or delivers, scopes the locale per
//     recipient, emits sending/sent/failed Events and applies a
//     FailurePolicy.
//   - Storage: persistence for the database channel, with memory, postgres,
//     redis and mongo implementations.
//   - Manager: recipient-facing helpers for notifying and reading the feed.
//
// # Usage
//
//	registry := notifications.NewRegistry()
//	registry.Register(notifications.DriverDatabase, notifications.DatabaseDriver(storage))
//	registry.Register(notifications.DriverMail, notifications.MailDriver(mailer))
//
//	dispatcher := notifications.NewDispatcher(registry,
//		notifications.WithEvents(events),
//		notifications.WithEnqueuer(enqueuer),
//	)
//
//	type InvoicePaid struct {
//		notifications.Meta
//		Amount int `json:"amount"`
//	}
//
//	func (InvoicePaid) Via(notifications.Recipient) []string {
//		return []string{"database", "mail"}
//	}
//
//	err := dispatcher.Send(ctx, InvoicePaid{Amount: 42}, user)
//
// # Identity hand-off
//
// Every recipient gets one generated ID shared by all of its channels,
// unless Meta.ID is preset. When a channel on the database driver responds
// with an Identifiable value, such as its stored *Record, later channels
// for that recipient use the returned ID instead. Other channels never
// change the ID.
//
// # Failures
//
// Channel faults are reported through a failed event first. With
// AbortOnFailure (the default) the dispatch call then returns the fault and
// stops; ContinueOnFailure keeps going and returns all faults joined.
// ConfigurationError only fails the affected channel. Recipients without
// channels or routes are skipped silently.
package notifications
