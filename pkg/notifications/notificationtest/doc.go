// Package notificationtest provides test doubles for code that sends
// notifications.
//
// Sender records every dispatch instead of delivering it and offers
// testify-style assertions:
//
//	sender := notificationtest.NewSender()
//	svc := orders.NewService(notifications.NewManager(sender, nil))
//
//	svc.Ship(ctx, order)
//
//	sender.AssertSentTo(t, order.Customer, "order_shipped")
//	sender.AssertSentToChannel(t, "mail", "order_shipped")
//	sender.AssertDataContains(t, "order_shipped", "order_id", order.ID)
//
// Recorder captures the sending, sent and failed events of a real
// Dispatcher. RunStorageTests checks a notifications.Storage implementation
// against the contract the database channel depends on.
package notificationtest
