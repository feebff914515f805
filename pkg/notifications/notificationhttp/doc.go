// Package notificationhttp exposes a recipient's stored notification feed as
// JSON endpoints on a chi router, plus an optional live stream.
//
// The handler never decides who is asking. A RecipientFunc resolves the
// recipient from the request, typically from the session:
//
//	feed := notificationhttp.NewHandler(manager, currentUser,
//		notificationhttp.WithStream(broadcastChannel),
//	)
//	r.Mount("/notifications", feed.Handle())
//
// Routes:
//
//	GET  /            unread notifications, newest first
//	GET  /read        read notifications, newest first
//	GET  /count       {"unread": n}
//	POST /read-all    marks every unread notification read, {"updated": n}
//	GET  /stream      server-sent events, one datastar signal patch per broadcast
//	GET  /{id}        one notification of the recipient
//	POST /{id}/read   marks one notification read, 204
//
// Records owned by another recipient answer 404, exactly like missing ones.
// The stream route is only mounted with WithStream; each event patches the
// "notification" and "unread" signals.
package notificationhttp
