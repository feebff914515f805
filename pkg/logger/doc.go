// Package logger builds *slog.Logger instances for notifykit services and
// exposes attribute helpers so every component logs delivery data under the
// same keys (notification_id, channel, recipient, locale, error).
//
// New returns a JSON or text logger wrapped in LogHandlerDecorator, which runs
// registered ContextExtractor callbacks on each record:
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "notifier"),
//	    logger.WithContextExtractors(i18n.LogExtractor),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//	    logger.NotificationID(id),
//	    logger.Channel("mail"),
//	)
//
// Error and Errors only produce attributes for non-nil errors, so
// logger.Error(err) is safe to pass unconditionally.
package logger
