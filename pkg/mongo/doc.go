// Package mongo connects to MongoDB through the official v2 driver.
//
// New applies the pool settings from Config, pings the deployment and
// retries on failure. NewWithDatabase additionally selects Config.Database,
// which is what the notification store expects:
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store, err := mongostore.New(ctx, db)
//
// Healthcheck wraps a ping for readiness probes.
package mongo
