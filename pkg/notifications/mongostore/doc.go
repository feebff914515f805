// Package mongostore stores database channel notifications in a MongoDB
// collection.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	storage, err := mongostore.New(ctx, db, mongostore.WithRetention(90*24*time.Hour))
//
// Records are stored as documents keyed by notification ID. Nested payload
// documents decode as bson.D unless the client is configured with
// DefaultDocumentM.
package mongostore
