// Package redisstore stores database channel notifications in Redis.
//
// Each record is a hash; every owner has an unread and a read sorted set
// scored by creation time, so feeds are served newest first with ZREVRANGE
// and unread counts with ZCARD. Read state transitions run as Lua scripts.
//
//	client, err := redis.Connect(ctx, cfg)
//	storage := redisstore.New(client, redisstore.WithTTL(90*24*time.Hour))
//
// Data is stored as JSON, so numbers come back as float64.
package redisstore
