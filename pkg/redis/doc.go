// Package redis connects to a Redis server through go-redis/v9.
//
// Connect parses Config.ConnectionURL, pings the server and retries on
// failure until ConnectTimeout elapses:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client)
//
// Healthcheck wraps a ping for readiness probes. All failures are reported
// through the sentinel errors in this package joined with the driver error.
package redis
