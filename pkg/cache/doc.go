// Package cache provides a generic, concurrency-safe LRU cache.
//
//	c := cache.NewLRUCache[string, []byte](256)
//	c.SetEvictCallback(func(key string, _ []byte) { log.Println("evicted", key) })
//	c.Put("a", data)
//	v, ok := c.Get("a")
//
// Get, Put and Remove are O(1). Peek reads without touching recency.
package cache
