package main

import (
	"context"
	"flag"
	"log"
	"time"

	"cinelink/config"
	"cinelink/services/cache"
)

// flushcache drops every cached resolution result from redis. Stored links in
// the database are untouched.
func main() {
	var (
		configPath = flag.String("config", "data/settings.json", "Path to settings.json")
	)
	flag.Parse()

	mgr := config.NewManager(*configPath)
	settings, err := mgr.Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}
	if !settings.Redis.Enabled {
		log.Fatalf("redis is disabled in %s, nothing to flush", *configPath)
	}

	store := cache.NewRedisStore(settings.Redis.Addr, settings.Redis.DB)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	flushed, err := store.Flush(ctx)
	if err != nil {
		log.Fatalf("flush failed: %v", err)
	}
	log.Printf("flushed %d cached results", flushed)
}
