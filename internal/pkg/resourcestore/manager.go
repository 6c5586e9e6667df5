package resourcestore

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

var (
	defaultClient *Client
	initOnce      sync.Once
)

// Initialize sets up the shared resource store client from the environment.
// A disabled or failing store is not fatal; resource downloads just return
// errors until it is configured.
func Initialize() {
	initOnce.Do(func() {
		cfg, err := LoadConfig()
		if err != nil {
			log.Errorf("[ResourceStore] invalid configuration: %v", err)
			return
		}
		if !cfg.IsEnabled() {
			log.Info("[ResourceStore] disabled, lesson resource downloads unavailable")
			return
		}
		client, err := NewClient(cfg)
		if err != nil {
			log.Errorf("[ResourceStore] initialization failed: %v", err)
			return
		}
		defaultClient = client
	})
}

// Get returns the shared client, or nil when the store is not configured.
func Get() *Client {
	return defaultClient
}
