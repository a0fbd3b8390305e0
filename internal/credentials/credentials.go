// Package credentials holds the generation-service and object-storage keys.
//
// A Provider keeps an in-memory copy of the keys and mirrors it to a durable
// key/value backend. Every read goes back to the backend so changes made by
// another process (for example `teachassist keys set`) are picked up by a
// running server.
package credentials

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// RecordKey is the fixed durable-storage key holding the credential record.
const RecordKey = "apiKeys"

// Keys is the credential record.
type Keys struct {
	GenKey     string `json:"generation_key"`
	StorageKey string `json:"storage_key"`
}

// Update is a partial credential change. Nil fields are left untouched.
type Update struct {
	GenKey     *string `json:"generation_key,omitempty"`
	StorageKey *string `json:"storage_key,omitempty"`
}

// Durable is the backing key/value storage, satisfied by *store.Store.
type Durable interface {
	GetMetadata(key string) (string, error)
	SetMetadata(key, value string) error
}

// Provider is safe for concurrent use.
type Provider struct {
	mu      sync.RWMutex
	keys    Keys
	durable Durable
}

// NewProvider creates a provider backed by durable storage. A nil backend keeps keys in memory only.
func NewProvider(durable Durable) *Provider {
	return &Provider{durable: durable}
}

// SetKeys merges u into the current keys and persists the whole record.
// The in-memory copy is updated even if persisting fails.
func (p *Provider) SetKeys(u Update) error {
	// Start from the freshest durable copy so a concurrent writer's other key is not lost.
	current := p.Keys()

	p.mu.Lock()
	if u.GenKey != nil {
		current.GenKey = strings.TrimSpace(*u.GenKey)
	}
	if u.StorageKey != nil {
		current.StorageKey = strings.TrimSpace(*u.StorageKey)
	}
	p.keys = current
	p.mu.Unlock()

	if p.durable == nil {
		return nil
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := p.durable.SetMetadata(RecordKey, string(data)); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

// Keys reloads the record from durable storage and merges it over the in-memory copy.
// If durable storage is unavailable or unparsable it logs and returns the in-memory copy.
func (p *Provider) Keys() Keys {
	p.mu.RLock()
	mem := p.keys
	p.mu.RUnlock()

	if p.durable == nil {
		return mem
	}
	raw, err := p.durable.GetMetadata(RecordKey)
	if err != nil {
		slog.Warn("error reading stored API keys", "error", err)
		return mem
	}
	if raw == "" {
		return mem
	}
	var stored Update
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		slog.Warn("error parsing stored API keys", "error", err)
		return mem
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if stored.GenKey != nil {
		p.keys.GenKey = *stored.GenKey
	}
	if stored.StorageKey != nil {
		p.keys.StorageKey = *stored.StorageKey
	}
	return p.keys
}

// GenKey returns the generation-service key.
func (p *Provider) GenKey() string {
	return p.Keys().GenKey
}

// StorageKey returns the object-storage key.
func (p *Provider) StorageKey() string {
	return p.Keys().StorageKey
}

// Mask renders a secret for display. Set secrets become a fixed-width mask that
// reveals neither content nor length.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
