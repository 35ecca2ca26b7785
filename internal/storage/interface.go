package storage

import (
	"context"
	"encoding/json"

	"github.com/julianstephens/daystreak/internal/models"
)

// Provider is the device-local store holding the guest document.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Document
	LoadData() (models.LocalData, error)
	SaveData(models.LocalData) error

	// Utils
	GetConfigPath() string
}

// KVStore is the server-side key-value table. Values are JSON documents.
type KVStore interface {
	// MGet returns the values present for keys; missing keys are absent from the map
	MGet(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	// MSet writes every pair atomically
	MSet(ctx context.Context, values map[string]json.RawMessage) error
	// CompareAndSwap replaces key's value with next only while it still equals
	// prev. It reports false when the stored value changed or the key is gone.
	CompareAndSwap(ctx context.Context, key string, prev, next json.RawMessage) (bool, error)
	// Keys lists the keys starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
