// Package keys imports session key material into opaque decryption handles
// and holds the handle of the active session.
package keys

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"cifra/internal/cache"
	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/metrics"
)

// ImportKey decodes rawHex into an AES-256-GCM handle.
func ImportKey(rawHex string) (*Handle, error) {
	raw, err := decodeHex(rawHex)
	if err != nil {
		return nil, err
	}
	defer wipe(raw)
	return newHandle(raw, AESGCM)
}

func decodeHex(rawHex string) ([]byte, error) {
	s := strings.TrimSpace(rawHex)
	if len(s) != hex.EncodedLen(KeySize) {
		return nil, fmt.Errorf("%w: want %d hex characters, got %d", core.ErrInvalidKeyMaterial, hex.EncodedLen(KeySize), len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", core.ErrInvalidKeyMaterial)
	}
	return raw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Manager imports keys for one cipher backend. Re-importing the same
// material returns the cached handle.
type Manager struct {
	backend Backend
	handles *cache.LRUCache[*Handle]
	metrics metrics.Recorder
	logger  *log.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Backend  Backend
	CacheTTL time.Duration
	// CacheSize bounds the number of distinct keys kept.
	CacheSize int
	Metrics   metrics.Recorder
	Logger    *log.Logger
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 12 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		backend: cfg.Backend,
		handles: cache.NewLRUCache[*Handle](cfg.CacheSize, cfg.CacheTTL),
		metrics: metrics.OrNoop(cfg.Metrics),
		logger:  logger.WithComponent(log.ComponentKeys),
	}
}

// Import decodes rawHex and returns a handle for it.
func (m *Manager) Import(rawHex string) (*Handle, error) {
	raw, err := decodeHex(rawHex)
	if err != nil {
		m.logger.Warn("Key import rejected",
			log.FieldOperation, log.OpImportKey,
			log.FieldErrorKind, core.ErrorKind(err))
		return nil, err
	}
	defer wipe(raw)

	id := Fingerprint(raw, m.backend)
	h, cached, err := m.handles.GetOrCreate(id, func() (*Handle, error) {
		return newHandle(raw, m.backend)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidKeyMaterial, err)
	}
	m.metrics.KeyImported(cached)
	m.logger.Debug("Key imported",
		log.FieldOperation, log.OpImportKey,
		log.FieldKeyID, id,
		"cached", cached)
	return h, nil
}

// Forget drops a handle from the cache.
func (m *Manager) Forget(h *Handle) {
	if h != nil {
		m.handles.Delete(h.ID())
	}
}

// Cache exposes the handle cache so a cache.Janitor can sweep it.
func (m *Manager) Cache() cache.Cleaner { return m.handles }
