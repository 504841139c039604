package keys

import (
	"sync"
	"sync/atomic"

	"cifra/internal/core"
)

// Keyring holds the handle of the active session. Rotation swaps the whole
// handle; a handle is never mutated in place.
type Keyring struct {
	manager    *Manager
	current    atomic.Pointer[Handle]
	generation atomic.Uint64

	mu        sync.Mutex
	listeners []func(*Handle)
}

// NewKeyring creates an empty keyring backed by manager.
func NewKeyring(manager *Manager) *Keyring {
	return &Keyring{manager: manager}
}

// Set imports rawHex and makes it the active handle. The previous handle is
// kept when the import fails. Material with the fingerprint of the active
// handle is not a rotation, even when the manager built a fresh handle.
func (k *Keyring) Set(rawHex string) (*Handle, error) {
	h, err := k.manager.Import(rawHex)
	if err != nil {
		return nil, err
	}
	prev := k.current.Swap(h)
	if prev == nil || prev.ID() != h.ID() {
		k.generation.Add(1)
		k.notify(h)
	}
	return h, nil
}

// Current returns the active handle or core.ErrKeyUnavailable.
func (k *Keyring) Current() (*Handle, error) {
	h := k.current.Load()
	if h == nil {
		return nil, core.ErrKeyUnavailable
	}
	return h, nil
}

// Clear ends the session and drops the handle from the manager cache.
func (k *Keyring) Clear() {
	prev := k.current.Swap(nil)
	if prev == nil {
		return
	}
	k.manager.Forget(prev)
	k.generation.Add(1)
	k.notify(nil)
}

// Generation increases on every rotation or clear.
func (k *Keyring) Generation() uint64 { return k.generation.Load() }

// OnChange registers fn to be called with the new handle (nil on Clear)
// after every rotation.
func (k *Keyring) OnChange(fn func(*Handle)) {
	k.mu.Lock()
	k.listeners = append(k.listeners, fn)
	k.mu.Unlock()
}

func (k *Keyring) notify(h *Handle) {
	k.mu.Lock()
	listeners := append([]func(*Handle){}, k.listeners...)
	k.mu.Unlock()
	for _, fn := range listeners {
		fn(h)
	}
}
