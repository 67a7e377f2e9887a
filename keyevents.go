package walletmail

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// KeyEventKind classifies key lifecycle notifications.
type KeyEventKind string

const (
	// KeyEventGenerated fires when a brand-new keypair is provisioned.
	KeyEventGenerated KeyEventKind = "generated"
	// KeyEventRestored fires when keys are recovered from escrow.
	KeyEventRestored KeyEventKind = "restored"
	// KeyEventMigrated fires when legacy key material is upgraded to
	// wallet-wrapped escrow.
	KeyEventMigrated KeyEventKind = "migrated"
	// KeyEventRotated fires when an explicit key rotation completes.
	KeyEventRotated KeyEventKind = "rotated"
	// KeyEventImported fires when a key is loaded from an export or QR payload.
	KeyEventImported KeyEventKind = "imported"
)

// KeyEvent describes a key lifecycle transition.
type KeyEvent struct {
	Kind KeyEventKind

	// Fingerprint is the SHA-256 hex digest of the active public key,
	// suitable for display and cross-device comparison.
	Fingerprint string
}

// keyEventSub represents a registered key event listener.
type keyEventSub struct {
	id       string
	callback func(KeyEvent)
	active   atomic.Bool
}

// keyEventHub fans key lifecycle events out to listeners with safe
// lifecycle management. It ensures callbacks are never invoked after
// unsubscription completes.
type keyEventHub struct {
	mu     sync.RWMutex
	subs   map[string]*keyEventSub
	nextID atomic.Uint64
}

func newKeyEventHub() *keyEventHub {
	return &keyEventHub{
		subs: make(map[string]*keyEventSub),
	}
}

// subscribe registers a callback for key lifecycle events.
// Returns an unsubscribe function that must be called to clean up.
func (h *keyEventHub) subscribe(callback func(KeyEvent)) func() {
	id := strconv.FormatUint(h.nextID.Add(1), 10)

	sub := &keyEventSub{
		id:       id,
		callback: callback,
	}
	sub.active.Store(true)

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	return func() {
		h.unsubscribe(id)
	}
}

// unsubscribe removes a listener. Safe to call multiple times.
func (h *keyEventHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		sub.active.Store(false) // Mark inactive before removing
		delete(h.subs, id)
	}
}

// notify calls all registered callbacks synchronously after releasing the
// read lock. The active flag is checked before invoking to prevent calls
// after unsubscribe.
func (h *keyEventHub) notify(event KeyEvent) {
	h.mu.RLock()
	if len(h.subs) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy listeners to avoid holding lock during callbacks
	subs := make([]*keyEventSub, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(event)
		}
	}
}

// clear removes all listeners. Called during Client.Close().
func (h *keyEventHub) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		sub.active.Store(false)
	}
	h.subs = make(map[string]*keyEventSub)
}
