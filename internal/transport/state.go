package transport

import "sync"

// StateFunc receives session state changes: true when the session comes
// up, false when it is lost or closed.
type StateFunc func(up bool)

// StateNotifier is implemented by transports that report connectivity
// changes, including drops and reconnects after the initial Connect.
type StateNotifier interface {
	OnStateChange(fn StateFunc)
}

// StateHook holds an optional StateFunc. Embed it to implement
// StateNotifier. The zero value is ready to use.
type StateHook struct {
	mu sync.RWMutex
	fn StateFunc
}

// OnStateChange installs fn, replacing any previous one.
func (h *StateHook) OnStateChange(fn StateFunc) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

// Notify calls the installed StateFunc, if any.
func (h *StateHook) Notify(up bool) {
	h.mu.RLock()
	fn := h.fn
	h.mu.RUnlock()
	if fn != nil {
		fn(up)
	}
}
