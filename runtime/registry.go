package runtime

import (
	"direct-chat/contract"
	"direct-chat/domain"
	"slices"
	"sync"
)

// Registry is the in-memory map of online users.
// Each user has at most one live connection; the latest join wins.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]contract.PresenceEntry // map user -> entry
	handles map[string]string                 // map connection handle -> user
	order   []string                          // users in join order
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]contract.PresenceEntry),
		handles: make(map[string]string),
	}
}

// Join binds userID to sink. When the user was already online, the previous
// entry is returned with replaced=true and keeps its place in Snapshot.
func (r *Registry) Join(userID string, sink contract.EventSink, info domain.DisplayInfo) (contract.PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info.ID = userID
	previous, replaced := r.entries[userID]
	if replaced {
		delete(r.handles, previous.Sink.ID())
	} else {
		r.order = append(r.order, userID)
	}
	r.entries[userID] = contract.PresenceEntry{UserID: userID, Sink: sink, Info: info}
	r.handles[sink.ID()] = userID
	return previous, replaced
}

// Leave removes the entry owned by the connection handle.
// A handle that was replaced or already left is a no-op.
func (r *Registry) Leave(handle string) (contract.PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.handles[handle]
	if !ok {
		return contract.PresenceEntry{}, false
	}
	entry := r.entries[userID]
	delete(r.handles, handle)
	delete(r.entries, userID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == userID })
	return entry, true
}

func (r *Registry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.Sink, true
}

// Snapshot returns the display info of every online user in join order.
func (r *Registry) Snapshot() []domain.DisplayInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.DisplayInfo, 0, len(r.order))
	for _, userID := range r.order {
		snapshot = append(snapshot, r.entries[userID].Info)
	}
	return snapshot
}

// SetStatus only touches users that are online.
func (r *Registry) SetStatus(userID, status string) (domain.DisplayInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setStatus(userID, status)
}

// SetStatusFor resolves the user through its connection handle, so a
// connection that was replaced cannot change the status of the newer one.
func (r *Registry) SetStatusFor(handle, status string) (domain.DisplayInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.handles[handle]
	if !ok {
		return domain.DisplayInfo{}, false
	}
	return r.setStatus(userID, status)
}

func (r *Registry) setStatus(userID, status string) (domain.DisplayInfo, bool) {
	entry, ok := r.entries[userID]
	if !ok {
		return domain.DisplayInfo{}, false
	}
	entry.Info.Status = status
	r.entries[userID] = entry
	return entry.Info, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
