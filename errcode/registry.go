package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// Registry catches two definitions claiming the same code
type Registry struct {
	mu     sync.RWMutex
	owners map[int]string // code -> "module:msgKey"
	locked bool
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[int]string)}
}

var globalRegistry = NewRegistry()

// Register records err in the global registry and returns it, for use in var blocks
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Register panics on a code owned by another definition or on a locked
// registry. Re-registering the same definition is allowed.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	owner := err.Module() + ":" + err.MsgKey()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		panic(fmt.Sprintf("errcode: registry is locked, cannot register %d (%s)", err.Code(), owner))
	}
	if prev, ok := r.owners[err.Code()]; ok && prev != owner {
		panic(fmt.Sprintf("errcode: error code conflict on %d: %s vs %s", err.Code(), prev, owner))
	}
	r.owners[err.Code()] = owner
	return err
}

// Lock freezes the registry once startup is done
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

func (r *Registry) IsLocked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

// GetAll copy of code -> owner
func (r *Registry) GetAll() map[int]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]string, len(r.owners))
	for code, owner := range r.owners {
		out[code] = owner
	}
	return out
}

// Codes registered codes in ascending order
func (r *Registry) Codes() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]int, 0, len(r.owners))
	for code := range r.owners {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

func LockGlobalRegistry() {
	globalRegistry.Lock()
}

func GetAllRegisteredCodes() map[int]string {
	return globalRegistry.GetAll()
}
