// Package registry holds the central table of detected displays, their
// stable display numbers, and open-handle lifecycle. Lookups take a read
// lock; discovery and rediscover take the write lock, with a separate
// mutex serialising whole rescans.
package registry

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
)

// Registry owns every DisplayRef detection has produced for the life of the
// process, or until an explicit Rediscover.
type Registry struct {
	mu     sync.RWMutex
	refs   []*model.DisplayRef
	scanMu sync.Mutex
}

func New() *Registry {
	return &Registry{}
}

// Populate replaces the registry's contents with refs, assigning dense
// positive display numbers in iteration order to every ref whose
// COMMUNICATION_WORKING flag is set and which isn't a phantom. A ref
// already marked DispnoPhantom by phantom filtering keeps that sentinel;
// every other ref gets DispnoBusy if its DDC_BUSY flag is set, else
// DispnoInvalid if communication isn't working.
func (r *Registry) Populate(refs []*model.DisplayRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refs = refs
	next := 1
	for _, ref := range r.refs {
		if ref.Dispno == model.DispnoPhantom {
			continue
		}
		if ref.Flags.Has(model.FlagDDCBusy) {
			ref.Dispno = model.DispnoBusy
			continue
		}
		if !ref.Flags.Has(model.FlagDDCCommunicationWorking) {
			ref.Dispno = model.DispnoInvalid
			continue
		}
		ref.Dispno = next
		next++
	}
}

// All returns every known ref, working or not, in registry order.
func (r *Registry) All() []*model.DisplayRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*model.DisplayRef{}, r.refs...)
}

// Working returns only the refs with a positive display number.
func (r *Registry) Working() []*model.DisplayRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.DisplayRef, 0, len(r.refs))
	for _, ref := range r.refs {
		if ref.IsWorking() {
			out = append(out, ref)
		}
	}
	return out
}

// Count reports how many refs are currently registered, working or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.refs)
}

// ByDispno finds a working ref by its positive display number.
func (r *Registry) ByDispno(dispno int) (*model.DisplayRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.refs, func(ref *model.DisplayRef) bool {
		return ref.Dispno == dispno
	})
	if i < 0 {
		return nil, false
	}
	return r.refs[i], true
}

// ByDRMConnector finds a ref whose bus detail names the given DRM connector
// (e.g. "card0-DP-1").
func (r *Registry) ByDRMConnector(connector string) (*model.DisplayRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := slices.IndexFunc(r.refs, func(ref *model.DisplayRef) bool {
		return ref.Bus != nil && ref.Bus.DRMConnector == connector
	})
	if i < 0 {
		return nil, false
	}
	return r.refs[i], true
}

// ValidateRef reports whether ref is still a live member of this registry
// and not marked removed — callers must revalidate a DisplayRef obtained
// before a Rediscover rather than assume it's still good.
func (r *Registry) ValidateRef(ref *model.DisplayRef) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !ref.Flags.Has(model.FlagRemoved) && slices.Contains(r.refs, ref)
}

// Discoverer runs one full discovery + initial-checks pass and returns the
// resulting refs; Rediscover calls it after tearing down the old table.
type Discoverer func(ctx context.Context) []*model.DisplayRef

// Rediscover is coarse-grained: close every open handle, discard the
// table, and run discovery from scratch.
func (r *Registry) Rediscover(ctx context.Context, discover Discoverer) {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	r.mu.Lock()
	for _, ref := range r.refs {
		ref.Lock()
		if h := ref.OpenHandle(); h != nil {
			_ = h.Close()
		}
		ref.Unlock()
		ref.Flags.Set(model.FlagRemoved)
	}
	r.mu.Unlock()

	fresh := discover(ctx)
	r.Populate(fresh)
}
