package monitor

import (
	"sync"

	"melodeus/audio"
)

// Resolver maps human-readable device names to platform identifiers. The
// cache is rebuilt lazily on a miss rather than polled: enumeration before
// the permission grant may return only generic unlabeled entries, so a name
// that fails to resolve now can succeed on the rebuild after a grant. When
// two devices share a display name, the last enumerated entry wins.
type Resolver struct {
	ctx  audio.Context
	kind audio.DeviceKind

	mu    sync.Mutex
	cache map[string]audio.DeviceInfo
}

func NewResolver(ctx audio.Context, kind audio.DeviceKind) *Resolver {
	return &Resolver{ctx: ctx, kind: kind}
}

// Resolve returns the descriptor for name. On a miss the cache is rebuilt
// from a fresh enumeration and the lookup retried once.
func (r *Resolver) Resolve(name string) (audio.DeviceInfo, bool) {
	if name == "" {
		return audio.DeviceInfo{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[name]; ok {
		return d, true
	}
	r.rebuildLocked()
	d, ok := r.cache[name]
	return d, ok
}

// Invalidate drops the cache so the next Resolve re-enumerates.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
}

// Names returns the display names from a fresh enumeration, in device
// order.
func (r *Resolver) Names() ([]string, error) {
	devices, err := r.ctx.Devices(r.kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(devices))
	for i := range devices {
		names[i] = devices[i].Name
	}
	return names, nil
}

func (r *Resolver) rebuildLocked() {
	devices, err := r.ctx.Devices(r.kind)
	if err != nil {
		// Keep the stale cache; resolution failures fall back to the
		// default device at the call site.
		return
	}
	cache := make(map[string]audio.DeviceInfo, len(devices))
	for _, d := range devices {
		cache[d.Name] = d // later entries overwrite earlier ones
	}
	r.cache = cache
}
