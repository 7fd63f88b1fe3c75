package monitor

import (
	"testing"

	"melodeus/audio"
)

func TestResolveLazyRebuildAfterRelabel(t *testing.T) {
	// Pre-grant enumeration: one generic unlabeled entry.
	ctx := audio.NewFakeContext([]audio.DeviceInfo{{ID: "0", Name: ""}}, nil)
	r := NewResolver(ctx, audio.Input)

	if _, ok := r.Resolve("USB Mic"); ok {
		t.Fatal("resolved a name that is not enumerable yet")
	}

	// Grant happened; the platform now reports labels. The next lookup
	// rebuilds and finds it without any explicit refresh.
	ctx.SetDevices(audio.Input, []audio.DeviceInfo{
		{ID: "usb-1", Name: "USB Mic", Channels: 2},
	})
	d, ok := r.Resolve("USB Mic")
	if !ok {
		t.Fatal("rebuild did not pick up the relabeled device")
	}
	if d.ID != "usb-1" || d.Channels != 2 {
		t.Fatalf("resolved %+v, want usb-1/2ch", d)
	}
}

func TestResolveCachesUntilMiss(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{{ID: "a", Name: "Mic"}}, nil)
	r := NewResolver(ctx, audio.Input)

	if _, ok := r.Resolve("Mic"); !ok {
		t.Fatal("initial resolve failed")
	}

	// A hit never re-enumerates, so a removed device still resolves from
	// cache until something misses.
	ctx.SetDevices(audio.Input, nil)
	if _, ok := r.Resolve("Mic"); !ok {
		t.Fatal("cached entry lost without a miss")
	}
	if _, ok := r.Resolve("Other"); ok {
		t.Fatal("resolved a device that does not exist")
	}
	// The miss rebuilt the cache from the now-empty list.
	if _, ok := r.Resolve("Mic"); ok {
		t.Fatal("stale entry survived the rebuild")
	}
}

func TestResolveDuplicateNamesLastWins(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{
		{ID: "first", Name: "Mic"},
		{ID: "second", Name: "Mic"},
	}, nil)
	r := NewResolver(ctx, audio.Input)

	d, ok := r.Resolve("Mic")
	if !ok {
		t.Fatal("resolve failed")
	}
	if d.ID != "second" {
		t.Fatalf("resolved ID %q, want the last enumerated entry", d.ID)
	}
}

func TestResolveEmptyName(t *testing.T) {
	ctx := audio.NewFakeContext([]audio.DeviceInfo{{ID: "a", Name: "Mic"}}, nil)
	r := NewResolver(ctx, audio.Input)
	if _, ok := r.Resolve(""); ok {
		t.Fatal("empty name must not resolve")
	}
}
