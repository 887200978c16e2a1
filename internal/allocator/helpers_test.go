package allocator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// port builds a port with the given occupied key units and slot devices.
func port(index, limit, keysOccupied int, slots ...string) hardware.Port {
	p := hardware.Port{Index: index, KeysLimit: limit}
	for i := 0; i < keysOccupied; i++ {
		p.Keys = append(p.Keys, hardware.KeyUnit{Index: i, DeviceID: "key-owner"})
	}
	for i, id := range slots {
		if id != "" {
			p.Slots[i] = &hardware.DeviceRef{ID: id}
		}
	}
	return p
}

func snapshot(dir hardware.Direction, ports ...hardware.Port) *hardware.Snapshot {
	return &hardware.Snapshot{CentralID: "central-1", Direction: dir, Ports: ports}
}

// stubProvider serves snapshots from a map and counts fetches.
type stubProvider struct {
	mu    sync.Mutex
	snaps map[Key]*hardware.Snapshot
	err   error
	calls atomic.Int32

	// block, when set, holds every fetch until closed.
	block chan struct{}
}

func newStubProvider() *stubProvider {
	return &stubProvider{snaps: make(map[Key]*hardware.Snapshot)}
}

func (p *stubProvider) put(snap *hardware.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps[Key{CentralID: snap.CentralID, Direction: snap.Direction}] = snap.DeepCopy()
}

func (p *stubProvider) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	p.calls.Add(1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	snap, ok := p.snaps[Key{CentralID: centralID, Direction: dir}]
	if !ok {
		return nil, hardware.ErrNotFound
	}
	return snap.DeepCopy(), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}
