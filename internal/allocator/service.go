package allocator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// Provider supplies hardware snapshots on demand.
//
// Implementations return errors wrapping hardware.ErrNotFound when the
// central does not exist and hardware.ErrTransportFailure when the fetch
// itself fails.
type Provider interface {
	Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error)

// Snapshot calls f.
func (f ProviderFunc) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	return f(ctx, centralID, dir)
}

// Notice is a user-facing report of a degraded result.
type Notice struct {
	CentralID string             `json:"central_id"`
	Direction hardware.Direction `json:"direction"`
	Operation string             `json:"operation"`
	Message   string             `json:"message"`
	Err       error              `json:"-"`
}

// Notifier surfaces degraded results to the operator.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Recorder receives allocator measurements.
type Recorder interface {
	ObserveFetch(dir hardware.Direction, elapsed time.Duration, err error)
	ObserveScan(dir hardware.Direction, ports []PortAvailability)
	ObserveLocate(dir hardware.Direction, found bool)
	ObserveCache(hit bool)
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notice) {}

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(hardware.Direction, time.Duration, error) {}
func (noopRecorder) ObserveScan(hardware.Direction, []PortAvailability)    {}
func (noopRecorder) ObserveLocate(hardware.Direction, bool)                {}
func (noopRecorder) ObserveCache(bool)                                     {}

// Options configures a Service. Provider is required.
type Options struct {
	Provider Provider

	// Cache is optional; nil fetches on every call.
	Cache Cache

	Notifier Notifier
	Recorder Recorder
	Logger   Logger

	// OnScan runs after every successful scan.
	OnScan func(ctx context.Context, centralID string, dir hardware.Direction, ports []PortAvailability)
	// OnInvalidate runs after a cache key is invalidated.
	OnInvalidate func(ctx context.Context, key Key)

	// FetchTimeout bounds one shared provider fetch. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultFetchTimeout bounds a provider fetch when Options.FetchTimeout is
// unset.
const DefaultFetchTimeout = 30 * time.Second

// Service fetches snapshots and runs the scanner and locator over them.
// All methods are safe for concurrent use.
type Service struct {
	provider     Provider
	cache        Cache
	notifier     Notifier
	recorder     Recorder
	logger       Logger
	onScan       func(context.Context, string, hardware.Direction, []PortAvailability)
	onInvalidate func(context.Context, Key)
	now          func() time.Time
	fetchTimeout time.Duration

	group singleflight.Group

	genMu sync.Mutex
	gens  map[Key]uint64
}

// NewService creates a Service from opts.
//
// Unset optional collaborators fall back to no-ops: no cache means every
// call fetches, and no notifier means degraded results are only logged.
//
// Parameters:
//   - opts: Provider is required; everything else is optional
//
// Returns:
//   - *Service: ready to use, safe for concurrent callers
//   - error: if opts.Provider is nil
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("allocator: provider is required")
	}

	s := &Service{
		provider:     opts.Provider,
		cache:        opts.Cache,
		notifier:     opts.Notifier,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		onScan:       opts.OnScan,
		onInvalidate: opts.OnInvalidate,
		now:          opts.Now,
		fetchTimeout: opts.FetchTimeout,
		gens:         make(map[Key]uint64),
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = DefaultFetchTimeout
	}
	return s, nil
}

// Scan reports availability for every port of a central's direction.
//
// The returned slice is never nil. On failure it is empty, the operator is
// notified, and the error describes the cause.
//
// Parameters:
//   - ctx: ends this caller's wait; a fetch shared with other callers keeps running
//   - centralID: the central to scan
//   - dir: DirectionInput or DirectionOutput
//
// Returns:
//   - []PortAvailability: one entry per port in port order
//   - error: wraps hardware.ErrNotFound, ErrMalformedSnapshot,
//     ErrTransportFailure or ErrInvalidDirection
func (s *Service) Scan(ctx context.Context, centralID string, dir hardware.Direction) ([]PortAvailability, error) {
	snap, err := s.Snapshot(ctx, centralID, dir)
	if err != nil {
		s.degrade(ctx, "scan", centralID, dir, err)
		return []PortAvailability{}, fmt.Errorf("scanning %s/%s: %w", centralID, dir, err)
	}

	ports := Scan(snap)
	s.recorder.ObserveScan(dir, ports)
	if s.onScan != nil {
		s.onScan(ctx, centralID, dir, ports)
	}
	return ports, nil
}

// Menu returns the device-list view of a central's direction.
// Like Scan, the returned slice is never nil.
func (s *Service) Menu(ctx context.Context, centralID string, dir hardware.Direction) ([]hardware.MenuPort, error) {
	snap, err := s.Snapshot(ctx, centralID, dir)
	if err != nil {
		s.degrade(ctx, "menu", centralID, dir, err)
		return []hardware.MenuPort{}, fmt.Errorf("loading menu %s/%s: %w", centralID, dir, err)
	}
	return snap.Menu(), nil
}

// Locate finds where a device is wired.
//
// A missing central or device is reported as (zero, false, nil): the device
// is simply not placed yet. Any other failure means the placement is unknown
// and is returned as an error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - deviceID: the device to look for
//   - centralID, dir: the pool to search
//
// Returns:
//   - hardware.Placement: port and slot, valid only when found is true
//   - bool: found
//   - error: transport or decoding failure; never ErrNotFound
func (s *Service) Locate(ctx context.Context, deviceID, centralID string, dir hardware.Direction) (hardware.Placement, bool, error) {
	snap, err := s.Snapshot(ctx, centralID, dir)
	if errors.Is(err, hardware.ErrNotFound) {
		s.recorder.ObserveLocate(dir, false)
		return hardware.Placement{}, false, nil
	}
	if err != nil {
		s.degrade(ctx, "locate", centralID, dir, err)
		return hardware.Placement{}, false, fmt.Errorf("locating %s on %s/%s: %w", deviceID, centralID, dir, err)
	}

	p, ok := Locate(snap, deviceID)
	s.recorder.ObserveLocate(dir, ok)
	return p, ok, nil
}

// LocatePort returns the index of the port holding the device.
func (s *Service) LocatePort(ctx context.Context, deviceID, centralID string, dir hardware.Direction) (int, bool, error) {
	p, ok, err := s.Locate(ctx, deviceID, centralID, dir)
	return p.Port, ok, err
}

// LocateSequence returns the slot the device occupies within its port.
func (s *Service) LocateSequence(ctx context.Context, deviceID, centralID string, dir hardware.Direction) (int, bool, error) {
	p, ok, err := s.Locate(ctx, deviceID, centralID, dir)
	return p.Slot, ok, err
}

// Invalidate drops cached snapshots for a central. An empty dir drops both
// directions. In-flight fetches for the key will not repopulate the cache.
func (s *Service) Invalidate(ctx context.Context, centralID string, dir hardware.Direction) error {
	if centralID == "" {
		return errors.New("allocator: central id is required")
	}

	dirs := []hardware.Direction{dir}
	if dir == "" {
		dirs = hardware.AllDirections()
	} else if !dir.IsValid() {
		return fmt.Errorf("%w: %q", hardware.ErrInvalidDirection, dir)
	}

	var errs []error
	for _, d := range dirs {
		key := Key{CentralID: centralID, Direction: d}
		s.bump(key)
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, key); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		s.logger.Debug("snapshot invalidated", "central_id", centralID, "direction", string(d))
		if s.onInvalidate != nil {
			s.onInvalidate(ctx, key)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns a sanitized snapshot, from cache when fresh.
// The caller owns the returned value.
func (s *Service) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	if centralID == "" {
		return nil, fmt.Errorf("%w: empty central id", hardware.ErrNotFound)
	}
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %q", hardware.ErrInvalidDirection, dir)
	}
	key := Key{CentralID: centralID, Direction: dir}

	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("snapshot cache read failed", "key", key.String(), "error", err)
		case ok:
			s.recorder.ObserveCache(true)
			return snap, nil
		}
		s.recorder.ObserveCache(false)
	}

	// The fetch is shared by every caller that joins it, so it must not die
	// with whichever caller started it. Each caller still stops waiting when
	// its own ctx ends.
	gen := s.generation(key)
	ch := s.group.DoChan(key.String()+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, key, gen)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", hardware.ErrTransportFailure, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*hardware.Snapshot).DeepCopy(), nil
	}
}

// fetch loads one snapshot from the provider and caches it unless the key
// was invalidated while the fetch was in flight.
//
// The generation is checked again after the store: an Invalidate that lands
// between the first check and Set would otherwise leave the stale snapshot
// cached.
func (s *Service) fetch(ctx context.Context, key Key, gen uint64) (*hardware.Snapshot, error) {
	start := s.now()
	snap, err := s.provider.Snapshot(ctx, key.CentralID, key.Direction)
	elapsed := s.now().Sub(start)
	s.recorder.ObserveFetch(key.Direction, elapsed, err)

	if err != nil {
		return nil, classify(err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: provider returned no snapshot", hardware.ErrMalformedSnapshot)
	}

	snap = hardware.Sanitize(snap)
	if snap.CentralID == "" {
		snap.CentralID = key.CentralID
	}
	if snap.Direction == "" {
		snap.Direction = key.Direction
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = s.now()
	}

	s.logger.Debug("snapshot fetched",
		"central_id", key.CentralID,
		"direction", string(key.Direction),
		"ports", len(snap.Ports),
		"elapsed", elapsed,
	)

	if s.cache != nil && s.generation(key) == gen {
		if err := s.cache.Set(ctx, key, snap); err != nil {
			s.logger.Warn("snapshot cache write failed", "key", key.String(), "error", err)
		} else if s.generation(key) != gen {
			if err := s.cache.Invalidate(ctx, key); err != nil {
				s.logger.Warn("dropping stale snapshot failed", "key", key.String(), "error", err)
			}
		}
	}
	return snap, nil
}

func (s *Service) generation(key Key) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

func (s *Service) bump(key Key) {
	s.genMu.Lock()
	s.gens[key]++
	s.genMu.Unlock()
}

func (s *Service) degrade(ctx context.Context, op, centralID string, dir hardware.Direction, err error) {
	msg := "hardware state unavailable"
	switch {
	case errors.Is(err, hardware.ErrNotFound):
		msg = "central not found"
	case errors.Is(err, hardware.ErrMalformedSnapshot):
		msg = "hardware state unreadable"
	case errors.Is(err, hardware.ErrInvalidDirection):
		msg = "unknown port direction"
	}

	s.logger.Warn("allocator degraded",
		"operation", op,
		"central_id", centralID,
		"direction", string(dir),
		"error", err,
	)
	s.notifier.Notify(ctx, Notice{
		CentralID: centralID,
		Direction: dir,
		Operation: op,
		Message:   msg,
		Err:       err,
	})
}

// classify makes sure every provider failure carries one of the sentinels
// callers branch on.
func classify(err error) error {
	if errors.Is(err, hardware.ErrNotFound) ||
		errors.Is(err, hardware.ErrMalformedSnapshot) ||
		errors.Is(err, hardware.ErrTransportFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", hardware.ErrTransportFailure, err)
}
