package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is used by Watch when the lister cannot notify.
const DefaultPollInterval = 2 * time.Second

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.With("component", "devices.registry")
		}
	}
}

// Registry holds the last enumerated devices and the selection.
type Registry struct {
	lister Lister
	logger *slog.Logger

	mu       sync.Mutex
	devices  []Device
	selected string
	loading  bool
	err      error
	last     string
	onChange func()
}

// NewRegistry creates a registry backed by lister.
func NewRegistry(lister Lister, opts ...Option) *Registry {
	r := &Registry{
		lister: lister,
		logger: slog.Default().With("component", "devices.registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange sets a callback run after the list, selection or error changes.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Enumerate lists the devices and replaces the stored list. The first
// device is selected when nothing is selected yet. On failure the previous
// list is kept and the error is stored for Err.
func (r *Registry) Enumerate(ctx context.Context) ([]Device, error) {
	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()
	r.notify()

	devices, err := r.lister.List(ctx)

	r.mu.Lock()
	r.loading = false
	if err != nil {
		r.err = err
		r.mu.Unlock()
		if IsPermissionError(err) {
			r.logger.Warn("microphone permission denied", "error", err)
		} else {
			r.logger.Error("device enumeration failed", "error", err)
		}
		r.notify()
		return nil, err
	}

	r.last = fingerprint(devices)
	for i := range devices {
		devices[i].Label = devices[i].DisplayLabel()
	}
	r.devices = devices
	r.err = nil
	if r.selected == "" && len(devices) > 0 {
		r.selected = devices[0].ID
		r.logger.Info("microphone auto-selected", "device", r.selected)
	}
	out := append([]Device(nil), devices...)
	r.mu.Unlock()

	r.logger.Debug("devices enumerated", "count", len(out))
	r.notify()
	return out, nil
}

// Devices returns the last enumerated list.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Device(nil), r.devices...)
}

// Selected returns the selected device id, empty when none.
func (r *Registry) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// Select makes id the selected device. It reports whether the selection
// changed.
func (r *Registry) Select(id string) (bool, error) {
	r.mu.Lock()
	found := false
	for _, d := range r.devices {
		if d.ID == id {
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return false, ErrUnknownDevice
	}
	changed := r.selected != id
	r.selected = id
	r.mu.Unlock()

	if changed {
		r.logger.Info("microphone selected", "device", id)
		r.notify()
	}
	return changed, nil
}

// Loading reports whether an enumeration is in progress.
func (r *Registry) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the error of the last enumeration, nil after a success.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Watch re-enumerates until ctx is done: on every notification when the
// lister is a Notifier, otherwise when a poll every interval sees a
// different list.
func (r *Registry) Watch(ctx context.Context, interval time.Duration) {
	if n, ok := r.lister.(Notifier); ok {
		changes := n.Changes()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				r.logger.Debug("device topology changed")
				r.Enumerate(ctx)
			}
		}
	}

	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Registry) poll(ctx context.Context) {
	devices, err := r.lister.List(ctx)
	if err != nil {
		return
	}
	r.mu.Lock()
	changed := fingerprint(devices) != r.last
	r.mu.Unlock()
	if changed {
		r.logger.Debug("device topology changed")
		r.Enumerate(ctx)
	}
}

func (r *Registry) notify() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}
