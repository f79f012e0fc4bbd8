package transcript

import (
	"log/slog"
	"sync"
	"time"
)

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Log) {
		if l != nil {
			t.logger = l.With("component", "transcript.log")
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Log) {
		if now != nil {
			t.now = now
		}
	}
}

// Log is the append-only transcript. It is safe for concurrent use.
type Log struct {
	mu    sync.RWMutex
	items []Item
	index map[string]int

	subMu  sync.RWMutex
	subs   map[int]func(Change)
	nextID int

	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty log.
func New(opts ...Option) *Log {
	t := &Log{
		index:  make(map[string]int),
		subs:   make(map[int]func(Change)),
		logger: slog.Default().With("component", "transcript.log"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddMessage appends a new message. A duplicate id is logged and ignored.
func (t *Log) AddMessage(id string, role Role, text string, isUserAction bool) {
	now := t.now()
	item := Item{
		ID:           id,
		Type:         TypeMessage,
		Role:         role,
		Title:        text,
		Timestamp:    now.Format(TimestampLayout),
		CreatedAt:    now,
		Status:       StatusInProgress,
		IsUserAction: isUserAction,
	}
	if t.append(item) {
		t.notify(Change{Kind: ChangeAdded, Item: item})
	}
}

// AddBreadcrumb appends a diagnostic marker.
func (t *Log) AddBreadcrumb(label string, data map[string]any) {
	now := t.now()
	item := Item{
		ID:        NewID(),
		Type:      TypeBreadcrumb,
		Title:     label,
		Data:      data,
		Timestamp: now.Format(TimestampLayout),
		CreatedAt: now,
		Status:    StatusDone,
	}
	if t.append(item) {
		t.notify(Change{Kind: ChangeAdded, Item: item})
	}
}

func (t *Log) append(item Item) bool {
	t.mu.Lock()
	if _, exists := t.index[item.ID]; exists {
		t.mu.Unlock()
		t.logger.Warn("duplicate transcript id ignored", "id", item.ID, "type", item.Type)
		return false
	}
	t.index[item.ID] = len(t.items)
	t.items = append(t.items, item)
	t.mu.Unlock()
	return true
}

// UpdateMessage replaces or appends to the text of an existing message.
// An unknown id is a no-op.
func (t *Log) UpdateMessage(id, text string, appendText bool) {
	t.mu.Lock()
	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		t.logger.Debug("update for unknown transcript id", "id", id)
		return
	}
	if appendText {
		t.items[i].Title += text
	} else {
		t.items[i].Title = text
	}
	item := t.items[i]
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeUpdated, Item: item})
}

// MarkDone flips a message to DONE. An unknown id is a no-op.
func (t *Log) MarkDone(id string) {
	t.mu.Lock()
	i, ok := t.index[id]
	if !ok || t.items[i].Status == StatusDone {
		t.mu.Unlock()
		return
	}
	t.items[i].Status = StatusDone
	item := t.items[i]
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeUpdated, Item: item})
}

// Has reports whether id is present.
func (t *Log) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[id]
	return ok
}

// Get returns the item with id.
func (t *Log) Get(id string) (Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return Item{}, false
	}
	return t.items[i], true
}

// Items returns a snapshot in insertion order.
func (t *Log) Items() []Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Len returns the number of items.
func (t *Log) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// Reset clears the log.
func (t *Log) Reset() {
	t.mu.Lock()
	t.items = nil
	t.index = make(map[string]int)
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeReset})
}

// Subscribe registers fn for every change. The returned function removes it.
// fn runs on the goroutine that made the change and must not block.
func (t *Log) Subscribe(fn func(Change)) func() {
	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Log) notify(c Change) {
	t.subMu.RLock()
	fns := make([]func(Change), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
