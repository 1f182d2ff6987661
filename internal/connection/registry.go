package connection

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/rickgao/wsctl/internal/transport"
)

// Registry owns every connection record for the life of the process.
// The map lock only guards insertion and lookup; field changes take the
// record's own lock, so events for different connections never contend.
type Registry struct {
	mu      sync.RWMutex
	records map[uint64]*Record
	nextID  uint64

	now func() time.Time
}

// NewRegistry creates an empty registry. Ids start at 0.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[uint64]*Record),
		now:     time.Now,
	}
}

// Create inserts a Connecting record and returns its id.
func (r *Registry) Create(uri string, h transport.Handle) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.records[id] = newRecord(id, uri, h, r.now())
	return id
}

// remove drops a record whose transport connection never started. Its id is
// not reused.
func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	delete(r.records, id)
	r.mu.Unlock()
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id uint64) (Snapshot, bool) {
	rec := r.lookup(id)
	if rec == nil {
		return Snapshot{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshot(), true
}

// Handle returns the transport handle bound to id.
func (r *Registry) Handle(id uint64) (transport.Handle, bool) {
	rec := r.lookup(id)
	if rec == nil {
		return 0, false
	}
	return rec.handle, true
}

// Mutate runs fn with exclusive access to the record for id and stamps its
// update time. Returns false if id is unknown.
func (r *Registry) Mutate(id uint64, fn func(*Record)) bool {
	rec := r.lookup(id)
	if rec == nil {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	fn(rec)
	rec.updatedAt = r.now()
	return true
}

// ForEach calls fn with a copy of each record in ascending id order until fn
// returns false. Records created during the walk are not visited.
func (r *Registry) ForEach(fn func(Snapshot) bool) {
	for _, rec := range r.sorted() {
		rec.mu.Lock()
		snap := rec.snapshot()
		rec.mu.Unlock()

		if !fn(snap) {
			return
		}
	}
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Counts returns the number of records in each status.
func (r *Registry) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}

	for _, rec := range r.sorted() {
		rec.mu.Lock()
		counts[rec.status]++
		rec.mu.Unlock()
	}
	return counts
}

func (r *Registry) lookup(id uint64) *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// sorted returns the current records ordered by id.
func (r *Registry) sorted() []*Record {
	r.mu.RLock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	slices.SortFunc(recs, func(a, b *Record) int { return cmp.Compare(a.id, b.id) })
	return recs
}
