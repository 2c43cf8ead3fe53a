package snapshot

import (
	"io/fs"
	"os"
	"sync"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store on miss.
// When the backing store implements Stater, every hit is checked against the
// file on disk and reloaded if the file was replaced or modified.
type LRUStore struct {
	mu   sync.Mutex
	cap  int
	back Store

	// Most recent at head.
	head, tail *lruEntry
	items      map[string]*lruEntry
}

type lruEntry struct {
	key  string
	snap *Snapshot
	info fs.FileInfo // nil when unknown
	prev *lruEntry
	next *lruEntry
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity must be >= 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*lruEntry, cap),
	}
}

// Save writes through to the backing store and caches snap on success.
func (s *LRUStore) Save(path string, snap *Snapshot) error {
	if err := s.back.Save(path, snap); err != nil {
		s.forget(path)
		return err
	}
	s.put(path, snap, s.stat(path))
	return nil
}

// Load checks the cache first. On a miss or a stale entry, loads from the
// backing store and promotes the snapshot into the cache.
func (s *LRUStore) Load(path string) (*Snapshot, error) {
	info := s.stat(path)
	s.mu.Lock()
	if e, ok := s.items[path]; ok && s.current(e, info) {
		s.moveToFront(e)
		snap := e.snap
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	snap, err := s.back.Load(path)
	if err != nil {
		s.forget(path)
		return nil, err
	}
	s.put(path, snap, info)
	return snap, nil
}

// Delete drops path from the cache and the backing store.
func (s *LRUStore) Delete(path string) error {
	s.forget(path)
	return s.back.Delete(path)
}

// Len reports the number of cached entries.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// stat returns the backing file info of path, or nil when the backing store
// cannot tell or the file is gone.
func (s *LRUStore) stat(path string) fs.FileInfo {
	st, ok := s.back.(Stater)
	if !ok {
		return nil
	}
	info, err := st.Stat(path)
	if err != nil {
		return nil
	}
	return info
}

// current reports whether e still matches the file described by info.
func (s *LRUStore) current(e *lruEntry, info fs.FileInfo) bool {
	if _, ok := s.back.(Stater); !ok {
		return true
	}
	if e.info == nil || info == nil {
		return false
	}
	return os.SameFile(e.info, info) &&
		e.info.ModTime().Equal(info.ModTime()) &&
		e.info.Size() == info.Size()
}

func (s *LRUStore) put(key string, snap *Snapshot, info fs.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		e.snap = snap
		e.info = info
		s.moveToFront(e)
		return
	}
	e := &lruEntry{key: key, snap: snap, info: info}
	s.items[key] = e
	s.pushFront(e)
	if len(s.items) > s.cap {
		s.evict()
	}
}

func (s *LRUStore) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		s.remove(e)
		delete(s.items, key)
	}
}

func (s *LRUStore) pushFront(e *lruEntry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *LRUStore) moveToFront(e *lruEntry) {
	if s.head == e {
		return
	}
	s.remove(e)
	s.pushFront(e)
}

func (s *LRUStore) remove(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (s *LRUStore) evict() {
	if s.tail == nil {
		return
	}
	e := s.tail
	s.remove(e)
	delete(s.items, e.key)
}
