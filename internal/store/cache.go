package store

import lru "github.com/hashicorp/golang-lru"

// snapshotCache keeps recently read room snapshots so the hot get_room path
// (clients re-syncing after reconnect) skips the database. Entries are
// dropped on every mutation of their room.
type snapshotCache struct {
	c *lru.Cache
}

func newSnapshotCache(size int) *snapshotCache {
	c, _ := lru.New(size)
	return &snapshotCache{c: c}
}

func (s *snapshotCache) get(code string) (Snapshot, bool) {
	v, ok := s.c.Get(code)
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

func (s *snapshotCache) put(code string, snap Snapshot) {
	s.c.Add(code, snap)
}

func (s *snapshotCache) drop(code string) {
	s.c.Remove(code)
}
