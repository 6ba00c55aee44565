package cache

// MaxHighlightedEntries is the L2 cap on stored highlighted diff caches.
const MaxHighlightedEntries = 50

type prefetchKey struct {
	pr        PRKey
	fileIndex int
}

type prefetchEntry struct {
	cache *DiffCache
	seq   uint64
}

// PrefetchStore is the L2 store of highlighted diff caches keyed by
// (PR, file index). Overflow evicts the entry whose file index is farthest
// from the currently selected file, ties broken by oldest insertion; the
// user's next file is most likely adjacent to the current one.
type PrefetchStore struct {
	entries map[prefetchKey]prefetchEntry
	nextSeq uint64
}

// NewPrefetchStore returns an empty store.
func NewPrefetchStore() *PrefetchStore {
	return &PrefetchStore{entries: make(map[prefetchKey]prefetchEntry)}
}

// Get returns the stored cache for a file when its patch hash still matches
// the current patch. A hash mismatch means the patch changed underneath the
// entry; it is dropped.
func (s *PrefetchStore) Get(pr PRKey, fileIndex int, patchHash uint64) (*DiffCache, bool) {
	k := prefetchKey{pr: pr, fileIndex: fileIndex}
	entry, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if entry.cache.PatchHash != patchHash {
		delete(s.entries, k)
		return nil, false
	}
	return entry.cache, true
}

// Contains reports whether a valid entry exists for the file.
func (s *PrefetchStore) Contains(pr PRKey, fileIndex int, patchHash uint64) bool {
	entry, ok := s.entries[prefetchKey{pr: pr, fileIndex: fileIndex}]
	return ok && entry.cache.PatchHash == patchHash
}

// Put stores a highlighted cache, evicting by distance from the selected
// file when over cap.
func (s *PrefetchStore) Put(pr PRKey, dc *DiffCache, selectedFile int) {
	k := prefetchKey{pr: pr, fileIndex: dc.FileIndex}
	s.entries[k] = prefetchEntry{cache: dc, seq: s.nextSeq}
	s.nextSeq++

	for len(s.entries) > MaxHighlightedEntries {
		s.evictFarthest(selectedFile)
	}
}

func (s *PrefetchStore) evictFarthest(selectedFile int) {
	var victim prefetchKey
	bestDist := -1
	var bestSeq uint64
	for k, entry := range s.entries {
		dist := k.fileIndex - selectedFile
		if dist < 0 {
			dist = -dist
		}
		if dist > bestDist || (dist == bestDist && entry.seq < bestSeq) {
			victim = k
			bestDist = dist
			bestSeq = entry.seq
		}
	}
	delete(s.entries, victim)
}

// PurgePR drops all entries for one PR.
func (s *PrefetchStore) PurgePR(pr PRKey) {
	for k := range s.entries {
		if k.pr == pr {
			delete(s.entries, k)
		}
	}
}

// PurgeAll drops everything; called on PR switch and refresh.
func (s *PrefetchStore) PurgeAll() {
	s.entries = make(map[prefetchKey]prefetchEntry)
}

// Len returns the number of stored caches.
func (s *PrefetchStore) Len() int {
	return len(s.entries)
}
