package track

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MapStore holds the generated track maps served over HTTP
type MapStore struct {
	mu        sync.RWMutex
	maps      map[string]*TrackMap
	cacheDir  string // generated maps are persisted here; empty disables persistence
	logger    *zap.Logger
	revisions map[string]int
}

// NewMapStore creates an empty in-memory store
func NewMapStore() *MapStore {
	return &MapStore{
		maps:      make(map[string]*TrackMap),
		revisions: make(map[string]int),
		logger:    zap.NewNop(),
	}
}

// NewMapStoreWithCache creates a store that persists every stored map to
// cacheDir as <trackId>.json. Maps already in the directory are loaded.
func NewMapStoreWithCache(cacheDir string, logger *zap.Logger) *MapStore {
	st := NewMapStore()
	st.cacheDir = cacheDir
	if logger != nil {
		st.logger = logger
	}
	if cacheDir == "" {
		return st
	}
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return st
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		tm, err := LoadTrackMap(filepath.Join(cacheDir, e.Name()))
		if err != nil {
			st.logger.Warn("skipping cached track map", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		st.maps[tm.TrackID] = tm
	}
	return st
}

// Put stores a map, replacing any previous map of the same track
func (st *MapStore) Put(tm *TrackMap) {
	if tm == nil {
		return
	}
	st.mu.Lock()
	st.maps[tm.TrackID] = tm
	st.revisions[tm.TrackID]++
	cacheDir := st.cacheDir
	st.mu.Unlock()

	if cacheDir != "" {
		path := filepath.Join(cacheDir, MapFileName(tm.TrackID, "json"))
		if err := SaveTrackMap(path, tm); err != nil {
			st.logger.Warn("failed to save track map cache", zap.String("path", path), zap.Error(err))
		}
	}
}

// Get returns the map of a track
func (st *MapStore) Get(trackID string) (*TrackMap, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	tm, ok := st.maps[trackID]
	return tm, ok
}

// Revision returns how many times a track's map was replaced in this process
func (st *MapStore) Revision(trackID string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.revisions[trackID]
}

// IDs returns the stored track ids in sorted order
func (st *MapStore) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.maps))
	for id := range st.maps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Summaries returns the summary of every stored map, ordered by track id
func (st *MapStore) Summaries() []Summary {
	ids := st.IDs()
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		if tm, ok := st.maps[id]; ok {
			out = append(out, tm.Summarize())
		}
	}
	return out
}

// Len returns the number of stored maps
func (st *MapStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.maps)
}
