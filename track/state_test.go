package track

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMapStore(t *testing.T) {
	st := NewMapStore()
	_, ok := st.Get("ring")
	assert.False(t, ok)
	assert.Zero(t, st.Len())

	st.Put(nil)
	assert.Zero(t, st.Len())

	ring := sampleTrackMap(t)
	alpha := sampleTrackMap(t)
	alpha.TrackID = "alpha"
	st.Put(ring)
	st.Put(alpha)
	st.Put(ring)

	got, ok := st.Get("ring")
	require.True(t, ok)
	assert.Same(t, ring, got)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, 2, st.Revision("ring"))
	assert.Equal(t, 1, st.Revision("alpha"))
	assert.Zero(t, st.Revision("missing"))
	assert.Equal(t, []string{"alpha", "ring"}, st.IDs())

	summaries := st.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "alpha", summaries[0].TrackID)
	assert.Equal(t, ring.Summarize(), summaries[1])
}

func TestMapStore_Cache(t *testing.T) {
	dir := t.TempDir()
	st := NewMapStoreWithCache(dir, zap.NewNop())
	st.Put(sampleTrackMap(t))
	assert.FileExists(t, filepath.Join(dir, "ring.json"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	reloaded := NewMapStoreWithCache(dir, nil)
	assert.Equal(t, []string{"ring"}, reloaded.IDs())
	tm, ok := reloaded.Get("ring")
	require.True(t, ok)
	assert.Equal(t, "run-1", tm.RunID)
	assert.Zero(t, reloaded.Revision("ring"), "loading from cache is not a revision")
}

func TestMapStore_MissingCacheDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "later")
	st := NewMapStoreWithCache(dir, nil)
	assert.Zero(t, st.Len())

	// Put creates the directory
	st.Put(sampleTrackMap(t))
	assert.FileExists(t, filepath.Join(dir, "ring.json"))
}

func TestMapStore_Concurrent(t *testing.T) {
	st := NewMapStore()
	tm := sampleTrackMap(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Put(tm)
			st.Summaries()
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, st.Revision("ring"))
}
