package checkpoint

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing checkpoint loads as nil")

	state := &State{
		RunID:   "crawl_abcd1234_1700000000",
		SeedURL: "https://example.com/",
		Pending: []PendingURL{
			{URL: "https://example.com/products", Depth: 1, Priority: 0.1},
		},
		Seen: []string{"https://example.com/"},
	}
	require.NoError(t, m.Save(state))

	loaded, err = m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.RunID, loaded.RunID)
	assert.Equal(t, state.SeedURL, loaded.SeedURL)
	assert.Equal(t, state.Pending, loaded.Pending)
	assert.Equal(t, state.Seen, loaded.Seen)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestSaveReplacesPrevious(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	require.NoError(t, m.Save(&State{RunID: "first", Seen: []string{"a"}}))
	require.NoError(t, m.Save(&State{RunID: "second", Seen: []string{"a", "b"}}))

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.RunID)
	assert.Len(t, loaded.Seen, 2)

	_, err = os.Stat(m.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestClear(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	require.NoError(t, m.Save(&State{RunID: "r"}))
	require.NoError(t, m.Clear())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing an absent checkpoint is not an error.
	require.NoError(t, m.Clear())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)
	require.NoError(t, os.WriteFile(m.Path(), []byte("{not json"), 0o644))

	_, err := m.Load()
	assert.Error(t, err)
}

func TestAutoSave(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		m.AutoSave(10*time.Millisecond, func() *State {
			return &State{RunID: "auto"}
		}, stop)
		close(done)
	}()

	require.Eventually(t, func() bool {
		state, err := m.Load()
		return err == nil && state != nil && state.RunID == "auto"
	}, time.Second, 5*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("autosave goroutine did not stop")
	}
}
