package storage_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/deusflow/newswatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlistMissingFile(t *testing.T) {
	w, err := storage.OpenWatchlist(filepath.Join(t.TempDir(), "companies.json"))
	require.NoError(t, err)
	assert.Empty(t, w.Names())
}

func TestWatchlistAdd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"companies":[{"id":7,"name":"Acme"},{"id":3,"name":"Beta"}],"count":2}`), 0o644))

	w, err := storage.OpenWatchlist(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Beta"}, w.Names())

	c, err := w.Add("  Gamma & Co  ")
	require.NoError(t, err)
	assert.Equal(t, storage.Company{ID: 8, Name: "Gamma & Co"}, c)
	assert.Equal(t, []string{"Acme", "Beta", "Gamma & Co"}, w.Names())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Gamma & Co"`)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var onDisk struct {
		Companies []storage.Company `json:"companies"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 3, onDisk.Count)
	assert.Len(t, onDisk.Companies, 3)

	reopened, err := storage.OpenWatchlist(path)
	require.NoError(t, err)
	assert.Equal(t, w.Names(), reopened.Names())
}

func TestWatchlistAddRejects(t *testing.T) {
	w, err := storage.OpenWatchlist(filepath.Join(t.TempDir(), "nested", "companies.json"))
	require.NoError(t, err)

	_, err = w.Add("   ")
	assert.ErrorIs(t, err, storage.ErrEmptyName)

	_, err = w.Add("<b>Acme</b>")
	assert.ErrorIs(t, err, storage.ErrInvalidName)

	first, err := w.Add("Acme")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)

	_, err = w.Add("ACME")
	var dup *storage.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Acme", dup.Existing)
	assert.Equal(t, []string{"Acme"}, w.Names())
}

func TestWatchlistCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := storage.OpenWatchlist(path)
	assert.Error(t, err)
}

func TestStateStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "telegram_state.json")
	s := storage.NewStateStore(path)

	st, err := s.Load(storage.RunState{BroadMode: true})
	require.NoError(t, err)
	assert.Equal(t, storage.RunState{BroadMode: true}, st)

	require.NoError(t, s.Save(storage.RunState{LastUpdateID: 99, BroadMode: false}))

	st, err = s.Load(storage.RunState{BroadMode: true})
	require.NoError(t, err)
	assert.Equal(t, storage.RunState{LastUpdateID: 99, BroadMode: false}, st)
}

func TestStateStoreLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telegram_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_update_id": 12}`), 0o644))

	st, err := storage.NewStateStore(path).Load(storage.RunState{BroadMode: true})
	require.NoError(t, err)
	assert.Equal(t, int64(12), st.LastUpdateID)
	assert.True(t, st.BroadMode)
}
