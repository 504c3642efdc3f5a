package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStateMissingFile(t *testing.T) {
	st := LoadState(filepath.Join(t.TempDir(), "nope.json"))
	require.NotNil(t, st.Mounts)
	assert.Empty(t, st.List())
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{{"), 0644))

	st := LoadState(path)
	require.NotNil(t, st.Mounts)
	assert.Empty(t, st.Mounts)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	st := LoadState(path)
	st.Add(MountState{AppID: "firefox", ImagePath: "/tmp/firefox.dmg", MountPath: "/Volumes/Firefox", MountedAt: at})
	require.NoError(t, SaveState(path, st))

	loaded := LoadState(path)
	require.Len(t, loaded.Mounts, 1)
	got := loaded.Mounts["/Volumes/Firefox"]
	assert.Equal(t, "firefox", got.AppID)
	assert.True(t, at.Equal(got.MountedAt))
}

func TestTrackAndUntrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	older := time.Now().Add(-time.Hour)

	require.NoError(t, Track(path, MountState{AppID: "vlc", MountPath: "/Volumes/VLC", MountedAt: time.Now()}))
	require.NoError(t, Track(path, MountState{AppID: "firefox", MountPath: "/Volumes/Firefox", MountedAt: older}))

	list := LoadState(path).List()
	require.Len(t, list, 2)
	assert.Equal(t, "firefox", list[0].AppID)

	require.NoError(t, Untrack(path, "/Volumes/Firefox"))
	require.NoError(t, Untrack(path, "/Volumes/Unknown"))

	list = LoadState(path).List()
	require.Len(t, list, 1)
	assert.Equal(t, "vlc", list[0].AppID)
}

func TestSaveStateUnwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := SaveState(filepath.Join(blocker, "state.json"), &State{Mounts: map[string]MountState{}})
	require.Error(t, err)
}
