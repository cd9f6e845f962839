package exword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alparslanahmed/go-exword/internal/devsim"
)

// TestNoteRoundTrip walks a whole session: upload a note to internal
// memory, find it in the listing, delete it and check it is gone.
func TestNoteRoundTrip(t *testing.T) {
	dev := devsim.New()

	s, err := OpenTransport(dev)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Connect())
	require.NoError(t, s.SetPath(RootInternal, "/", 0))
	assert.Equal(t, `\_INTERNAL_00\`, s.Path())

	note := []byte("Remember to sync the new dictionary.")
	note = append(note, '\n')
	require.Len(t, note, 37)
	require.NoError(t, s.SendFile("NOTE.TXT", note))

	list, err := s.List()
	require.NoError(t, err)
	e, ok := list.Find("NOTE.TXT")
	require.True(t, ok)
	assert.False(t, e.IsDir())
	assert.False(t, e.IsUnicode())
	list.Release()

	got, err := s.GetFile("NOTE.TXT")
	require.NoError(t, err)
	assert.Equal(t, note, got)

	require.NoError(t, s.RemoveFile("NOTE.TXT"))

	list, err = s.List()
	require.NoError(t, err)
	_, ok = list.Find("NOTE.TXT")
	assert.False(t, ok)

	require.NoError(t, s.Disconnect())
	assert.Equal(t, StateOpened, s.State())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}
