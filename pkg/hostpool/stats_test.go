package hostpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsRecordsSuccessAndFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := OpenStats(path)
	require.NoError(t, err)
	defer s.Close()

	a := auth(t, "1.2.3.4:3000")

	require.NoError(t, s.RecordFailure(a))
	require.NoError(t, s.RecordFailure(a))
	require.NoError(t, s.RecordSuccess(a))

	e, err := s.Get(a)
	require.NoError(t, err)
	require.Equal(t, uint32(3), e.Tries)
	require.Equal(t, uint32(2), e.Failures)
	require.False(t, e.LastSuccess.IsZero())
}

func TestStatsGetUnknownIsZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := OpenStats(path)
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Get(auth(t, "9.9.9.9:1"))
	require.NoError(t, err)
	require.Equal(t, Entry{}, e)
}

func TestStatsPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	a := auth(t, "1.2.3.4:3000")

	s, err := OpenStats(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(a))
	require.NoError(t, s.Close())

	s2, err := OpenStats(path)
	require.NoError(t, err)
	defer s2.Close()
	e, err := s2.Get(a)
	require.NoError(t, err)
	require.Equal(t, uint32(1), e.Tries)
}
