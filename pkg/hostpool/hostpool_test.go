package hostpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

func auth(t *testing.T, s string) wireaddr.Authority {
	t.Helper()
	a, err := wireaddr.NewAuthority(s)
	require.NoError(t, err)
	return a
}

func TestSaveDeduplicatesAndFetchReturnsAccepted(t *testing.T) {
	p := New(Config{Capacity: 10})
	a1 := wireaddr.NewAddressRecord(auth(t, "1.2.3.4:3000"), 100, wireaddr.ServiceNetwork)
	a2 := wireaddr.NewAddressRecord(auth(t, "1.2.3.4:3000"), 200, wireaddr.ServiceBloom)
	a3 := wireaddr.NewAddressRecord(auth(t, "5.6.7.8:3000"), 100, wireaddr.ServiceNetwork)

	var accepted int
	p.Save([]wireaddr.AddressRecord{a1, a2, a3}, func(err error, n int) {
		require.NoError(t, err)
		accepted = n
	})
	require.Equal(t, 2, accepted) // a2 dedups against a1's key
	require.Equal(t, 2, p.Count())

	var got []wireaddr.AddressRecord
	p.Fetch(0, func(err error, addrs []wireaddr.AddressRecord) {
		require.NoError(t, err)
		got = addrs
	})
	require.Len(t, got, 2)
}

func TestSaveRejectsUnspecifiedSelfAndBlacklisted(t *testing.T) {
	self := auth(t, "9.9.9.9:3000")
	blocked := auth(t, "6.6.6.6:3000")
	p := New(Config{Capacity: 10, Selfs: []wireaddr.Authority{self}, Blacklist: []wireaddr.Authority{blocked}})

	var accepted int
	p.Save([]wireaddr.AddressRecord{
		{}, // unspecified
		wireaddr.NewAddressRecord(self, 1, 0),
		wireaddr.NewAddressRecord(blocked, 1, 0),
		wireaddr.NewAddressRecord(auth(t, "1.1.1.1:3000"), 1, 0),
	}, func(err error, n int) {
		require.NoError(t, err)
		accepted = n
	})
	require.Equal(t, 1, accepted)
	require.Equal(t, 1, p.Count())
}

func TestFetchEmptyReturnsAddressEmpty(t *testing.T) {
	p := New(Config{Capacity: 10})
	p.Fetch(5, func(err error, addrs []wireaddr.AddressRecord) {
		require.ErrorIs(t, err, neterr.ErrAddressEmpty)
		require.Nil(t, addrs)
	})
}

func TestTakeExcludesFromFetchUntilRestore(t *testing.T) {
	p := New(Config{Capacity: 10})
	a := auth(t, "1.2.3.4:3000")
	p.Save([]wireaddr.AddressRecord{wireaddr.NewAddressRecord(a, 1, 0)}, func(error, int) {})

	require.NoError(t, p.Take(a))
	p.Fetch(0, func(err error, addrs []wireaddr.AddressRecord) {
		require.ErrorIs(t, err, neterr.ErrAddressEmpty)
	})

	require.NoError(t, p.Restore(a))
	p.Fetch(0, func(err error, addrs []wireaddr.AddressRecord) {
		require.NoError(t, err)
		require.Len(t, addrs, 1)
	})
}

func TestTakeUnknownAddressFails(t *testing.T) {
	p := New(Config{Capacity: 10})
	err := p.Take(auth(t, "1.2.3.4:3000"))
	require.ErrorIs(t, err, neterr.ErrAddressNotFound)
}

func TestFIFOEvictionAtCapacity(t *testing.T) {
	p := New(Config{Capacity: 2})
	p.Save([]wireaddr.AddressRecord{
		wireaddr.NewAddressRecord(auth(t, "1.1.1.1:1"), 1, 0),
		wireaddr.NewAddressRecord(auth(t, "2.2.2.2:2"), 1, 0),
	}, func(error, int) {})
	require.Equal(t, 2, p.Count())

	var accepted int
	p.Save([]wireaddr.AddressRecord{wireaddr.NewAddressRecord(auth(t, "3.3.3.3:3"), 1, 0)}, func(err error, n int) {
		accepted = n
	})
	require.Equal(t, 1, accepted)
	require.Equal(t, 2, p.Count())

	var got []wireaddr.AddressRecord
	p.Fetch(0, func(err error, addrs []wireaddr.AddressRecord) { got = addrs })
	keys := map[string]bool{}
	for _, r := range got {
		keys[r.Key()] = true
	}
	require.False(t, keys["1.1.1.1:1"], "oldest entry should have been evicted")
	require.True(t, keys["2.2.2.2:2"])
	require.True(t, keys["3.3.3.3:3"])
}

func TestStartStopRoundTripsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")

	p := New(Config{Capacity: 10, FilePath: path})
	require.NoError(t, p.Start())
	p.Save([]wireaddr.AddressRecord{
		wireaddr.NewAddressRecord(auth(t, "1.2.3.4:3000"), 100, wireaddr.ServiceNetwork),
		wireaddr.NewAddressRecord(auth(t, "[::1]:4000"), 200, wireaddr.ServiceBloom),
	}, func(error, int) {})
	require.NoError(t, p.Stop())

	p2 := New(Config{Capacity: 10, FilePath: path})
	require.NoError(t, p2.Start())
	require.Equal(t, 2, p2.Count())
}

func TestZeroCapacityDisablesPool(t *testing.T) {
	p := New(Config{})
	p.Save([]wireaddr.AddressRecord{wireaddr.NewAddressRecord(auth(t, "1.2.3.4:3000"), 1, 0)}, func(err error, n int) {
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})
	require.Equal(t, 0, p.Count())
}
