package wireaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRecordSpecified(t *testing.T) {
	a, err := NewAuthority("1.2.3.4:3000")
	require.NoError(t, err)
	r := NewAddressRecord(a, 100, ServiceNetwork)
	require.True(t, r.IsSpecified())

	unspecified := AddressRecord{}
	require.False(t, unspecified.IsSpecified())

	noPort := r
	noPort.Port = 0
	require.False(t, noPort.IsSpecified())
}

func TestAddressRecordEqualIgnoresTimestampAndServices(t *testing.T) {
	a, err := NewAuthority("1.2.3.4:3000")
	require.NoError(t, err)
	r1 := NewAddressRecord(a, 100, ServiceNetwork)
	r2 := NewAddressRecord(a, 200, ServiceBloom|ServiceWitness)
	require.True(t, r1.Equal(r2))
	require.Equal(t, r1.Key(), r2.Key())
}

func TestServiceHas(t *testing.T) {
	s := ServiceNetwork | ServiceWitness
	require.True(t, s.Has(ServiceNetwork))
	require.True(t, s.Has(ServiceNetwork|ServiceWitness))
	require.False(t, s.Has(ServiceBloom))
}
