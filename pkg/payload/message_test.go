package payload

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
	"github.com/nspcc-dev/p2pnet/pkg/wireio"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()

	var buf bytes.Buffer
	w := wireio.NewWriter(&buf)
	msg.Encode(w)
	require.NoError(t, w.Err)

	got, ok := Lookup(msg.Command())
	require.True(t, ok)

	r := wireio.NewReader(&buf)
	got.Decode(r)
	require.NoError(t, r.Err)
	return got
}

func TestVersionRoundTrip(t *testing.T) {
	v := &Version{
		ProtocolVersion: 70016,
		Services:        9,
		Timestamp:       1700000000,
		Recv:            addrNoTimestamp{Services: 9, Port: 8333},
		From:            addrNoTimestamp{Services: 9, Port: 8333},
		Nonce:           0xA5A5A5A5A5A5A5A5,
		UserAgent:       "/p2pnet:1.0/",
		StartHeight:     0,
		Relay:           true,
		HasRelay:        true,
	}
	got := roundTrip(t, v).(*Version)
	require.Equal(t, v, got)
}

func TestVersionWithoutRelayField(t *testing.T) {
	v := &Version{
		ProtocolVersion: 31402,
		Services:        1,
		Timestamp:       1700000000,
		Nonce:           42,
		UserAgent:       "/old/",
		StartHeight:     10,
		HasRelay:        false,
	}

	var buf bytes.Buffer
	w := wireio.NewWriter(&buf)
	v.Encode(w)
	require.NoError(t, w.Err)

	got := &Version{}
	r := wireio.NewReader(&buf)
	got.Decode(r)
	require.NoError(t, r.Err)
	require.False(t, got.HasRelay)
	require.Equal(t, v.UserAgent, got.UserAgent)
}

func TestVerackRoundTrip(t *testing.T) {
	roundTrip(t, &Verack{})
}

func TestPingPongRoundTrip(t *testing.T) {
	got := roundTrip(t, &Ping{Nonce: 12345}).(*Ping)
	require.Equal(t, uint64(12345), got.Nonce)

	gotPong := roundTrip(t, &Pong{Nonce: 999}).(*Pong)
	require.Equal(t, uint64(999), gotPong.Nonce)
}

func TestAddressRoundTrip(t *testing.T) {
	auth := wireaddr.Authority{IP: [16]byte{0: 1, 15: 2}, Port: 8333}
	rec := wireaddr.NewAddressRecord(auth, 1700000000, wireaddr.ServiceNetwork)
	a := &Address{Records: []wireaddr.AddressRecord{rec}}
	got := roundTrip(t, a).(*Address)
	require.Len(t, got.Records, 1)
	require.True(t, rec.Equal(got.Records[0]))
	require.Equal(t, rec.Timestamp, got.Records[0].Timestamp)
}

func TestGetAddressRoundTrip(t *testing.T) {
	roundTrip(t, &GetAddress{})
}

func TestCapabilityMessagesRoundTrip(t *testing.T) {
	roundTrip(t, &SendAddrV2{})
	roundTrip(t, &WtxidRelay{})
}

func TestRejectRoundTrip(t *testing.T) {
	r := &Reject{Message: "version", Code: RejectUndefined, Reason: "services"}
	got := roundTrip(t, r).(*Reject)
	require.Equal(t, r, got)
}

func TestAlertRoundTrip(t *testing.T) {
	a := &Alert{Payload: []byte("legacy"), Signature: []byte("sig")}
	got := roundTrip(t, a).(*Alert)
	require.Equal(t, a, got)
}

func TestOpaqueCarriesUnknownCommand(t *testing.T) {
	body := []byte("whatever bytes a leaf protocol wants")
	msg := NewOpaque("filterload", body)

	var buf bytes.Buffer
	w := wireio.NewWriter(&buf)
	msg.Encode(w)
	require.NoError(t, w.Err)

	got := NewForCommand("filterload", uint32(len(body)))
	r := wireio.NewReader(&buf)
	got.Decode(r)
	require.NoError(t, r.Err)
	require.Equal(t, body, got.(*Opaque).Body)
}

func TestInvAndGetDataAreRegistered(t *testing.T) {
	inv, ok := Lookup(CmdInv)
	require.True(t, ok)
	require.Equal(t, CmdInv, inv.Command())

	gd, ok := Lookup(CmdGetData)
	require.True(t, ok)
	require.Equal(t, CmdGetData, gd.Command())
}

func TestInvAndGetDataRoundTripViaDecodeMessage(t *testing.T) {
	for _, command := range []string{CmdInv, CmdGetData} {
		body := []byte{0x02, 0xAA, 0xBB, 0xCC, 0xDD}

		got, err := DecodeMessage(command, body)
		require.NoError(t, err)
		require.Equal(t, command, got.Command())
		require.Equal(t, body, got.(*Opaque).Body)
	}
}

func TestNewForCommandSizesRegisteredOpaque(t *testing.T) {
	msg := NewForCommand(CmdInv, 5)
	require.Len(t, msg.(*Opaque).Body, 5)
}

func TestEncodeProducesVerifiableHeading(t *testing.T) {
	h, body, err := Encode(0x12345678, &Ping{Nonce: 1})
	require.NoError(t, err)
	require.NoError(t, h.Validate(0x12345678, 1<<20))
	require.NoError(t, h.VerifyChecksum(body))
}
