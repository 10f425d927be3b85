package icb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildContinuationFragment returns a raw zero-length-sentinel
// continuation fragment: [0][type][fragmentDataSize data bytes].
func buildContinuationFragment(typ byte, data []byte) []byte {
	if len(data) != fragmentDataSize {
		panic("test fragment data must be exactly fragmentDataSize bytes")
	}
	out := make([]byte, 0, fragmentStride)
	out = append(out, 0, typ)
	out = append(out, data...)
	return out
}

// buildTerminatorFragment returns a raw terminator fragment:
// [len(data)+1][type][data...].
func buildTerminatorFragment(typ byte, data []byte) []byte {
	out := make([]byte, 0, 2+len(data))
	out = append(out, byte(len(data)+1), typ)
	out = append(out, data...)
	return out
}

func TestDecoderDropsSpuriousNULBeforeNextFragmentHeader(t *testing.T) {
	// Simulate a server that pads a continuation fragment's final data
	// byte with a spurious NUL right before the next fragment's header.
	first := append([]byte(strings.Repeat("a", fragmentDataSize-1)), 0)
	frag0 := buildContinuationFragment(TypeOpen, first)
	frag1 := buildTerminatorFragment(TypeOpen, []byte("XYZ\x00"))

	d := NewDecoder()
	require.NoError(t, d.Feed(frag0))
	require.NoError(t, d.Feed(frag1))

	msg, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, TypeOpen, msg.Type)
	require.Equal(t, strings.Repeat("a", fragmentDataSize-1)+"XYZ", string(msg.Payload))
	require.NotContains(t, string(msg.Payload), "\x00")
}

func TestDecoderKeepsRealDataWhenNoSpuriousNUL(t *testing.T) {
	first := []byte(strings.Repeat("z", fragmentDataSize))
	frag0 := buildContinuationFragment(TypeOpen, first)
	frag1 := buildTerminatorFragment(TypeOpen, []byte("XYZ\x00"))

	d := NewDecoder()
	require.NoError(t, d.Feed(frag0))
	require.NoError(t, d.Feed(frag1))

	msg, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, strings.Repeat("z", fragmentDataSize)+"XYZ", string(msg.Payload))
}

func TestDecoderDropsSpuriousNULAcrossThreeContinuations(t *testing.T) {
	first := append([]byte(strings.Repeat("a", fragmentDataSize-1)), 0)
	second := append([]byte(strings.Repeat("b", fragmentDataSize-1)), 0)
	frag0 := buildContinuationFragment(TypeOpen, first)
	frag1 := buildContinuationFragment(TypeOpen, second)
	frag2 := buildTerminatorFragment(TypeOpen, []byte("end\x00"))

	d := NewDecoder()
	require.NoError(t, d.Feed(frag0))
	require.NoError(t, d.Feed(frag1))
	require.NoError(t, d.Feed(frag2))

	msg, ok, err := d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	want := strings.Repeat("a", fragmentDataSize-1) + strings.Repeat("b", fragmentDataSize-1) + "end"
	require.Equal(t, want, string(msg.Payload))
}
