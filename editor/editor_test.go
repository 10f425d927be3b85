package editor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feedString(b *Bridge, s string) {
	for i := 0; i < len(s); i++ {
		b.Feed(s[i])
	}
}

func TestFeedBuildsLineAndCompletesOnEnter(t *testing.T) {
	b := NewBridge()
	feedString(b, "hello")
	line, complete := b.Feed('\r')
	require.True(t, complete)
	require.Equal(t, "hello", line)
	require.Equal(t, "", b.Line().String())
}

func TestFeedBackspaceRemovesLastChar(t *testing.T) {
	b := NewBridge()
	feedString(b, "helloo")
	b.Feed(0x7f)
	line, complete := b.Feed('\n')
	require.True(t, complete)
	require.Equal(t, "hello", line)
}

func TestFeedKillToStart(t *testing.T) {
	b := NewBridge()
	feedString(b, "hello world")
	b.Feed(0x15) // ^U
	line, complete := b.Feed('\r')
	require.True(t, complete)
	require.Equal(t, "", line)
}

func TestFeedKillWordBack(t *testing.T) {
	b := NewBridge()
	feedString(b, "hello world")
	b.Feed(0x17) // ^W
	line, _ := b.Feed('\r')
	require.Equal(t, "hello ", line)
}

func TestFeedTranspose(t *testing.T) {
	b := NewBridge()
	feedString(b, "ab")
	b.Feed(0x14) // ^T
	line, _ := b.Feed('\r')
	require.Equal(t, "ba", line)
}

func TestFeedIgnoresUnknownControlBytes(t *testing.T) {
	b := NewBridge()
	feedString(b, "ab")
	b.Feed(0x03) // ^C, not handled
	line, _ := b.Feed('\r')
	require.Equal(t, "ab", line)
}

func TestSaveAndRestoreRoundTripsBuffer(t *testing.T) {
	b := NewBridge()
	feedString(b, "draft")
	b.Save()
	b.Restore()
	require.Equal(t, "draft", b.Line().String())
}

func TestSavePanicsOnDoubleSave(t *testing.T) {
	b := NewBridge()
	feedString(b, "draft")
	b.Save()
	require.Panics(t, func() { b.Save() })
}

func TestRestoreWithoutSaveIsNoop(t *testing.T) {
	b := NewBridge()
	feedString(b, "draft")
	b.Restore()
	require.Equal(t, "draft", b.Line().String())
}
