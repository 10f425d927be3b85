package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBasicTarget(t *testing.T) {
	opts, err := Parse([]string{"bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, "bob", opts.Nick)
	require.Equal(t, "icb.example.com", opts.Host)
	require.Equal(t, DefaultPort, opts.Port)
	require.Equal(t, "lobby", opts.Room)
	require.Equal(t, DefaultNetTimeout, opts.NetTimeout)
}

func TestParseExplicitPort(t *testing.T) {
	opts, err := Parse([]string{"bob@icb.example.com:7777", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 7777, opts.Port)
}

func TestParseWithoutNickDefaultsToLoginName(t *testing.T) {
	opts, err := Parse([]string{"icb.example.com", "lobby"})
	require.NoError(t, err)
	require.NotEmpty(t, opts.Nick)
}

func TestParseBundledShortFlags(t *testing.T) {
	opts, err := Parse([]string{"-dH", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 1, opts.Verbosity)
	require.True(t, opts.NoHistory)
}

func TestParseRepeatedDIncrementsVerbosity(t *testing.T) {
	opts, err := Parse([]string{"-d", "-d", "-d", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 3, opts.Verbosity)
}

func TestParseNetTimeoutFlagSeparateValue(t *testing.T) {
	opts, err := Parse([]string{"-t", "60", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, opts.NetTimeout)
}

func TestParseNetTimeoutFlagAttachedValue(t *testing.T) {
	opts, err := Parse([]string{"-t60", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, opts.NetTimeout)
}

func TestParseNetTimeoutZeroDisables(t *testing.T) {
	opts, err := Parse([]string{"-t", "0", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), opts.NetTimeout)
}

func TestParseBundledWithTimeout(t *testing.T) {
	opts, err := Parse([]string{"-dHt", "5", "bob@icb.example.com", "lobby"})
	require.NoError(t, err)
	require.Equal(t, 1, opts.Verbosity)
	require.True(t, opts.NoHistory)
	require.Equal(t, 5*time.Second, opts.NetTimeout)
}

func TestParseMissingPositionalArgsFails(t *testing.T) {
	_, err := Parse([]string{"bob@icb.example.com"})
	require.Error(t, err)
}

func TestParseUnknownFlagFails(t *testing.T) {
	_, err := Parse([]string{"-x", "bob@icb.example.com", "lobby"})
	require.Error(t, err)
}

func TestParseInvalidPortFails(t *testing.T) {
	_, err := Parse([]string{"bob@icb.example.com:notaport", "lobby"})
	require.Error(t, err)
}
