package keepalive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickNoneBeforeThreshold(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	action, err := c.Tick(now.Add(5 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionNone, action)
}

func TestTickSendsPingWhenFeatureSupported(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	c.SetHasPing(true)
	action, err := c.Tick(now.Add(11 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)
}

func TestTickFallsBackToNoopWithoutPingSupport(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	action, err := c.Tick(now.Add(11 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendNoop, action)

	// noop refreshes lastInbound immediately, so an immediate re-tick is quiet.
	action, err = c.Tick(now.Add(11 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionNone, action)
}

func TestTickEscalatesThresholdWithOutstandingPings(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	c.SetHasPing(true)

	action, err := c.Tick(now.Add(11 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)

	// still within the (pingsOutstanding+1)*timeout window: quiet.
	action, err = c.Tick(now.Add(15 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionNone, action)

	action, err = c.Tick(now.Add(21 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)
}

func TestTickFatalTimeoutAfterMaxPings(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	c.SetHasPing(true)

	// Ramp pingsOutstanding up to MaxPings the way the event loop actually
	// drives Tick, one escalating threshold at a time. The last of these
	// falls on the same elapsed time as the hard timeout, and the due
	// ping must still go out rather than being preempted by it.
	action, err := c.Tick(now.Add(11 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)

	action, err = c.Tick(now.Add(21 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)

	action, err = c.Tick(now.Add(31 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)

	// pingsOutstanding has now reached MaxPings, so no further ping is
	// due and the hard timeout fires.
	_, err = c.Tick(now.Add(31 * time.Second))
	require.Error(t, err)
}

func TestTickSendsFinalPingBeforeFatalTimeout(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	c.SetHasPing(true)
	c.pingsOutstanding = MaxPings - 1

	// The ping-due threshold and the hard-timeout threshold are both 30s
	// here, so this elapsed time exceeds both; the final ping must win.
	action, err := c.Tick(now.Add(31 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionSendPing, action)
}

func TestTouchResetsOutstandingPings(t *testing.T) {
	now := time.Now()
	c := New(10*time.Second, now)
	c.SetHasPing(true)
	c.Tick(now.Add(11 * time.Second))
	c.Touch(now.Add(12 * time.Second))

	action, err := c.Tick(now.Add(21 * time.Second))
	require.NoError(t, err)
	require.Equal(t, ActionNone, action)
}

func TestZeroTimeoutDisablesKeepAlive(t *testing.T) {
	now := time.Now()
	c := New(0, now)
	action, err := c.Tick(now.Add(365 * 24 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, ActionNone, action)
	require.Equal(t, time.Duration(-1), c.PollTimeout())
}

func TestPollTimeoutIsTimeoutTimesHundredMilliseconds(t *testing.T) {
	c := New(30*time.Second, time.Now())
	require.Equal(t, 3*time.Second, c.PollTimeout())
}
