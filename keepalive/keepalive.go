// Package keepalive tracks when to send a ping or no-op to keep a
// connection alive, and when silence means the server is gone. It is
// driven by the event loop's poll timeout rather than its own ticker,
// since oicb has no goroutines.
package keepalive

import (
	"fmt"
	"time"
)

// MaxPings is the number of outstanding unanswered pings tolerated
// before the connection is considered dead.
const MaxPings = 3

// Action is what the controller wants the caller to do this tick.
type Action int

const (
	ActionNone Action = iota
	ActionSendPing
	ActionSendNoop
)

// Controller tracks keep-alive state for one connection.
type Controller struct {
	timeout          time.Duration // net_timeout; 0 disables
	lastInbound      time.Time
	pingsOutstanding int
	hasPing          bool // mirrors icb.Session.Features.Has(FeaturePing)
}

// New returns a Controller. timeout<=0 disables keep-alives entirely.
func New(timeout time.Duration, now time.Time) *Controller {
	return &Controller{timeout: timeout, lastInbound: now}
}

// Touch resets the controller on any inbound byte.
func (c *Controller) Touch(now time.Time) {
	c.lastInbound = now
	c.pingsOutstanding = 0
}

// SetHasPing updates whether the peer is known to support ping (cleared
// once "Undefined message type 108" arrives).
func (c *Controller) SetHasPing(v bool) { c.hasPing = v }

// Tick evaluates the keep-alive schedule against now and returns the
// action to take, or a fatal timeout error once the server has been
// silent past the escalated threshold.
func (c *Controller) Tick(now time.Time) (Action, error) {
	if c.timeout <= 0 {
		return ActionNone, nil
	}
	elapsed := now.Sub(c.lastInbound)
	// The due-ping check and the terminate check use the same elapsed
	// value and their thresholds coincide exactly when pingsOutstanding
	// reaches MaxPings-1, so the ping must be evaluated first: otherwise
	// the final ping is never sent before the connection is declared
	// dead on the very tick it falls due.
	threshold := c.timeout * time.Duration(c.pingsOutstanding+1)
	if elapsed > threshold && c.pingsOutstanding < MaxPings {
		if c.hasPing {
			c.pingsOutstanding++
			return ActionSendPing, nil
		}
		// 'n' is a pure no-op with no response, so refresh immediately
		// rather than counting it as an outstanding probe.
		c.lastInbound = now
		return ActionSendNoop, nil
	}
	if elapsed > c.timeout*time.Duration(MaxPings) {
		return ActionNone, fmt.Errorf("Server timed out, exiting")
	}
	return ActionNone, nil
}

// PollTimeout returns the poll(2)-style timeout for the event loop:
// net_timeout seconds expressed in tenths of a second, i.e.
// net_timeout*100 milliseconds, or a negative value meaning
// "infinite" when the keep-alive timeout is disabled (net_timeout = 0).
func (c *Controller) PollTimeout() time.Duration {
	if c.timeout <= 0 {
		return -1
	}
	return time.Duration(c.timeout.Seconds()*100) * time.Millisecond
}
