// Package loop implements the single-threaded, poll(2)-driven readiness
// multiplexer tying together the wire codec, output queues, history
// writer, chat formatter/dispatcher, keep-alive controller and line
// editor. OS signals are folded into the same unix.Poll call via a
// self-pipe, since the engine has no goroutines of its own.
package loop

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"oicb/chat"
	"oicb/editor"
	"oicb/history"
	"oicb/icb"
	"oicb/keepalive"
	"oicb/logs"
	"oicb/queue"
)

// Self-pipe byte markers written by the signal-forwarding goroutine in
// main and read back inside the poll loop.
const (
	SignalExit byte = 1
	SignalInfo byte = 2
)

// Loop owns every fd and piece of mutable state the event loop threads
// through one connection's lifetime.
type Loop struct {
	sockFd   int
	stdinFd  int
	stdoutFd int
	sigRead  int // self-pipe read end, registered in the pollset

	dec        *icb.Decoder
	session    *icb.Session
	sockOutQ   queue.Queue
	stdoutOutQ queue.Queue
	hist       *history.Writer
	dispatch   chat.Dispatcher
	keepalive  *keepalive.Controller
	bridge     *editor.Bridge

	wantExit bool
	wantInfo bool

	log *logs.SugaredLogger
}

// New constructs a Loop over an already-connected, non-blocking socket
// fd; dialing and non-blocking setup are the caller's job, done before
// Run is invoked.
func New(sockFd int, sigRead int, session *icb.Session, hist *history.Writer, timeout time.Duration, now time.Time, bridge *editor.Bridge, log *logs.SugaredLogger) *Loop {
	ka := keepalive.New(timeout, now)
	ka.SetHasPing(session.Features.Has(icb.FeaturePing))
	return &Loop{
		sockFd:    sockFd,
		stdinFd:   int(os.Stdin.Fd()),
		stdoutFd:  int(os.Stdout.Fd()),
		sigRead:   sigRead,
		dec:       icb.NewDecoder(),
		session:   session,
		hist:      hist,
		keepalive: ka,
		bridge:    bridge,
		log:       log,
	}
}

// RequestExit marks the loop for a clean shutdown: no further inbound
// messages are drained, and the loop exits after the current iteration.
func (l *Loop) RequestExit() { l.wantExit = true }

// RequestInfo marks the loop to print a one-line status summary at the
// top of the next iteration.
func (l *Loop) RequestInfo() { l.wantInfo = true }

// Run drives the event loop until a clean or fatal exit. The returned
// error is nil on clean shutdown (server 'g', or want_exit), and an
// *icb.ErrFatalProtocol or plain error otherwise.
func (l *Loop) Run() error {
	for {
		if l.wantExit {
			return nil
		}
		if l.wantInfo {
			l.printInfo()
			l.wantInfo = false
		}

		if err := l.sockOutQ.Drain(socketWriter{l.sockFd}); err != nil {
			return fmt.Errorf("socket write: %w", err)
		}

		now := time.Now()
		action, err := l.keepalive.Tick(now)
		if err != nil {
			return err
		}
		switch action {
		case keepalive.ActionSendPing:
			l.enqueueOutbound(icb.TypePing, nil)
		case keepalive.ActionSendNoop:
			l.enqueueOutbound(icb.TypeNoop, nil)
		}

		l.hist.Drain(now)

		fds := l.buildPollset()
		timeoutMs := l.pollTimeoutMs()
		n, err := unix.Poll(fds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if err := l.checkErrEvents(fds); err != nil {
			return err
		}

		if l.session.Phase == icb.Connecting {
			for _, pfd := range fds {
				if int(pfd.Fd) == l.sockFd && pfd.Revents&unix.POLLOUT != 0 {
					l.session.Phase = icb.Connected
				}
			}
		}

		for _, pfd := range fds {
			if int(pfd.Fd) == l.sigRead && pfd.Revents&unix.POLLIN != 0 {
				for _, b := range drainSelfPipe(l.sigRead) {
					switch b {
					case SignalExit:
						l.wantExit = true
					case SignalInfo:
						l.wantInfo = true
					}
				}
			}
		}

		stdinReady := false
		sockReadable := false
		for _, pfd := range fds {
			if int(pfd.Fd) == l.stdinFd && pfd.Revents&unix.POLLIN != 0 {
				stdinReady = true
			}
			if int(pfd.Fd) == l.sockFd && pfd.Revents&unix.POLLIN != 0 {
				sockReadable = true
			}
		}

		if stdinReady {
			if err := l.handleStdin(); err != nil {
				return err
			}
		}

		if sockReadable {
			if err := l.handleSocket(); err != nil {
				return err
			}
		}

		l.drainStdout()
		l.hist.Drain(time.Now())

		if l.wantExit {
			return nil
		}
	}
}

func (l *Loop) buildPollset() []unix.PollFd {
	fds := []unix.PollFd{
		{Fd: int32(l.stdinFd), Events: unix.POLLIN},
		{Fd: int32(l.sigRead), Events: unix.POLLIN},
	}
	sockEvents := int16(unix.POLLIN)
	if l.session.Phase == icb.Connecting || !l.sockOutQ.Empty() {
		sockEvents |= unix.POLLOUT
	}
	fds = append(fds, unix.PollFd{Fd: int32(l.sockFd), Events: sockEvents})
	if !l.stdoutOutQ.Empty() {
		fds = append(fds, unix.PollFd{Fd: int32(l.stdoutFd), Events: unix.POLLOUT})
	}
	for _, fd := range l.hist.PendingWriteFDs() {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT})
	}
	return fds
}

func (l *Loop) pollTimeoutMs() int {
	d := l.keepalive.PollTimeout()
	if d < 0 {
		return -1
	}
	return int(d.Milliseconds())
}

func (l *Loop) checkErrEvents(fds []unix.PollFd) error {
	bad := unix.POLLERR | unix.POLLHUP | unix.POLLNVAL
	for _, pfd := range fds {
		if pfd.Revents&int16(bad) == 0 {
			continue
		}
		switch int(pfd.Fd) {
		case l.stdinFd:
			return fmt.Errorf("stdin: readiness error")
		case l.stdoutFd:
			return fmt.Errorf("stdout: readiness error")
		case l.sockFd:
			return fmt.Errorf("socket: readiness error")
		}
	}
	return nil
}

// handleStdin delivers exactly one byte to the editor, and
// on a completed line, turns it into an outbound message.
func (l *Loop) handleStdin() error {
	var b [1]byte
	n, err := unix.Read(l.stdinFd, b[:])
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		return fmt.Errorf("stdin read: %w", err)
	}
	if n == 0 {
		l.wantExit = true
		return nil
	}
	line, complete := l.bridge.Feed(b[0])
	if !complete {
		return nil
	}
	return l.submitLine(line)
}

func (l *Loop) submitLine(line string) error {
	if line == "" {
		return nil
	}
	if line[0] == '/' {
		cmd := line[1:]
		encoded := icb.EncodeCommandLine(cmd)
		if len(cmd) >= 2 && cmd[0] == 'm' && cmd[1] == ' ' {
			if i := bytes.IndexByte(encoded, icb.FieldSep); i >= 0 {
				l.hist.Append(history.KindPrivate, "me", string(encoded[i+1:]))
			}
		}
		l.enqueueOutbound(icb.TypeCommand, encoded)
		if l.session.Phase == icb.Chat {
			l.session.Phase = icb.CommandSent
		}
		return nil
	}
	l.enqueueOutbound(icb.TypeOpen, []byte(line))
	l.hist.Append(history.KindRoom, "me", line)
	return nil
}

func (l *Loop) enqueueOutbound(t byte, payload []byte) {
	var packets [][]byte
	var err error
	if l.session.Features.Has(icb.FeatureExtended) {
		packets, err = icb.EncodeExtended(t, payload)
	} else {
		packets, err = icb.EncodeLegacy(t, payload, l.session.Nick)
	}
	if err != nil {
		l.log.Errorf("encode outbound %q: %v", t, err)
		return
	}
	for _, p := range packets {
		l.sockOutQ.Enqueue(p, nil)
	}
}

// handleSocket reads available bytes, decodes all complete messages and
// dispatches them. Dispatch of one inbound message is atomic: no
// further reads happen until it returns.
func (l *Loop) handleSocket() error {
	var buf [4096]byte
	n, err := unix.Read(l.sockFd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		return fmt.Errorf("socket read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("socket: peer closed connection")
	}
	if err := l.dec.Feed(buf[:n]); err != nil {
		return err
	}
	now := time.Now()
	l.session.Touch(now)
	l.keepalive.Touch(now)
	for {
		msg, ok, err := l.dec.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := l.dispatchMessage(msg); err != nil {
			return err
		}
	}
}

func (l *Loop) dispatchMessage(msg icb.Message) error {
	if err := icb.CheckInbound(l.session.Phase, msg.Type); err != nil {
		return err
	}
	if l.session.Phase == icb.CommandSent {
		switch msg.Type {
		case icb.TypeOpen, icb.TypePrivate, icb.TypeStatus, icb.TypeImportant:
			l.session.Phase = icb.Chat
		}
	}

	switch msg.Type {
	case icb.TypeProtocol:
		_, _, _, err := icb.ParseProtocolHandshake(msg.Payload)
		if err != nil {
			return err
		}
		l.session.Phase = icb.LoginSent
		l.enqueueOutbound(icb.TypeLogin, l.session.LoginPayload())
	case icb.TypeLogin:
		l.session.Phase = icb.Chat
	case icb.TypeOpen, icb.TypePrivate, icb.TypeStatus, icb.TypeImportant, icb.TypeBeep:
		l.renderChat(msg)
	case icb.TypeError:
		if icb.IsUndefinedPingError(msg.Payload) {
			l.session.ClearPing()
			l.keepalive.SetHasPing(false)
		} else {
			l.renderChat(msg)
		}
	case icb.TypeExit:
		l.wantExit = true
	case icb.TypeCommandOut:
		result, err := l.dispatch.Dispatch(msg.Payload, l.session.Room)
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			l.writeStdout(line)
		}
		if result.EndOfCommand {
			l.session.Phase = icb.Chat
		}
	case icb.TypePing:
		l.enqueueOutbound(icb.TypePong, msg.Payload)
	case icb.TypePong, icb.TypeNoop:
		// keep-alive traffic only; Touch already ran above.
	default:
		l.writeStdout(chat.UnsupportedTypeLine(msg.Type))
	}
	return nil
}

// chatAuthorText derives the author/text pair a chat-like message is
// rendered and logged with. 'e' and 'k' payloads aren't author\x01text
// tuples: an error's whole payload is the text, reported against the
// server's hostname, and a beep carries no payload at all.
func (l *Loop) chatAuthorText(msg icb.Message) (author, text string) {
	switch msg.Type {
	case icb.TypeError:
		return l.session.Hostname, string(msg.Payload)
	case icb.TypeBeep:
		return "SERVER", "BEEP!"
	default:
		fields := msg.Fields()
		if len(fields) > 0 {
			author = string(fields[0])
		}
		if len(fields) > 1 {
			text = string(fields[1])
		}
		return author, text
	}
}

func (l *Loop) renderChat(msg icb.Message) {
	author, text := l.chatAuthorText(msg)
	line, ok := chat.Render(msg.Type, author, text, time.Now())
	if !ok {
		l.writeStdout(chat.UnsupportedTypeLine(msg.Type))
		return
	}
	l.writeStdout(line)
	if msg.Type == icb.TypePrivate {
		l.hist.Append(history.KindPrivate, author, text)
	} else {
		l.hist.Append(history.KindRoom, author, text)
	}
}

func (l *Loop) writeStdout(s string) {
	l.stdoutOutQ.Enqueue([]byte(s), nil)
}

// drainStdout saves the editor line, drains pending stdout output, and
// restores the editor line.
func (l *Loop) drainStdout() {
	if l.stdoutOutQ.Empty() {
		return
	}
	l.bridge.Save()
	if err := l.stdoutOutQ.Drain(fdWriter{l.stdoutFd}); err != nil {
		l.log.Errorf("stdout write: %v", err)
	}
	l.bridge.Restore()
}

func (l *Loop) printInfo() {
	l.writeStdout(fmt.Sprintf("-- %s in %s, phase %s --\n", l.session.Nick, l.session.Room, l.session.Phase))
}

// socketWriter and fdWriter adapt a raw non-blocking fd to io.Writer,
// translating EAGAIN into queue.ErrWouldBlock.
type socketWriter struct{ fd int }

func (w socketWriter) Write(p []byte) (int, error) { return fdWrite(w.fd, p) }

type fdWriter struct{ fd int }

func (w fdWriter) Write(p []byte) (int, error) { return fdWrite(w.fd, p) }

func fdWrite(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN {
			return n, queue.ErrWouldBlock
		}
		return n, err
	}
	return n, nil
}

func drainSelfPipe(fd int) []byte {
	var buf [64]byte
	var out []byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if n <= 0 || err != nil {
			return out
		}
	}
}
