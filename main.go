package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"oicb/conf"
	"oicb/editor"
	"oicb/history"
	"oicb/icb"
	"oicb/logs"
	"oicb/loop"
)

func main() {
	code := run()
	os.Exit(code)
}

// run keeps main() a thin os.Exit wrapper around a testable body. Exit
// codes: 0 clean, 1 usage/local error, 2 network/protocol error.
func run() int {
	opts, err := conf.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "oicb: %v\n", err)
		return 1
	}

	log := logs.New(os.Stderr, opts.Verbosity).Sugar()

	home := os.Getenv("HOME")
	if home == "" {
		fmt.Fprintln(os.Stderr, "oicb: HOME is required")
		return 1
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oicb: dial %s: %v\n", addr, err)
		return 2
	}

	sockFd, err := takeOwnership(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oicb: %v\n", err)
		return 2
	}
	defer unix.Close(sockFd)

	if err := unix.SetNonblock(int(os.Stdin.Fd()), true); err != nil {
		fmt.Fprintf(os.Stderr, "oicb: stdin nonblocking: %v\n", err)
		return 1
	}
	if err := unix.SetNonblock(int(os.Stdout.Fd()), true); err != nil {
		fmt.Fprintf(os.Stderr, "oicb: stdout nonblocking: %v\n", err)
		return 1
	}

	sigRead, sigWrite, err := installSignalPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "oicb: %v\n", err)
		return 1
	}
	defer unix.Close(sigRead)
	defer unix.Close(sigWrite)

	session := icb.NewSession(opts.Nick, opts.Host, opts.Room)
	hist := history.NewWriter(home, opts.Host, opts.Room, !opts.NoHistory)

	bridge := editor.NewBridge()
	if err := bridge.EnterRaw(); err != nil {
		fmt.Fprintf(os.Stderr, "oicb: %v\n", err)
		return 1
	}
	defer bridge.ExitRaw()

	l := loop.New(sockFd, sigRead, session, hist, opts.NetTimeout, time.Now(), bridge, log)

	if err := l.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "\r\noicb: %v\n", err)
		return 2
	}
	return 0
}

// takeOwnership extracts the raw connection fd from a net.Conn and puts
// it in non-blocking mode, so the event loop can drive it directly with
// unix.Read/unix.Write/unix.Poll instead of through net.Conn's internal
// runtime poller.
func takeOwnership(conn net.Conn) (int, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return -1, fmt.Errorf("not a TCP connection")
	}
	rawFile, err := tcpConn.File()
	if err != nil {
		return -1, fmt.Errorf("extract fd: %w", err)
	}
	fd := int(rawFile.Fd())
	dupFd, err := unix.Dup(fd)
	rawFile.Close()
	if err != nil {
		return -1, fmt.Errorf("dup fd: %w", err)
	}
	if err := unix.SetNonblock(dupFd, true); err != nil {
		unix.Close(dupFd)
		return -1, fmt.Errorf("set nonblocking: %w", err)
	}
	return dupFd, nil
}

// installSignalPipe wires SIGINT/SIGTERM into a self-pipe so the event
// loop can observe them through the same unix.Poll call as every other
// fd, rather than mutating state from a signal handler directly.
// SIGINFO is BSD/Darwin-only and not available on Linux, so SIGUSR1
// stands in as the portable analogue for the status-summary signal.
func installSignalPipe() (readFd, writeFd int, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return -1, -1, fmt.Errorf("signal pipe: %w", err)
	}
	exitCh := make(chan os.Signal, 4)
	infoCh := make(chan os.Signal, 4)
	signal.Notify(exitCh, os.Interrupt, syscall.SIGTERM)
	signal.Notify(infoCh, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-exitCh:
				w.Write([]byte{loop.SignalExit})
			case <-infoCh:
				w.Write([]byte{loop.SignalInfo})
			}
		}
	}()
	return int(r.Fd()), int(w.Fd()), nil
}
