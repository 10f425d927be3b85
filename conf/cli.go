// Package conf hand-rolls CLI argument parsing: the grammar (bundled
// short flags, an optional nick@ prefix, a mandatory trailing
// positional) is irregular enough that the standard flag package
// doesn't fit any better than a hand-rolled token scan.
package conf

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is the ICB server port used when none is given.
const DefaultPort = 7326

// DefaultNetTimeout is net_timeout's default.
const DefaultNetTimeout = 30 * time.Second

// Options holds the parsed CLI configuration.
type Options struct {
	Nick        string
	Host        string
	Port        int
	Room        string
	Verbosity   int // -d, repeatable
	NoHistory   bool // -H
	NetTimeout  time.Duration // -t secs; 0 disables
}

// Parse parses argv (excluding argv[0]) into Options. Usage:
// oicb [-dH] [-t secs] [nick@]host[:port] room
func Parse(args []string) (*Options, error) {
	opts := &Options{Port: DefaultPort, NetTimeout: DefaultNetTimeout}

	var positional []string
	i := 0
	for i < len(args) {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(arg) > 1 && arg[0] == '-' {
			consumed, err := opts.applyFlagCluster(arg, args[i+1:])
			if err != nil {
				return nil, err
			}
			i += 1 + consumed
			continue
		}
		positional = append(positional, arg)
		i++
	}

	if len(positional) != 2 {
		return nil, fmt.Errorf("usage: oicb [-dH] [-t secs] [nick@]host[:port] room")
	}
	target, room := positional[0], positional[1]
	opts.Room = room

	nick, hostport := splitNickTarget(target)
	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}
	opts.Host = host
	if port > 0 {
		opts.Port = port
	}
	if nick == "" {
		nick = defaultNick()
	}
	opts.Nick = nick

	return opts, nil
}

// applyFlagCluster handles one "-xyz" token, which may bundle -d and -H
// together (e.g. "-dH") and may be followed by a separate "-t 30" value
// argument. It returns how many of the following args it consumed.
func (o *Options) applyFlagCluster(token string, rest []string) (int, error) {
	body := token[1:]
	consumed := 0
	for j := 0; j < len(body); j++ {
		switch body[j] {
		case 'd':
			o.Verbosity++
		case 'H':
			o.NoHistory = true
		case 't':
			var value string
			if j+1 < len(body) {
				value = body[j+1:]
			} else if len(rest) > consumed {
				value = rest[consumed]
				consumed++
			} else {
				return 0, fmt.Errorf("-t requires a value")
			}
			secs, err := strconv.Atoi(value)
			if err != nil {
				return 0, fmt.Errorf("-t: invalid seconds %q", value)
			}
			o.NetTimeout = time.Duration(secs) * time.Second
			j = len(body) // -t consumes the rest of this token
		default:
			return 0, fmt.Errorf("unknown flag -%c", body[j])
		}
	}
	return consumed, nil
}

// splitNickTarget splits "[nick@]host[:port]" into (nick, hostport).
func splitNickTarget(s string) (nick, hostport string) {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// splitHostPort splits "host[:port]" into (host, port). IPv6 literals
// get no special handling: the last ':' always starts the port, so a
// literal without an explicit port (e.g. "::1" or "[::1]") is misparsed
// or rejected.
func splitHostPort(s string) (host string, port int, err error) {
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		p, convErr := strconv.Atoi(s[i+1:])
		if convErr != nil {
			return "", 0, fmt.Errorf("invalid port in %q", s)
		}
		return s[:i], p, nil
	}
	return s, 0, nil
}

func defaultNick() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	if v := os.Getenv("LOGNAME"); v != "" {
		return v
	}
	return "unknown"
}
