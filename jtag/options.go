package jtag

import (
	"io"
	"os"
	"time"
)

type config struct {
	port        int
	window      time.Duration
	acceptEvery int
	log         io.Writer
}

func defaultConfig() config {
	return config{
		port:        DefaultPort,
		window:      DefaultPollWindow,
		acceptEvery: DefaultAcceptInterval,
		log:         os.Stderr,
	}
}

// Option is a functional option shared by both transports.
type Option func(*config)

// WithPort sets the listening port. Port 0 picks a free port.
func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// WithPollWindow bounds how long a tick may wait on a socket.
func WithPollWindow(d time.Duration) Option {
	return func(c *config) {
		c.window = d
	}
}

// WithAcceptInterval sets how many ticks pass between accept attempts while
// no debugger is attached.
func WithAcceptInterval(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.acceptEvery = n
	}
}

// WithLog sets the diagnostic writer.
func WithLog(w io.Writer) Option {
	return func(c *config) {
		c.log = w
	}
}
