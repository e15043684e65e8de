package jtag

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/xid"
)

// DefaultPollWindow bounds how long a poll may wait for a socket.
const DefaultPollWindow = 20 * time.Microsecond

// DefaultAcceptInterval is how many ticks pass between accept attempts while
// no debugger is attached.
const DefaultAcceptInterval = 64

// pollListener accepts at most one client and exposes non-blocking reads on
// it. Every failure drops the client and is logged.
type pollListener struct {
	ln      *net.TCPListener
	client  net.Conn
	session string
	window  time.Duration
	log     io.Writer

	acceptEvery int
	skip        int
}

func listen(cfg config) (*pollListener, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: cfg.port})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.port, err)
	}

	return &pollListener{
		ln:          ln,
		window:      cfg.window,
		log:         cfg.log,
		acceptEvery: cfg.acceptEvery,
	}, nil
}

func (l *pollListener) addr() string {
	return l.ln.Addr().String()
}

func (l *pollListener) attached() bool {
	return l.client != nil
}

// poll accepts a pending connection, if any. Only every acceptEvery-th
// call touches the socket.
func (l *pollListener) poll() bool {
	if l.client != nil {
		return true
	}

	if l.skip > 0 {
		l.skip--
		return false
	}
	l.skip = l.acceptEvery - 1

	if err := l.ln.SetDeadline(time.Now().Add(l.window)); err != nil {
		fmt.Fprintf(l.log, "> JTAG listener: %v\n", err)
		return false
	}

	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if !isTimeout(err) {
			fmt.Fprintf(l.log, "> JTAG accept: %v\n", err)
		}
		return false
	}

	if err := conn.SetNoDelay(true); err != nil {
		fmt.Fprintf(l.log, "> setsockopt: %v\n", err)
	}

	l.client = conn
	l.session = xid.New().String()
	fmt.Fprintf(l.log, "> JTAG debugger attached\n")
	return true
}

// read returns the bytes available right now. A closed peer drops the
// client.
func (l *pollListener) read(buf []byte) int {
	if l.client == nil {
		return 0
	}

	if err := l.client.SetReadDeadline(time.Now().Add(l.window)); err != nil {
		l.drop(err)
		return 0
	}

	n, err := l.client.Read(buf)
	switch {
	case err == nil:
		return n
	case isTimeout(err):
		return n
	case errors.Is(err, io.EOF):
		fmt.Fprintf(l.log, "> JTAG debugger detached\n")
		l.close()
		return n
	default:
		l.drop(err)
		return n
	}
}

// write sends all of data or drops the client.
func (l *pollListener) write(data []byte) bool {
	if l.client == nil {
		return false
	}

	if err := l.client.SetWriteDeadline(time.Time{}); err != nil {
		l.drop(err)
		return false
	}

	if _, err := l.client.Write(data); err != nil {
		l.drop(err)
		return false
	}
	return true
}

func (l *pollListener) drop(err error) {
	fmt.Fprintf(l.log, "> JTAG session %s dropped: %v\n", l.session, err)
	l.close()
}

func (l *pollListener) close() {
	if l.client != nil {
		_ = l.client.Close()
		l.client = nil
		l.session = ""
	}
}

func (l *pollListener) shutdown() error {
	l.close()
	return l.ln.Close()
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
