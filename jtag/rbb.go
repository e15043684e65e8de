package jtag

import "fmt"

const rbbBufferSize = 128

// RemoteBitbang serves OpenOCD's remote_bitbang protocol: one ASCII command
// per byte.
type RemoteBitbang struct {
	l      *pollListener
	buf    [rbbBufferSize]byte
	count  int
	offset int
}

// NewRemoteBitbang starts listening for a debugger.
func NewRemoteBitbang(opts ...Option) (*RemoteBitbang, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l, err := listen(cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cfg.log, "> Remote bitbang server listening at %s\n", l.addr())

	return &RemoteBitbang{l: l}, nil
}

// Addr returns the listening address.
func (r *RemoteBitbang) Addr() string {
	return r.l.addr()
}

// Attached reports whether a debugger is connected.
func (r *RemoteBitbang) Attached() bool {
	return r.l.attached()
}

// Tick executes at most one buffered command. Without a client it only
// tries to accept one.
func (r *RemoteBitbang) Tick(pins *Pins) {
	if !r.l.attached() {
		r.l.poll()
		return
	}

	if r.offset == r.count {
		if n := r.l.read(r.buf[:]); n > 0 {
			r.count = n
			r.offset = 0
		}
		if !r.l.attached() {
			r.count, r.offset = 0, 0
			return
		}
	}

	if r.offset < r.count {
		cmd := r.buf[r.offset]
		r.offset++
		r.execute(cmd, pins)
	}
}

func (r *RemoteBitbang) execute(cmd byte, pins *Pins) {
	switch {
	case cmd >= '0' && cmd <= '7':
		v := cmd - '0'
		pins.TCK = (v>>2)&1 == 1
		pins.TMS = (v>>1)&1 == 1
		pins.TDI = v&1 == 1
	case cmd == 'R':
		reply := byte('0')
		if pins.TDO {
			reply = '1'
		}
		r.l.write([]byte{reply})
	case cmd == 'r', cmd == 's', cmd == 't', cmd == 'u':
		// TRST is not wired on the DUT.
	}
}

// Close stops listening and drops the client.
func (r *RemoteBitbang) Close() error {
	return r.l.shutdown()
}
