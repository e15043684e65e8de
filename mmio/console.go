package mmio

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

// Console mirrors payload output to a file. Terminals are written through
// byte by byte; redirected output is buffered until Flush.
type Console struct {
	out      io.Writer
	buffered *bufio.Writer
}

// NewConsole wraps f, buffering unless f is a terminal.
func NewConsole(f *os.File) *Console {
	c := &Console{out: f}
	if !term.IsTerminal(int(f.Fd())) {
		c.buffered = bufio.NewWriter(f)
		c.out = c.buffered
	}
	return c
}

// NewWriterConsole wraps an arbitrary writer without buffering.
func NewWriterConsole(w io.Writer) *Console {
	return &Console{out: w}
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// Flush drains buffered output.
func (c *Console) Flush() error {
	if c.buffered == nil {
		return nil
	}
	return c.buffered.Flush()
}
