// Package capture drives one step-response collection from the host: send
// the controller period, then read runs until the board goes quiet.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"steplab/host/serial"
	"steplab/protocol"
)

var ErrNotConnected = errors.New("not connected to board")

// Client is a connection to a step-response board
type Client struct {
	port   io.ReadWriter
	closer io.Closer

	// Progress receives every raw line as it arrives
	Progress func(line string)
}

// New wraps an already open port
func New(port io.ReadWriter) *Client {
	c := &Client{port: port}
	if closer, ok := port.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Connect opens a serial port and wraps it
func Connect(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %s: %w", cfg.Device, err)
	}
	return New(port), nil
}

// Close closes the connection to the board
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	c.port = nil
	return err
}

// SendPeriod answers the board's period prompt
func (c *Client) SendPeriod(periodMS uint32) error {
	if c.port == nil {
		return ErrNotConnected
	}
	if _, err := fmt.Fprintf(c.port, "%d\r", periodMS); err != nil {
		return fmt.Errorf("send period: %w", err)
	}
	return nil
}

// Collect reads runs until want end markers have arrived (want <= 0 means
// no limit) or the board goes quiet after sending data. Malformed lines are
// skipped. A trailing run without a marker is included with Axis 0.
func (c *Client) Collect(ctx context.Context, want int) ([]protocol.Run, error) {
	if c.port == nil {
		return nil, ErrNotConnected
	}
	rr := protocol.NewRunReader(&quietReader{ctx: ctx, r: c.port})
	if c.Progress != nil {
		rr.OnLine(c.Progress)
	}

	var runs []protocol.Run
	for want <= 0 || len(runs) < want {
		run, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return runs, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// quietReader waits for the first data, then reports EOF at the first
// read that returns nothing. Serial read timeouts surface as empty reads.
type quietReader struct {
	ctx  context.Context
	r    io.Reader
	seen bool
}

func (q *quietReader) Read(p []byte) (int, error) {
	for {
		if err := q.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := q.r.Read(p)
		if n > 0 {
			q.seen = true
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if q.seen {
			return 0, io.EOF
		}
	}
}
