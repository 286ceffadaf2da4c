// Package hardware drives the dispensing rig over its serial line.
//
// The rig firmware speaks a newline-terminated text protocol: LED,
// DISPENSE, MOVE and STATUS commands, each answered by a single reply
// line. Replies starting with "ERR" indicate the firmware rejected the
// command.
package hardware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// ErrHardware wraps failures talking to the rig.
var ErrHardware = errors.New("hardware")

// DefaultBaudRate matches the rig firmware's serial configuration.
const DefaultBaudRate = 9600

// Controller is a request/response client for the rig. A background
// reader goroutine owns the port's read side; requests are serialized
// so reply lines pair with the command that triggered them.
type Controller struct {
	mu    sync.Mutex
	conn  io.ReadWriteCloser
	lines chan string

	closeOnce sync.Once
	done      chan struct{}
}

// Open connects to the rig on the named serial port.
func Open(portName string, baudRate int) (*Controller, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrHardware, portName, err)
	}
	return New(port), nil
}

// New wraps an already-open connection. Used by Open and by tests that
// substitute an in-memory pipe for the real port.
func New(conn io.ReadWriteCloser) *Controller {
	c := &Controller{
		conn:  conn,
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Controller) readLoop() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
}

// Close shuts down the reader and releases the port.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// request sends one command line and waits for the rig's reply.
func (c *Controller) request(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	if _, err := io.WriteString(c.conn, command); err != nil {
		return "", fmt.Errorf("%w: send %q: %v", ErrHardware, strings.TrimSpace(command), err)
	}

	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", fmt.Errorf("%w: connection closed", ErrHardware)
		}
		if strings.HasPrefix(strings.ToUpper(line), "ERR") {
			return "", fmt.Errorf("%w: rig replied %q", ErrHardware, line)
		}
		return line, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: awaiting reply: %v", ErrHardware, ctx.Err())
	}
}

// SetLED sets the backlight to a fixed brightness percentage.
func (c *Controller) SetLED(ctx context.Context, percent int) (string, error) {
	if percent < 0 || percent > 100 {
		return "", fmt.Errorf("%w: led percent %d out of range [0,100]", ErrHardware, percent)
	}
	return c.request(ctx, fmt.Sprintf("LED %d", percent))
}

// SetLEDAuto returns the backlight to firmware-controlled brightness.
func (c *Controller) SetLEDAuto(ctx context.Context) (string, error) {
	return c.request(ctx, "LED")
}

// Dispense pushes the given volume in microliters through the needle.
func (c *Controller) Dispense(ctx context.Context, volumeUL float64) (string, error) {
	if volumeUL <= 0 {
		return "", fmt.Errorf("%w: dispense volume %g must be positive", ErrHardware, volumeUL)
	}
	return c.request(ctx, fmt.Sprintf("DISPENSE %g", volumeUL))
}

// Move steps the stage by the given signed step count.
func (c *Controller) Move(ctx context.Context, steps int) (string, error) {
	return c.request(ctx, fmt.Sprintf("MOVE %d", steps))
}

// Status queries the rig's current state line.
func (c *Controller) Status(ctx context.Context) (string, error) {
	return c.request(ctx, "STATUS")
}

// Raw sends an arbitrary command line, for interactive tooling.
func (c *Controller) Raw(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("%w: empty command", ErrHardware)
	}
	return c.request(ctx, command)
}

// ListPorts enumerates serial devices visible to the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: list ports: %v", ErrHardware, err)
	}
	return ports, nil
}
