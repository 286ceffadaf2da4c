package hardware

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeRig answers each command line with a canned reply over a net.Pipe.
func fakeRig(t *testing.T, replies map[string]string) io.ReadWriteCloser {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			reply, ok := replies[cmd]
			if !ok {
				reply = "ERR unknown command"
			}
			if _, err := io.WriteString(server, reply+"\n"); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { server.Close() })
	return client
}

func TestControllerCommands(t *testing.T) {
	conn := fakeRig(t, map[string]string{
		"LED 75":       "OK LED 75",
		"LED":          "OK LED AUTO",
		"DISPENSE 2.5": "OK DISPENSED 2.5",
		"MOVE -120":    "OK MOVED -120",
		"STATUS":       "IDLE LED=75 POS=0",
	})
	c := New(conn)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cases := []struct {
		name string
		call func() (string, error)
		want string
	}{
		{"led percent", func() (string, error) { return c.SetLED(ctx, 75) }, "OK LED 75"},
		{"led auto", func() (string, error) { return c.SetLEDAuto(ctx) }, "OK LED AUTO"},
		{"dispense", func() (string, error) { return c.Dispense(ctx, 2.5) }, "OK DISPENSED 2.5"},
		{"move", func() (string, error) { return c.Move(ctx, -120) }, "OK MOVED -120"},
		{"status", func() (string, error) { return c.Status(ctx) }, "IDLE LED=75 POS=0"},
	}
	for _, tc := range cases {
		got, err := tc.call()
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: reply = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestControllerErrReply(t *testing.T) {
	conn := fakeRig(t, map[string]string{"MOVE 99999": "ERR out of travel"})
	c := New(conn)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Move(ctx, 99999)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("Move error = %v, want ErrHardware", err)
	}
	if !strings.Contains(err.Error(), "out of travel") {
		t.Errorf("error %q does not carry the rig's message", err)
	}
}

func TestControllerValidatesLocally(t *testing.T) {
	conn := fakeRig(t, nil)
	c := New(conn)
	defer c.Close()

	ctx := context.Background()
	if _, err := c.SetLED(ctx, 150); !errors.Is(err, ErrHardware) {
		t.Errorf("SetLED(150) error = %v, want ErrHardware", err)
	}
	if _, err := c.Dispense(ctx, -1); !errors.Is(err, ErrHardware) {
		t.Errorf("Dispense(-1) error = %v, want ErrHardware", err)
	}
	if _, err := c.Raw(ctx, "  "); !errors.Is(err, ErrHardware) {
		t.Errorf("Raw(blank) error = %v, want ErrHardware", err)
	}
}

func TestControllerContextTimeout(t *testing.T) {
	// A rig that swallows commands and never replies.
	client, server := net.Pipe()
	go func() { io.Copy(io.Discard, server) }()
	t.Cleanup(func() { server.Close() })

	c := New(client)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Status(ctx)
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("Status error = %v, want ErrHardware", err)
	}
}
