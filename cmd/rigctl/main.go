// Command rigctl sends a single command to the dispensing rig and prints
// the reply. With no command it lists available serial ports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhsu22/droplet-analyzer/internal/hardware"
)

func main() {
	port := flag.String("port", "", "Serial port (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", hardware.DefaultBaudRate, "Baud rate")
	timeout := flag.Duration("timeout", 5*time.Second, "Reply timeout")
	flag.Parse()

	if *port == "" {
		ports, err := hardware.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list ports: %v\n", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found.")
			return
		}
		fmt.Println("Available ports:")
		for _, p := range ports {
			fmt.Printf("  %s\n", p)
		}
		return
	}

	if flag.NArg() == 0 {
		fmt.Println("Usage: rigctl -port <dev> [-baud 9600] <command ...>")
		fmt.Println("Examples: rigctl -port /dev/ttyACM0 STATUS")
		fmt.Println("          rigctl -port /dev/ttyACM0 LED 75")
		os.Exit(1)
	}

	c, err := hardware.Open(*port, *baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", *port, err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reply, err := c.Raw(ctx, strings.Join(flag.Args(), " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
