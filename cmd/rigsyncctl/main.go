package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/getopt"

	"github.com/dougsko/rigsync/pkg/client"
	"github.com/dougsko/rigsync/pkg/protocol"
)

var (
	socketPath = getopt.StringLong("socket", 's', "/tmp/rigsync.sock", "Unix socket path")
	rawLine    = getopt.StringLong("cmd", 'c', "", "Protocol line to send (e.g. 'STATUS', 'SET:freq_main 7.074M')")
	interval   = getopt.IntLong("interval", 'i', 500, "Watch refresh interval in milliseconds")
	timeout    = getopt.IntLong("timeout", 't', 5000, "Command timeout in milliseconds")
	help       = getopt.BoolLong("help", 'h', "Display help")
)

func main() {
	getopt.SetParameters("<command> [args...]")
	getopt.Parse()

	if *help {
		showHelp()
		return
	}
	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	c := client.NewSocketClient(*socketPath)
	c.SetTimeout(time.Duration(*timeout) * time.Millisecond)

	if *rawLine != "" {
		response, err := c.SendCommand(*rawLine)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", response.String())
		return
	}

	args := getopt.Args()
	if len(args) == 0 {
		showHelp()
		return
	}

	if err := run(c, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n+1 {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

// run executes one subcommand against the daemon
func run(c *client.SocketClient, args []string) error {
	switch strings.ToLower(args[0]) {
	case "status":
		status, err := c.GetStatus()
		if err != nil {
			return err
		}
		return printJSON(status)

	case "state":
		snap, err := c.GetState()
		if err != nil {
			return err
		}
		return printJSON(snap)

	case "caps":
		caps, err := c.GetCapabilities()
		if err != nil {
			return err
		}
		return printJSON(caps)

	case "set":
		if err := needArgs(args, 2, "set <field> <value>"); err != nil {
			return err
		}
		if err := c.Set(args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		fmt.Printf("%s queued\n", args[1])

	case "connect":
		if err := c.Connect(); err != nil {
			return err
		}
		fmt.Println("connected")

	case "disconnect":
		if err := c.Disconnect(); err != nil {
			return err
		}
		fmt.Println("disconnected")

	case "band":
		if err := needArgs(args, 1, "band <name>"); err != nil {
			return err
		}
		if err := c.SetBand(args[1]); err != nil {
			return err
		}
		fmt.Printf("band %s queued\n", args[1])

	case "qsplit":
		if err := c.QuickSplit(); err != nil {
			return err
		}
		fmt.Println("split queued")

	case "raw":
		if err := needArgs(args, 1, "raw <command>"); err != nil {
			return err
		}
		reply, err := c.Raw(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)

	case "events":
		line := protocol.CmdEvents
		if len(args) > 1 {
			if _, err := strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid event count %q", args[1])
			}
			line += ":" + args[1]
		}
		resp, err := c.SendCommand(line)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("events error: %s", resp.Error)
		}
		return printJSON(resp.Data["events"])

	case "ping":
		if err := c.Ping(); err != nil {
			return err
		}
		fmt.Println("pong")

	case "watch":
		return watch(c, time.Duration(*interval)*time.Millisecond)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func showHelp() {
	fmt.Println("rigsyncctl - rigsync daemon control tool")
	fmt.Println()
	getopt.Usage()
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status                    Daemon and radio summary")
	fmt.Println("  state                     Latest published snapshot")
	fmt.Println("  caps                      Connected radio capabilities")
	fmt.Println("  set <field> <value>       Queue a desired value")
	fmt.Println("  connect                   Attach the radio")
	fmt.Println("  disconnect                Release the radio")
	fmt.Println("  band <name>               Change band (e.g. 40m)")
	fmt.Println("  qsplit                    Split 5 kHz up")
	fmt.Println("  raw <command>             Send a vendor command")
	fmt.Println("  events [n]                Recent events")
	fmt.Println("  ping                      Test connection")
	fmt.Println("  watch                     Live status line")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s set freq_main 7.074M\n", os.Args[0])
	fmt.Printf("  %s -c 'SET:mode_main USB'\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U /tmp/rigsync.sock\n")
}
