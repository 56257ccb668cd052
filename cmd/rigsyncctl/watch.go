package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/dougsko/rigsync/pkg/client"
	"github.com/dougsko/rigsync/pkg/protocol"
)

var eraseLine = fmt.Sprintf("%c[2K\r", 0x1b)

// statusLine renders one status line, colored when attached to a terminal
type statusLine struct {
	realtime bool
	cols     int

	tx      string
	rx      string
	offline string
	split   *color.Color
	stale   *color.Color
}

func newStatusLine(realtime bool) *statusLine {
	s := &statusLine{realtime: realtime, cols: 120}
	if realtime {
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
			s.cols = cols
		}
	} else {
		color.NoColor = true
	}

	c := color.New(color.FgHiWhite, color.BlinkRapid)
	c.Add(color.BgRed)
	s.tx = c.Sprint("  TX  ")

	c = color.New(color.FgHiWhite)
	c.Add(color.BgGreen)
	s.rx = c.Sprint("  RX  ")

	c = color.New(color.FgHiWhite)
	c.Add(color.BgWhite)
	s.offline = c.Sprint(" OFF  ")

	s.split = color.New(color.FgHiMagenta)
	s.stale = color.New(color.FgYellow)
	return s
}

func formatFreq(hz int64) string {
	if hz <= 0 {
		return "---.---.---"
	}
	return fmt.Sprintf("%d.%03d.%03d", hz/1000000, (hz/1000)%1000, hz%1000)
}

func (s *statusLine) render(st *protocol.Status) string {
	if !st.Connected {
		return fmt.Sprint(s.offline, " ", st.Callsign, " radio not connected")
	}

	state := s.rx
	if st.PTT {
		state = s.tx
	}

	var b strings.Builder
	fmt.Fprint(&b, state, " ", formatFreq(st.Frequency))
	if st.Mode != "" {
		fmt.Fprint(&b, " ", st.Mode)
	}
	if st.Band != "" {
		fmt.Fprint(&b, " ", st.Band)
	}
	if st.Split {
		fmt.Fprint(&b, " ", s.split.Sprint("SPLIT"))
	}
	if len(st.Pending) > 0 {
		fmt.Fprintf(&b, " pending %s", strings.Join(st.Pending, ","))
	}
	if len(st.Stale) > 0 {
		fmt.Fprint(&b, " ", s.stale.Sprintf("stale %s", strings.Join(st.Stale, ",")))
	}
	fmt.Fprint(&b, " ", st.Model)
	return b.String()
}

func (s *statusLine) print(line string) {
	if s.realtime {
		fmt.Print(eraseLine, line)
		return
	}
	fmt.Println(line)
}

// watch polls the daemon status until interrupted
func watch(c *client.SocketClient, every time.Duration) error {
	if every < 50*time.Millisecond {
		every = 50 * time.Millisecond
	}
	realtime := isatty.IsTerminal(os.Stdout.Fd())
	if !realtime && every < time.Second {
		every = time.Second
	}
	s := newStatusLine(realtime)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last string
	for {
		st, err := c.GetStatus()
		if err != nil {
			if s.realtime {
				fmt.Println()
			}
			return err
		}
		if line := s.render(st); line != last || !s.realtime {
			s.print(line)
			last = line
		}

		select {
		case <-sig:
			if s.realtime {
				fmt.Println()
			}
			return nil
		case <-ticker.C:
		}
	}
}
