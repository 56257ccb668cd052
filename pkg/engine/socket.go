package engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/rigsync/pkg/protocol"
)

// History gives the socket read access to recorded events
type History interface {
	Recent(limit int) ([]Event, error)
}

// socketServer serves the line protocol on a Unix socket
type socketServer struct {
	engine   *Engine
	path     string
	listener net.Listener

	mu      sync.Mutex
	running bool
}

func listenSocket(e *Engine, path string) (*socketServer, error) {
	// Remove a socket left behind by an earlier run
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket %s: %w", path, err)
	}
	if err := os.Chmod(path, 0660); err != nil {
		e.log.Warn(component, "failed to set socket permissions", map[string]interface{}{"error": err.Error()})
	}
	e.log.Info(component, "control socket listening", map[string]interface{}{"path": path})
	return &socketServer{engine: e, path: path, listener: listener, running: true}, nil
}

func (s *socketServer) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *socketServer) close() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.listener.Close()
	os.Remove(s.path)
}

func (s *socketServer) acceptConnections() {
	for s.isRunning() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isRunning() {
				s.engine.log.Warn(component, "socket accept error", map[string]interface{}{"error": err.Error()})
			}
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *socketServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := s.engine.HandleCommand(context.Background(), cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand executes one control protocol command
func (e *Engine) HandleCommand(ctx context.Context, cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{"status": e.Status()})

	case protocol.CmdState:
		return protocol.NewSuccessResponse(map[string]interface{}{"state": e.Snapshot()})

	case protocol.CmdCaps:
		caps := e.Snapshot().Capabilities
		if caps == nil {
			return protocol.NewErrorResponse(ErrNotConnected.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"capabilities": caps})

	case protocol.CmdSet:
		field, _ := cmd.Args["field"].(string)
		value, _ := cmd.Args["value"].(string)
		if err := e.SubmitText(field, value); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"field": field, "pending": true})

	case protocol.CmdConnect:
		caps, err := e.Connect(ctx)
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"capabilities": caps})

	case protocol.CmdDisconnect:
		if err := e.Disconnect(ctx); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"connected": false})

	case protocol.CmdBand:
		band, _ := cmd.Args["band"].(string)
		if err := e.SetBand(band); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"band": band})

	case protocol.CmdQuickSplit:
		if err := e.QuickSplit(); err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"split": true})

	case protocol.CmdRaw:
		raw, _ := cmd.Args["command"].(string)
		if raw == "" {
			return protocol.NewErrorResponse("raw command is empty")
		}
		reply, err := e.Raw(ctx, raw)
		if err != nil {
			return protocol.NewErrorResponse(err.Error())
		}
		return protocol.NewSuccessResponse(map[string]interface{}{"reply": reply})

	case protocol.CmdEvents:
		return e.handleEvents(cmd)

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (e *Engine) handleEvents(cmd *protocol.Command) *protocol.Response {
	if e.opts.History == nil {
		return protocol.NewErrorResponse("event history is not enabled")
	}
	limit := 20
	if s, ok := cmd.Args["limit"].(string); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return protocol.NewErrorResponse(fmt.Sprintf("invalid limit %q", s))
		}
		limit = n
	}
	events, err := e.opts.History.Recent(limit)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{"events": events})
}

// Status summarises the engine for STATUS and the status endpoint
func (e *Engine) Status() protocol.Status {
	snap := e.Snapshot()
	st := protocol.Status{
		Callsign:  e.opts.Callsign,
		Model:     snap.Model,
		Power:     string(snap.Observed.Power),
		Frequency: snap.Observed.FreqMain,
		Mode:      string(snap.Observed.ModeMain),
		Band:      snap.Band,
		PTT:       snap.Observed.PTT,
		Split:     snap.Observed.Split,
		Connected: snap.Connected,
		Pending:   snap.Pending,
		Uptime:    e.Uptime().Truncate(time.Second).String(),
		StartTime: e.startTime,
		Version:   Version,
	}
	for _, c := range snap.Stale.Categories() {
		st.Stale = append(st.Stale, c.String())
	}
	return st
}
