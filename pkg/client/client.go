package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/rigsync/pkg/protocol"
	"github.com/dougsko/rigsync/pkg/state"
)

// SocketClient talks to the daemon's control socket
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SetTimeout changes the per-command deadline
func (c *SocketClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and fails on an unsuccessful response
func (c *SocketClient) call(cmd, what string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", what, resp.Error)
	}
	return resp, nil
}

// decode re-marshals one entry of the response data into out
func decode(resp *protocol.Response, key string, out interface{}) error {
	raw, ok := resp.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call(protocol.CmdStatus, "status")
	if err != nil {
		return nil, err
	}
	var status protocol.Status
	if err := decode(resp, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetState gets the latest published snapshot
func (c *SocketClient) GetState() (*state.Snapshot, error) {
	resp, err := c.call(protocol.CmdState, "state")
	if err != nil {
		return nil, err
	}
	var snap state.Snapshot
	if err := decode(resp, "state", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetCapabilities gets the connected radio's capabilities as raw JSON
func (c *SocketClient) GetCapabilities() (map[string]interface{}, error) {
	resp, err := c.call(protocol.CmdCaps, "caps")
	if err != nil {
		return nil, err
	}
	caps, _ := resp.Data["capabilities"].(map[string]interface{})
	return caps, nil
}

// Set submits a desired value for a field
func (c *SocketClient) Set(field, value string) error {
	_, err := c.call(fmt.Sprintf("%s:%s %s", protocol.CmdSet, field, value), "set")
	return err
}

// Connect asks the daemon to attach the radio
func (c *SocketClient) Connect() error {
	_, err := c.call(protocol.CmdConnect, "connect")
	return err
}

// Disconnect asks the daemon to release the radio
func (c *SocketClient) Disconnect() error {
	_, err := c.call(protocol.CmdDisconnect, "disconnect")
	return err
}

// SetBand changes band
func (c *SocketClient) SetBand(band string) error {
	_, err := c.call(protocol.CmdBand+":"+band, "band")
	return err
}

// QuickSplit sets up a split 5 kHz up
func (c *SocketClient) QuickSplit() error {
	_, err := c.call(protocol.CmdQuickSplit, "quick split")
	return err
}

// Raw sends a vendor command and returns the radio's reply
func (c *SocketClient) Raw(cmd string) (string, error) {
	resp, err := c.call(protocol.CmdRaw+":"+cmd, "raw")
	if err != nil {
		return "", err
	}
	reply, _ := resp.Data["reply"].(string)
	return reply, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call(protocol.CmdPing, "ping")
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
