package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v2"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/engine"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
	"github.com/dougsko/rigsync/pkg/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// errorStatus maps engine errors onto HTTP status codes
func errorStatus(err error) int {
	var connErr *rig.ConnectionError
	var callErr *rig.DeviceCallError
	switch {
	case errors.Is(err, state.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotConnected),
		errors.Is(err, engine.ErrAlreadyConnected),
		errors.Is(err, engine.ErrTransmitGuard):
		return http.StatusConflict
	case errors.Is(err, capability.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &connErr), errors.As(err, &callErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}

// handleGetStatus returns the daemon summary
func (d *RigsyncDaemon) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, d.engine.Status())
}

func (d *RigsyncDaemon) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, d.engine.Snapshot())
}

func (d *RigsyncDaemon) handleGetCapabilities(c *gin.Context) {
	caps := d.engine.Snapshot().Capabilities
	if caps == nil {
		respondError(c, engine.ErrNotConnected)
		return
	}
	c.JSON(http.StatusOK, caps)
}

// handleSetField submits a desired value. The body is {"value": ...};
// strings are parsed as text and other JSON values by their literal form.
func (d *RigsyncDaemon) handleSetField(c *gin.Context) {
	var req struct {
		Value json.RawMessage `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text := string(req.Value)
	var s string
	if err := json.Unmarshal(req.Value, &s); err == nil {
		text = s
	}

	field := c.Param("field")
	if err := d.engine.SubmitText(field, text); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"field":   field,
		"pending": true,
	})
}

func (d *RigsyncDaemon) handleConnect(c *gin.Context) {
	caps, err := d.engine.Connect(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected":    true,
		"capabilities": caps,
	})
}

func (d *RigsyncDaemon) handleDisconnect(c *gin.Context) {
	if err := d.engine.Disconnect(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}

func (d *RigsyncDaemon) handleQuickSplit(c *gin.Context) {
	if err := d.engine.QuickSplit(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"split": true})
}

func (d *RigsyncDaemon) handleSetBand(c *gin.Context) {
	band := c.Param("band")
	if err := d.engine.SetBand(band); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"band": band})
}

// handleRaw passes a vendor command through to the radio
func (d *RigsyncDaemon) handleRaw(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := d.engine.Raw(c.Request.Context(), req.Command)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// handleGetEvents returns stored events, newest first
func (d *RigsyncDaemon) handleGetEvents(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history is not enabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", c.Query("limit"))})
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	query := storage.EventQuery{
		Limit:   limit,
		Offset:  offset,
		Kind:    engine.EventKind(c.Query("kind")),
		Field:   c.Query("field"),
		Outcome: c.Query("outcome"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		query.Since = &t
	}

	events, err := d.store.GetEvents(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// handleDeleteEvents prunes events recorded before the given time
func (d *RigsyncDaemon) handleDeleteEvents(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history is not enabled"})
		return
	}
	before, err := time.Parse(time.RFC3339, c.Query("before"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC3339"})
		return
	}

	deleted, err := d.store.DeleteEventsBefore(before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logging.Info(component, "pruned event history", map[string]interface{}{"before": before.Format(time.RFC3339), "deleted": deleted})
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (d *RigsyncDaemon) handleGetEventStats(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history is not enabled"})
		return
	}
	stats, err := d.store.GetEventStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	fields, err := d.store.GetFieldSummaries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	bands, err := d.store.GetBandActivity()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":  stats,
		"fields": fields,
		"bands":  bands,
	})
}

func (d *RigsyncDaemon) handleGetFrequencies(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event history is not enabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	events, err := d.store.GetFrequencyHistory(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"frequencies": events,
		"count":       len(events),
	})
}

// handleGetSerialPorts lists candidate CAT ports on this host
func (d *RigsyncDaemon) handleGetSerialPorts(c *gin.Context) {
	ports, err := rig.ListSerialPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ports": ports,
		"count": len(ports),
	})
}

// handleGetConfig returns the running configuration with secrets masked
func (d *RigsyncDaemon) handleGetConfig(c *gin.Context) {
	// Round trip through YAML so keys match the config file
	cfg := *d.config
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "********"
	}
	yamlData, err := yaml.Marshal(&cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to marshal config: %v", err),
		})
		return
	}

	var yamlConfig interface{}
	if err := yaml.Unmarshal(yamlData, &yamlConfig); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to unmarshal config: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":   d.configPath,
		"config": convertYamlToJson(yamlConfig),
	})
}

// convertYamlToJson converts YAML map[interface{}]interface{} to JSON-compatible map[string]interface{}
func convertYamlToJson(i interface{}) interface{} {
	switch x := i.(type) {
	case map[interface{}]interface{}:
		m2 := map[string]interface{}{}
		for k, v := range x {
			m2[fmt.Sprint(k)] = convertYamlToJson(v)
		}
		return m2
	case []interface{}:
		for i, v := range x {
			x[i] = convertYamlToJson(v)
		}
	}
	return i
}

// handleStateWebSocket pushes a snapshot every time the engine publishes one
func (d *RigsyncDaemon) handleStateWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(component, "websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	notify := d.engine.Subscribe()
	defer d.engine.Unsubscribe(notify)

	// Reads only detect the peer going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastSeq uint64
	send := func() error {
		snap := d.engine.Snapshot()
		if lastSeq != 0 && snap.Seq == lastSeq {
			return nil
		}
		lastSeq = snap.Seq
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(snap)
	}

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-notify:
			if err := send(); err != nil {
				logging.Debug(component, "websocket write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-closed:
			return
		case <-d.ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
	}
}
