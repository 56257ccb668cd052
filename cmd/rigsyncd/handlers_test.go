package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/engine"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
	"github.com/dougsko/rigsync/pkg/storage"
)

func testDaemon(t *testing.T) *RigsyncDaemon {
	t.Helper()
	logger := logging.NewWriterLogger(io.Discard, logging.LevelDebug, false)
	logging.SetGlobalLogger(logger)

	cfg := config.Default()
	cfg.Station.Callsign = "K3DEP"
	cfg.MQTT.Password = "hunter2"

	store, err := storage.NewEventStore(filepath.Join(t.TempDir(), "events.db"), 1000, logger)
	require.NoError(t, err)

	eng := engine.New(engine.Options{
		Connection: rig.ConnectionConfig{
			Model:           rig.ModelDummy,
			RefreshInterval: 10 * time.Millisecond,
			CallTimeout:     200 * time.Millisecond,
		},
		Callsign: cfg.Station.Callsign,
		Logger:   logger,
		History:  store,
	})

	d, err := newDaemon(cfg, "/etc/rigsync/config.yaml", eng, store)
	require.NoError(t, err)

	require.NoError(t, eng.Start(d.ctx))
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		store.Run(d.ctx, eng.Events())
	}()

	t.Cleanup(func() {
		eng.Stop()
		d.cancel()
		d.wg.Wait()
		store.Close()
	})
	return d
}

func doRequest(t *testing.T, d *RigsyncDaemon, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	d.webServer.Handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	}
	return w, out
}

func waitForState(t *testing.T, d *RigsyncDaemon, cond func(*state.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(d.engine.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("freq_main: %w", state.ErrInvalidValue), http.StatusBadRequest},
		{engine.ErrNotConnected, http.StatusConflict},
		{engine.ErrAlreadyConnected, http.StatusConflict},
		{engine.ErrTransmitGuard, http.StatusConflict},
		{fmt.Errorf("raw command: %w", capability.ErrUnsupported), http.StatusUnprocessableEntity},
		{engine.ErrStopped, http.StatusServiceUnavailable},
		{&rig.DeviceCallError{Op: "send_raw", Err: errors.New("timeout")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

func TestRadioHandlers(t *testing.T) {
	d := testDaemon(t)

	t.Run("Status", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodGet, "/api/v1/status", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "K3DEP", body["callsign"])
		assert.Equal(t, false, body["connected"])
	})

	t.Run("Set While Disconnected", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPut, "/api/v1/radio/freq_main", `{"value": 7074000}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Caps While Disconnected", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodGet, "/api/v1/radio/caps", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Connect", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodPost, "/api/v1/radio/connect", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["connected"])

		w, _ = doRequest(t, d, http.MethodPost, "/api/v1/radio/connect", "")
		assert.Equal(t, http.StatusConflict, w.Code)

		waitForState(t, d, func(s *state.Snapshot) bool { return s.Observed.FreqMain > 0 })
	})

	t.Run("Caps", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/caps", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, body)
	})

	t.Run("Set Number", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodPut, "/api/v1/radio/freq_main", `{"value": 7074000}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "freq_main", body["field"])
		waitForState(t, d, func(s *state.Snapshot) bool { return s.Observed.FreqMain == 7074000 })
	})

	t.Run("Set String", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPut, "/api/v1/radio/mode_main", `{"value": "CW"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		waitForState(t, d, func(s *state.Snapshot) bool { return s.Observed.ModeMain == rig.ModeCW })
	})

	t.Run("Set Invalid", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPut, "/api/v1/radio/rf_gain", `{"value": 1.5}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doRequest(t, d, http.MethodPut, "/api/v1/radio/no_such_field", `{"value": 1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doRequest(t, d, http.MethodPut, "/api/v1/radio/freq_main", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("State", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/state", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, "40m", body["band"])
	})

	t.Run("Band", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPost, "/api/v1/radio/band/20m", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		waitForState(t, d, func(s *state.Snapshot) bool { return s.Band == "20m" })

		w, _ = doRequest(t, d, http.MethodPost, "/api/v1/radio/band/11m", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Quick Split", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPost, "/api/v1/radio/quicksplit", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		waitForState(t, d, func(s *state.Snapshot) bool { return s.Observed.Split })
	})

	t.Run("Raw", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodPost, "/api/v1/radio/raw", `{"command": "FA"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "FA;", body["reply"])

		w, _ = doRequest(t, d, http.MethodPost, "/api/v1/radio/raw", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Disconnect Refused While Transmitting", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodPut, "/api/v1/radio/ptt", `{"value": true}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		waitForState(t, d, func(s *state.Snapshot) bool { return s.Observed.PTT })

		w, body := doRequest(t, d, http.MethodPost, "/api/v1/radio/disconnect", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, body["error"], "transmit guard")

		doRequest(t, d, http.MethodPut, "/api/v1/radio/ptt", `{"value": false}`)
		waitForState(t, d, func(s *state.Snapshot) bool { return !s.Observed.PTT })
	})

	t.Run("Events", func(t *testing.T) {
		require.Eventually(t, func() bool {
			_, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/events?kind=connect", "")
			return body["count"] == float64(1)
		}, 2*time.Second, 20*time.Millisecond)

		require.Eventually(t, func() bool {
			_, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/events?field=freq_main&outcome=applied", "")
			n, _ := body["count"].(float64)
			return n >= 1
		}, 2*time.Second, 20*time.Millisecond)

		w, _ := doRequest(t, d, http.MethodGet, "/api/v1/radio/events?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doRequest(t, d, http.MethodGet, "/api/v1/radio/events?since=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Event Stats", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/events/stats", "")
		require.Equal(t, http.StatusOK, w.Code)
		stats, ok := body["stats"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(1), stats["total_connects"])
	})

	t.Run("Frequencies", func(t *testing.T) {
		require.Eventually(t, func() bool {
			_, body := doRequest(t, d, http.MethodGet, "/api/v1/radio/frequencies?limit=10", "")
			n, _ := body["count"].(float64)
			return n >= 1
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("Prune Events", func(t *testing.T) {
		w, _ := doRequest(t, d, http.MethodDelete, "/api/v1/radio/events?before=last-week", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		before := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
		w, body := doRequest(t, d, http.MethodDelete, "/api/v1/radio/events?before="+before, "")
		require.Equal(t, http.StatusOK, w.Code)
		deleted, _ := body["deleted"].(float64)
		assert.GreaterOrEqual(t, deleted, float64(2))

		_, body = doRequest(t, d, http.MethodGet, "/api/v1/radio/events?kind=connect", "")
		assert.Equal(t, float64(0), body["count"])
	})

	t.Run("Disconnect", func(t *testing.T) {
		w, body := doRequest(t, d, http.MethodPost, "/api/v1/radio/disconnect", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["connected"])

		w, _ = doRequest(t, d, http.MethodPost, "/api/v1/radio/disconnect", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetConfig(t *testing.T) {
	d := testDaemon(t)

	w, body := doRequest(t, d, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/etc/rigsync/config.yaml", body["path"])

	cfg, ok := body["config"].(map[string]interface{})
	require.True(t, ok)
	station, ok := cfg["station"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "K3DEP", station["callsign"])

	mqttCfg, ok := cfg["mqtt"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "********", mqttCfg["password"])
	assert.Equal(t, "hunter2", d.config.MQTT.Password)
}

func TestStateWebSocket(t *testing.T) {
	d := testDaemon(t)
	srv := httptest.NewServer(d.webServer.Handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first state.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.False(t, first.Connected)

	_, err = d.engine.Connect(context.Background())
	require.NoError(t, err)

	for {
		var snap state.Snapshot
		require.NoError(t, conn.ReadJSON(&snap))
		assert.GreaterOrEqual(t, snap.Seq, first.Seq)
		if snap.Connected && snap.Observed.FreqMain == 14074000 {
			break
		}
	}
}
