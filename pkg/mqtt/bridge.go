// Package mqtt mirrors the radio state onto MQTT topics and accepts
// writes from them, either through an embedded broker or an external one.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/state"
)

const component = "mqtt"

// Radio is the part of the engine the bridge drives
type Radio interface {
	Snapshot() *state.Snapshot
	Subscribe() <-chan struct{}
	Unsubscribe(<-chan struct{})
	SubmitText(field, value string) error
	SetBand(name string) error
}

// Bridge is a running MQTT front end
type Bridge interface {
	Start(ctx context.Context) error
	Stop() error
}

// New builds the bridge cfg selects
func New(cfg config.MQTTConfig, radio Radio, logger *logging.Logger) (Bridge, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	core := &bridge{radio: radio, prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"), log: logger}
	if core.prefix == "" {
		core.prefix = "rigsync"
	}
	switch cfg.Mode {
	case config.MQTTEmbedded, "":
		return newEmbedded(cfg, core), nil
	case config.MQTTExternal:
		return newExternal(cfg, core)
	}
	return nil, fmt.Errorf("unknown mqtt mode %q", cfg.Mode)
}

// publishFunc sends one message through whichever client the bridge owns
type publishFunc func(ctx context.Context, topic string, payload []byte, retain bool) error

// bridge holds what both broker modes share: the topic layout, the
// state publisher and the set handler
type bridge struct {
	radio  Radio
	prefix string
	log    *logging.Logger
	last   []byte
}

// statePayload is the retained state message. It leaves out the sequence
// number and timestamp so unchanged state is not republished.
type statePayload struct {
	Connected bool              `json:"connected"`
	Model     string            `json:"model,omitempty"`
	Band      string            `json:"band,omitempty"`
	Observed  state.Observed    `json:"observed"`
	Stale     state.CategorySet `json:"stale"`
	Pending   []string          `json:"pending,omitempty"`
}

func (b *bridge) stateTopic() string  { return b.prefix + "/state" }
func (b *bridge) statusTopic() string { return b.prefix + "/status" }
func (b *bridge) errorTopic() string  { return b.prefix + "/error" }
func (b *bridge) setFilter() string   { return b.prefix + "/set/+" }

// handleSet applies a message published on <prefix>/set/<field>
func (b *bridge) handleSet(topic string, payload []byte) error {
	field, ok := strings.CutPrefix(topic, b.prefix+"/set/")
	if !ok || field == "" || strings.Contains(field, "/") {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	value := strings.TrimSpace(string(payload))
	if field == "band" {
		return b.radio.SetBand(value)
	}
	return b.radio.SubmitText(field, value)
}

// onSet is the message callback both clients use
func (b *bridge) onSet(ctx context.Context, topic string, payload []byte, publish publishFunc) {
	err := b.handleSet(topic, payload)
	if err == nil {
		return
	}
	b.log.Warn(component, "rejected set", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
	msg, _ := json.Marshal(map[string]string{"topic": topic, "error": err.Error()})
	if perr := publish(ctx, b.errorTopic(), msg, false); perr != nil {
		b.log.Debug(component, "failed to publish error", map[string]interface{}{"error": perr.Error()})
	}
}

// publishState publishes the current snapshot when it differs from the
// last one sent
func (b *bridge) publishState(ctx context.Context, publish publishFunc) error {
	snap := b.radio.Snapshot()
	payload, err := json.Marshal(statePayload{
		Connected: snap.Connected,
		Model:     snap.Model,
		Band:      snap.Band,
		Observed:  snap.Observed,
		Stale:     snap.Stale,
		Pending:   snap.Pending,
	})
	if err != nil {
		return err
	}
	if bytes.Equal(payload, b.last) {
		return nil
	}
	if err := publish(ctx, b.stateTopic(), payload, true); err != nil {
		return err
	}
	b.last = payload
	return nil
}

// run publishes state after every snapshot until ctx ends
func (b *bridge) run(ctx context.Context, publish publishFunc) {
	ch := b.radio.Subscribe()
	defer b.radio.Unsubscribe(ch)

	if err := b.publishState(ctx, publish); err != nil {
		b.log.Warn(component, "failed to publish state", map[string]interface{}{"error": err.Error()})
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := b.publishState(ctx, publish); err != nil {
				b.log.Warn(component, "failed to publish state", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
