package mqtt

import (
	"context"
	"fmt"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/dougsko/rigsync/pkg/config"
)

const setSubscriptionID = 1

// Embedded runs its own broker and talks to it through the inline client
type Embedded struct {
	cfg    config.MQTTConfig
	core   *bridge
	server *mochi.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newEmbedded(cfg config.MQTTConfig, core *bridge) *Embedded {
	return &Embedded{
		cfg:    cfg,
		core:   core,
		server: mochi.New(&mochi.Options{InlineClient: true}),
	}
}

func (m *Embedded) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	return m.server.Publish(topic, payload, retain, 0)
}

// authHook allows everyone when no credentials are configured. Otherwise
// only the configured user may connect and only it may publish set topics.
func (m *Embedded) authHook() (mochi.Hook, any) {
	if m.cfg.Username == "" {
		return new(auth.AllowHook), nil
	}
	return new(auth.Hook), &auth.Options{
		Ledger: &auth.Ledger{
			Auth: auth.AuthRules{
				{Username: auth.RString(m.cfg.Username), Password: auth.RString(m.cfg.Password), Allow: true},
			},
			ACL: auth.ACLRules{
				{
					Username: auth.RString(m.cfg.Username), Filters: auth.Filters{
						auth.RString(m.core.prefix + "/#"): auth.ReadWrite,
					},
				},
				{
					Filters: auth.Filters{
						"#": auth.ReadOnly,
					},
				},
			},
		},
	}
}

// Start opens the listener and begins mirroring state
func (m *Embedded) Start(ctx context.Context) error {
	hook, hookConfig := m.authHook()
	if err := m.server.AddHook(hook, hookConfig); err != nil {
		return fmt.Errorf("mqtt auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "rigsync-tcp", Address: m.cfg.Address})
	if err := m.server.AddListener(tcp); err != nil {
		return fmt.Errorf("mqtt listener %s: %w", m.cfg.Address, err)
	}

	if err := m.server.Serve(); err != nil {
		return fmt.Errorf("mqtt serve: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	err := m.server.Subscribe(m.core.setFilter(), setSubscriptionID, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		m.core.onSet(ctx, pk.TopicName, pk.Payload, m.publish)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("mqtt subscribe: %w", err)
	}

	if err := m.publish(ctx, m.core.statusTopic(), []byte("online"), true); err != nil {
		m.core.log.Warn(component, "failed to publish status", map[string]interface{}{"error": err.Error()})
	}

	go func() {
		defer close(m.done)
		m.core.run(ctx, m.publish)
	}()

	m.core.log.Info(component, "embedded broker listening", map[string]interface{}{
		"address": m.cfg.Address,
		"prefix":  m.core.prefix,
	})
	return nil
}

// Stop closes the broker
func (m *Embedded) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel != nil {
		m.publish(context.Background(), m.core.statusTopic(), []byte("offline"), true)
		cancel()
		<-done
	}
	return m.server.Close()
}
