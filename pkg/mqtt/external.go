package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/dougsko/rigsync/pkg/config"
)

// External connects to a broker run elsewhere and reconnects until stopped
type External struct {
	cfg    config.MQTTConfig
	core   *bridge
	server *url.URL

	cm     *autopaho.ConnectionManager
	cancel context.CancelFunc
	done   chan struct{}
}

func newExternal(cfg config.MQTTConfig, core *bridge) (*External, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "mqtt://" + broker
	}
	u, err := url.Parse(broker)
	if err != nil {
		return nil, fmt.Errorf("invalid mqtt broker %q: %w", cfg.Broker, err)
	}
	return &External{cfg: cfg, core: core, server: u}, nil
}

func (x *External) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if x.cm == nil {
		return fmt.Errorf("mqtt not started")
	}
	_, err := x.cm.Publish(ctx, &paho.Publish{
		QoS:     0,
		Topic:   topic,
		Payload: payload,
		Retain:  retain,
	})
	return err
}

// Start begins connecting. It does not wait for the broker.
func (x *External) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	log := x.core.log

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{x.server},
		KeepAlive:                     20,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         0,
		WillMessage: &paho.WillMessage{
			Topic:   x.core.statusTopic(),
			Payload: []byte("offline"),
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Info(component, "connected to broker", map[string]interface{}{"broker": x.server.String()})
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: x.core.setFilter(), QoS: 0},
				},
			}); err != nil {
				log.Error(component, "failed to subscribe", map[string]interface{}{"error": err.Error()})
			}
			if _, err := cm.Publish(ctx, &paho.Publish{Topic: x.core.statusTopic(), Payload: []byte("online"), Retain: true}); err != nil {
				log.Warn(component, "failed to publish status", map[string]interface{}{"error": err.Error()})
			}
		},
		OnConnectError: func(err error) {
			log.Warn(component, "broker connection failed", map[string]interface{}{"error": err.Error()})
		},
		ClientConfig: paho.ClientConfig{
			ClientID: x.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					x.core.onSet(ctx, pr.Packet.Topic, pr.Packet.Payload, x.publish)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				log.Warn(component, "client error", map[string]interface{}{"error": err.Error()})
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				reason := fmt.Sprintf("reason code %d", d.ReasonCode)
				if d.Properties != nil && d.Properties.ReasonString != "" {
					reason = d.Properties.ReasonString
				}
				log.Warn(component, "broker requested disconnect", map[string]interface{}{"reason": reason})
			},
		},
	}
	if x.cfg.Username != "" {
		cliCfg.ConnectUsername = x.cfg.Username
		cliCfg.ConnectPassword = []byte(x.cfg.Password)
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		cancel()
		return fmt.Errorf("mqtt connect: %w", err)
	}
	x.cm = cm
	x.cancel = cancel
	x.done = make(chan struct{})

	go func() {
		defer close(x.done)
		if err := cm.AwaitConnection(ctx); err != nil {
			return
		}
		x.core.run(ctx, x.publish)
	}()
	return nil
}

// Stop disconnects from the broker
func (x *External) Stop() error {
	if x.cm == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	x.publish(ctx, x.core.statusTopic(), []byte("offline"), true)
	err := x.cm.Disconnect(ctx)
	x.cancel()
	<-x.done
	return err
}
