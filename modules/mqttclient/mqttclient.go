package mqttclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
)

var (
	module = "mqttclient"

	ErrNotConnected = errors.New("mqtt client not connected")

	checkInterval = 10 * time.Second
)

var _ services.Service = (*MQTTClient)(nil)

// MQTTClient keeps a broker connection alive and re-applies subscriptions
// whenever the connection is established.
type MQTTClient struct {
	services.Service

	cfg *Config

	mtx    sync.Mutex
	client mqtt.Client
	subs   map[string]mqtt.MessageHandler

	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*MQTTClient, error) {
	m := &MQTTClient{
		cfg:    &cfg,
		logger: logger.With("module", module),
		subs:   make(map[string]mqtt.MessageHandler),
	}

	m.Service = services.NewBasicService(m.starting, m.running, m.stopping)
	return m, nil
}

func (m *MQTTClient) Client() mqtt.Client {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.client
}

// Subscribe registers handler for topic.  The subscription is applied now if
// connected and again after every reconnect.
func (m *MQTTClient) Subscribe(topic string, handler mqtt.MessageHandler) {
	m.mtx.Lock()
	m.subs[topic] = handler
	client := m.client
	m.mtx.Unlock()

	if client != nil && client.IsConnected() {
		m.subscribe(client, topic, handler)
	}
}

func (m *MQTTClient) Unsubscribe(topic string) {
	m.mtx.Lock()
	delete(m.subs, topic)
	client := m.client
	m.mtx.Unlock()

	if client != nil && client.IsConnected() {
		client.Unsubscribe(topic).WaitTimeout(time.Second)
	}
}

func (m *MQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	client := m.Client()
	if client == nil {
		return errToken{err: ErrNotConnected}
	}
	return client.Publish(topic, qos, retained, payload)
}

func (m *MQTTClient) CheckHealth() error {
	client := m.Client()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (m *MQTTClient) onConnected(client mqtt.Client) {
	m.logger.Info("mqtt connected")

	m.mtx.Lock()
	subs := make(map[string]mqtt.MessageHandler, len(m.subs))
	for t, h := range m.subs {
		subs[t] = h
	}
	m.mtx.Unlock()

	for topic, handler := range subs {
		m.subscribe(client, topic, handler)
	}
	metricSubscriptions.Set(float64(len(subs)))
}

func (m *MQTTClient) subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) {
	token := client.Subscribe(topic, 0, handler)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			m.logger.Error("subscribe error", "topic", topic, "err", err)
		}
	}()
}

func (m *MQTTClient) starting(ctx context.Context) error {
	client, err := newClient(*m.cfg, m.logger, m.onConnected)
	if err != nil {
		return err
	}

	m.mtx.Lock()
	m.client = client
	m.mtx.Unlock()
	return nil
}

func (m *MQTTClient) running(ctx context.Context) error {
	t := time.NewTicker(checkInterval)
	defer t.Stop()

	b := backoff.New(ctx, m.cfg.Backoff)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if m.CheckHealth() == nil {
				b.Reset()
				continue
			}

			client, err := newClient(*m.cfg, m.logger, m.onConnected)
			if err != nil {
				metricMQTTClientReplacementError.Inc()
				m.logger.Error("failed to replace mqtt client", "err", err, "retries", b.NumRetries())
				b.Wait()
				continue
			}

			m.mtx.Lock()
			old := m.client
			m.client = client
			m.mtx.Unlock()

			if old != nil {
				old.Disconnect(100)
			}
			metricMQTTClientReplaced.Inc()
		}
	}
}

func (m *MQTTClient) stopping(_ error) error {
	if client := m.Client(); client != nil {
		client.Disconnect(100)
	}
	return nil
}

// errToken is a completed token carrying an error.
type errToken struct {
	err error
}

func (t errToken) Wait() bool                     { return true }
func (t errToken) WaitTimeout(time.Duration) bool { return true }
func (t errToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
func (t errToken) Error() error { return t.err }
