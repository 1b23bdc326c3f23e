package mqttclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const clientPrefix = "govee"

func newClient(cfg Config, logger *slog.Logger, onConnected mqtt.OnConnectHandler) (mqtt.Client, error) {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	onLost := func(_ mqtt.Client, err error) {
		logger.Error("mqtt connection lost", "err", err)
	}

	onReconnect := func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("mqtt reconnecting")
	}

	onConnect := func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		logger.Info("mqtt connecting", "broker", broker)
		return tlsCfg
	}

	mqttOpts := mqtt.NewClientOptions()

	mqttOpts.SetOnConnectHandler(onConnected)
	mqttOpts.SetConnectionLostHandler(onLost)
	mqttOpts.SetReconnectingHandler(onReconnect)
	mqttOpts.SetConnectionAttemptHandler(onConnect)

	mqttOpts.AddBroker(cfg.URL)
	mqttOpts.SetCleanSession(true)
	mqttOpts.SetClientID(fmt.Sprintf("%s-%x", clientPrefix, rnd.Uint64()))
	mqttOpts.SetConnectTimeout(10 * time.Second)
	mqttOpts.SetKeepAlive(10 * time.Second)
	mqttOpts.SetMaxReconnectInterval(time.Minute)
	mqttOpts.SetOrderMatters(false)
	mqttOpts.SetWriteTimeout(5 * time.Second)

	if cfg.Username != "" && cfg.Password != "" {
		mqttOpts.SetUsername(cfg.Username)
		mqttOpts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(mqttOpts)

	token := client.Connect()
	token.Wait()

	if err := token.Error(); err != nil {
		return nil, err
	}

	logger.Debug("mqtt connected", "url", cfg.URL)

	return client, nil
}
