package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/hc2-sync/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the first connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish and subscribe acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is how long Close lets in-flight work drain (ms).
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	// maxPayloadSize caps a single message at 1MB.
	maxPayloadSize = 1 << 20

	tlsMinVersion = tls.VersionTLS12
)

// Bridge availability values carried on Topics.BridgeStatus.
const (
	BridgeOnline  = "online"
	BridgeOffline = "offline"
)

// Reasons attached to an offline BridgeState.
const (
	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// BridgeState is the retained payload describing whether this process is
// attached to the broker.
type BridgeState struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// encodeBridgeState renders a BridgeState stamped with now.
func encodeBridgeState(status, clientID, reason string, now time.Time) []byte {
	// Marshal of a flat struct of strings and a time cannot fail.
	b, _ := json.Marshal(BridgeState{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Truncate(time.Second),
	})
	return b
}

// brokerURL renders the paho server address, ssl:// when TLS is on.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// newClientOptions maps the mqtt config section onto paho options.
//
// The broker keeps no session for us (clean session); command
// subscriptions are replayed by the client itself after a reconnect.
// The Last Will announces an unexpected disconnect on the bridge status
// topic, retained so late subscribers still see it.
func newClientOptions(cfg config.MQTTConfig, topics Topics, now time.Time) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	will := encodeBridgeState(BridgeOffline, cfg.Broker.ClientID, reasonUnexpected, now)
	opts.SetBinaryWill(topics.BridgeStatus(), will, 1, true)

	return opts
}
