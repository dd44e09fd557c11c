package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fuelops/auth"
)

// DefaultTopicPrefix is where decision events are published when no prefix is
// configured.
const DefaultTopicPrefix = "platform/dispatch"

// Config defines the broker connection and the topics used by the decision
// feed.
type Config struct {
	Broker       string      `json:"broker"`
	ClientID     string      `json:"client_id"`
	Username     string      `json:"username"`
	Password     string      `json:"password"`
	TopicPrefix  string      `json:"topic_prefix"`
	RequestTopic string      `json:"request_topic"`
	UseTLS       bool        `json:"use_tls"`
	ClientCert   string      `json:"client_cert"`
	ClientKey    string      `json:"client_key"`
	CABundle     string      `json:"ca_bundle"`
	AuthMethod   string      `json:"auth_method"`
	OAuth2       auth.Conf   `json:"oauth2"`
	QoS          byte        `json:"qos"`
	Retain       bool        `json:"retain"`
	LWTTopic     string      `json:"lwt_topic"`
	LWTPayload   string      `json:"lwt_payload"`
	LWTQoS       byte        `json:"lwt_qos"`
	LWTRetain    bool        `json:"lwt_retain"`
	MaxRetries   int         `json:"max_retries"`
	BackoffMS    int         `json:"backoff_ms"`
	TLSConfig    *tls.Config `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	c.TopicPrefix = strings.TrimRight(c.TopicPrefix, "/")
	if c.ClientID == "" {
		c.ClientID = "fuelops-platform"
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 200
	}
}

// Validate checks the settings when a broker is configured.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("mqtt max_retries must be >= 0")
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	case "oauth2":
		if !c.OAuth2.Enabled() {
			return fmt.Errorf("mqtt auth_method oauth2 requires oauth2.token_url")
		}
		if err := c.OAuth2.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown mqtt auth_method %q", c.AuthMethod)
	}
	return nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.AuthMethod == "oauth2" {
		cred := auth.NewClientCred(context.Background(), cfg.OAuth2)
		opts.SetCredentialsProvider(cred.MQTTCredentials(cfg.Username, nil))
	}
	if cfg.UseTLS || cfg.AuthMethod == "certificate" {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s holds no certificates", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
