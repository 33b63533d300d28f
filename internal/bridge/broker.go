package bridge

import (
	"github.com/honobridge/core/internal/hono"
	"github.com/honobridge/core/internal/infrastructure/config"
)

// honoBroker dials tenant connections through the upstream broker
// client. *hono.Client satisfies BrokerConn directly.
type honoBroker struct {
	cfg    config.MQTTConfig
	logger hono.Logger
}

// NewBroker creates the production broker dialer.
func NewBroker(cfg config.MQTTConfig, logger hono.Logger) Broker {
	return &honoBroker{cfg: cfg, logger: logger}
}

func (b *honoBroker) Dial(creds Credentials, onDisconnect func(err error)) (BrokerConn, error) {
	client, err := hono.Connect(hono.ConnectConfig{
		TenantID:       creds.TenantID,
		Host:           creds.Host,
		Port:           creds.Port,
		Username:       creds.Username,
		Password:       creds.Password,
		TLS:            b.cfg.TLS,
		ClientIDPrefix: b.cfg.ClientIDPrefix,
		QoS:            b.cfg.QoS,
	}, onDisconnect)
	if err != nil {
		return nil, err
	}
	if b.logger != nil {
		client.SetLogger(b.logger)
	}
	return client, nil
}
