// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"github.com/50mmer/statusai/internal/common/config"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
}

// ConfigFrom maps the camunda section of the application config.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	cc := &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Timeout),
		RequestTimeout:         config.GetDuration(cfg.RequestTimeout),
	}
	if cc.ConnectionTimeout <= 0 {
		cc.ConnectionTimeout = 10 * time.Second
	}
	if cc.RequestTimeout <= 0 {
		cc.RequestTimeout = 30 * time.Second
	}
	return cc
}

// NewClientWithConfig creates the Zeebe client and checks the broker is
// reachable before returning.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg.GatewayAddress == "" {
		return nil, fmt.Errorf("camunda broker address is empty")
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: cfg,
	}, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the broker for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
