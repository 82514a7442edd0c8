package camunda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/50mmer/statusai/internal/common/config"
)

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 5000, RequestTimeout: 15000})

	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.True(t, cc.UsePlaintextConnection)
	assert.Equal(t, 5*time.Second, cc.ConnectionTimeout)
	assert.Equal(t, 15*time.Second, cc.RequestTimeout)
}

func TestConfigFrom_Defaults(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500"})

	assert.Equal(t, 10*time.Second, cc.ConnectionTimeout)
	assert.Equal(t, 30*time.Second, cc.RequestTimeout)
}

func TestNewClientWithConfig_RequiresAddress(t *testing.T) {
	_, err := NewClientWithConfig(&ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker address")
}
