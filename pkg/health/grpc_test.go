package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestRunServesHealth(t *testing.T) {
	gs, hs, err := Run("127.0.0.1:0", "order-service")
	require.NoError(t, err)
	defer gs.Stop()

	assert.Contains(t, gs.GetServiceInfo(), "grpc.health.v1.Health")

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "order-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	hs.Shutdown()
	resp, err = hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "order-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
