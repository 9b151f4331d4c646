package health

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestProbeDrivesServingStatus(t *testing.T) {
	failing := errors.New("connection refused")
	var dbErr error
	srv := NewServer(map[string]Check{
		"postgres": func(context.Context) error { return dbErr },
	}, zap.NewNop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	dbErr = failing
	results, ok := srv.Probe(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "connection refused", results["postgres"])
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	dbErr = nil
	_, ok = srv.Probe(context.Background())
	assert.True(t, ok)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	last, ok := srv.Last()
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"postgres": "ok"}, last)
}
