package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietops/criblscope/pkg/client"
	"github.com/quietops/criblscope/pkg/model"
	"github.com/quietops/criblscope/pkg/ratelimit"
)

func mustClient(t *testing.T, mock *client.MockTransport) *client.Client {
	t.Helper()
	c, err := client.New("https://leader.example.com",
		client.WithBearerToken("test-token"),
		client.WithTransport(mock),
		client.WithLimiter(ratelimit.New(100000, 100)),
	)
	require.NoError(t, err)
	return c
}

func TestHealthyDeploymentNoFindings(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[{"id":"w1","status":"healthy"},{"id":"w2","status":"healthy"}],"count":2}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Findings)
	assert.Equal(t, 2, res.Metadata["node_count"])
}

func TestUnhealthyWorkerFlagged(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[{"id":"w1","status":"unhealthy"},{"id":"w2","status":"healthy"}],"count":2}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "health-worker-w1", f.ID)
	assert.Equal(t, model.SeverityHigh, f.Severity)
	assert.Equal(t, []string{"w1"}, f.AffectedComponents)
}

func TestNoWorkersIsHigh(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[],"count":0}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "health-no-nodes", res.Findings[0].ID)
	assert.Equal(t, model.SeverityHigh, res.Findings[0].Severity)
}

func TestSingleWorkerNoFailover(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[{"id":"w1","status":"healthy"}],"count":1}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "health-single-node", res.Findings[0].ID)
	assert.Equal(t, model.SeverityMedium, res.Findings[0].Severity)
}

func TestEdgeDisconnectedNode(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"edge"}`).
		Handle("/api/v1/edge/nodes", 200, `{"items":[{"id":"n1","status":"connected","fleet":"f1"},{"id":"n2","status":"disconnected","fleet":"f1"}],"count":2}`).
		Handle("/api/v1/health", 200, `{"status":"healthy"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "health-node-n2", res.Findings[0].ID)
}

func TestDegradedLeader(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/version", 200, `{"version":"4.8.0","product":"stream"}`).
		Handle("/api/v1/master/workers", 200, `{"items":[{"id":"w1","status":"healthy"},{"id":"w2","status":"healthy"}],"count":2}`).
		Handle("/api/v1/health", 200, `{"status":"degraded"}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "health-leader", res.Findings[0].ID)
}
