package search

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

func TestFailedAndLongJobs(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/m/main/search/jobs", 200, `{"items":[
			{"id":"j1","status":"completed","elapsedSecs":12},
			{"id":"j2","status":"failed","elapsedSecs":4},
			{"id":"j3","status":"completed","elapsedSecs":900}
		],"count":3}`).
		Handle("/api/v1/m/main/search/saved-searches", 200, `{"items":[],"count":0}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)

	ids := map[string]model.Severity{}
	for _, f := range res.Findings {
		ids[f.ID] = f.Severity
	}
	assert.Len(t, res.Findings, 2)
	assert.Equal(t, model.SeverityMedium, ids["search-failed-job-j2"])
	assert.Equal(t, model.SeverityLow, ids["search-long-job-j3"])
	assert.Equal(t, 1, res.Metadata["failed_job_count"])
}

func TestDisabledScheduleFlagged(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/m/main/search/jobs", 200, `{"items":[],"count":0}`).
		Handle("/api/v1/m/main/search/saved-searches", 200, `{"items":[
			{"id":"s1","schedule":{"enabled":true}},
			{"id":"s2","schedule":{"enabled":false}}
		],"count":2}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "search-disabled-schedule-s2", res.Findings[0].ID)
}

func TestMissingSavedSearchesTolerated(t *testing.T) {
	mock := client.NewMockTransport().
		Handle("/api/v1/m/main/search/jobs", 200, `{"items":[],"count":0}`)

	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "data_unavailable", res.Findings[0].Category)
}
