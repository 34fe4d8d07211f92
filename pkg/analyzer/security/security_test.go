package security

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

func analyze(t *testing.T, inputs, outputs string) *model.AnalyzerResult {
	t.Helper()
	mock := client.NewMockTransport().
		Handle("/api/v1/m/default/inputs", 200, inputs).
		Handle("/api/v1/m/default/outputs", 200, outputs)
	res, err := New().Analyze(context.Background(), mustClient(t, mock))
	require.NoError(t, err)
	return res
}

func TestCleanConfigFullPosture(t *testing.T) {
	res := analyze(t,
		`{"items":[{"id":"in1","conf":{"authType":"token","tls":{"enabled":true,"minVersion":"TLSv1.2"}}}],"count":1}`,
		`{"items":[{"id":"out1","conf":{"tls":{"enabled":true,"minVersion":"TLSv1.2"}}}],"count":1}`)

	assert.Empty(t, res.Findings)
	assert.Equal(t, 100, res.Metadata["security_posture_score"])
}

func TestDisabledTLSIsHigh(t *testing.T) {
	res := analyze(t,
		`{"items":[],"count":0}`,
		`{"items":[{"id":"out1","conf":{"tls":{"disabled":true}}}],"count":1}`)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "security-tls-disabled-out1", f.ID)
	assert.Equal(t, model.SeverityHigh, f.Severity)
	assert.Equal(t, 70, res.Metadata["security_posture_score"])
}

func TestWeakTLSVersionAndNoVerify(t *testing.T) {
	res := analyze(t,
		`{"items":[],"count":0}`,
		`{"items":[{"id":"out1","conf":{"tls":{"enabled":true,"minVersion":"TLSv1.1","rejectUnauthorized":false}}}],"count":1}`)

	require.Len(t, res.Findings, 2)
	assert.Equal(t, 65, res.Metadata["security_posture_score"])
}

func TestHardcodedSecretIsCritical(t *testing.T) {
	res := analyze(t,
		`{"items":[],"count":0}`,
		`{"items":[{"id":"out1","conf":{"password":"hunter2"}}],"count":1}`)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, model.SeverityCritical, f.Severity)
	assert.Equal(t, "security-hardcoded-secret-out1-password", f.ID)
	assert.Equal(t, 95, res.Metadata["security_posture_score"])
}

func TestEnvReferenceAndPlaceholderNotSecrets(t *testing.T) {
	res := analyze(t,
		`{"items":[],"count":0}`,
		`{"items":[{"id":"out1","conf":{"password":"${SPLUNK_PASSWORD}","token":"changeme"}}],"count":1}`)

	assert.Empty(t, res.Findings)
	assert.Equal(t, 100, res.Metadata["security_posture_score"])
}

func TestSecretDeductionCapped(t *testing.T) {
	res := analyze(t,
		`{"items":[],"count":0}`,
		`{"items":[
			{"id":"o1","conf":{"password":"a1"}},
			{"id":"o2","conf":{"password":"a2"}},
			{"id":"o3","conf":{"password":"a3"}},
			{"id":"o4","conf":{"password":"a4"}},
			{"id":"o5","conf":{"password":"a5"}},
			{"id":"o6","conf":{"password":"a6"}}
		],"count":6}`)

	require.Len(t, res.Findings, 6)
	assert.Equal(t, 75, res.Metadata["security_posture_score"])
}

func TestUnauthenticatedInput(t *testing.T) {
	res := analyze(t,
		`{"items":[{"id":"in1","conf":{"authType":"none"}}],"count":1}`,
		`{"items":[],"count":0}`)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "security-no-auth-in1", res.Findings[0].ID)
	assert.Equal(t, model.SeverityHigh, res.Findings[0].Severity)
	assert.Equal(t, 90, res.Metadata["security_posture_score"])
}

func TestBasicAuthIsLow(t *testing.T) {
	res := analyze(t,
		`{"items":[{"id":"in1","conf":{"authType":"basic"}}],"count":1}`,
		`{"items":[],"count":0}`)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, model.SeverityLow, res.Findings[0].Severity)
	assert.Equal(t, 100, res.Metadata["security_posture_score"])
}
