package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := New(Config{APIKey: "test-key", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	return gw
}

func TestContextKey(t *testing.T) {
	assert.Equal(t, "proj1/extract", contextKey("proj1", "extract"))
}

func TestGateway_RegisterContext(t *testing.T) {
	gw := newTestGateway(t)
	gw.RegisterContext("proj1", "extract", "you are an extraction assistant")
	gw.mu.Lock()
	prompt, ok := gw.contexts[contextKey("proj1", "extract")]
	gw.mu.Unlock()
	assert.True(t, ok)
	assert.Equal(t, "you are an extraction assistant", prompt)
}

func TestGateway_RecordUsageAndRead(t *testing.T) {
	gw := newTestGateway(t)
	assert.Equal(t, Usage{}, gw.Usage("proj1"))

	gw.recordUsage("proj1", "some input text", "some output text")
	u := gw.Usage("proj1")
	assert.Greater(t, u.InputTokens, 0)
	assert.Greater(t, u.OutputTokens, 0)

	gw.recordUsage("proj1", "more input", "more output")
	u2 := gw.Usage("proj1")
	assert.Greater(t, u2.InputTokens, u.InputTokens)
}

func TestGateway_UsageIsolatedPerProject(t *testing.T) {
	gw := newTestGateway(t)
	gw.recordUsage("proj1", "input", "output")
	assert.Equal(t, Usage{}, gw.Usage("proj2"))
}
