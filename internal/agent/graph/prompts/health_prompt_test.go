package prompts

import (
	"context"
	"testing"

	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHealthSystem(t *testing.T) {
	out, err := RenderHealthSystem(context.Background(), model.AgentParams{Name: "AI健康管理师1号(温和)"})
	require.NoError(t, err)

	assert.Contains(t, out, "「AI健康管理师1号(温和)」")
	assert.Contains(t, out, `"advice_type": "general|diet|exercise|warning"`)
	assert.Contains(t, out, `- /exit 或 "退出": 退出系统`)
	assert.NotContains(t, out, "{{")
}

func TestRenderHealthSystemDefaultPersona(t *testing.T) {
	out, err := RenderHealthSystem(context.Background(), model.AgentParams{})
	require.NoError(t, err)
	assert.Contains(t, out, "「国家高级健康管理师」")
}
