package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

//go:embed template/health_prompt.txt
var healthSystemPrompt string

// commandHelp lists the commands the model must not answer.
var commandHelp = []string{
	`/help 或 "帮助": 查看可用命令和系统信息`,
	`/history 或 "查看历史": 显示当前会话的历史记录`,
	`/clear 或 "清除": 清除当前会话的历史记录`,
	`/params 或 "参数": 查看系统参数`,
	`/exit 或 "退出": 退出系统`,
}

// RenderHealthSystem renders the health-manager system prompt for one persona
// via the Eino prompt component, which also triggers prompt callbacks.
func RenderHealthSystem(ctx context.Context, agent model.AgentParams) (string, error) {
	persona := strings.TrimSpace(agent.Name)
	if persona == "" {
		persona = "国家高级健康管理师"
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(healthSystemPrompt),
	)
	vars := map[string]any{
		"Persona": persona,
		"AdviceTypes": strings.Join([]string{
			string(model.AdviceGeneral),
			string(model.AdviceDiet),
			string(model.AdviceExercise),
			string(model.AdviceWarning),
		}, "|"),
		"Commands": commandHelp,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("health prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("health prompt render: empty result")
	}
	return msgs[0].Content, nil
}
