package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/HealthAssistant-core/server/internal/agent/graph/parsers"
	"github.com/HealthAssistant-core/server/internal/agent/graph/prompts"
	"github.com/HealthAssistant-core/server/internal/agent/model"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// Graph node keys.
const (
	NodePromptAssembler = "PromptAssembler"
	NodeChatModel       = "ChatModel"
	NodeAdviceParser    = "AdviceParser"
)

// NewPromptAssemblerPreHandler seeds the per-invocation state.
func NewPromptAssemblerPreHandler(agent model.AgentParams) func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.UserID = in.UserID
		s.AgentName = agent.Name
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewPromptAssemblerNode builds the system + user messages for one persona.
func NewPromptAssemblerNode(agent model.AgentParams) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		// Generate system prompt via Eino prompt component (enables prompt callbacks)
		systemPrompt, err := prompts.RenderHealthSystem(ctx, agent)
		if err != nil {
			return nil, fmt.Errorf("render health system prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(input.Query),
		}, nil
	})
}

// NewChatModelPostHandler computes and logs usage cost for the chat model.
func NewChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
			return out, nil
		}

		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra["usage_cost"] = map[string]any{
			"currency":          "USD",
			"model":             modelName,
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.TotalTokens,
			"input_cost":        inC,
			"output_cost":       outC,
			"total_cost":        totalC,
		}
		logx.Debug().
			Str("user_id", state.UserID).
			Str("agent", state.AgentName).
			Str("node", NodeChatModel).
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")

		state.TotalCostUSD += totalC
		out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
		return out, nil
	}
}

// NewAdviceParserNode normalizes the model reply. Schema problems never fail
// the graph; they collapse into the default advice.
func NewAdviceParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.Advice, error) {
		if resp == nil {
			return parsers.DefaultAdvice(""), nil
		}
		return parsers.Normalize(resp.Content, nil), nil
	})
}
