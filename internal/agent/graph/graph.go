package graph

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	"github.com/HealthAssistant-core/server/internal/agent/graph/nodes"
	"github.com/HealthAssistant-core/server/internal/agent/graph/observers"
	"github.com/HealthAssistant-core/server/internal/agent/graph/parsers"
	"github.com/HealthAssistant-core/server/internal/agent/model"
	errx "github.com/HealthAssistant-core/server/internal/core/error"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
)

// Config holds everything needed to compose one persona's advice graph.
type Config struct {
	ChatModel einomodel.BaseChatModel
	ModelName string
	Agent     model.AgentParams
}

// Agent answers one query with a normalized Advice. It never returns an error:
// transport failures become the transport fallback advice.
type Agent struct {
	params   model.AgentParams
	runnable compose.Runnable[model.QueryInput, model.Advice]
}

// NewAgent builds and compiles the advice graph for one persona.
func NewAgent(ctx context.Context, cfg Config) (*Agent, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("agent", cfg.Agent.Name).Msg("Advice graph built successfully")
	return &Agent{params: cfg.Agent, runnable: runnable}, nil
}

func (a *Agent) Name() string { return a.params.Name }

func (a *Agent) Params() model.AgentParams { return a.params }

// Chat sends the query to the model. Reserved commands are answered locally
// with an empty advice and never reach the network.
func (a *Agent) Chat(ctx context.Context, in model.QueryInput) model.Advice {
	if model.IsReservedCommand(in.Query) {
		return model.EmptyAdvice()
	}

	out, err := a.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		err = errx.WrapTransport(err)
		logx.Error().Err(err).
			Str("user_id", in.UserID).
			Str("agent", a.params.Name).
			Msg("Advice graph invocation failed")
		return parsers.Normalize("", err)
	}
	return out
}

// BuildGraph constructs and returns the compiled advice graph:
// START -> PromptAssembler -> ChatModel -> AdviceParser -> END.
func BuildGraph(ctx context.Context, cfg Config) (compose.Runnable[model.QueryInput, model.Advice], error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	g := compose.NewGraph[model.QueryInput, model.Advice](
		compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
			return &model.AppState{}
		}),
	)

	if err := g.AddLambdaNode(nodes.NodePromptAssembler,
		nodes.NewPromptAssemblerNode(cfg.Agent),
		compose.WithStatePreHandler(nodes.NewPromptAssemblerPreHandler(cfg.Agent)),
	); err != nil {
		return nil, fmt.Errorf("add prompt assembler node: %w", err)
	}

	if err := g.AddChatModelNode(nodes.NodeChatModel,
		cfg.ChatModel,
		compose.WithStatePostHandler(nodes.NewChatModelPostHandler(cfg.ModelName)),
	); err != nil {
		return nil, fmt.Errorf("add chat model node: %w", err)
	}

	if err := g.AddLambdaNode(nodes.NodeAdviceParser, nodes.NewAdviceParserNode()); err != nil {
		return nil, fmt.Errorf("add advice parser node: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodes.NodePromptAssembler},
		{nodes.NodePromptAssembler, nodes.NodeChatModel},
		{nodes.NodeChatModel, nodes.NodeAdviceParser},
		{nodes.NodeAdviceParser, compose.END},
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithGraphName("HealthAdvice"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
