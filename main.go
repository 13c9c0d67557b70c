package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/HealthAssistant-core/server/internal/agent/graph"
	"github.com/HealthAssistant-core/server/internal/agent/graph/nodes"
	"github.com/HealthAssistant-core/server/internal/agent/guard"
	"github.com/HealthAssistant-core/server/internal/agent/model"
	"github.com/HealthAssistant-core/server/internal/agent/repo"
	"github.com/HealthAssistant-core/server/internal/assistant"
	"github.com/HealthAssistant-core/server/internal/cli"
	"github.com/HealthAssistant-core/server/internal/core"
	"github.com/HealthAssistant-core/server/internal/security"
	"github.com/HealthAssistant-core/server/internal/tui"
	logx "github.com/HealthAssistant-core/server/pkg/logger"
	pkgredis "github.com/HealthAssistant-core/server/pkg/redis"
)

const (
	uiModeWindow      = "window"
	historyRedis      = "redis"
	defaultWindowLogs = "health_assistant.log"

	exitFailure    = 1
	exitTerminated = 2
)

// AppConfig defines all configurable parameters of the assistant,
// sourced from environment variables (loaded from API.env / .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogFile     string `envconfig:"LOG_FILE"`
	UserID      string `envconfig:"USER_ID"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Infrastructure
	Redis pkgredis.Config

	Chat     model.ChatModelConfig
	Agents   model.AgentsConfig
	Guard    model.GuardConfig
	Security model.SecurityConfig
	History  model.HistoryConfig
	UI       model.UIConfig
}

func main() {
	os.Exit(serve())
}

// serve runs the assistant and returns the process exit code, so that the
// deferred cleanups run before the process exits.
func serve() int {
	logx.Init()

	// Load env files; real environment variables win over both.
	loaded := 0
	for _, f := range []string{"API.env", ".env"} {
		if err := godotenv.Load(f); err == nil {
			loaded++
		}
	}
	if loaded == 0 {
		logx.Warn().Msg("No API.env or .env file found, using process environment only")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Error().Err(err).Msg("Failed to process environment config")
		return exitFailure
	}

	closeLog := initLogger(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, assistant.ErrTerminated) {
			logx.Warn().Err(err).Msg("Session terminated")
			return exitTerminated
		}
		logx.Error().Err(err).Msg("Health assistant stopped")
		return exitFailure
	}
	return 0
}

func run(ctx context.Context, cfg AppConfig) error {
	rules, err := guard.LoadRules(cfg.Guard.RulesFile, cfg.Guard.MaxLength)
	if err != nil {
		return fmt.Errorf("load guard rules: %w", err)
	}

	secLog, closer, err := security.OpenFileLog(cfg.Security.LogFile)
	if err != nil {
		logx.Warn().Err(err).Msg("Security events are kept in memory only")
		secLog = security.NewLog(nil)
	} else {
		defer closer.Close()
	}
	tracker := security.NewTracker(secLog, cfg.Security.Threshold)

	client, err := nodes.NewGeminiClient(ctx, nodes.ClientConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	if err != nil {
		return err
	}

	var rdb *goredis.Client
	if strings.EqualFold(cfg.History.Backend, historyRedis) {
		rdb, err = cfg.Redis.New(ctx)
		if err != nil {
			return fmt.Errorf("initialise redis client: %w", err)
		}
		defer rdb.Close()
		logx.Info().Msg("Connected to Redis successfully")
	}

	var personas []assistant.Persona
	for _, params := range cfg.Agents.Agents() {
		store, err := newHistoryStore(cfg.History, rdb, params)
		if err != nil {
			return err
		}
		chatModel, err := nodes.NewChatModel(ctx, client, cfg.Chat, params)
		if err != nil {
			return err
		}
		agent, err := graph.NewAgent(ctx, graph.Config{ChatModel: chatModel, ModelName: cfg.Chat.Model, Agent: params})
		if err != nil {
			return fmt.Errorf("build agent %s: %w", params.Name, err)
		}
		personas = append(personas, assistant.Persona{Agent: agent, Store: store})
	}

	sessionCfg := assistant.Config{
		UserID:  cfg.UserID,
		Rules:   rules,
		Tracker: tracker,
		History: cfg.History,
	}

	if strings.EqualFold(cfg.UI.Mode, uiModeWindow) {
		session, err := assistant.NewSession(ctx, sessionCfg, personas)
		if err != nil {
			return err
		}
		return tui.Run(ctx, session, os.Stdout, cfg.UI)
	}

	term := cli.New(os.Stdin, os.Stdout, cfg.UI)
	if sessionCfg.UserID == "" {
		sessionCfg.UserID = term.AskUserID()
	}
	session, err := assistant.NewSession(ctx, sessionCfg, personas)
	if err != nil {
		return err
	}
	logx.Info().Str("user_id", session.UserID()).Int("agents", len(personas)).Msg("Session started")
	return term.Run(ctx, session)
}

// newHistoryStore picks the history backend of one persona. Redis keys are
// namespaced by the persona's history file name.
func newHistoryStore(cfg model.HistoryConfig, rdb *goredis.Client, params model.AgentParams) (model.HistoryStore, error) {
	if rdb != nil {
		namespace := strings.TrimSuffix(filepath.Base(params.HistoryFile), filepath.Ext(params.HistoryFile))
		return repo.NewRedisHistoryStore(rdb, namespace, cfg.TTL), nil
	}
	store, err := repo.NewFileStore(params.HistoryFile)
	if err != nil {
		return nil, fmt.Errorf("open history file for %s: %w", params.Name, err)
	}
	return store, nil
}

// initLogger routes logs away from the terminal in window mode.
func initLogger(cfg AppConfig) func() {
	env := core.ParseEnvironment(cfg.Environment)
	path := cfg.LogFile
	if path == "" && strings.EqualFold(cfg.UI.Mode, uiModeWindow) {
		path = defaultWindowLogs
	}
	if path == "" {
		logx.Init(logx.LoggerOpts{Environment: env})
		return func() {}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logx.Init(logx.LoggerOpts{Environment: env})
		logx.Warn().Err(err).Str("path", path).Msg("Cannot open log file, logging to stderr")
		return func() {}
	}
	logx.Init(logx.LoggerOpts{Environment: env, Output: f})
	return func() { _ = f.Close() }
}
