package model

import "time"

// ================ Config ================
type ChatModelConfig struct {
	Model     string `envconfig:"MODEL" default:"gemini-2.5-flash"`
	MaxTokens int    `envconfig:"MAX_TOKENS" default:"2000"`
}

// AgentsConfig declares the two health-manager personas. Each persona answers
// every user turn with its own sampling parameters and history file.
type AgentsConfig struct {
	PrimaryName        string  `envconfig:"AGENT1_NAME" default:"AI健康管理师1号(温和)"`
	PrimaryTemperature float32 `envconfig:"AGENT1_TEMPERATURE" default:"0.7"`
	PrimaryTopP        float32 `envconfig:"AGENT1_TOP_P" default:"0.9"`
	PrimaryHistory     string  `envconfig:"AGENT1_HISTORY_FILE" default:"chat_history_1.json"`

	SecondaryName        string  `envconfig:"AGENT2_NAME" default:"AI健康管理师2号(创意)"`
	SecondaryTemperature float32 `envconfig:"AGENT2_TEMPERATURE" default:"1.2"`
	SecondaryTopP        float32 `envconfig:"AGENT2_TOP_P" default:"0.8"`
	SecondaryHistory     string  `envconfig:"AGENT2_HISTORY_FILE" default:"chat_history_2.json"`
	SecondaryDisabled    bool    `envconfig:"AGENT2_DISABLED" default:"false"`
}

// AgentParams are the per-persona sampling parameters.
type AgentParams struct {
	Name        string
	Temperature float32
	TopP        float32
	HistoryFile string
}

// Agents flattens the env config into the ordered persona list.
func (c AgentsConfig) Agents() []AgentParams {
	agents := []AgentParams{{
		Name:        c.PrimaryName,
		Temperature: c.PrimaryTemperature,
		TopP:        c.PrimaryTopP,
		HistoryFile: c.PrimaryHistory,
	}}
	if !c.SecondaryDisabled {
		agents = append(agents, AgentParams{
			Name:        c.SecondaryName,
			Temperature: c.SecondaryTemperature,
			TopP:        c.SecondaryTopP,
			HistoryFile: c.SecondaryHistory,
		})
	}
	return agents
}

type GuardConfig struct {
	MaxLength int    `envconfig:"INPUT_MAX_LENGTH" default:"500"`
	RulesFile string `envconfig:"GUARD_RULES_FILE"`
}

type SecurityConfig struct {
	LogFile   string `envconfig:"SECURITY_LOG_FILE" default:"security_events.log"`
	Threshold int    `envconfig:"SECURITY_THRESHOLD" default:"5"`
}

type HistoryConfig struct {
	Backend      string        `envconfig:"HISTORY_BACKEND" default:"file"`
	ContextTurns int           `envconfig:"HISTORY_CONTEXT_TURNS" default:"6"`
	TTL          time.Duration `envconfig:"CONVERSATION_TTL" default:"720h"`
}

type UIConfig struct {
	Mode        string        `envconfig:"UI_MODE" default:"cli"`
	StreamDelay time.Duration `envconfig:"UI_STREAM_DELAY" default:"30ms"`
	WrapWidth   int           `envconfig:"UI_WRAP_WIDTH" default:"80"`
}
