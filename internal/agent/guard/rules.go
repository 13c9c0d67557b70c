// Package guard screens raw user input before it reaches the model: it
// normalizes spelling and medical terms, maps localized command aliases and
// rejects oversized, sensitive or injection-like text.
package guard

import (
	"fmt"
	"regexp"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

// DefaultMaxLength is the input limit in characters.
const DefaultMaxLength = 500

// Replacement is one ordered substring substitution.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Alias maps an exact localized word to a canonical command.
type Alias struct {
	Word    string        `yaml:"word"`
	Command model.Command `yaml:"command"`
}

// Rules holds the static tables applied by the Preprocessor and Validator.
// Tables are ordered: an earlier replacement mutates the text later entries see.
// Treat a Rules value as immutable once handed to a constructor.
type Rules struct {
	MaxLength            int
	SpellingCorrections  []Replacement
	MedicalTerms         []Replacement
	SensitiveWords       []string
	CommandAliases       []Alias
	CommandBlacklist     []string
	InjectionPatterns    []*regexp.Regexp
	SQLInjectionPatterns []*regexp.Regexp
}

var defaultInjectionPatterns = []string{
	`system\s*\(`, `exec\s*\(`, `os\.`, `subprocess\.`,
	`eval\s*\(`, `execfile\s*\(`, `__import__\s*\(`,
	`pickle\.load`, `yaml\.load`, `json\.loads`,
}

var defaultSQLInjectionPatterns = []string{
	`[\s;]--`, `[\s;]#`, `[\s;]/\*`, `union\s+select`,
	`drop\s+table`, `delete\s+from`, `insert\s+into`,
	`update\s+\w+\s+set`, `xp_cmdshell`, `waitfor\s+delay`,
}

// DefaultRules returns a fresh copy of the built-in tables.
func DefaultRules() Rules {
	return Rules{
		MaxLength: DefaultMaxLength,
		SpellingCorrections: []Replacement{
			{"健慷", "健康"}, {"咨洵", "咨询"}, {"营奍", "营养"},
			{"锻练", "锻炼"}, {"保建", "保健"}, {"药勿", "药物"},
		},
		MedicalTerms: []Replacement{
			{"心跳", "心率"}, {"血压高", "高血压"}, {"血糖高", "高血糖"},
			{"头疼", "头痛"}, {"拉肚子", "腹泻"}, {"感冒了", "感冒症状"},
			{"流鼻涕", "鼻溢"}, {"发烧", "发热"},
		},
		SensitiveWords: []string{
			"自杀", "自残", "暴力", "谋杀", "非法药物", "色情内容", "政治", "赌博",
			"诈骗", "恐怖主义", "极端主义", "仇恨言论", "种族歧视", "性别歧视", "宗教歧视",
			"网络暴力", "侵犯隐私", "泄露个人信息", "假药", "毒品",
		},
		CommandAliases: []Alias{
			{"参数", model.CommandParams},
			{"退出", model.CommandExit},
			{"清除", model.CommandClear},
			{"帮助", model.CommandHelp},
			{"保存", model.CommandSave},
			{"历史", model.CommandHistory},
			{"查看历史", model.CommandHistory},
		},
		CommandBlacklist: []string{
			"sudo", "rm", "del", "shutdown", "reboot", "format",
			"chmod", "chown", "cat", "echo", "wget", "curl",
			"|", "&", ";", "`", "$", ">", "<", "(", ")",
		},
		InjectionPatterns:    mustCompileAll(defaultInjectionPatterns),
		SQLInjectionPatterns: mustCompileAll(defaultSQLInjectionPatterns),
	}
}

// compilePattern compiles a case-insensitive pattern.
func compilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", p, err)
	}
	return re, nil
}

func mustCompileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			panic(err)
		}
		out = append(out, re)
	}
	return out
}

func (r Rules) maxLength() int {
	if r.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return r.MaxLength
}
