package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/HealthAssistant-core/server/internal/agent/model"
)

// RulesFile is the YAML shape of a rule override file. Every section is
// optional and merged on top of DefaultRules.
type RulesFile struct {
	MaxLength            int           `yaml:"max_length"`
	SpellingCorrections  []Replacement `yaml:"spelling_corrections"`
	MedicalTerms         []Replacement `yaml:"medical_terms"`
	SensitiveWords       []string      `yaml:"sensitive_words"`
	CommandAliases       []Alias       `yaml:"command_aliases"`
	CommandBlacklist     []string      `yaml:"command_blacklist"`
	InjectionPatterns    []string      `yaml:"injection_patterns"`
	SQLInjectionPatterns []string      `yaml:"sql_injection_patterns"`
}

// LoadRules reads path and merges it over the defaults. An empty path
// returns DefaultRules with maxLength applied.
func LoadRules(path string, maxLength int) (Rules, error) {
	rules := DefaultRules()
	if maxLength > 0 {
		rules.MaxLength = maxLength
	}
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}

	if err := rules.Merge(file); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Merge applies f to r: replacements with an existing key are updated in
// place, new ones are appended; list entries are appended once.
func (r *Rules) Merge(f RulesFile) error {
	if f.MaxLength > 0 {
		r.MaxLength = f.MaxLength
	}
	r.SpellingCorrections = mergeReplacements(r.SpellingCorrections, f.SpellingCorrections)
	r.MedicalTerms = mergeReplacements(r.MedicalTerms, f.MedicalTerms)
	r.SensitiveWords = appendUnique(r.SensitiveWords, f.SensitiveWords)
	r.CommandBlacklist = appendUnique(r.CommandBlacklist, lowerAll(f.CommandBlacklist))

	for _, a := range f.CommandAliases {
		if a.Word == "" {
			continue
		}
		if !strings.HasPrefix(string(a.Command), "/") {
			return fmt.Errorf("alias %q: command %q must start with /", a.Word, a.Command)
		}
		a.Command = model.Command(strings.ToLower(string(a.Command)))
		replaced := false
		for i := range r.CommandAliases {
			if r.CommandAliases[i].Word == a.Word {
				r.CommandAliases[i].Command = a.Command
				replaced = true
				break
			}
		}
		if !replaced {
			r.CommandAliases = append(r.CommandAliases, a)
		}
	}

	for _, p := range f.InjectionPatterns {
		re, err := compilePattern(p)
		if err != nil {
			return err
		}
		r.InjectionPatterns = append(r.InjectionPatterns, re)
	}
	for _, p := range f.SQLInjectionPatterns {
		re, err := compilePattern(p)
		if err != nil {
			return err
		}
		r.SQLInjectionPatterns = append(r.SQLInjectionPatterns, re)
	}
	return nil
}

func mergeReplacements(base, extra []Replacement) []Replacement {
	for _, e := range extra {
		if e.From == "" {
			continue
		}
		found := false
		for i := range base {
			if base[i].From == e.From {
				base[i].To = e.To
				found = true
				break
			}
		}
		if !found {
			base = append(base, e)
		}
	}
	return base
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		base = append(base, s)
	}
	return base
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
