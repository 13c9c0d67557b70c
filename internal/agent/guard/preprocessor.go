package guard

import (
	"strings"
	"unicode/utf8"
)

const (
	msgTooLong       = "输入过长（%d字符），请控制在%d字符内"
	msgSensitive     = "您的问题包含不适当内容，请重新表述"
	msgDangerousCmd  = "检测到潜在危险命令 '%s'，已阻止执行"
	msgCodeInjection = "检测到潜在代码注入模式，已阻止执行"
	msgSQLInjection  = "检测到SQL注入尝试，已阻止执行"
	msgSensitiveWord = "输入包含敏感词'%s'"
)

// Preprocessor applies the rule tables to raw input in a fixed order and
// stops at the first rejection. It holds no mutable state.
type Preprocessor struct {
	rules Rules
}

func NewPreprocessor(rules Rules) *Preprocessor {
	return &Preprocessor{rules: rules}
}

// Preprocess cleans raw and screens it:
// whitespace → length → explicit command → alias → spelling → medical terms →
// sensitive words → command blacklist → code injection → SQL injection.
func (p *Preprocessor) Preprocess(raw string) Result {
	processed := strings.Join(strings.Fields(raw), " ")

	max := p.rules.maxLength()
	if n := utf8.RuneCountInString(processed); n > max {
		return reject(CategoryInputError, "", msgTooLong, n, max)
	}

	if strings.HasPrefix(processed, "/") {
		return clean(processed)
	}

	for _, a := range p.rules.CommandAliases {
		if processed == a.Word {
			return clean(string(a.Command))
		}
	}

	processed = applyReplacements(processed, p.rules.SpellingCorrections)
	processed = applyReplacements(processed, p.rules.MedicalTerms)

	if w, ok := containsAny(processed, p.rules.SensitiveWords); ok {
		return reject(CategorySensitive, w, msgSensitive)
	}

	lower := strings.ToLower(processed)
	if cmd, ok := containsAny(lower, p.rules.CommandBlacklist); ok {
		return reject(CategorySecurity, cmd, msgDangerousCmd, cmd)
	}

	for _, re := range p.rules.InjectionPatterns {
		if re.MatchString(processed) {
			return reject(CategorySecurity, re.String(), msgCodeInjection)
		}
	}

	for _, re := range p.rules.SQLInjectionPatterns {
		if re.MatchString(processed) {
			return reject(CategorySecurity, re.String(), msgSQLInjection)
		}
	}

	return clean(processed)
}

func applyReplacements(s string, table []Replacement) string {
	for _, r := range table {
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	return s
}

// containsAny returns the first word of list contained in s.
func containsAny(s string, list []string) (string, bool) {
	for _, w := range list {
		if w != "" && strings.Contains(s, w) {
			return w, true
		}
	}
	return "", false
}
