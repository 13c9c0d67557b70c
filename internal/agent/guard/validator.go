package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation is the verdict on a preprocessed input. Invalid verdicts always
// carry a category and a message; valid ones carry neither.
type Validation struct {
	Valid    bool
	Category Category
	Message  string
}

func valid() Validation {
	return Validation{Valid: true}
}

func invalid(category Category, message string) Validation {
	return Validation{Category: category, Message: message}
}

// Validator classifies preprocessed text. It re-checks sensitive words and
// length so text produced outside the Preprocessor is screened too.
type Validator struct {
	rules Rules
}

func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Check classifies a Preprocessor result without parsing its tagged form.
func (v *Validator) Check(r Result) Validation {
	if r.Rejection != nil {
		msg := r.Rejection.Message
		if msg == "" {
			msg = string(r.Rejection.Category)
		}
		return invalid(r.Rejection.Category, msg)
	}
	return v.Validate(r.Text)
}

// Validate classifies text, which may be a tagged string `[<category>] <message>`.
func (v *Validator) Validate(text string) Validation {
	for _, c := range Categories {
		if strings.HasPrefix(text, "["+string(c)+"]") {
			msg := text
			if _, after, ok := strings.Cut(text, "] "); ok && after != "" {
				msg = after
			}
			return invalid(c, msg)
		}
	}

	if w, ok := containsAny(text, v.rules.SensitiveWords); ok {
		return invalid(CategorySensitive, fmt.Sprintf(msgSensitiveWord, w))
	}

	max := v.rules.maxLength()
	if n := utf8.RuneCountInString(text); n > max {
		return invalid(CategoryInputError, fmt.Sprintf(msgTooLong, n, max))
	}

	return valid()
}
