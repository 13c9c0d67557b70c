package guard

import "fmt"

// Category is the class of a rejected input.
type Category string

const (
	CategoryInputError Category = "输入错误"
	CategorySensitive  Category = "敏感内容过滤"
	CategorySecurity   Category = "安全防护"
)

// Categories lists every rejection category, in tag-matching order.
var Categories = []Category{CategoryInputError, CategorySensitive, CategorySecurity}

// Escalates reports whether the category counts as a security event for the session.
func (c Category) Escalates() bool {
	return c == CategorySecurity || c == CategorySensitive
}

// Rejection explains why the preprocessor refused an input.
type Rejection struct {
	Category Category
	Message  string
	// Token is the blacklist entry or sensitive word that matched, when known.
	Token string
}

// Result is the outcome of Preprocess: clean text or a rejection, never both.
type Result struct {
	Text      string
	Rejection *Rejection
}

func clean(text string) Result {
	return Result{Text: text}
}

func reject(category Category, token, format string, args ...any) Result {
	return Result{Rejection: &Rejection{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Token:    token,
	}}
}

// Rejected reports whether the input was refused.
func (r Result) Rejected() bool {
	return r.Rejection != nil
}

// String renders the result as a tagged string: `[<category>] <message>` for
// rejections, the clean text otherwise.
func (r Result) String() string {
	if r.Rejection == nil {
		return r.Text
	}
	return fmt.Sprintf("[%s] %s", r.Rejection.Category, r.Rejection.Message)
}
