package codereview

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Review defaults, overridable through the state.
const (
	DefaultQualityThreshold = 0.8
	DefaultMaxReviewRounds  = 3
	MaxLineLength           = 79
)

// view is the typed projection of the state the nodes read.
type view struct {
	Code              string   `state:"code"`
	Functions         []string `state:"functions"`
	AvgComplexity     float64  `state:"avg_complexity"`
	StyleWarnings     []string `state:"style_warnings"`
	CommentFeedback   []string `state:"comment_feedback"`
	MissingDocstrings []string `state:"missing_docstrings"`
	Issues            []string `state:"issues"`
	QualityScore      float64  `state:"quality_score"`
	QualityThreshold  *float64 `state:"quality_threshold"`
	MaxReviewRounds   *int     `state:"max_review_rounds"`
	ReviewRounds      int      `state:"review_rounds"`
}

func decode(state domain.State) (view, error) {
	var v view
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "state",
		WeaklyTypedInput: true,
		Result:           &v,
	})
	if err != nil {
		return v, err
	}
	if err := dec.Decode(map[string]any(state)); err != nil {
		return v, fmt.Errorf("invalid review state: %w", err)
	}
	return v, nil
}

func splitLines(code string) []string {
	if code == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(code, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ExtractFunctions splits the code into function blocks, each starting at a
// "def " line and running until the next one.
func ExtractFunctions(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	var (
		functions []string
		current   []string
		inside    bool
	)
	for _, line := range splitLines(v.Code) {
		if strings.HasPrefix(strings.TrimSpace(line), "def ") {
			if len(current) > 0 {
				functions = append(functions, strings.Join(current, "\n"))
				current = nil
			}
			inside = true
		}
		if inside {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		functions = append(functions, strings.Join(current, "\n"))
	}
	if functions == nil {
		functions = []string{}
	}

	state.Set("functions", functions)
	state.Set("function_count", len(functions))
	return state, nil
}

// CheckComplexity measures each function by its line count.
func CheckComplexity(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	complexities := make([]int, 0, len(v.Functions))
	total := 0
	for _, fn := range v.Functions {
		n := strings.Count(fn, "\n") + 1
		complexities = append(complexities, n)
		total += n
	}

	avg := 0.0
	if len(complexities) > 0 {
		avg = float64(total) / float64(len(complexities))
	}

	state.Set("complexities", complexities)
	state.Set("avg_complexity", avg)
	return state, nil
}

// StyleCheck counts long lines, tab indentation and trailing whitespace.
func StyleCheck(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	var long, tabs, trailing int
	for _, line := range splitLines(v.Code) {
		if utf8.RuneCountInString(line) > MaxLineLength {
			long++
		}
		if strings.Contains(line, "\t") {
			tabs++
		}
		if strings.TrimRightFunc(line, unicode.IsSpace) != line {
			trailing++
		}
	}

	warnings := []string{}
	if long > 0 {
		warnings = append(warnings, fmt.Sprintf("%d lines are longer than %d characters.", long, MaxLineLength))
	}
	if tabs > 0 {
		warnings = append(warnings, fmt.Sprintf("%d lines use tabs instead of spaces.", tabs))
	}
	if trailing > 0 {
		warnings = append(warnings, fmt.Sprintf("%d lines have trailing spaces.", trailing))
	}

	state.Set("style_warnings", warnings)
	state.Set("style_warning_count", len(warnings))
	return state, nil
}

// CommentQuality computes the ratio of "#" comment lines to code lines.
func CommentQuality(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	var comments, code int
	for _, line := range splitLines(v.Code) {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#"):
			comments++
		default:
			code++
		}
	}

	ratio := 0.0
	if code > 0 {
		ratio = float64(comments) / float64(code)
	}

	feedback := []string{}
	if code > 0 {
		switch {
		case ratio < 0.05:
			feedback = append(feedback, "Very few comments relative to code; consider explaining complex logic.")
		case ratio > 0.4:
			feedback = append(feedback, "A lot of comments; make sure they add value and are up to date.")
		}
	}

	state.Set("comment_lines", comments)
	state.Set("code_lines", code)
	state.Set("comment_ratio", ratio)
	state.Set("comment_feedback", feedback)
	return state, nil
}

// DocstringCheck lists functions without a triple-quoted string in the three
// lines after their header.
func DocstringCheck(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	missing := []string{}
	for _, fn := range v.Functions {
		lines := strings.Split(fn, "\n")
		if len(lines) == 0 {
			continue
		}

		if !hasDocstring(lines[1:min(len(lines), 4)]) {
			missing = append(missing, functionName(lines[0]))
		}
	}

	state.Set("missing_docstrings", missing)
	return state, nil
}

func hasDocstring(lines []string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, `'''`) {
			return true
		}
	}
	return false
}

func functionName(header string) string {
	name := strings.TrimPrefix(strings.TrimSpace(header), "def ")
	name, _, _ = strings.Cut(name, "(")
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

// issueRules maps a code fragment to the issue it reports and the suggestion that fixes it.
var issueRules = []struct {
	fragments  []string
	issue      string
	suggestion string
}{
	{[]string{"print("}, "Uses print() statements; consider logging instead.", "Replace print() with a configurable logger."},
	{[]string{"TODO"}, "Contains TODO comments; consider resolving them.", "Resolve TODOs or convert them into tracked tickets."},
	{[]string{"global "}, "Uses global variables; this can reduce code clarity.", "Avoid global variables; pass data as parameters instead."},
	{[]string{"except:", "except Exception:"}, "Catches broad exceptions; consider catching specific ones.", "Catch specific exception types instead of broad ones."},
}

// DetectIssues flags common smells found by substring rules.
func DetectIssues(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	issues := []string{}
	for _, rule := range issueRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(v.Code, fragment) {
				issues = append(issues, rule.issue)
				break
			}
		}
	}

	state.Set("issues", issues)
	state.Set("issue_count", len(issues))
	return state, nil
}

// SuggestImprovements turns the findings into suggestions and a quality score in [0, 1].
func SuggestImprovements(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	suggestions := []string{}
	score := 1.0
	score -= 0.07 * float64(len(v.Issues))
	score -= 0.03 * float64(len(v.StyleWarnings))
	score -= 0.02 * float64(len(v.MissingDocstrings))

	switch {
	case v.AvgComplexity > 30:
		score -= 0.3
		suggestions = append(suggestions, "Functions are quite long; consider splitting them into smaller ones.")
	case v.AvgComplexity > 15:
		score -= 0.15
		suggestions = append(suggestions, "Average function length is moderate; consider refactoring large ones.")
	}

	for _, rule := range issueRules {
		for _, issue := range v.Issues {
			if issue == rule.issue {
				suggestions = append(suggestions, rule.suggestion)
				break
			}
		}
	}

	suggestions = append(suggestions, v.StyleWarnings...)
	suggestions = append(suggestions, v.CommentFeedback...)
	if len(v.MissingDocstrings) > 0 {
		suggestions = append(suggestions,
			fmt.Sprintf("Add docstrings for functions: %s.", strings.Join(v.MissingDocstrings, ", ")))
	}

	state.Set("suggestions", suggestions)
	state.Set("quality_score", math.Max(0, math.Min(1, score)))
	return state, nil
}

// QualityCheck approves the review and stops once the score reaches the
// threshold. Otherwise it loops back to suggest_improvements until the round
// budget is spent, then stops unapproved.
func QualityCheck(ctx context.Context, state domain.State) (domain.State, error) {
	v, err := decode(state)
	if err != nil {
		return nil, err
	}

	threshold := DefaultQualityThreshold
	if v.QualityThreshold != nil {
		threshold = *v.QualityThreshold
	}
	maxRounds := DefaultMaxReviewRounds
	if v.MaxReviewRounds != nil {
		maxRounds = *v.MaxReviewRounds
	}

	rounds := v.ReviewRounds + 1
	state.Set("review_rounds", rounds)

	if v.QualityScore >= threshold {
		state.Set("approved", true)
		state.Halt()
		return state, nil
	}

	state.Set("approved", false)
	if rounds >= maxRounds {
		state.Halt()
		return state, nil
	}
	state.GoTo(NodeSuggestImprovements)
	return state, nil
}
