// Package codereview provides a rule-based code review workflow built from eight nodes.
//
// The nodes read the submitted source from the "code" key and enrich the state
// with metrics, warnings and a quality score. The final node approves the
// review once "quality_score" reaches "quality_threshold" (default 0.8), and
// otherwise sends the run back to the suggestion step for at most
// "max_review_rounds" rounds (default 3).
package codereview
