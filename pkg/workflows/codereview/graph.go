package codereview

import (
	"context"
	"errors"

	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/dsl"
)

// DefaultGraphID is the ID under which Install stores the review graph.
const DefaultGraphID = "code-review"

// Node names.
const (
	NodeExtractFunctions    = "extract_functions"
	NodeCheckComplexity     = "check_complexity"
	NodeStyleCheck          = "style_check"
	NodeCommentQuality      = "comment_quality"
	NodeDocstringCheck      = "docstring_check"
	NodeDetectIssues        = "detect_issues"
	NodeSuggestImprovements = "suggest_improvements"
	NodeQualityCheck        = "quality_check"
)

// Nodes returns the review nodes in pipeline order.
func Nodes() []string {
	return []string{
		NodeExtractFunctions,
		NodeCheckComplexity,
		NodeStyleCheck,
		NodeCommentQuality,
		NodeDocstringCheck,
		NodeDetectIssues,
		NodeSuggestImprovements,
		NodeQualityCheck,
	}
}

// Registrar is the subset of a node registry used to install the workflow.
type Registrar = dsl.Registrar

// Pipeline declares the review graph: the nodes chained in order by static
// edges. quality_check has no edge: it steers the run with control keys.
func Pipeline() *dsl.Builder {
	b := dsl.New(DefaultGraphID)
	b.Add(NodeExtractFunctions).Do(ExtractFunctions).
		Then(NodeCheckComplexity).Do(CheckComplexity).
		Then(NodeStyleCheck).Do(StyleCheck).
		Then(NodeCommentQuality).Do(CommentQuality).
		Then(NodeDocstringCheck).Do(DocstringCheck).
		Then(NodeDetectIssues).Do(DetectIssues).
		Then(NodeSuggestImprovements).Do(SuggestImprovements).
		Then(NodeQualityCheck).Do(QualityCheck).
		Terminal()
	return b
}

// Register adds the eight review nodes to r.
func Register(r Registrar) error {
	return Pipeline().Register(r)
}

// DefaultGraphSpec returns the review graph definition.
func DefaultGraphSpec() domain.GraphSpec {
	spec, err := Pipeline().Spec()
	if err != nil {
		panic(err)
	}
	return spec
}

// Installer registers nodes and stores graphs, as the engine does.
type Installer = dsl.Installer

// Install registers the nodes and stores the default graph, returning its ID.
// An already stored default graph is not an error, so replicas sharing a
// store can all call Install.
func Install(ctx context.Context, eng Installer) (string, error) {
	id, err := Pipeline().Install(ctx, eng)
	if errors.Is(err, domain.ErrGraphExists) {
		return DefaultGraphID, nil
	}
	return id, err
}
