package analyzer_test

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ethereum-optimism/rulebench/pkg/analyzer"
	"github.com/ethereum-optimism/rulebench/pkg/harness"
	"github.com/ethereum-optimism/rulebench/pkg/project"
	"github.com/ethereum-optimism/rulebench/pkg/refset"
)

func embedRefs() *refset.Set {
	embed := types.NewPackage("embed", "embed")
	embed.MarkComplete()
	return refset.New(nil, embed)
}

func TestAnalyzer(t *testing.T) {
	result := harness.Analyze(t, analyzer.Analyzer, project.Go, []string{
		"package p\n\nimport _ \"embed\"\n\n//go:embed Test1.go\nvar content string\n\n//go:embed *.txt\nvar files string\n",
		"package p\n",
	}, harness.WithReferences(embedRefs()), harness.WithLogger(zaptest.NewLogger(t)))

	require.Len(t, result, 2)

	var messages []string
	for _, d := range result[0].Diagnostics {
		messages = append(messages, d.Message)
	}
	assert.Equal(t, []string{
		`embed directive for pattern "Test1.go"`,
		`embed directive for pattern "*.txt"`,
		`embed pattern "*.txt" matches no files`,
	}, messages)
	assert.Equal(t, result[0].Diagnostics[1].Location.Offset, result[0].Diagnostics[2].Location.Offset)
	assert.Less(t, result[0].Diagnostics[0].Location.Offset, result[0].Diagnostics[1].Location.Offset)
	assert.Empty(t, result[1].Diagnostics)
}

func TestAnalyzerGlobAcrossDocuments(t *testing.T) {
	result := harness.Analyze(t, analyzer.Analyzer, project.Go, []string{
		"package p\n",
		"package p\n\n//go:embed Test*.go\nvar src string\n",
		"package p\n",
	}, harness.WithReferences(embedRefs()))

	require.Len(t, result, 3)
	require.Len(t, result[1].Diagnostics, 1)
	assert.Equal(t, `embed directive for pattern "Test*.go"`, result[1].Diagnostics[0].Message)
	assert.Equal(t, 3, result[1].Diagnostics[0].Location.Line)
}

func TestAnalyzerEmptyDirective(t *testing.T) {
	result := harness.Analyze(t, analyzer.Analyzer, project.Go, []string{
		"package p\n\n//go:embed\nvar s string\n",
	}, harness.WithReferences(embedRefs()))

	require.Len(t, result, 1)
	require.Len(t, result[0].Diagnostics, 1)
	assert.Equal(t, "embed directive without patterns", result[0].Diagnostics[0].Message)
}
