package harness

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/tools/go/analysis"

	"github.com/ethereum-optimism/rulebench/pkg/project"
	"github.com/ethereum-optimism/rulebench/pkg/refset"
)

func countingRule(calls *atomic.Int32) *analysis.Analyzer {
	return &analysis.Analyzer{
		Name: "noop",
		Doc:  "reports nothing",
		Run: func(*analysis.Pass) (interface{}, error) {
			calls.Add(1)
			return nil, nil
		},
	}
}

var fileStartRule = &analysis.Analyzer{
	Name: "filestart",
	Doc:  "reports at offset 0 of every file",
	Run: func(pass *analysis.Pass) (interface{}, error) {
		for _, f := range pass.Files {
			pass.Reportf(f.FileStart, "start")
		}
		return nil, nil
	},
}

func newHarness(t *testing.T, rule *analysis.Analyzer, fragments ...string) *Harness {
	t.Helper()
	h, err := New(rule, project.Go, fragments,
		WithReferences(refset.New(nil)), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return h
}

func TestNoopRule(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, countingRule(&calls), "package p\n\ntype C struct{}\n")

	result, err := h.Documents()
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Test0.go", result[0].Document.Name)
	assert.Empty(t, result[0].Diagnostics)
}

func TestMalformedFragment(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, countingRule(&calls), "package p\n\ntype C struct {\n", "package p\n\ntype D struct{}\n")

	result, err := h.Documents()
	require.NoError(t, err)
	require.Len(t, result, 2)

	first, ok := result.Document("Test0.go")
	require.True(t, ok)
	require.NotEmpty(t, first.Diagnostics)
	for _, d := range first.Diagnostics {
		assert.Equal(t, "/TestProject/Test0.go", d.Location.Filename)
	}

	second, ok := result.Document("Test1.go")
	require.True(t, ok)
	assert.Empty(t, second.Diagnostics)
}

func TestMalformedFragmentWithLineDirective(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, countingRule(&calls), "package p\n\n//line gen.y:10\nfunc f() {\n")

	result, err := h.Documents()
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int32(0), calls.Load())
	require.NotEmpty(t, result[0].Diagnostics)
	assert.Equal(t, "/TestProject/Test0.go", result[0].Diagnostics[0].Location.Filename)
}

func TestOneDiagnosticPerFragment(t *testing.T) {
	h := newHarness(t, fileStartRule, "package p\n", "package p\n\nvar x = 1\n")

	result, err := h.Documents()
	require.NoError(t, err)
	require.Len(t, result, 2)
	for i, dr := range result {
		assert.Equal(t, h.Project().Documents[i], dr.Document)
		require.Len(t, dr.Diagnostics, 1)
		assert.Equal(t, 0, dr.Diagnostics[0].Location.Offset)
	}
	assert.Len(t, result.All(), 2)
}

func TestZeroFragments(t *testing.T) {
	h := newHarness(t, fileStartRule)

	result, err := h.Documents()
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Empty(t, result.All())
}

func TestDocumentsIsCached(t *testing.T) {
	var calls atomic.Int32
	rule := countingRule(&calls)
	h := newHarness(t, rule, "package p\n")
	assert.Same(t, rule, h.Rule())

	first, err := h.Documents()
	require.NoError(t, err)
	second, err := h.Documents()
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, second, 1)
	assert.Same(t, &first[0], &second[0])
}

func TestDocumentsConcurrentFirstAccess(t *testing.T) {
	var calls atomic.Int32
	h := newHarness(t, countingRule(&calls), "package p\n", "package p\n")

	const callers = 16
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.Documents()
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Len(t, r, 2)
		assert.Same(t, &results[0][0], &r[0], "every caller must see the published result")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	_, err := h.Documents()
	require.NoError(t, err)
	assert.LessOrEqual(t, calls.Load(), int32(callers))
}

func TestDocumentsCachesErrors(t *testing.T) {
	var calls atomic.Int32
	rule := &analysis.Analyzer{
		Name: "failing",
		Doc:  "always fails",
		Run: func(*analysis.Pass) (interface{}, error) {
			calls.Add(1)
			return nil, errors.New("rule crashed")
		},
	}
	h := newHarness(t, rule, "package p\n")

	_, err1 := h.Documents()
	_, err2 := h.Documents()
	require.Error(t, err1)
	assert.Contains(t, err1.Error(), "rule crashed")
	assert.True(t, err1 == err2, "the first error must be returned again")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewUnknownLanguage(t *testing.T) {
	_, err := New(fileStartRule, project.Language("VisualBasic"), []string{"x"}, WithReferences(refset.New(nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, project.ErrUnknownLanguage))
}

func TestResultDocumentMissing(t *testing.T) {
	result := Analyze(t, fileStartRule, project.Go, []string{"package p\n"}, WithReferences(refset.New(nil)))
	_, ok := result.Document("Test9.go")
	assert.False(t, ok)
}

func TestAnalyzeWithDefaultReferences(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	result := Analyze(t, fileStartRule, project.Go, []string{
		"package p\n\nimport \"fmt\"\n\nfunc F() { fmt.Println(\"hi\") }\n",
		"package p\n\nimport \"strings\"\n\nvar _ = strings.ToUpper\n",
	}, WithLogger(zaptest.NewLogger(t)))

	require.Len(t, result, 2)
	for _, dr := range result {
		require.Len(t, dr.Diagnostics, 1)
		assert.Equal(t, "start", dr.Diagnostics[0].Message)
	}
}
