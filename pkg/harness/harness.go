// Package harness runs one analyzer over source fragments and returns its
// diagnostics per document.
//
//	h, err := harness.New(myanalyzer.Analyzer, project.Go, []string{src})
//	if err != nil {
//	    return err
//	}
//	result, err := h.Documents()
//
// The project is built when the Harness is created; analysis runs on the
// first call to Documents and its outcome is kept for later calls.
//
// When a fragment has syntax or type errors, the rule is not run unless it
// sets RunDespiteErrors; the result then holds only the compiler
// diagnostics. Check for runner.KindSyntax and runner.KindType entries
// before reading an empty rule result as a clean pass.
package harness

import (
	"context"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"

	"github.com/ethereum-optimism/rulebench/pkg/collate"
	"github.com/ethereum-optimism/rulebench/pkg/project"
	"github.com/ethereum-optimism/rulebench/pkg/refset"
	"github.com/ethereum-optimism/rulebench/pkg/runner"
)

// Result holds one entry per document, in fragment order.
type Result []collate.DocumentResult

// Document finds the result for a document by filename, e.g. "Test1.go".
func (r Result) Document(name string) (collate.DocumentResult, bool) {
	for _, dr := range r {
		if dr.Document.Name == name {
			return dr, true
		}
	}
	return collate.DocumentResult{}, false
}

// All returns every diagnostic, document by document.
func (r Result) All() []runner.Diagnostic {
	var all []runner.Diagnostic
	for _, dr := range r {
		all = append(all, dr.Diagnostics...)
	}
	return all
}

type outcome struct {
	result Result
	err    error
}

// Harness pairs one analyzer with one synthesized project.
type Harness struct {
	rule    *analysis.Analyzer
	project *project.Project
	logger  *zap.Logger
	ctx     context.Context

	outcome atomic.Pointer[outcome]
}

type config struct {
	logger *zap.Logger
	refs   *refset.Set
	ctx    context.Context
}

type Option func(*config)

// WithLogger sets the logger for building and analysis
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithReferences compiles against refs instead of refset.Default()
func WithReferences(refs *refset.Set) Option {
	return func(c *config) {
		c.refs = refs
	}
}

// WithContext lets a caller interrupt analysis between analyzer actions
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// New builds the project for fragments. An unknown language or a failure
// to load the default references is returned here.
func New(rule *analysis.Analyzer, lang project.Language, fragments []string, opts ...Option) (*Harness, error) {
	c := &config{logger: zap.NewNop(), ctx: context.Background()}
	for _, opt := range opts {
		opt(c)
	}

	buildOpts := []project.Option{project.WithLogger(c.logger)}
	if c.refs != nil {
		buildOpts = append(buildOpts, project.WithReferences(c.refs))
	}
	p, err := project.Build(lang, fragments, buildOpts...)
	if err != nil {
		return nil, err
	}

	return &Harness{
		rule:    rule,
		project: p,
		logger:  c.logger,
		ctx:     c.ctx,
	}, nil
}

// Rule returns the analyzer under test.
func (h *Harness) Rule() *analysis.Analyzer { return h.rule }

// Project returns the synthesized project.
func (h *Harness) Project() *project.Project { return h.project }

// Documents runs the analysis on first use and returns the same outcome on
// every call after. When several goroutines race on the first call, each
// may compute, but only the first published outcome is ever returned.
func (h *Harness) Documents() (Result, error) {
	if o := h.outcome.Load(); o != nil {
		return o.result, o.err
	}

	o := &outcome{}
	diags, err := runner.Run(h.rule, h.project, runner.WithContext(h.ctx), runner.WithLogger(h.logger))
	if err != nil {
		o.err = err
	} else {
		o.result = collate.Collate(diags, h.project)
	}

	if !h.outcome.CompareAndSwap(nil, o) {
		h.logger.Debug("discarding duplicate analysis result", zap.Stringer("project", h.project.ID))
		o = h.outcome.Load()
	}
	return o.result, o.err
}

// Analyze is the test helper form of New followed by Documents. It fails
// tb on any error.
func Analyze(tb testing.TB, rule *analysis.Analyzer, lang project.Language, fragments []string, opts ...Option) Result {
	tb.Helper()
	h, err := New(rule, lang, fragments, opts...)
	if err != nil {
		tb.Fatalf("building project: %+v", err)
	}
	result, err := h.Documents()
	if err != nil {
		tb.Fatalf("analyzing project: %+v", err)
	}
	return result
}
