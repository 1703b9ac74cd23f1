// Package runner compiles a synthesized project and runs a single analyzer
// over it, returning every diagnostic the pass produced.
package runner

import (
	"context"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"reflect"
	"runtime"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/analysis"

	"github.com/ethereum-optimism/rulebench/pkg/project"
)

// PackagePath is the import path the project's Go files are checked as.
const PackagePath = "testproject"

type options struct {
	ctx    context.Context
	logger *zap.Logger
}

type Option func(*options)

// WithContext stops the run between analyzer actions once ctx is done
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithLogger sets the logger used during the run
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// unit is one compiled project plus the state of the analysis over it.
type unit struct {
	opts    options
	project *project.Project
	root    *analysis.Analyzer
	fset    *token.FileSet

	files      []*ast.File
	otherFiles []string
	pkg        *types.Package
	info       *types.Info
	typeErrors []types.Error

	diagnostics []Diagnostic
	facts       *factStore
	actions     map[*analysis.Analyzer]*action
}

type action struct {
	result interface{}
	err    error
}

// Run compiles p against its references, runs rule and its prerequisites,
// and returns syntax, type and rule diagnostics in emission order. Only the
// rule's own diagnostics are reported. An error from any analyzer aborts
// the run without partial results.
func Run(rule *analysis.Analyzer, p *project.Project, opts ...Option) ([]Diagnostic, error) {
	o := options{ctx: context.Background(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if rule == nil {
		return nil, errors.New("no analyzer given")
	}
	if err := analysis.Validate([]*analysis.Analyzer{rule}); err != nil {
		return nil, errors.Wrap(err, "invalid analyzer")
	}
	if p == nil || p.References == nil {
		return nil, errors.New("project has no references attached")
	}

	u := &unit{
		opts:    o,
		project: p,
		root:    rule,
		fset:    newFileSet(p.References.Base()),
		facts:   newFactStore(),
		actions: make(map[*analysis.Analyzer]*action),
	}

	if err := u.compile(); err != nil {
		return nil, err
	}

	compileErrors := len(u.diagnostics)
	o.logger.Debug("compiled project",
		zap.Stringer("project", p.ID),
		zap.Int("files", len(u.files)),
		zap.Int("other_files", len(u.otherFiles)),
		zap.Int("compile_errors", compileErrors))

	if compileErrors > 0 && !rule.RunDespiteErrors {
		o.logger.Debug("analysis skipped due to compile errors", zap.String("analyzer", rule.Name))
		return u.diagnostics, nil
	}

	if _, err := u.exec(rule); err != nil {
		return nil, err
	}

	o.logger.Debug("analysis complete",
		zap.String("analyzer", rule.Name),
		zap.Int("diagnostics", len(u.diagnostics)-compileErrors))

	return u.diagnostics, nil
}

// newFileSet returns a FileSet whose positions start at or after base, so
// they never collide with positions of the reference packages.
func newFileSet(base int) *token.FileSet {
	fset := token.NewFileSet()
	if gap := base - fset.Base(); gap > 0 {
		fset.AddFile("", -1, gap)
	}
	return fset
}

func (u *unit) compile() error {
	switch u.project.Language {
	case project.Go:
		if err := u.parse(); err != nil {
			return err
		}
		u.check()
	case project.Assembly:
		for _, doc := range u.project.Documents {
			tf := u.fset.AddFile(doc.Path, -1, len(doc.Text))
			tf.SetLinesForContent([]byte(doc.Text))
			u.otherFiles = append(u.otherFiles, doc.Path)
		}
		u.check()
	default:
		return errors.Wrapf(project.ErrUnknownLanguage, "%q", u.project.Language.String())
	}
	return nil
}

func (u *unit) parse() error {
	docs := u.project.Documents
	files := make([]*ast.File, len(docs))
	syntax := make([][]Diagnostic, len(docs))

	var g errgroup.Group
	for i, doc := range docs {
		g.Go(func() error {
			f, err := parser.ParseFile(u.fset, doc.Path, doc.Text, parser.AllErrors|parser.ParseComments)
			files[i] = f
			if err == nil {
				return nil
			}
			var list scanner.ErrorList
			if !errors.As(err, &list) {
				return errors.Wrapf(err, "parse %s", doc.Name)
			}
			for _, e := range list {
				syntax[i] = append(syntax[i], Diagnostic{
					Kind:     KindSyntax,
					Message:  e.Msg,
					Location: u.syntaxLocation(f, e.Pos),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range docs {
		if files[i] != nil {
			u.files = append(u.files, files[i])
		}
		u.diagnostics = append(u.diagnostics, syntax[i]...)
	}
	return nil
}

func (u *unit) check() {
	u.info = &types.Info{
		Types:        make(map[ast.Expr]types.TypeAndValue),
		Instances:    make(map[*ast.Ident]types.Instance),
		Defs:         make(map[*ast.Ident]types.Object),
		Uses:         make(map[*ast.Ident]types.Object),
		Implicits:    make(map[ast.Node]types.Object),
		Selections:   make(map[*ast.SelectorExpr]*types.Selection),
		Scopes:       make(map[ast.Node]*types.Scope),
		FileVersions: make(map[*ast.File]string),
	}
	conf := &types.Config{
		Importer: u.project.References.Importer(),
		Sizes:    types.SizesFor("gc", runtime.GOARCH),
		Error: func(err error) {
			d := Diagnostic{Kind: KindType, Message: err.Error()}
			var terr types.Error
			if errors.As(err, &terr) {
				u.typeErrors = append(u.typeErrors, terr)
				d.Message = terr.Msg
				d.Location = u.location(terr.Pos, token.NoPos)
			}
			u.diagnostics = append(u.diagnostics, d)
		},
	}
	// Errors are collected through conf.Error; Check always returns a package.
	u.pkg, _ = conf.Check(PackagePath, u.fset, u.files, u.info)
}

// exec runs a once per unit, prerequisites first, on the calling goroutine.
func (u *unit) exec(a *analysis.Analyzer) (interface{}, error) {
	if act, ok := u.actions[a]; ok {
		return act.result, act.err
	}
	act := &action{}
	u.actions[a] = act

	if err := u.opts.ctx.Err(); err != nil {
		act.err = errors.Wrapf(err, "analysis of %s interrupted", a.Name)
		return nil, act.err
	}

	resultOf := make(map[*analysis.Analyzer]interface{}, len(a.Requires))
	for _, req := range a.Requires {
		res, err := u.exec(req)
		if err != nil {
			act.err = errors.Wrapf(err, "prerequisite of %s", a.Name)
			return nil, act.err
		}
		resultOf[req] = res
	}

	pass := &analysis.Pass{
		Analyzer:   a,
		Fset:       u.fset,
		Files:      u.files,
		OtherFiles: u.otherFiles,
		Pkg:        u.pkg,
		TypesInfo:  u.info,
		TypesSizes: types.SizesFor("gc", runtime.GOARCH),
		TypeErrors: u.typeErrors,
		ResultOf:   resultOf,
		ReadFile:   u.project.ReadFile,
		Report: func(d analysis.Diagnostic) {
			if a == u.root {
				u.report(a, d)
			}
		},
	}
	u.facts.bind(pass)

	u.opts.logger.Debug("running analyzer", zap.String("analyzer", a.Name))
	result, err := a.Run(pass)
	if err != nil {
		act.err = errors.Wrapf(err, "analyzer %s failed", a.Name)
		return nil, act.err
	}
	if got, want := reflect.TypeOf(result), a.ResultType; got != want {
		act.err = errors.Newf("analyzer %s returned a result of type %v, but declared ResultType %v", a.Name, got, want)
		return nil, act.err
	}

	act.result = result
	return result, nil
}

func (u *unit) report(a *analysis.Analyzer, d analysis.Diagnostic) {
	u.diagnostics = append(u.diagnostics, Diagnostic{
		Kind:           KindAnalyzer,
		Analyzer:       a.Name,
		Category:       d.Category,
		Message:        d.Message,
		URL:            d.URL,
		Location:       u.location(d.Pos, d.End),
		Related:        d.Related,
		SuggestedFixes: d.SuggestedFixes,
	})
}

// location resolves pos against the unit's FileSet. Positions outside the
// project's documents have no location.
func (u *unit) location(pos, end token.Pos) *Location {
	if !pos.IsValid() {
		return nil
	}
	tf := u.fset.File(pos)
	if tf == nil {
		return nil
	}
	if _, ok := u.project.Document(tf.Name()); !ok {
		return nil
	}
	position := tf.PositionFor(pos, false)
	loc := &Location{
		Filename: tf.Name(),
		Offset:   position.Offset,
		End:      position.Offset,
		Line:     position.Line,
		Column:   position.Column,
	}
	if end.IsValid() && end > pos && int(end) <= tf.Base()+tf.Size() {
		loc.End = tf.Offset(end)
	}
	return loc
}

// syntaxLocation resolves a parser error by its byte offset. The error's
// filename and line follow //line directives; the offset does not.
func (u *unit) syntaxLocation(f *ast.File, pos token.Position) *Location {
	if f == nil {
		return nil
	}
	tf := u.fset.File(f.FileStart)
	if tf == nil || pos.Offset < 0 || pos.Offset > tf.Size() {
		return nil
	}
	return u.location(tf.Pos(pos.Offset), token.NoPos)
}
