// Package analyzer holds embeddirective, the sample rule rulebench uses to
// exercise itself.
package analyzer

import (
	"go/ast"
	"path"
	"reflect"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Result holds the package files matched by //go:embed patterns
type Result struct {
	Files map[string]struct{}
}

var Analyzer = &analysis.Analyzer{
	Name: "embeddirective",
	Doc:  "reports //go:embed directives and patterns that match no package file",
	Run:  run,
	Requires: []*analysis.Analyzer{
		inspect.Analyzer,
	},
	ResultType: reflect.TypeOf((*Result)(nil)),
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspectResult := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	result := &Result{
		Files: make(map[string]struct{}),
	}
	candidates := packageFiles(pass)

	nodeFilter := []ast.Node{
		(*ast.GenDecl)(nil),
	}

	inspectResult.Preorder(nodeFilter, func(n ast.Node) {
		genDecl := n.(*ast.GenDecl)
		if genDecl.Doc == nil {
			return
		}

		for _, comment := range genDecl.Doc.List {
			text := strings.TrimSpace(comment.Text)
			if !strings.HasPrefix(text, "//go:embed") {
				continue
			}

			patterns := strings.Fields(strings.TrimPrefix(text, "//go:embed"))
			if len(patterns) == 0 {
				pass.Reportf(comment.Pos(), "embed directive without patterns")
				continue
			}

			// Patterns are relative to the directory of the declaring file
			dir := path.Dir(pass.Fset.Position(genDecl.Pos()).Filename)
			for _, pattern := range patterns {
				pass.Reportf(comment.Pos(), "embed directive for pattern %q", pattern)

				matched := false
				for _, file := range candidates {
					if ok, err := path.Match(path.Join(dir, pattern), file); err == nil && ok {
						result.Files[file] = struct{}{}
						matched = true
					}
				}
				if !matched {
					pass.Reportf(comment.Pos(), "embed pattern %q matches no files", pattern)
				}
			}
		}
	})

	return result, nil
}

func packageFiles(pass *analysis.Pass) []string {
	var files []string
	for _, f := range pass.Files {
		files = append(files, pass.Fset.Position(f.Package).Filename)
	}
	files = append(files, pass.OtherFiles...)
	files = append(files, pass.IgnoredFiles...)
	return files
}
