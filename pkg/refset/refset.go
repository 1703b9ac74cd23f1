// Package refset holds the fixed set of compiled packages that synthesized
// projects may import. The set is loaded from export data once per process
// and shared read-only by every harness.
package refset

import (
	"bufio"
	"context"
	"go/token"
	"go/types"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"golang.org/x/tools/go/gcexportdata"

	"github.com/ethereum-optimism/rulebench/pkg/pkglist"
)

// DefaultPaths are the packages every synthesized project can import: the
// core runtime, the common standard library, the analysis library and the
// packages analyzers use to describe syntax and types.
var DefaultPaths = []string{
	"runtime",
	"unsafe",
	"errors",
	"fmt",
	"strings",
	"strconv",
	"sort",
	"context",
	"io",
	"os",
	"sync",
	"time",
	"bytes",
	"embed",
	"go/ast",
	"go/token",
	"go/types",
	"golang.org/x/tools/go/analysis",
}

// ErrNotReferenced is returned by the importer for paths outside the set.
var ErrNotReferenced = errors.New("package is not in the reference set")

// Set is an ordered, deduplicated collection of type-checked packages.
type Set struct {
	fset  *token.FileSet
	paths []string
	pkgs  map[string]*types.Package
}

// New builds a Set from packages that were already type-checked against fset.
func New(fset *token.FileSet, pkgs ...*types.Package) *Set {
	if fset == nil {
		fset = token.NewFileSet()
	}
	s := &Set{
		fset: fset,
		pkgs: make(map[string]*types.Package, len(pkgs)),
	}
	for _, pkg := range pkgs {
		if _, dup := s.pkgs[pkg.Path()]; dup {
			continue
		}
		s.paths = append(s.paths, pkg.Path())
		s.pkgs[pkg.Path()] = pkg
	}
	return s
}

var loadDefault = sync.OnceValues(func() (*Set, error) {
	return Load(context.Background(), DefaultPaths)
})

// Default returns the process-wide Set for DefaultPaths, loading it on
// first use. A load failure is returned to every caller.
func Default() (*Set, error) {
	return loadDefault()
}

// Load lists paths with the go command and reads their export data.
func Load(ctx context.Context, paths []string, opts ...pkglist.Option) (*Set, error) {
	paths = dedupe(paths)

	var listed []string
	for _, path := range paths {
		if path != "unsafe" {
			listed = append(listed, path)
		}
	}

	s := &Set{
		fset:  token.NewFileSet(),
		paths: paths,
		pkgs:  make(map[string]*types.Package, len(paths)),
	}
	if len(listed) < len(paths) {
		s.pkgs["unsafe"] = types.Unsafe
	}
	if len(listed) == 0 {
		return s, nil
	}

	finder := pkglist.NewFinder("", opts...)
	if err := finder.List(ctx, listed...); err != nil {
		return nil, errors.Wrap(err, "list reference packages")
	}
	exports, err := finder.Exports(listed)
	if err != nil {
		return nil, errors.Wrap(err, "locate reference export data")
	}

	// Dependencies come first in go list output; reading in that order lets
	// later packages reuse the entries earlier reads put in imports.
	imports := make(map[string]*types.Package)
	for _, pkg := range finder.Packages() {
		file, wanted := exports[pkg.ImportPath]
		if !wanted {
			continue
		}
		tpkg, err := readExport(finder.Fs(), s.fset, imports, pkg.ImportPath, file)
		if err != nil {
			return nil, err
		}
		s.pkgs[pkg.ImportPath] = tpkg
	}

	return s, nil
}

func readExport(fs afero.Fs, fset *token.FileSet, imports map[string]*types.Package, path, file string) (*types.Package, error) {
	f, err := fs.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "open export data for %s", path)
	}
	defer f.Close()

	r, err := gcexportdata.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "find export data for %s", path)
	}
	pkg, err := gcexportdata.Read(r, fset, imports, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read export data for %s", path)
	}
	return pkg, nil
}

// Paths returns the import paths in the set, in load order.
func (s *Set) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Lookup returns the package for path.
func (s *Set) Lookup(path string) (*types.Package, bool) {
	pkg, ok := s.pkgs[path]
	return pkg, ok
}

// Base is the first position no reference package uses. FileSets that
// start at or after Base never produce positions that alias ours.
func (s *Set) Base() int {
	return s.fset.Base()
}

// Importer resolves imports against the set only.
func (s *Set) Importer() types.Importer {
	return importerFunc(func(path string) (*types.Package, error) {
		if pkg, ok := s.pkgs[path]; ok {
			return pkg, nil
		}
		return nil, errors.Wrapf(ErrNotReferenced, "import %q", path)
	})
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
