package pkglist

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Package is the subset of `go list -json` output needed to locate
// compiled export data for a package.
type Package struct {
	ImportPath string
	Name       string
	Dir        string
	Export     string // Export data file in the build cache
	GoFiles    []string
	Standard   bool
	DepOnly    bool
	Error      *PackageError
}

// PackageError mirrors the Error field go list reports for broken packages.
type PackageError struct {
	ImportStack []string
	Pos         string
	Err         string
}

// Finder lists packages with the go command and keeps the decoded result.
type Finder struct {
	dir       string
	packages  map[string]*Package
	order     []string
	fs        afero.Fs
	commander Commander
	logger    *zap.Logger
}

type Option func(*Finder)

// WithLogger sets the logger used to report discovered packages
func WithLogger(logger *zap.Logger) Option {
	return func(f *Finder) {
		f.logger = logger
	}
}

// WithCommander replaces the command runner - useful for testing
func WithCommander(commander Commander) Option {
	return func(f *Finder) {
		f.commander = commander
	}
}

// WithFs sets the filesystem export files are opened from
func WithFs(fs afero.Fs) Option {
	return func(f *Finder) {
		f.fs = fs
	}
}

// NewFinder creates a package finder that runs go list in dir.
// An empty dir means the current working directory.
func NewFinder(dir string, opts ...Option) *Finder {
	f := &Finder{
		dir:       dir,
		packages:  make(map[string]*Package),
		fs:        afero.NewOsFs(),
		commander: &RealCommander{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fs returns the filesystem export files live on.
func (f *Finder) Fs() afero.Fs {
	return f.fs
}

// List runs `go list -export -deps -json` for the given patterns and
// records every package it reports, dependencies included.
func (f *Finder) List(ctx context.Context, patterns ...string) error {
	if len(patterns) == 0 {
		return errors.New("no package patterns given")
	}

	args := append([]string{"list", "-export", "-deps", "-json"}, patterns...)
	cmd := f.commander.Command(ctx, "go", args...)
	cmd.SetDir(f.dir)

	out, err := cmd.Output()
	if err != nil {
		return errors.Wrap(err, "failed to list packages")
	}

	decoder := json.NewDecoder(bytes.NewReader(out))
	for decoder.More() {
		var pkg Package
		if err := decoder.Decode(&pkg); err != nil {
			return errors.Wrap(err, "failed to decode package info")
		}
		if _, seen := f.packages[pkg.ImportPath]; !seen {
			f.order = append(f.order, pkg.ImportPath)
		}
		f.packages[pkg.ImportPath] = &pkg
		f.logger.Debug("found package",
			zap.String("import_path", pkg.ImportPath),
			zap.String("export", pkg.Export),
			zap.Bool("dep_only", pkg.DepOnly))
	}

	return nil
}

// Package returns a listed package by import path.
func (f *Finder) Package(path string) (*Package, bool) {
	pkg, ok := f.packages[path]
	return pkg, ok
}

// Packages returns the listed packages in go list order.
func (f *Finder) Packages() []*Package {
	pkgs := make([]*Package, 0, len(f.order))
	for _, path := range f.order {
		pkgs = append(pkgs, f.packages[path])
	}
	return pkgs
}

// Exports maps each requested import path to its export data file.
func (f *Finder) Exports(paths []string) (map[string]string, error) {
	exports := make(map[string]string, len(paths))
	for _, path := range paths {
		pkg, ok := f.Package(path)
		if !ok {
			return nil, errors.Newf("package %s was not listed", path)
		}
		if pkg.Error != nil {
			return nil, errors.Newf("package %s: %s", path, pkg.Error.Err)
		}
		if pkg.Export == "" {
			return nil, errors.Newf("package %s has no export data", path)
		}
		exports[path] = pkg.Export
	}
	return exports, nil
}
