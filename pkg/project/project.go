// Package project synthesizes an isolated project from source fragments.
//
// Each fragment becomes one document named Test{i}.{ext}, stored in an
// in-memory filesystem under /TestProject. The returned Project is a
// finished snapshot: its filesystem is read-only and its document list is
// never modified.
package project

import (
	"fmt"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ethereum-optimism/rulebench/pkg/refset"
)

const (
	// Name is the name every synthesized project gets.
	Name = "TestProject"
	// FilePrefix starts every document filename.
	FilePrefix = "Test"
	// Root is the directory documents live in.
	Root = "/" + Name
)

// Document is one fragment inside a project.
type Document struct {
	ID    uuid.UUID
	Index int
	Name  string // Test{Index}.{ext}
	Path  string // Root/Name, the filename positions report
	Text  string
}

// Project is an immutable snapshot of synthesized documents plus the
// references they compile against.
type Project struct {
	ID         uuid.UUID
	Name       string
	Language   Language
	Documents  []*Document
	References *refset.Set

	fs     afero.Fs
	byPath map[string]*Document
}

type builder struct {
	refs   *refset.Set
	logger *zap.Logger
}

type Option func(*builder)

// WithReferences attaches refs instead of the process-wide default set
func WithReferences(refs *refset.Set) Option {
	return func(b *builder) {
		b.refs = refs
	}
}

// WithLogger sets the logger used while building
func WithLogger(logger *zap.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// Build creates a project with one document per fragment, in input order.
// Fragment text is stored as is; syntax problems only show up once the
// project is compiled.
func Build(lang Language, fragments []string, opts ...Option) (*Project, error) {
	b := &builder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	ext, err := lang.Extension()
	if err != nil {
		return nil, err
	}

	if b.refs == nil {
		refs, err := refset.Default()
		if err != nil {
			return nil, errors.Wrap(err, "load default references")
		}
		b.refs = refs
	}

	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll(Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create project root")
	}

	p := &Project{
		ID:         uuid.New(),
		Name:       Name,
		Language:   lang,
		Documents:  make([]*Document, 0, len(fragments)),
		References: b.refs,
		byPath:     make(map[string]*Document, len(fragments)),
	}

	for i, text := range fragments {
		name := fmt.Sprintf("%s%d.%s", FilePrefix, i, ext)
		doc := &Document{
			ID:    uuid.New(),
			Index: i,
			Name:  name,
			Path:  path.Join(Root, name),
			Text:  text,
		}
		if err := afero.WriteFile(mem, doc.Path, []byte(text), 0o644); err != nil {
			return nil, errors.Wrapf(err, "write %s", doc.Path)
		}
		p.Documents = append(p.Documents, doc)
		p.byPath[doc.Path] = doc
	}
	p.fs = afero.NewReadOnlyFs(mem)

	b.logger.Debug("built project",
		zap.Stringer("id", p.ID),
		zap.Stringer("language", lang),
		zap.Int("documents", len(p.Documents)),
		zap.Int("references", len(b.refs.Paths())))

	return p, nil
}

// Document returns the document stored at path.
func (p *Project) Document(path string) (*Document, bool) {
	doc, ok := p.byPath[path]
	return doc, ok
}

// Fs is the read-only filesystem holding the documents.
func (p *Project) Fs() afero.Fs {
	return p.fs
}

// ReadFile returns the content of a project document.
func (p *Project) ReadFile(path string) ([]byte, error) {
	if _, ok := p.byPath[path]; !ok {
		return nil, errors.Newf("%s is not a document of %s", path, p.Name)
	}
	return afero.ReadFile(p.fs, path)
}
