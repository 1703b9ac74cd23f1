package project

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ethereum-optimism/rulebench/pkg/refset"
)

func build(t *testing.T, lang Language, fragments ...string) *Project {
	t.Helper()
	p, err := Build(lang, fragments, WithReferences(refset.New(nil)), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

func TestBuildNaming(t *testing.T) {
	for _, lang := range []Language{Go, Assembly} {
		ext, err := lang.Extension()
		require.NoError(t, err)

		for n := 0; n <= 4; n++ {
			t.Run(fmt.Sprintf("%s/%d", lang, n), func(t *testing.T) {
				fragments := make([]string, n)
				for i := range fragments {
					fragments[i] = fmt.Sprintf("// fragment %d\n", i)
				}

				p := build(t, lang, fragments...)
				require.Len(t, p.Documents, n)
				assert.Equal(t, Name, p.Name)
				assert.Equal(t, lang, p.Language)

				ids := make(map[string]struct{})
				for i, doc := range p.Documents {
					assert.Equal(t, i, doc.Index)
					assert.Equal(t, fmt.Sprintf("Test%d.%s", i, ext), doc.Name)
					assert.Equal(t, "/TestProject/"+doc.Name, doc.Path)
					assert.Equal(t, fragments[i], doc.Text)
					ids[doc.ID.String()] = struct{}{}
				}
				assert.Len(t, ids, n, "document identities must be unique")
			})
		}
	}
}

func TestBuildFreshIdentity(t *testing.T) {
	a := build(t, Go, "package a\n")
	b := build(t, Go, "package a\n")
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Documents[0].ID, b.Documents[0].ID)
}

func TestBuildUnknownLanguage(t *testing.T) {
	_, err := Build(Language("VisualBasic"), []string{"x"}, WithReferences(refset.New(nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
}

func TestProjectFiles(t *testing.T) {
	p := build(t, Go, "package a\n", "package a\n\nvar X = 1\n")

	doc, ok := p.Document("/TestProject/Test1.go")
	require.True(t, ok)
	assert.Equal(t, 1, doc.Index)

	data, err := p.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, doc.Text, string(data))

	_, err = p.ReadFile("/etc/passwd")
	assert.Error(t, err)

	exists, err := afero.Exists(p.Fs(), "/TestProject/Test0.go")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, afero.WriteFile(p.Fs(), "/TestProject/Test0.go", []byte("changed"), 0o644),
		"project filesystem must be read-only")
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{in: "Go", want: Go},
		{in: "go", want: Go},
		{in: ".go", want: Go},
		{in: "Assembly", want: Assembly},
		{in: "asm", want: Assembly},
		{in: "s", want: Assembly},
		{in: "csharp", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLanguage(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownLanguage))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
