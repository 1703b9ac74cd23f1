// Package collate groups run diagnostics by the document they point into.
package collate

import (
	"sort"

	"github.com/ethereum-optimism/rulebench/pkg/project"
	"github.com/ethereum-optimism/rulebench/pkg/runner"
)

// DocumentResult pairs a document with its diagnostics, ordered by offset.
type DocumentResult struct {
	Document    *project.Document
	Diagnostics []runner.Diagnostic
}

// Collate returns one DocumentResult per project document, in creation
// order. Diagnostics without a location in a project document are dropped.
// Within a document, diagnostics at the same offset keep emission order.
func Collate(diags []runner.Diagnostic, p *project.Project) []DocumentResult {
	byPath := make(map[string][]runner.Diagnostic, len(p.Documents))
	for _, d := range diags {
		if !d.InSource() {
			continue
		}
		if _, ok := p.Document(d.Location.Filename); !ok {
			continue
		}
		byPath[d.Location.Filename] = append(byPath[d.Location.Filename], d)
	}

	results := make([]DocumentResult, 0, len(p.Documents))
	for _, doc := range p.Documents {
		group := byPath[doc.Path]
		if group == nil {
			group = []runner.Diagnostic{}
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Location.Offset < group[j].Location.Offset
		})
		results = append(results, DocumentResult{Document: doc, Diagnostics: group})
	}
	return results
}
