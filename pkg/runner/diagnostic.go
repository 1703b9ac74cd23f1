package runner

import (
	"fmt"
	"path"

	"golang.org/x/tools/go/analysis"
)

// Kind says which stage produced a diagnostic.
type Kind int

const (
	KindSyntax Kind = iota + 1
	KindType
	KindAnalyzer
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindType:
		return "type"
	case KindAnalyzer:
		return "analyzer"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Location is a resolved source position inside a project document.
type Location struct {
	Filename string // document path
	Offset   int    // byte offset of the start
	End      int    // byte offset of the end, equal to Offset for points
	Line     int
	Column   int
}

// Diagnostic is one finding from a run. Location is nil when the finding
// has no position in a project document.
type Diagnostic struct {
	Kind           Kind
	Analyzer       string // empty for syntax and type diagnostics
	Category       string
	Message        string
	URL            string
	Location       *Location
	Related        []analysis.RelatedInformation
	SuggestedFixes []analysis.SuggestedFix
}

// InSource reports whether the diagnostic points into a document.
func (d Diagnostic) InSource() bool {
	return d.Location != nil
}

func (d Diagnostic) String() string {
	source := d.Analyzer
	if source == "" {
		source = d.Kind.String()
	}
	if d.Location == nil {
		return fmt.Sprintf("[%s] %s", source, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: [%s] %s",
		path.Base(d.Location.Filename), d.Location.Line, d.Location.Column, source, d.Message)
}
