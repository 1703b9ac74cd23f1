package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/rulebench/pkg/analyzer"
	"github.com/ethereum-optimism/rulebench/pkg/harness"
	"github.com/ethereum-optimism/rulebench/pkg/project"
	"github.com/ethereum-optimism/rulebench/pkg/runner"
)

// errFindings signals a clean run that produced diagnostics.
var errFindings = errors.New("diagnostics reported")

var analyzers = map[string]*analysis.Analyzer{}

func init() {
	for _, a := range []*analysis.Analyzer{
		analyzer.Analyzer,
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		copylock.Analyzer,
		nilfunc.Analyzer,
		printf.Analyzer,
		shift.Analyzer,
		stringintconv.Analyzer,
		unreachable.Analyzer,
		unusedresult.Analyzer,
	} {
		analyzers[a.Name] = a
	}
}

// caseFile describes one harness invocation on disk.
type caseFile struct {
	Analyzer  string   `yaml:"analyzer"`
	Language  string   `yaml:"language"`
	Fragments []string `yaml:"fragments"`
}

type runFlags struct {
	analyzer string
	language string
	casePath string
	json     bool
	verbose  bool
}

// loadCase merges the case file, if any, with flags and fragment files.
// Flags win over the case file; fragment files are appended after the
// case file's fragments.
func loadCase(fs afero.Fs, flags runFlags, files []string) (*caseFile, error) {
	c := &caseFile{Language: string(project.Go)}
	if flags.casePath != "" {
		data, err := afero.ReadFile(fs, flags.casePath)
		if err != nil {
			return nil, errors.Wrapf(err, "read case file %s", flags.casePath)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrapf(err, "parse case file %s", flags.casePath)
		}
	}
	if flags.analyzer != "" {
		c.Analyzer = flags.analyzer
	}
	if flags.language != "" {
		c.Language = flags.language
	}
	for _, file := range files {
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return nil, errors.Wrapf(err, "read fragment %s", file)
		}
		c.Fragments = append(c.Fragments, string(data))
	}
	if c.Analyzer == "" {
		return nil, errors.WithHint(errors.New("no analyzer selected"), "pass --analyzer or set analyzer in the case file")
	}
	return c, nil
}

type jsonDiagnostic struct {
	Document string `json:"document"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Offset   int    `json:"offset"`
	Kind     string `json:"kind"`
	Analyzer string `json:"analyzer,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

func printText(w io.Writer, result harness.Result) {
	compileErr := color.New(color.FgRed, color.Bold)
	finding := color.New(color.FgYellow)
	for _, dr := range result {
		for _, d := range dr.Diagnostics {
			c := finding
			if d.Kind != runner.KindAnalyzer {
				c = compileErr
			}
			c.Fprintln(w, d.String())
		}
	}
}

func printJSON(w io.Writer, result harness.Result) error {
	out := []jsonDiagnostic{}
	for _, dr := range result {
		for _, d := range dr.Diagnostics {
			out = append(out, jsonDiagnostic{
				Document: dr.Document.Name,
				Line:     d.Location.Line,
				Column:   d.Location.Column,
				Offset:   d.Location.Offset,
				Kind:     d.Kind.String(),
				Analyzer: d.Analyzer,
				Category: d.Category,
				Message:  d.Message,
			})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runCase(cmd *cobra.Command, fs afero.Fs, flags runFlags, files []string) error {
	logger := zap.NewNop()
	if flags.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return errors.Wrap(err, "create logger")
		}
		defer logger.Sync() //nolint:errcheck
	}

	c, err := loadCase(fs, flags, files)
	if err != nil {
		return err
	}
	rule, ok := analyzers[c.Analyzer]
	if !ok {
		return errors.WithHint(errors.Newf("unknown analyzer %q", c.Analyzer), "run `rulebench analyzers` for the list")
	}
	lang, err := project.ParseLanguage(c.Language)
	if err != nil {
		return err
	}

	logger.Info("running case",
		zap.String("analyzer", rule.Name),
		zap.Stringer("language", lang),
		zap.Int("fragments", len(c.Fragments)))

	h, err := harness.New(rule, lang, c.Fragments, harness.WithLogger(logger), harness.WithContext(cmd.Context()))
	if err != nil {
		return err
	}
	result, err := h.Documents()
	if err != nil {
		return err
	}

	if flags.json {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return errors.Wrap(err, "write json")
		}
	} else {
		printText(cmd.OutOrStdout(), result)
	}

	if len(result.All()) > 0 {
		return errFindings
	}
	return nil
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	root := &cobra.Command{
		Use:           "rulebench",
		Short:         "Run a Go analyzer over source fragments in an in-memory project",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var flags runFlags
	runCmd := &cobra.Command{
		Use:   "run [fragment files...]",
		Short: "Analyze fragments and print diagnostics per document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCase(cmd, fs, flags, args)
		},
	}
	runCmd.Flags().StringVarP(&flags.analyzer, "analyzer", "a", "", "analyzer to run")
	runCmd.Flags().StringVarP(&flags.language, "lang", "l", "", "fragment language: Go or Assembly")
	runCmd.Flags().StringVar(&flags.casePath, "case", "", "YAML case file with analyzer, language and fragments")
	runCmd.Flags().BoolVar(&flags.json, "json", false, "print diagnostics as JSON")
	runCmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log harness progress")

	listCmd := &cobra.Command{
		Use:   "analyzers",
		Short: "List the built-in analyzers",
		Run: func(cmd *cobra.Command, _ []string) {
			names := make([]string, 0, len(analyzers))
			for name := range analyzers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, firstLine(analyzers[name].Doc))
			}
		},
	}

	root.AddCommand(runCmd, listCmd)
	return root
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func main() {
	err := newRootCmd(afero.NewOsFs()).Execute()
	if err == nil {
		return
	}
	if errors.Is(err, errFindings) {
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
	}
	os.Exit(2)
}
