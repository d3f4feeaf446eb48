// internal/verifier/verifier.go

// Package verifier runs the structural and safety battery against a proposed
// mutation. "Formal" here means compile-level and structural checks, not a
// proof of semantic correctness; the point is that nothing unverifiable
// reaches the commit path.
package verifier

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/internal/features"
)

// Check names, stable for audit tooling.
const (
	CheckCompiles       = "compiles"
	CheckExports        = "exported_symbol_preservation"
	CheckFunctionFloor  = "function_count_floor"
	CheckSizeDelta      = "size_delta_bound"
	CheckDangerPatterns = "danger_patterns"
)

// dangerPattern is one denylisted construct. A construct present in both the
// original and mutated text is tolerated; relitigating pre-existing risk is
// not this gate's job.
type dangerPattern struct {
	name string
	re   *regexp.Regexp
}

var dangerPatterns = []dangerPattern{
	{"dynamic_eval", regexp.MustCompile(`\b(plugin\.Open|yaegi|interp\.New)\b`)},
	{"shell_invocation", regexp.MustCompile(`exec\.Command(Context)?\(\s*"(sh|bash|/bin/sh|/bin/bash)"\s*,\s*"-c"`)},
	{"destructive_fs", regexp.MustCompile(`os\.RemoveAll\(|rm\s+-rf`)},
	{"process_termination", regexp.MustCompile(`syscall\.Kill\(|\.Process\.Kill\(`)},
	{"dynamic_command", regexp.MustCompile(`exec\.Command(Context)?\([^"]`)},
}

// Options tunes the structural bounds. Zero values select the defaults.
type Options struct {
	FunctionCountFloor float64 // fraction of original functions that must survive (default 0.8)
	SizeDeltaBound     float64 // tolerated relative length change (default 0.2)
}

func (o Options) withDefaults() Options {
	if o.FunctionCountFloor <= 0 {
		o.FunctionCountFloor = 0.8
	}
	if o.SizeDeltaBound <= 0 {
		o.SizeDeltaBound = 0.2
	}
	return o
}

// Verifier is stateless and safe for concurrent use by the main loop and
// side-cycles alike.
type Verifier struct {
	logger    *zap.Logger
	opts      Options
	extractor *features.Extractor
}

// New creates a Verifier.
func New(logger *zap.Logger, opts Options) *Verifier {
	return &Verifier{
		logger:    logger.Named("verifier"),
		opts:      opts.withDefaults(),
		extractor: features.New(),
	}
}

// Verify runs the battery. A compile failure is fatal and short-circuits the
// remaining checks; every other check is independent and always evaluated and
// reported, even when an earlier one failed, for audit completeness.
func (v *Verifier) Verify(originalText, mutatedText, fileIdentifier string) schemas.VerificationReport {
	report := schemas.VerificationReport{File: fileIdentifier, Pass: true}

	if reason, ok := v.checkCompiles(mutatedText); !ok {
		report.Pass = false
		report.Checks = append(report.Checks, schemas.CheckResult{
			Name: CheckCompiles, Pass: false, Reason: reason,
		})
		v.logger.Debug("Verification short-circuited on compile failure.",
			zap.String("file", fileIdentifier), zap.String("reason", reason))
		return report
	}
	report.Checks = append(report.Checks, schemas.CheckResult{Name: CheckCompiles, Pass: true})

	checks := []schemas.CheckResult{
		v.checkExports(originalText, mutatedText),
		v.checkFunctionFloor(originalText, mutatedText),
		v.checkSizeDelta(originalText, mutatedText),
		v.checkDangerPatterns(originalText, mutatedText),
	}
	for _, c := range checks {
		report.Checks = append(report.Checks, c)
		if !c.Pass {
			report.Pass = false
		}
	}

	return report
}

func (v *Verifier) checkCompiles(mutatedText string) (string, bool) {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "mutated.go", mutatedText, parser.AllErrors); err != nil {
		return err.Error(), false
	}
	return "", true
}

// checkExports requires every symbol the original exposed to still be exposed
// after mutation, named per missing symbol.
func (v *Verifier) checkExports(originalText, mutatedText string) schemas.CheckResult {
	before := exportedSymbols(originalText)
	after := exportedSymbols(mutatedText)

	var missing []string
	for sym := range before {
		if !after[sym] {
			missing = append(missing, sym)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return schemas.CheckResult{
			Name:   CheckExports,
			Pass:   false,
			Reason: "exported symbols removed: " + strings.Join(missing, ", "),
		}
	}
	return schemas.CheckResult{Name: CheckExports, Pass: true}
}

// checkFunctionFloor rejects mutations whose function-like construct count
// falls below the configured fraction of the original's. This catches silent
// deletion of logic disguised as simplification.
func (v *Verifier) checkFunctionFloor(originalText, mutatedText string) schemas.CheckResult {
	orig := v.extractor.FunctionCount(originalText)
	mut := v.extractor.FunctionCount(mutatedText)
	if orig == 0 {
		return schemas.CheckResult{Name: CheckFunctionFloor, Pass: true}
	}
	floor := int(float64(orig) * v.opts.FunctionCountFloor)
	if mut < floor {
		return schemas.CheckResult{
			Name:   CheckFunctionFloor,
			Pass:   false,
			Reason: fmt.Sprintf("function count dropped from %d to %d (floor %d)", orig, mut, floor),
		}
	}
	return schemas.CheckResult{Name: CheckFunctionFloor, Pass: true}
}

func (v *Verifier) checkSizeDelta(originalText, mutatedText string) schemas.CheckResult {
	origLen := len(originalText)
	if origLen == 0 {
		return schemas.CheckResult{Name: CheckSizeDelta, Pass: true}
	}
	delta := float64(len(mutatedText)-origLen) / float64(origLen)
	if delta > v.opts.SizeDeltaBound || delta < -v.opts.SizeDeltaBound {
		return schemas.CheckResult{
			Name:   CheckSizeDelta,
			Pass:   false,
			Reason: fmt.Sprintf("size changed by %+.1f%% (bound ±%.0f%%)", delta*100, v.opts.SizeDeltaBound*100),
		}
	}
	return schemas.CheckResult{Name: CheckSizeDelta, Pass: true}
}

// checkDangerPatterns fails on any denylisted construct absent from the
// original but present after mutation.
func (v *Verifier) checkDangerPatterns(originalText, mutatedText string) schemas.CheckResult {
	var introduced []string
	for _, p := range dangerPatterns {
		if p.re.MatchString(mutatedText) && !p.re.MatchString(originalText) {
			introduced = append(introduced, p.name)
		}
	}
	if len(introduced) > 0 {
		return schemas.CheckResult{
			Name:   CheckDangerPatterns,
			Pass:   false,
			Reason: "introduced dangerous constructs: " + strings.Join(introduced, ", "),
		}
	}
	return schemas.CheckResult{Name: CheckDangerPatterns, Pass: true}
}

// exportedSymbols collects the exported top-level identifiers of a file.
// Unparsable text yields an empty set; the compile check has already rejected
// that case on the mutated side.
func exportedSymbols(sourceText string) map[string]bool {
	out := make(map[string]bool)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "symbols.go", sourceText, 0)
	if err != nil || file == nil {
		return out
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			// Methods are exposed through their receiver type.
			if d.Recv == nil && d.Name.IsExported() {
				out[d.Name.Name] = true
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if s.Name.IsExported() {
						out[s.Name.Name] = true
					}
				case *ast.ValueSpec:
					for _, name := range s.Names {
						if name.IsExported() {
							out[name.Name] = true
						}
					}
				}
			}
		}
	}
	return out
}
