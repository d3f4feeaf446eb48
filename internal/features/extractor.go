// internal/features/extractor.go

// Package features converts a source body into a fixed-length numeric vector
// describing its structural shape. Extraction is a pure function of the input
// text: identical input always yields an identical vector.
package features

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

// Extractor produces feature vectors from Go source text. It is stateless
// and safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Fallback patterns for text that does not parse as Go. The counts are
// coarser than the AST walk but keep the vector comparable.
var (
	funcRegex    = regexp.MustCompile(`(?m)^\s*func\b`)
	typeRegex    = regexp.MustCompile(`(?m)^\s*type\s+\w+`)
	branchRegex  = regexp.MustCompile(`\bif\b`)
	loopRegex    = regexp.MustCompile(`\bfor\b`)
	switchRegex  = regexp.MustCompile(`\b(switch|select)\b`)
	deferRegex   = regexp.MustCompile(`\b(defer|recover)\b`)
	goRegex      = regexp.MustCompile(`\bgo\s+\w`)
	chanRegex    = regexp.MustCompile(`\bchan\b|<-`)
	litRegex     = regexp.MustCompile(`\w+\{`)
	regexpRegex  = regexp.MustCompile(`regexp\.(MustCompile|Compile)`)
	importRegex  = regexp.MustCompile(`(?m)^\s*(import\s+)?"[^"]+"`)
	commentRegex = regexp.MustCompile(`^\s*(//|/\*|\*)`)
)

// Extract computes the feature vector for sourceText. Text that fails to
// parse as Go still yields a vector via regex fallbacks, so the diversity
// machinery never depends on syntactic validity.
func (e *Extractor) Extract(sourceText string) schemas.FeatureVector {
	var v schemas.FeatureVector

	lines := strings.Split(sourceText, "\n")
	v[schemas.FeatLineCount] = float64(len(lines))
	v[schemas.FeatCommentRatio] = commentRatio(lines)
	v[schemas.FeatAvgLineLength] = avgLineLength(lines)

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", sourceText, parser.ParseComments)
	if err != nil || file == nil {
		e.extractByRegex(sourceText, &v)
		return v
	}

	for _, group := range astutil.Imports(fset, file) {
		v[schemas.FeatImportCount] += float64(len(group))
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			v[schemas.FeatFuncCount]++
		case *ast.TypeSpec:
			v[schemas.FeatTypeCount]++
		case *ast.IfStmt:
			v[schemas.FeatBranchCount]++
		case *ast.ForStmt, *ast.RangeStmt:
			v[schemas.FeatLoopCount]++
		case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
			v[schemas.FeatSwitchCount]++
		case *ast.DeferStmt:
			v[schemas.FeatDeferRecoverCount]++
		case *ast.GoStmt:
			v[schemas.FeatGoroutineCount]++
		case *ast.SendStmt:
			v[schemas.FeatChannelOpCount]++
		case *ast.UnaryExpr:
			if node.Op == token.ARROW {
				v[schemas.FeatChannelOpCount]++
			}
		case *ast.ChanType:
			v[schemas.FeatChannelOpCount]++
		case *ast.CompositeLit:
			v[schemas.FeatCompositeLitCount]++
		case *ast.CallExpr:
			if sel, ok := node.Fun.(*ast.SelectorExpr); ok {
				if ident, ok := sel.X.(*ast.Ident); ok && ident.Name == "regexp" &&
					(sel.Sel.Name == "MustCompile" || sel.Sel.Name == "Compile") {
					v[schemas.FeatRegexLitCount]++
				}
			}
			if ident, ok := node.Fun.(*ast.Ident); ok && ident.Name == "recover" {
				v[schemas.FeatDeferRecoverCount]++
			}
		}
		return true
	})

	return v
}

func (e *Extractor) extractByRegex(sourceText string, v *schemas.FeatureVector) {
	v[schemas.FeatFuncCount] = float64(len(funcRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatTypeCount] = float64(len(typeRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatBranchCount] = float64(len(branchRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatLoopCount] = float64(len(loopRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatSwitchCount] = float64(len(switchRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatDeferRecoverCount] = float64(len(deferRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatGoroutineCount] = float64(len(goRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatChannelOpCount] = float64(len(chanRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatCompositeLitCount] = float64(len(litRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatRegexLitCount] = float64(len(regexpRegex.FindAllString(sourceText, -1)))
	v[schemas.FeatImportCount] = float64(len(importRegex.FindAllString(sourceText, -1)))
}

// FunctionCount returns only the function-like construct count; the verifier
// uses it for the deletion floor without paying for a full vector.
func (e *Extractor) FunctionCount(sourceText string) int {
	v := e.Extract(sourceText)
	return int(v[schemas.FeatFuncCount])
}

func commentRatio(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	n := 0
	for _, l := range lines {
		if commentRegex.MatchString(l) {
			n++
		}
	}
	return float64(n) / float64(len(lines))
}

func avgLineLength(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	return float64(total) / float64(len(lines))
}
