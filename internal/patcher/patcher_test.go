// internal/patcher/patcher_test.go
package patcher

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lijuncheng2025-sys/living-seed-ai-sub000/api/schemas"
)

const sampleSource = `package demo

import "fmt"

// Greet prints a salutation.
func Greet(name string) {
	if name == "" {
		name = "world"
	}
	fmt.Println("hello, " + name)
}

func helper() int {
	return 42
}
`

func TestLocate_ExactMatch(t *testing.T) {
	p := New(0)
	snippet := "func helper() int {\n\treturn 42\n}"

	res := p.Locate(sampleSource, snippet)

	require.True(t, res.Found)
	assert.Equal(t, schemas.MatchExact, res.Strategy)
	assert.Equal(t, snippet, res.ExactText)
	assert.Equal(t, snippet, sampleSource[res.ByteOffset:res.ByteOffset+res.ByteLength])
}

func TestLocate_StripsLineMarkers(t *testing.T) {
	p := New(0)
	// An oracle quoting the numbered listing back at us.
	snippet := "14: func helper() int {\n15: \treturn 42\n16: }"

	res := p.Locate(sampleSource, snippet)

	require.True(t, res.Found)
	assert.Equal(t, schemas.MatchStripped, res.Strategy)
	assert.Equal(t, "func helper() int {\n\treturn 42\n}", res.ExactText)
}

func TestLocate_PipeMarkersAndIndentDrift(t *testing.T) {
	p := New(0)
	// Pipe-style markers plus retabbed indentation force the cascade past
	// tier 2 into the normalized window.
	snippet := "  14 | func helper() int {\n  15 |     return 42\n  16 | }"

	res := p.Locate(sampleSource, snippet)

	require.True(t, res.Found)
	assert.Equal(t, schemas.MatchNormalized, res.Strategy)
	assert.Equal(t, "func helper() int {\n\treturn 42\n}", res.ExactText)
}

func TestLocate_WhitespaceNormalized(t *testing.T) {
	p := New(0)
	snippet := "if name == \"\"   {\n    name =  \"world\"\n  }"

	res := p.Locate(sampleSource, snippet)

	require.True(t, res.Found)
	assert.Equal(t, schemas.MatchNormalized, res.Strategy)
	assert.Contains(t, res.ExactText, `name = "world"`)
}

func TestLocate_FirstLineAnchor(t *testing.T) {
	p := New(10)
	// The body diverges from the source, but the first line is distinctive
	// enough to anchor and the surviving lines still align.
	snippet := "func Greet(name string) {\n\nif name == \"\" {\nname = \"world\"\n}"

	res := p.Locate(sampleSource, snippet)

	require.True(t, res.Found)
	assert.Equal(t, schemas.MatchAnchored, res.Strategy)
	assert.True(t, strings.HasPrefix(res.ExactText, "func Greet(name string) {"))
}

func TestLocate_AnchorRefusesTrivialFirstLine(t *testing.T) {
	p := New(10)
	// "}" appears on many lines; a short first line must not anchor alone.
	snippet := "}\nfmt.Println(\"never present\")"

	res := p.Locate(sampleSource, snippet)

	assert.False(t, res.Found)
	assert.Equal(t, schemas.MatchNone, res.Strategy)
}

func TestLocate_NoMatch(t *testing.T) {
	p := New(0)

	res := p.Locate(sampleSource, "func missing() { panic(\"nope\") }")

	assert.False(t, res.Found)
	assert.Equal(t, schemas.MatchNone, res.Strategy)
	assert.Zero(t, res.ByteLength)
}

func TestLocate_EmptyInputs(t *testing.T) {
	p := New(0)

	assert.False(t, p.Locate("", "x").Found)
	assert.False(t, p.Locate(sampleSource, "").Found)
}

func TestApply_ReplacesLocatedRange(t *testing.T) {
	p := New(0)
	res := p.Locate(sampleSource, "return 42")
	require.True(t, res.Found)

	out := Apply(sampleSource, res, "return 7")

	assert.Contains(t, out, "return 7")
	assert.NotContains(t, out, "return 42")
	// Everything outside the range is untouched.
	assert.Contains(t, out, "func Greet(name string) {")
}

func TestApply_NoopOnMiss(t *testing.T) {
	out := Apply(sampleSource, schemas.MatchResult{Found: false}, "anything")
	assert.Equal(t, sampleSource, out)
}

// FuzzLocate asserts the structural contract under arbitrary inputs: a found
// range is always within bounds and ExactText always equals the source slice
// at that range, so Apply is well defined.
func FuzzLocate(f *testing.F) {
	f.Add([]byte(sampleSource + "\x00" + "return 42"))
	f.Fuzz(func(t *testing.T, data []byte) {
		fc := fuzz.NewConsumer(data)
		source, err := fc.GetString()
		if err != nil {
			return
		}
		snippet, err := fc.GetString()
		if err != nil {
			return
		}

		p := New(10)
		res := p.Locate(source, snippet)
		if !res.Found {
			return
		}
		if res.ByteOffset < 0 || res.ByteLength < 0 || res.ByteOffset+res.ByteLength > len(source) {
			t.Fatalf("match out of bounds: offset=%d length=%d source=%d", res.ByteOffset, res.ByteLength, len(source))
		}
		if got := source[res.ByteOffset : res.ByteOffset+res.ByteLength]; got != res.ExactText {
			t.Fatalf("ExactText does not equal the source slice at the match range")
		}
	})
}
