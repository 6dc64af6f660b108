// Package markdown finds runnable code blocks in Markdown documents.
//
// A fenced block is runnable when its info string names the configured
// language followed by ",runnable", for example:
//
//	```c,runnable
//	```c,runnable,args
//
// The second form marks a block that takes command-line arguments.
// Language matching is case-insensitive.
package markdown

import (
	"bytes"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
)

// ErrNoSnippets is returned by Extract when a document holds no runnable
// block for the requested language.
var ErrNoSnippets = errors.New("no runnable snippets")

const (
	runnableFlag = "runnable"
	argsFlag     = "args"
)

// Block is one runnable fenced code block.
type Block struct {
	// Index is the zero-based position among the runnable blocks.
	Index int

	// Line is the 1-based line of the opening fence.
	Line int

	// Info is the raw info string of the fence.
	Info string

	// Language is the fence language as written.
	Language string

	// TakesArgs reports whether the block is marked ",args".
	TakesArgs bool

	// Source is the block content.
	Source string
}

// Extract returns the runnable blocks of src written in lang.
// It returns ErrNoSnippets when there are none.
func Extract(src []byte, lang string) ([]Block, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(lang))

	var blocks []Block
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok || fence.Info == nil {
			return ast.WalkContinue, nil
		}

		info := string(fence.Info.Segment.Value(src))
		language, takesArgs, runnable := parseInfo(info)
		if !runnable || fold.String(language) != want {
			return ast.WalkSkipChildren, nil
		}

		blocks = append(blocks, Block{
			Index:     len(blocks),
			Line:      fenceLine(src, fence),
			Info:      info,
			Language:  language,
			TakesArgs: takesArgs,
			Source:    blockSource(src, fence),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrNoSnippets
	}
	return blocks, nil
}

// parseInfo splits an info string such as "c,runnable,args".
// Anything after the first space belongs to fence attributes and is ignored.
func parseInfo(info string) (language string, takesArgs, runnable bool) {
	word, _, _ := strings.Cut(strings.TrimSpace(info), " ")
	parts := strings.Split(word, ",")
	language = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case runnableFlag:
			runnable = true
		case argsFlag:
			takesArgs = true
		}
	}
	return language, takesArgs && runnable, runnable
}

func blockSource(src []byte, fence *ast.FencedCodeBlock) string {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// fenceLine returns the 1-based line of the opening fence.
func fenceLine(src []byte, fence *ast.FencedCodeBlock) int {
	offset := fence.Info.Segment.Start
	return bytes.Count(src[:offset], []byte("\n")) + 1
}
