// Package page owns the snippet controllers of one Markdown document.
package page

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/markdown"
	"github.com/jonwraymond/snippetrun/snippet"
)

// Errors for page operations.
var (
	ErrSnippetNotFound = errors.New("snippet not found")
	ErrSnippetBusy     = errors.New("snippet already running")
)

// RenderFactory returns the render callback for one snippet.
type RenderFactory func(block markdown.Block) snippet.RenderFunc

// Options configures a Page.
type Options struct {
	// Name identifies the document in snippet IDs, usually its path.
	Name string

	// Render builds each snippet's render callback. Optional.
	Render RenderFactory

	// Logger is passed to every controller. Optional.
	Logger snippet.Logger
}

// Snippet pairs a runnable block with its controller.
type Snippet struct {
	Block      markdown.Block
	Controller *snippet.Controller
}

// Page holds one controller per runnable block.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: controllers are independent; the page only looks them up.
type Page struct {
	name     string
	limit    int
	mu       sync.RWMutex
	snippets map[string]*Snippet
	order    []string
}

// New extracts the runnable blocks of src and creates their controllers.
// It returns markdown.ErrNoSnippets when the document has none.
func New(src []byte, cfg config.Config, runner snippet.Runner, opts Options) (*Page, error) {
	blocks, err := markdown.Extract(src, cfg.Language)
	if err != nil {
		return nil, err
	}

	p := &Page{
		name:     opts.Name,
		limit:    cfg.Concurrency,
		snippets: make(map[string]*Snippet, len(blocks)),
	}
	for _, block := range blocks {
		id := snippetID(opts.Name, block)
		var render snippet.RenderFunc
		if opts.Render != nil {
			render = opts.Render(block)
		}
		ctrl := snippet.New(block.Source, runner, snippet.Options{
			ID:          id,
			Tokens:      cfg.Tokens(),
			HideMarkers: cfg.HideMarkers(),
			Render:      render,
			Logger:      opts.Logger,
		})
		p.snippets[id] = &Snippet{Block: block, Controller: ctrl}
		p.order = append(p.order, id)
	}
	return p, nil
}

func snippetID(name string, block markdown.Block) string {
	if name == "" {
		return fmt.Sprintf("snippet-%d", block.Index)
	}
	return fmt.Sprintf("%s:%d", name, block.Line)
}

// Name returns the document name.
func (p *Page) Name() string {
	return p.name
}

// IDs returns snippet IDs in document order.
func (p *Page) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// Snippets returns the snippets in document order.
func (p *Page) Snippets() []*Snippet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Snippet, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.snippets[id])
	}
	return out
}

// Get retrieves a snippet by ID.
func (p *Page) Get(id string) (*Snippet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.snippets[id]
	return s, ok
}

// At retrieves the snippet at a zero-based document index.
func (p *Page) At(index int) (*Snippet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.order) {
		return nil, false
	}
	return p.snippets[p.order[index]], true
}

// Run executes one snippet and waits for its result.
// args are ignored for blocks not marked ",args".
func (p *Page) Run(ctx context.Context, id, args string) (snippet.RenderState, error) {
	s, ok := p.Get(id)
	if !ok {
		return snippet.RenderState{}, fmt.Errorf("%w: %s", ErrSnippetNotFound, id)
	}
	if !s.Controller.Dispatch(ctx, snippet.Run{Args: argsFor(s.Block, args)}) {
		return s.Controller.Snapshot(), fmt.Errorf("%w: %s", ErrSnippetBusy, id)
	}
	s.Controller.Wait()
	return s.Controller.Snapshot(), nil
}

// Toggle expands or collapses one snippet. It reports whether the snippet
// could be toggled.
func (p *Page) Toggle(ctx context.Context, id string) (bool, error) {
	s, ok := p.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSnippetNotFound, id)
	}
	return s.Controller.Dispatch(ctx, snippet.Toggle{}), nil
}

// RunAll runs every snippet, at most the configured concurrency at once,
// and waits for all of them. Snippets already running are skipped.
// Results are read from each controller; RunAll only fails when ctx ends.
func (p *Page) RunAll(ctx context.Context, args string) error {
	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for _, s := range p.Snippets() {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if s.Controller.Dispatch(gctx, snippet.Run{Args: argsFor(s.Block, args)}) {
				s.Controller.Wait()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Close stops every controller.
func (p *Page) Close() {
	for _, s := range p.Snippets() {
		s.Controller.Close()
	}
}

func argsFor(block markdown.Block, args string) string {
	if !block.TakesArgs {
		return ""
	}
	return args
}
