package marker

// View holds the code variants derived from one source block.
type View struct {
	// Source is the block as authored.
	Source string

	// Span is the located marker pair.
	Span Span

	// Visible is the region between the markers, or the whole block when
	// the span is degenerate.
	Visible string

	// Clean is the block with every marker line removed. It is the only
	// form submitted for execution or copied.
	Clean string

	// Full is what an expanded snippet shows: Source, or Clean when marker
	// lines are hidden.
	Full string
}

// NewView derives the code variants for source.
func NewView(source string, tokens Tokens, hideMarkers bool) View {
	span := Locate(source, tokens.Start, tokens.End)
	clean := StripMarkerLines(source, tokens.Start, tokens.End)

	full := source
	if hideMarkers {
		full = clean
	}

	return View{
		Source:  source,
		Span:    span,
		Visible: ExtractVisible(source, span),
		Clean:   clean,
		Full:    full,
	}
}

// Collapsible reports whether the view has a region to collapse to.
func (v View) Collapsible() bool {
	return v.Span.HasMarkers
}
