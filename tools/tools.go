package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/snippetrun/config"
	"github.com/jonwraymond/snippetrun/snippet"
)

// Tool names and namespace.
const (
	Namespace    = "snippet"
	RunToolName  = "run_snippet"
	ViewToolName = "view_snippet"
)

// Errors for tool calls.
var (
	ErrEmptySource  = errors.New("source is required")
	ErrToolNotFound = errors.New("tool not found")
)

// RunInput is the argument of run_snippet.
type RunInput struct {
	Source string `json:"source" jsonschema:"full snippet source; marker lines are stripped before execution"`
	Args   string `json:"args,omitempty" jsonschema:"command-line arguments passed to the program"`
}

// RunOutput is the structured result of run_snippet.
type RunOutput struct {
	OK          bool   `json:"ok"`
	DisplayText string `json:"displayText"`
	Style       string `json:"styleTag"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	Stdout      string `json:"stdout"`
	Error       string `json:"error"`
}

// ViewInput is the argument of view_snippet.
type ViewInput struct {
	Source   string `json:"source" jsonschema:"full snippet source"`
	Expanded bool   `json:"expanded,omitempty" jsonschema:"show the full code instead of the highlighted region"`
}

// ViewOutput is the structured result of view_snippet.
type ViewOutput struct {
	DisplayedCode string `json:"displayedCode"`
	Clean         string `json:"clean"`
	HasMarkers    bool   `json:"hasMarkers"`
	StartLine     int    `json:"startLine"`
	EndLine       int    `json:"endLine"`
}

// Service runs and views snippets on behalf of remote callers.
//
// Contract:
// - Concurrency: safe for concurrent use; every call gets its own controller.
// - Errors: run failures are reported in RunOutput, not as errors.
type Service struct {
	cfg    config.Config
	runner snippet.Runner
	logger snippet.Logger
}

// NewService creates a Service.
func NewService(cfg config.Config, runner snippet.Runner, logger snippet.Logger) *Service {
	return &Service{cfg: cfg, runner: runner, logger: logger}
}

// RunSnippet executes in.Source and waits for the classified result.
func (s *Service) RunSnippet(ctx context.Context, in RunInput) (RunOutput, error) {
	if strings.TrimSpace(in.Source) == "" {
		return RunOutput{}, ErrEmptySource
	}

	ctrl := snippet.New(in.Source, s.runner, s.controllerOptions())
	defer ctrl.Close()

	ctrl.Dispatch(ctx, snippet.Run{Args: in.Args})
	ctrl.Wait()

	state := ctrl.Snapshot()
	out := RunOutput{}
	if state.Result != nil {
		out.OK = state.Result.OK
		out.DisplayText = state.Result.DisplayText
		out.Style = string(state.Result.Style)
	}
	if state.Outcome != nil {
		out.ExitCode = state.Outcome.ExitCode
		out.Stdout = state.Outcome.Stdout
		out.Error = state.Outcome.StderrOrError
	}
	return out, nil
}

// ViewSnippet returns the code a reader would see for in.Source.
func (s *Service) ViewSnippet(ctx context.Context, in ViewInput) (ViewOutput, error) {
	if strings.TrimSpace(in.Source) == "" {
		return ViewOutput{}, ErrEmptySource
	}

	ctrl := snippet.New(in.Source, s.runner, s.controllerOptions())
	if in.Expanded {
		ctrl.Dispatch(ctx, snippet.Toggle{})
	}
	view := ctrl.View()
	return ViewOutput{
		DisplayedCode: ctrl.Snapshot().DisplayedCode,
		Clean:         view.Clean,
		HasMarkers:    view.Span.HasMarkers,
		StartLine:     view.Span.StartLine,
		EndLine:       view.Span.EndLine,
	}, nil
}

func (s *Service) controllerOptions() snippet.Options {
	return snippet.Options{
		Tokens:      s.cfg.Tokens(),
		HideMarkers: s.cfg.HideMarkers(),
		Logger:      s.logger,
	}
}

// definition describes one tool.
type definition struct {
	Name        string
	Title       string
	Description string
	Tags        []string
}

var definitions = []definition{
	{
		Name:        RunToolName,
		Title:       "Run snippet",
		Description: "Execute a documentation code snippet on the remote executor and return its classified output.",
		Tags:        []string{"execute", "snippet", "Remote"},
	},
	{
		Name:        ViewToolName,
		Title:       "View snippet",
		Description: "Return the highlighted region or the full code of a snippet with marker lines resolved.",
		Tags:        []string{"view", "snippet", "markers"},
	},
}

// ListTools returns the tools this service provides.
func (s *Service) ListTools() []model.Tool {
	out := make([]model.Tool, 0, len(definitions))
	for _, def := range definitions {
		out = append(out, model.Tool{
			Tool: mcp.Tool{
				Name:        def.Name,
				Title:       def.Title,
				Description: def.Description,
			},
			Namespace: Namespace,
			Tags:      model.NormalizeTags(def.Tags),
		})
	}
	return out
}

// Execute invokes a tool by ID ("snippet:run_snippet") or bare name with
// untyped arguments.
func (s *Service) Execute(ctx context.Context, id string, args map[string]any) (any, error) {
	name := id
	if strings.Contains(id, ":") {
		ns, tool, err := model.ParseToolID(id)
		if err != nil || ns != Namespace {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
		}
		name = tool
	}

	source, _ := args["source"].(string)
	switch name {
	case RunToolName:
		runArgs, _ := args["args"].(string)
		return s.RunSnippet(ctx, RunInput{Source: source, Args: runArgs})
	case ViewToolName:
		expanded, _ := args["expanded"].(bool)
		return s.ViewSnippet(ctx, ViewInput{Source: source, Expanded: expanded})
	default:
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}
}
