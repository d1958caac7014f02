package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nomagicln/ipogen/pkg/cli"
	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/render"
)

// Tool names.
const (
	ToolGenerate      = "generate_covering_array"
	ToolValidate      = "validate_model"
	ToolImportOpenAPI = "import_openapi"
	ToolListModels    = "list_models"
)

// Handler serves the ipogen tools.
type Handler struct {
	generator *cli.Handler
	models    *config.Manager
	formatter *cli.ErrorFormatter
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithModels lets the tools read saved models by name.
func WithModels(m *config.Manager) HandlerOption {
	return func(h *Handler) {
		h.models = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a tool handler on top of the command handler.
func NewHandler(gen *cli.Handler, opts ...HandlerOption) *Handler {
	h := &Handler{
		generator: gen,
		formatter: cli.NewErrorFormatter(),
		logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds the tools to s.
func (h *Handler) Register(s *mcp.Server) {
	for _, tool := range h.Tools() {
		s.AddTool(tool, h.handlerFor(tool.Name))
	}
}

// Tools returns the tool definitions. list_models is only offered when saved
// models are available.
func (h *Handler) Tools() []*mcp.Tool {
	modelProps := map[string]any{
		"model": map[string]any{
			"type":        "string",
			"description": "Model document in YAML with factors, levels and optional constraints.",
		},
		"name": map[string]any{
			"type":        "string",
			"description": "Name of a saved model, used when 'model' is empty.",
		},
	}

	generateProps := map[string]any{
		"format": map[string]any{
			"type":        "string",
			"enum":        render.Formats,
			"description": "Output format. Defaults to json.",
		},
		"strength": map[string]any{
			"type":        "integer",
			"minimum":     2,
			"description": "Interaction strength t. Overrides the model.",
		},
		"engine": map[string]any{
			"type":        "string",
			"enum":        generator.EngineNames(),
			"description": "Generation engine. Overrides the model.",
		},
		"no_cache": map[string]any{
			"type":        "boolean",
			"description": "Generate even when an identical model was generated before.",
		},
		"verify": map[string]any{
			"type":        "boolean",
			"description": "Append a coverage report of the result.",
		},
	}
	for k, v := range modelProps {
		generateProps[k] = v
	}

	tools := []*mcp.Tool{
		{
			Name: ToolGenerate,
			Description: "Generate a t-way covering array: a small set of test cases in which every " +
				"combination of t factor levels allowed by the constraints appears at least once.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": generateProps,
			},
		},
		{
			Name:        ToolValidate,
			Description: "Check a model document for errors without generating test cases.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": modelProps,
			},
		},
		{
			Name:        ToolImportOpenAPI,
			Description: "Derive a model from the enum and boolean inputs of one OpenAPI 3 operation.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"spec": map[string]any{
						"type":        "string",
						"description": "OpenAPI 3 document in YAML or JSON.",
					},
					"operation": map[string]any{
						"type":        "string",
						"description": "operationId to import. May be empty for single-operation documents.",
					},
				},
				"required": []string{"spec"},
			},
		},
	}
	if h.models != nil {
		tools = append(tools, &mcp.Tool{
			Name:        ToolListModels,
			Description: "List the saved models that can be passed as 'name'.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		})
	}
	return tools
}

func (h *Handler) handlerFor(name string) mcp.ToolHandler {
	switch name {
	case ToolGenerate:
		return h.handleGenerate
	case ToolValidate:
		return h.handleValidate
	case ToolImportOpenAPI:
		return h.handleImportOpenAPI
	default:
		return h.handleListModels
	}
}

type modelArgs struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

type generateArgs struct {
	modelArgs
	Format   string `json:"format"`
	Strength int    `json:"strength"`
	Engine   string `json:"engine"`
	NoCache  bool   `json:"no_cache"`
	Verify   bool   `json:"verify"`
}

func (h *Handler) handleGenerate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args generateArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	if args.Format == "" {
		args.Format = "json"
	}

	m, err := h.loadModel(args.modelArgs)
	if err != nil {
		return h.failure(err), nil
	}

	out, err := h.generator.Generate(ctx, m, cli.GenerateOptions{
		Strength: args.Strength,
		Engine:   args.Engine,
		NoCache:  args.NoCache,
	})
	if err != nil {
		return h.failure(err), nil
	}
	h.logger.Debug("tool generated covering array",
		"model", out.Model.Name, "cached", out.Cached, "test_cases", len(out.Array.TestCases))

	var buf bytes.Buffer
	if err := render.CoveringArray(&buf, out.Array, args.Format); err != nil {
		return h.failure(err), nil
	}

	if args.Verify {
		report, err := h.generator.Verify(out)
		if err != nil {
			return h.failure(err), nil
		}
		buf.WriteString("\n")
		if err := render.Report(&buf, report); err != nil {
			return h.failure(err), nil
		}
	}
	return textResult(buf.String()), nil
}

func (h *Handler) handleValidate(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args modelArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}

	m, err := h.loadModel(args)
	if err != nil {
		return h.failure(err), nil
	}
	resolved, _, err := h.generator.Prepare(m, cli.GenerateOptions{})
	if err != nil {
		return h.failure(err), nil
	}

	name := resolved.Name
	if name == "" {
		name = "(unnamed)"
	}
	return textResult(fmt.Sprintf("Model %s is valid: %d factors, %d constraints, strength %d, engine %s",
		name, len(resolved.Factors), len(resolved.Constraints), resolved.Strength, resolved.Engine)), nil
}

func (h *Handler) handleImportOpenAPI(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Spec      string `json:"spec"`
		Operation string `json:"operation"`
	}
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("Invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(args.Spec) == "" {
		return errorResult("spec is required"), nil
	}

	doc, err := model.ParseOpenAPI(ctx, []byte(args.Spec))
	if err != nil {
		return h.failure(err), nil
	}
	m, err := model.FromOpenAPI(doc, args.Operation)
	if err != nil {
		return h.failure(err), nil
	}
	data, err := m.Marshal()
	if err != nil {
		return h.failure(err), nil
	}
	return textResult(string(data)), nil
}

func (h *Handler) handleListModels(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.models == nil {
		return errorResult("saved models are not available"), nil
	}
	names, err := h.models.ListModels()
	if err != nil {
		return h.failure(err), nil
	}
	if len(names) == 0 {
		return textResult("No saved models"), nil
	}
	return textResult(strings.Join(names, "\n")), nil
}

func (h *Handler) loadModel(args modelArgs) (*model.Model, error) {
	switch {
	case strings.TrimSpace(args.Model) != "":
		return model.Parse([]byte(args.Model))
	case args.Name != "":
		if h.models == nil {
			return nil, fmt.Errorf("saved models are not available")
		}
		path, err := h.models.ModelPath(args.Name)
		if err != nil {
			return nil, err
		}
		return model.Load(path)
	default:
		return nil, fmt.Errorf("either 'model' or 'name' is required")
	}
}

func (h *Handler) failure(err error) *mcp.CallToolResult {
	var saved []string
	if h.models != nil {
		saved, _ = h.models.ListModels()
	}
	return errorResult("%s", h.formatter.FormatErrorWithContext(err, saved))
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
