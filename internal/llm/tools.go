package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/LangChat/ai-tutorials/internal/models"
)

var (
	// ErrUnknownTool is returned when a model calls a tool that is not registered.
	ErrUnknownTool = errors.New("llm: unknown tool")
	// ErrMaxSteps is returned when a tool loop does not finish in time.
	ErrMaxSteps = errors.New("llm: tool loop exceeded max steps")
)

// ToolSpecification describes a tool to the model.
type ToolSpecification struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Tool is a function the model may call.
type Tool struct {
	Spec   ToolSpecification
	invoke func(ctx context.Context, args string) (any, error)
}

// NewTool creates a tool whose argument schema is derived from Arg. The
// model's JSON arguments are decoded into Arg before fn is called; malformed
// JSON is repaired when possible.
func NewTool[Arg any](name, description string, fn func(ctx context.Context, arg Arg) (any, error)) (*Tool, error) {
	if name == "" {
		return nil, errors.New("llm: tool name cannot be empty")
	}
	schema, err := jsonschema.For[Arg](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("tool %s: derive schema: %w", name, err)
	}
	return &Tool{
		Spec: ToolSpecification{Name: name, Description: description, Parameters: schema},
		invoke: func(ctx context.Context, args string) (any, error) {
			var v Arg
			if args == "" {
				args = "{}"
			}
			if err := unmarshalJSON([]byte(args), &v); err != nil {
				return nil, fmt.Errorf("unmarshal %q: %w", args, err)
			}
			return fn(ctx, v)
		},
	}, nil
}

// MustNewTool is like NewTool but panics on error.
func MustNewTool[Arg any](name, description string, fn func(ctx context.Context, arg Arg) (any, error)) *Tool {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// unmarshalJSON unmarshals data into v, repairing it first when it is not
// syntactically valid JSON.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// Toolbox holds the tools offered to a model.
type Toolbox struct {
	tools map[string]*Tool
}

// NewToolbox creates a toolbox holding tools.
func NewToolbox(tools ...*Tool) (*Toolbox, error) {
	tb := &Toolbox{tools: make(map[string]*Tool)}
	if err := tb.Register(tools...); err != nil {
		return nil, err
	}
	return tb, nil
}

// Register adds tools; a name may be registered only once.
func (tb *Toolbox) Register(tools ...*Tool) error {
	for _, t := range tools {
		if _, ok := tb.tools[t.Spec.Name]; ok {
			return fmt.Errorf("llm: tool %q already registered", t.Spec.Name)
		}
		tb.tools[t.Spec.Name] = t
	}
	return nil
}

// Specs returns the specifications of all tools, sorted by name.
func (tb *Toolbox) Specs() []ToolSpecification {
	specs := make([]ToolSpecification, 0, len(tb.tools))
	for _, t := range tb.tools {
		specs = append(specs, t.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute runs the requested tool and returns the tool result message. A
// failing tool yields a result whose content starts with "error: " so the
// model can react to it; only an unknown tool is reported as an error.
func (tb *Toolbox) Execute(ctx context.Context, call models.ToolCall) (models.ChatMessage, error) {
	t, ok := tb.tools[call.Name]
	if !ok {
		return models.ChatMessage{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	out, err := t.invoke(ctx, call.Arguments)
	if err != nil {
		return models.ToolResultMessage(call.ID, call.Name, "error: "+err.Error()), nil
	}
	return models.ToolResultMessage(call.ID, call.Name, formatResult(out)), nil
}

func formatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// RunTools sends messages to model with the toolbox's tools and executes
// every tool call it makes, feeding the results back, until the model
// answers without tool calls or maxSteps model calls have been made. It
// returns the final response and the conversation including all
// intermediate assistant and tool messages.
func RunTools(ctx context.Context, model ChatModel, messages []models.ChatMessage, tb *Toolbox, maxSteps int) (*ChatResponse, []models.ChatMessage, error) {
	if maxSteps <= 0 {
		maxSteps = 5
	}
	conv := append([]models.ChatMessage(nil), messages...)
	for step := 0; step < maxSteps; step++ {
		resp, err := model.Chat(ctx, &ChatRequest{Messages: conv, Tools: tb.Specs()})
		if err != nil {
			return nil, conv, err
		}
		conv = append(conv, resp.Message)
		if !resp.Message.HasToolCalls() {
			return resp, conv, nil
		}
		for _, call := range resp.Message.ToolCalls {
			result, err := tb.Execute(ctx, call)
			if err != nil {
				return nil, conv, err
			}
			conv = append(conv, result)
		}
	}
	return nil, conv, fmt.Errorf("%w (%d)", ErrMaxSteps, maxSteps)
}
