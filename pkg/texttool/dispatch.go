package texttool

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/pcurtin/mcp-texttools/internal/config"
	"github.com/pcurtin/mcp-texttools/internal/errors"
	"github.com/pcurtin/mcp-texttools/internal/logging"
	"github.com/pcurtin/mcp-texttools/pkg/capabilities/tools"
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// Config controls the dispatch pipeline limits.
type Config struct {
	// MaxTextLength is the maximum input size in runes; zero selects the default.
	MaxTextLength int
	// Timeout is the per-call execution deadline; zero selects the default.
	Timeout time.Duration
	// Logger receives pipeline events; nil selects the package default.
	Logger *slog.Logger
}

// Executor owns the dispatch pipeline for the built-in tools: schema
// validation, the timeout guard, execution, and envelope encoding.
type Executor struct {
	defs      []Definition
	validator *Validator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewExecutor builds an executor over the full tool catalog.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = config.DefaultMaxTextLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultToolTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLoggerFactory().CreateLogger("texttool")
	}

	defs := Catalog()
	validator, err := NewValidator(cfg.MaxTextLength, defs)
	if err != nil {
		return nil, err
	}

	return &Executor{
		defs:      defs,
		validator: validator,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}, nil
}

// Definitions returns the catalog backing this executor, in registration order.
func (e *Executor) Definitions() []Definition {
	return e.defs
}

// Tools returns the tool registrations in catalog order, each wired through
// the validation and timeout pipeline.
func (e *Executor) Tools() []*tools.ToolWithHandler {
	out := make([]*tools.ToolWithHandler, 0, len(e.defs))
	for _, def := range e.defs {
		out = append(out, tools.NewTool(def.Name, def.Description, def.InputSchema(), nil, e.handlerFor(def)))
	}
	return out
}

func (e *Executor) handlerFor(def Definition) tools.ToolHandler {
	return func(ctx context.Context, arguments json.RawMessage) (*tools.ToolResult, error) {
		return e.execute(ctx, def, arguments), nil
	}
}

// execute runs the per-invocation pipeline. Every failure past the registry
// lookup is soft: it lands in an error envelope flagged isError, never in a
// protocol fault.
func (e *Executor) execute(ctx context.Context, def Definition, arguments json.RawMessage) *tools.ToolResult {
	logger := e.logger
	if callID, ok := protocol.GetCallID(ctx); ok {
		logger = logger.With("call", callID)
	}

	var args map[string]interface{}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			verr := errors.NewError(errors.InvalidType, "arguments must be a JSON object").WithCause(err)
			logging.Debug(logger, "rejecting tool call", "tool", def.Name, "error", verr)
			return failureResult(def.Name, verr)
		}
	}

	text, err := e.validator.Validate(def.Name, args)
	if err != nil {
		logging.Debug(logger, "rejecting tool call", "tool", def.Name, "error", err)
		return failureResult(def.Name, err)
	}

	logging.Debug(logger, "executing tool", "tool", def.Name, "input_length", utf8.RuneCountInString(text))

	payload, err := runGuarded(ctx, def.Name, e.timeout, func(execCtx context.Context) (string, error) {
		return apply(execCtx, def, text)
	})
	if err != nil {
		logging.Warn(logger, "tool execution failed", "tool", def.Name, "error", err)
		return failureResult(def.Name, err)
	}

	return tools.NewToolResult([]tools.ContentItem{tools.NewTextContent(payload)}, false)
}

// failureResult wraps a soft failure in an error-flagged tool result.
func failureResult(tool string, err error) *tools.ToolResult {
	return tools.NewToolResult([]tools.ContentItem{tools.NewTextContent(errorPayload(tool, err))}, true)
}

// apply performs the operation for the definition's kind and encodes the
// success envelope.
func apply(ctx context.Context, def Definition, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch def.Kind {
	case KindReverse:
		return successPayload(def.Name, text, Reverse(text))
	case KindUppercase:
		return successPayload(def.Name, text, Uppercase(text))
	case KindLowercase:
		return successPayload(def.Name, text, Lowercase(text))
	case KindWordCount:
		return successPayload(def.Name, text, WordCount(text))
	case KindCharacterCount:
		total, withoutSpaces := CharacterCount(text)
		return characterCountPayload(def.Name, total, withoutSpaces)
	case KindShuffle:
		return successPayload(def.Name, text, Shuffle(text))
	default:
		return "", errors.NewErrorf(errors.InternalFault, "no implementation for tool %s", def.Name)
	}
}
