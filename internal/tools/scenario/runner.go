package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/instaagents/discovery/internal/platform/timeouts"
	discoveryapi "github.com/instaagents/discovery/internal/services/mcp/domain"
)

// Config controls scenario execution.
type Config struct {
	APIBaseURL string
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		APIBaseURL: "http://localhost:8085",
		Timeout:    timeouts.ProviderRequest,
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

// Runner executes Lua scenarios against the discovery HTTP API.
type Runner struct {
	client     *discoveryapi.Client
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
}

// NewRunner prepares a scenario runner for the configured API.
func NewRunner(cfg Config) (*Runner, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("api base url is required")
	}
	client, err := discoveryapi.NewClient(discoveryapi.ClientConfig{BaseURL: cfg.APIBaseURL})
	if err != nil {
		return nil, err
	}
	return newRunnerWithClient(cfg, client), nil
}

// newRunnerWithClient builds a Runner from a pre-built API client.
// Config defaults (logger, timeout) are applied here so they are testable.
func newRunnerWithClient(cfg Config, client *discoveryapi.Client) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.ProviderRequest
	}

	return &Runner{
		client:     client,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario waits for the API to accept traffic and replays the steps.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}

	readyCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err := r.client.WaitForHealth(readyCtx)
	cancel()
	if err != nil {
		return err
	}

	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &dialogueState{}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

// dialogueState carries the conversation identity across steps.
type dialogueState struct {
	conversationID string
	source         string
	locale         string
	lastReply      discoveryapi.ChatResponse
	hasReply       bool
}

func (r *Runner) runStep(ctx context.Context, state *dialogueState, step Step) error {
	switch step.Kind {
	case "start":
		*state = dialogueState{
			source: requiredString(step.Args, "source"),
			locale: requiredString(step.Args, "locale"),
		}
		return nil
	case "say":
		return r.runSayStep(ctx, state, step)
	case "expect_stage":
		if !state.hasReply {
			return r.failf("expect_stage needs a prior say")
		}
		want := requiredString(step.Args, "stage")
		if got := state.lastReply.Stage; got != want {
			return r.assertf("stage = %q, want %q", got, want)
		}
		return nil
	case "expect_contains":
		if !state.hasReply {
			return r.failf("expect_contains needs a prior say")
		}
		want := requiredString(step.Args, "text")
		if !strings.Contains(strings.ToLower(state.lastReply.Response), strings.ToLower(want)) {
			return r.assertf("reply %q does not contain %q", truncate(state.lastReply.Response, 120), want)
		}
		return nil
	case "expect_calendly":
		if !state.hasReply {
			return r.failf("expect_calendly needs a prior say")
		}
		if !state.lastReply.CalendlyShown {
			return r.assertf("expected calendly link to be shown")
		}
		return nil
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runSayStep(ctx context.Context, state *dialogueState, step Step) error {
	message := requiredString(step.Args, "message")
	if message == "" {
		return r.failf("say needs a message")
	}

	reply, err := r.client.SendChat(ctx, discoveryapi.ChatRequest{
		ConversationID: state.conversationID,
		Message:        message,
		Source:         state.source,
		Locale:         state.locale,
	})
	if err != nil {
		return fmt.Errorf("send chat: %w", err)
	}

	state.conversationID = reply.ConversationID
	state.lastReply = reply
	state.hasReply = true
	r.logf("assistant [%s]: %s", reply.Stage, truncate(reply.Response, 120))
	return nil
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

func requiredString(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return ""
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
