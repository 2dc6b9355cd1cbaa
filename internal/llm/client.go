package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.2
	DefaultAPIKeyEnv   = "GROQ_API_KEY"
)

// Response is the outcome of one Generate call, retries included.
// Attempts is at least 1, even when the request failed before reaching
// the completion service.
type Response struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	Temperature  float64
}

// Completer is the text-completion service. Errors are treated as transient.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFactory builds a Completer for an API key.
type CompleterFactory func(apiKey string) (Completer, error)

// CredentialFunc resolves the API key at call time. Empty means not configured.
type CredentialFunc func() string

// EnvCredential reads the API key from the named environment variable.
func EnvCredential(name string) CredentialFunc {
	return func() string {
		return strings.TrimSpace(os.Getenv(name))
	}
}

type Config struct {
	Model       string
	Temperature float64
	Retry       RetryPolicy
	// CredentialName is only used in error messages.
	CredentialName string
}

func DefaultConfig() Config {
	return Config{
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		Retry:          DefaultRetryPolicy(),
		CredentialName: DefaultAPIKeyEnv,
	}
}

// Client sends prompts to the completion service with bounded retries.
// The backend is created on first use and shared by later calls.
type Client struct {
	config     Config
	credential CredentialFunc
	factory    CompleterFactory
	logger     *logrus.Logger
	sleep      sleepFunc

	mu      sync.Mutex
	backend Completer
}

func NewClient(config Config, credential CredentialFunc, factory CompleterFactory, logger *logrus.Logger) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.CredentialName == "" {
		config.CredentialName = DefaultAPIKeyEnv
	}
	config.Retry = config.Retry.normalized()
	if credential == nil {
		credential = EnvCredential(config.CredentialName)
	}
	return &Client{
		config:     config,
		credential: credential,
		factory:    factory,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// HasCredential reports whether an API key is currently available.
func (c *Client) HasCredential() bool {
	return c.credential() != ""
}

// Generate never returns an error: failures are reported in the Response.
func (c *Client) Generate(ctx context.Context, systemPrompt, userMessage string) Response {
	apiKey := c.credential()
	if apiKey == "" {
		return c.failure(fmt.Sprintf("%s environment variable is not set.", c.config.CredentialName), 1)
	}

	backend, err := c.ensureBackend(apiKey)
	if err != nil {
		c.logger.WithError(err).Error("Failed to initialise completion client")
		return c.failure(fmt.Sprintf("failed to initialise completion client: %v", err), 1)
	}

	req := CompletionRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		Model:        c.config.Model,
		Temperature:  c.config.Temperature,
	}

	policy := c.config.Retry
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		text, err := backend.Complete(ctx, req)
		if err == nil {
			c.logger.WithFields(logrus.Fields{
				"model":   c.config.Model,
				"attempt": attempt,
			}).Info("Completion succeeded")
			return Response{
				Text:     strings.TrimSpace(text),
				Model:    c.config.Model,
				Success:  true,
				Attempts: attempt,
			}
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		c.logger.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": policy.MaxAttempts,
			"delay":        delay,
			"error":        err.Error(),
		}).Warn("Completion failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return c.failure(fmt.Sprintf("generation cancelled after %d attempt(s): %v. Last error: %v", attempt, err, lastErr), attempt)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"attempts": policy.MaxAttempts,
		"error":    lastErr.Error(),
	}).Error("Completion failed after all attempts")

	return c.failure(fmt.Sprintf("All %d attempts failed. Last error: %v", policy.MaxAttempts, lastErr), policy.MaxAttempts)
}

func (c *Client) ensureBackend(apiKey string) (Completer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}
	if c.factory == nil {
		return nil, fmt.Errorf("no completion backend configured")
	}

	backend, err := c.factory(apiKey)
	if err != nil {
		return nil, err
	}
	c.backend = backend
	c.logger.WithField("model", c.config.Model).Info("Completion client initialised")
	return backend, nil
}

func (c *Client) failure(msg string, attempts int) Response {
	return Response{
		Model:    c.config.Model,
		Success:  false,
		Error:    msg,
		Attempts: attempts,
	}
}
