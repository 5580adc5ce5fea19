package chat

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/neboloop/hitomi/internal/auth"
)

// Cloud defaults.
const (
	DefaultModel          = "grok-4-latest"
	DefaultTemperature    = 0.4
	DefaultConnectTimeout = 15 * time.Second
	DefaultReplyTimeout   = 60 * time.Second
)

// ErrNoMessage is returned when the provider answers without content.
var ErrNoMessage = errors.New("chat: provider returned no message")

// noMessageText is what the user sees for ErrNoMessage.
const noMessageText = "Cloud provider returned no message."

//go:embed prompts/soul.md
var soulTemplate string

//go:embed prompts/tools.md
var toolsText string

// TokenSource supplies a fresh bearer token per call.
type TokenSource interface {
	EnsureValidAccessToken(ctx context.Context) (string, error)
}

// CloudConfig points the client at the hosted chat function.
type CloudConfig struct {
	// Endpoint is the full URL of the chat-completions function.
	Endpoint       string
	AnonKey        string
	Model          string
	Temperature    float64
	ConnectTimeout time.Duration
	ReplyTimeout   time.Duration
}

// CloudClient is the Service backed by an OpenAI-compatible hosted function.
type CloudClient struct {
	client openai.Client
	tokens TokenSource
	model  string
	temp   float64
}

// NewCloudClient builds a client. Requests always go to cfg.Endpoint exactly,
// whatever path the SDK would use.
func NewCloudClient(cfg CloudConfig, tokens TokenSource) (*CloudClient, error) {
	endpoint, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("chat: invalid endpoint %q", cfg.Endpoint)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		},
	}
	opts := []option.RequestOption{
		option.WithBaseURL(endpoint.Scheme + "://" + endpoint.Host + "/"),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.ReplyTimeout),
		option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
			u := *endpoint
			req.URL = &u
			req.Host = u.Host
			return next(req)
		}),
	}
	if cfg.AnonKey != "" {
		opts = append(opts, option.WithHeader("apikey", cfg.AnonKey))
	}
	return &CloudClient{
		client: openai.NewClient(opts...),
		tokens: tokens,
		model:  cfg.Model,
		temp:   cfg.Temperature,
	}, nil
}

// SystemPrompt renders the assistant persona for userName.
func SystemPrompt(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = auth.DefaultName
	}
	return strings.TrimSpace(strings.ReplaceAll(soulTemplate, "{user_name}", name)) + "\n\n" + strings.TrimSpace(toolsText)
}

// Send implements Service.
func (c *CloudClient) Send(ctx context.Context, history []Message, userName string) (string, error) {
	token, err := c.tokens.EnsureValidAccessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", auth.ErrNotSignedIn
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, openai.SystemMessage(SystemPrompt(userName)))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temp),
	}, option.WithAPIKey(token))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				return outOfTokens(userName), nil
			}
			return "", fmt.Errorf("cloud provider call failed (%d)%s", apiErr.StatusCode, providerDetail(apiErr))
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoMessage
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoMessage
	}
	return content, nil
}

func providerDetail(e *openai.Error) string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(" code=" + e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func outOfTokens(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		name = auth.DefaultName
	}
	return "I ran out of tokens, " + name + ". :(🐷 Let's talk again tomorrow. :)🦔"
}
