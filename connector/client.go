package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// AccessTokenProvider supplies the bearer token attached to outbound
// connector requests.
type AccessTokenProvider interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// AccessTokenProviderFunc adapts a function to the AccessTokenProvider
// interface.
type AccessTokenProviderFunc func(ctx context.Context) (string, error)

// GetAccessToken calls the wrapped function.
func (f AccessTokenProviderFunc) GetAccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Options holds dependency + configuration overrides passed to NewFactory().
type Options struct {
	// HTTPClient performs the requests. Defaults to a client with a 30s
	// timeout.
	HTTPClient *http.Client
	// Tokens supplies bearer credentials. Without one, requests go out
	// anonymous, which only the emulator accepts.
	Tokens AccessTokenProvider
	// TrustStore gates credential attachment per service URL.
	TrustStore *core.TrustStore
	// Logging services.
	Logger logging.Logger
}

// Factory builds REST connector clients bound to a service URL.
// Credentials are only attached when the trust store knows the URL, so a
// spoofed serviceUrl in an inbound activity cannot exfiltrate a token.
type Factory struct {
	httpClient *http.Client
	tokens     AccessTokenProvider
	trustStore *core.TrustStore
	logger     logging.Logger
}

// NewFactory constructs a Factory with optional overrides.
func NewFactory(optFns ...func(o *Options)) *Factory {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		TrustStore: core.NewTrustStore(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Factory{
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		trustStore: opts.TrustStore,
		logger:     opts.Logger,
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) func(o *Options) {
	return func(o *Options) { o.HTTPClient = client }
}

// WithTokens sets the access token provider.
func WithTokens(tokens AccessTokenProvider) func(o *Options) {
	return func(o *Options) { o.Tokens = tokens }
}

// WithTrustStore sets the trust store gating credential attachment.
func WithTrustStore(store *core.TrustStore) func(o *Options) {
	return func(o *Options) { o.TrustStore = store }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// CreateConnectorClient implements core.ConnectorFactory.
func (f *Factory) CreateConnectorClient(serviceURL string, _ *core.ClaimsIdentity) (core.ConnectorClient, error) {
	if serviceURL == "" {
		return nil, &core.ValidationError{Op: "connector.CreateConnectorClient", Reason: "missing service URL"}
	}
	attachCredentials := f.tokens != nil && f.trustStore.IsTrusted(serviceURL)
	if !attachCredentials && f.tokens != nil {
		f.logger.Warn("service url not trusted, sending without credentials service_url=%s", serviceURL)
	}
	return &client{
		baseURL:           strings.TrimRight(serviceURL, "/"),
		httpClient:        f.httpClient,
		tokens:            f.tokens,
		attachCredentials: attachCredentials,
	}, nil
}

// client is the REST implementation of core.ConnectorClient.
type client struct {
	baseURL           string
	httpClient        *http.Client
	tokens            AccessTokenProvider
	attachCredentials bool
}

func (c *client) BaseURL() string { return c.baseURL }

func (c *client) SendToConversation(ctx context.Context, conversationID string, activity *core.Activity) (*core.ResourceResponse, error) {
	var response core.ResourceResponse
	path := fmt.Sprintf("v3/conversations/%s/activities", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodPost, path, activity, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *client) ReplyToActivity(ctx context.Context, conversationID, activityID string, activity *core.Activity) (*core.ResourceResponse, error) {
	var response core.ResourceResponse
	path := fmt.Sprintf("v3/conversations/%s/activities/%s", url.PathEscape(conversationID), url.PathEscape(activityID))
	if err := c.do(ctx, http.MethodPost, path, activity, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *client) UpdateActivity(ctx context.Context, conversationID, activityID string, activity *core.Activity) (*core.ResourceResponse, error) {
	var response core.ResourceResponse
	path := fmt.Sprintf("v3/conversations/%s/activities/%s", url.PathEscape(conversationID), url.PathEscape(activityID))
	if err := c.do(ctx, http.MethodPut, path, activity, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *client) DeleteActivity(ctx context.Context, conversationID, activityID string) error {
	path := fmt.Sprintf("v3/conversations/%s/activities/%s", url.PathEscape(conversationID), url.PathEscape(activityID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *client) CreateConversation(ctx context.Context, params *core.ConversationParameters) (*core.ConversationResourceResponse, error) {
	var response core.ConversationResourceResponse
	if err := c.do(ctx, http.MethodPost, "v3/conversations", params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *client) GetConversationMembers(ctx context.Context, conversationID string) ([]core.ChannelAccount, error) {
	var members []core.ChannelAccount
	path := fmt.Sprintf("v3/conversations/%s/members", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *client) GetActivityMembers(ctx context.Context, conversationID, activityID string) ([]core.ChannelAccount, error) {
	var members []core.ChannelAccount
	path := fmt.Sprintf("v3/conversations/%s/activities/%s/members", url.PathEscape(conversationID), url.PathEscape(activityID))
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *client) DeleteConversationMember(ctx context.Context, conversationID, memberID string) error {
	path := fmt.Sprintf("v3/conversations/%s/members/%s", url.PathEscape(conversationID), url.PathEscape(memberID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *client) GetConversations(ctx context.Context, continuationToken string) (*core.ConversationsResult, error) {
	path := "v3/conversations"
	if continuationToken != "" {
		path += "?continuationToken=" + url.QueryEscape(continuationToken)
	}
	var result core.ConversationsResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("connector %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return fmt.Errorf("connector %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.attachCredentials {
		token, err := c.tokens.GetAccessToken(ctx)
		if err != nil {
			return fmt.Errorf("connector %s %s: %w", method, path, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connector %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("connector %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("connector %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("connector %s %s: %w", method, path, err)
	}
	return nil
}
