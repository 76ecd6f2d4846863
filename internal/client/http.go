package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"maunium.net/go/mautrix/id"
)

// ErrUnauthorized matches API errors caused by a missing or invalid token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the management API.
type APIError struct {
	Method     string `json:"-"`
	Path       string `json:"-"`
	StatusCode int    `json:"-"`
	ErrCode    string `json:"errcode"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.ErrCode != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.ErrCode, msg)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is reports token errors as ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	if target != ErrUnauthorized {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized ||
		e.ErrCode == "auth_token_missing" || e.ErrCode == "auth_token_invalid"
}

// HTTPClient makes REST calls to the management API.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// NewHTTPClient creates a client for the given server base URL
// (e.g. "http://localhost:29316").
func NewHTTPClient(serverURL string, tokens TokenSource) *HTTPClient {
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(serverURL, "/") + BasePath,
		tokens:  tokens,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping checks the token and returns the username it belongs to.
func (c *HTTPClient) Ping(ctx context.Context) (string, error) {
	var out struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/ping", nil, "", &out); err != nil {
		return "", err
	}
	if out.Username == "" {
		return "", ErrUnauthorized
	}
	return out.Username, nil
}

// Instances fetches GET /instances.
func (c *HTTPClient) Instances(ctx context.Context) ([]Instance, error) {
	var out []Instance
	if err := c.get(ctx, "/instances", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Instance fetches GET /instance/{id}.
func (c *HTTPClient) Instance(ctx context.Context, instanceID string) (*Instance, error) {
	var out Instance
	if err := c.get(ctx, "/instance/"+url.PathEscape(instanceID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutInstance upserts an instance. An empty instanceID uses inst.ID; a
// different one renames the instance.
func (c *HTTPClient) PutInstance(ctx context.Context, inst Instance, instanceID string) (*Instance, error) {
	if instanceID == "" {
		instanceID = inst.ID
	}
	var out Instance
	if err := c.put(ctx, "/instance/"+url.PathEscape(instanceID), inst, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInstance sends DELETE /instance/{id}.
func (c *HTTPClient) DeleteInstance(ctx context.Context, instanceID string) (*Ack, error) {
	return c.delete(ctx, "/instance/"+url.PathEscape(instanceID))
}

// Clients fetches GET /clients.
func (c *HTTPClient) Clients(ctx context.Context) ([]Client, error) {
	var out []Client
	if err := c.get(ctx, "/clients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Client fetches GET /client/{id}.
func (c *HTTPClient) Client(ctx context.Context, userID id.UserID) (*Client, error) {
	var out Client
	if err := c.get(ctx, "/client/"+url.PathEscape(string(userID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutClient upserts a client under its own ID.
func (c *HTTPClient) PutClient(ctx context.Context, cl Client) (*Client, error) {
	var out Client
	if err := c.put(ctx, "/client/"+url.PathEscape(string(cl.ID)), cl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClient sends DELETE /client/{id}.
func (c *HTTPClient) DeleteClient(ctx context.Context, userID id.UserID) (*Ack, error) {
	return c.delete(ctx, "/client/"+url.PathEscape(string(userID)))
}

// Plugins fetches GET /plugins.
func (c *HTTPClient) Plugins(ctx context.Context) ([]Plugin, error) {
	var out []Plugin
	if err := c.get(ctx, "/plugins", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Plugin fetches GET /plugin/{id}.
func (c *HTTPClient) Plugin(ctx context.Context, pluginID string) (*Plugin, error) {
	var out Plugin
	if err := c.get(ctx, "/plugin/"+url.PathEscape(pluginID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePlugin sends DELETE /plugin/{id}.
func (c *HTTPClient) DeletePlugin(ctx context.Context, pluginID string) (*Ack, error) {
	return c.delete(ctx, "/plugin/"+url.PathEscape(pluginID))
}

// UploadPlugin uploads a plugin zip. With an ID it replaces that plugin,
// otherwise the server takes the ID from the archive.
func (c *HTTPClient) UploadPlugin(ctx context.Context, archive io.Reader, pluginID string) (*Plugin, error) {
	method, path := http.MethodPost, "/plugins/upload"
	if pluginID != "" {
		method, path = http.MethodPut, "/plugin/"+url.PathEscape(pluginID)
	}
	var out Plugin
	if err := c.do(ctx, method, path, archive, "application/zip", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AvatarURL returns the media proxy download URL for a client's avatar, or
// "" when the client has none.
func (c *HTTPClient) AvatarURL(cl Client) (string, error) {
	if cl.AvatarURL == "" {
		return "", nil
	}
	uri, err := cl.AvatarURL.Parse()
	if err != nil {
		return "", fmt.Errorf("avatar url: %w", err)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/proxy/%s/_matrix/media/r0/download/%s/%s?access_token=%s",
		c.baseURL, url.PathEscape(string(cl.ID)), uri.Homeserver, uri.FileID, url.QueryEscape(token)), nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *HTTPClient) put(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(data), "application/json", out)
}

func (c *HTTPClient) delete(ctx context.Context, path string) (*Ack, error) {
	ack := &Ack{}
	if err := c.do(ctx, http.MethodDelete, path, nil, "", ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.setAuth(req); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, apiErr) != nil && apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if resp.StatusCode == http.StatusNoContent {
		if ack, ok := out.(*Ack); ok {
			ack.Success = true
		}
		return nil
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) error {
	token, err := c.tokens.Token()
	if errors.Is(err, ErrNoToken) {
		return nil
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
