package api

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
)

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// User is an account as the server reports it. CreatedAt is only
// populated by Register.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Diagram struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	ShareUUID *string         `json:"share_uuid"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Export struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetToken(token string) { c.accessToken = token }
func (c *Client) Token() string         { return c.accessToken }

// do sends a request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if auth && c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	e := &Error{StatusCode: resp.StatusCode}

	var body struct {
		Detail string            `json:"detail"`
		Errors map[string]string `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil {
		e.Detail = body.Detail
		e.Fields = body.Errors
	}
	return e
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	in := map[string]string{"username": username, "email": email, "password": password}
	var u User
	if err := c.do(ctx, http.MethodPost, "/auth/register", in, &u, false); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	in := map[string]string{"username": username, "password": password}
	var t Token
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &t, false); err != nil {
		return nil, err
	}
	c.accessToken = t.AccessToken
	return &t, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true); err != nil {
		return err
	}
	c.accessToken = ""
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u, true); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/users/me", nil, nil, true); err != nil {
		return err
	}
	c.accessToken = ""
	return nil
}

func (c *Client) CreateDiagram(ctx context.Context, title string, content json.RawMessage) (*Diagram, error) {
	in := map[string]any{"title": title}
	if len(content) > 0 {
		in["content"] = content
	}
	var d Diagram
	if err := c.do(ctx, http.MethodPost, "/users/me/diagrams", in, &d, true); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) ListDiagrams(ctx context.Context) ([]Diagram, error) {
	var ds []Diagram
	if err := c.do(ctx, http.MethodGet, "/users/me/diagrams", nil, &ds, true); err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *Client) GetDiagram(ctx context.Context, id int64) (*Diagram, error) {
	var d Diagram
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/diagrams/%d", id), nil, &d, true); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteDiagram(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/diagrams/%d", id), nil, nil, true)
}

func (c *Client) ShareDiagram(ctx context.Context, id int64) (*Diagram, error) {
	var d Diagram
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/diagrams/%d/share", id), nil, &d, true); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) ExportDiagram(ctx context.Context, id int64) (*Export, error) {
	var e Export
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/diagrams/%d/export", id), nil, &e, true); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) GetShared(ctx context.Context, shareUUID string) (*Diagram, error) {
	var d Diagram
	if err := c.do(ctx, http.MethodGet, "/shared/"+url.PathEscape(shareUUID), nil, &d, false); err != nil {
		return nil, err
	}
	return &d, nil
}
