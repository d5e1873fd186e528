// Package api implements the HTTP client for the relay server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the relay server's JSON API. It keeps the token pair from
// the last login and retries a request once with a refreshed access token
// when the server answers 401.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	accessToken  string
	refreshToken string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type ImageSummary struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	HopsLeft  int       `json:"hops_left"`
	EditTime  int       `json:"edit_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, authed bool) error {
	err := c.doOnce(ctx, method, path, body, out, authed)

	var apiErr *apiError
	if authed && errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && c.refreshToken != "" {
		if rerr := c.Refresh(ctx); rerr != nil {
			return err
		}
		return c.doOnce(ctx, method, path, body, out, authed)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, username, password, phoneNumber string) error {
	body := map[string]string{
		"username":     username,
		"password":     password,
		"phone_number": phoneNumber,
	}
	return c.do(ctx, http.MethodPost, "/register", body, nil, false)
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/login", body, &pair, false); err != nil {
		return err
	}
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	return nil
}

func (c *Client) Refresh(ctx context.Context) error {
	body := map[string]string{"refresh_token": c.refreshToken}
	var pair TokenPair
	if err := c.doOnce(ctx, http.MethodPost, "/token/refresh", body, &pair, false); err != nil {
		return err
	}
	c.accessToken = pair.AccessToken
	c.refreshToken = pair.RefreshToken
	return nil
}

func (c *Client) LoggedIn() bool {
	return c.accessToken != ""
}

func (c *Client) Logout() {
	c.accessToken = ""
	c.refreshToken = ""
}

func (c *Client) CreateImage(ctx context.Context, payload []byte, editTime, hops int, nextUser string) (string, error) {
	body := map[string]any{
		"image":     payload,
		"edit_time": editTime,
		"hops":      hops,
		"next_user": nextUser,
	}
	var out struct {
		ImageID string `json:"image_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/images", body, &out, true); err != nil {
		return "", err
	}
	return out.ImageID, nil
}

func (c *Client) PassImage(ctx context.Context, imageID string, payload []byte, nextUser string) (int, error) {
	body := map[string]any{"image": payload, "next_user": nextUser}
	var out struct {
		HopsLeft int `json:"hops_left"`
	}
	if err := c.do(ctx, http.MethodPost, "/images/"+imageID+"/pass", body, &out, true); err != nil {
		return 0, err
	}
	return out.HopsLeft, nil
}

func (c *Client) ListImages(ctx context.Context) ([]ImageSummary, error) {
	var out struct {
		Images []ImageSummary `json:"images"`
	}
	if err := c.do(ctx, http.MethodGet, "/images", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Images, nil
}

func (c *Client) FetchImage(ctx context.Context, imageID string) ([]byte, error) {
	var out struct {
		Image []byte `json:"image"`
	}
	if err := c.do(ctx, http.MethodGet, "/images/"+imageID, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Image, nil
}

func (c *Client) MarkSeen(ctx context.Context, imageID string) error {
	return c.do(ctx, http.MethodPost, "/images/"+imageID+"/seen", nil, nil, true)
}

func (c *Client) AddFriend(ctx context.Context, friend string) error {
	body := map[string]string{"friend": friend}
	return c.do(ctx, http.MethodPost, "/friends", body, nil, true)
}

func (c *Client) ListFriends(ctx context.Context) ([]string, error) {
	var out struct {
		Friends []string `json:"friends"`
	}
	if err := c.do(ctx, http.MethodGet, "/friends", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Friends, nil
}
