package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// Firebase is a Store backend over the Firebase Realtime Database REST API,
// matching the layout the service originally ran against. Reads are
// eventually consistent; callers that need read-through semantics (the ban
// check) get them because every Get is a fresh request.
type Firebase struct {
	baseURL string
	auth    string
	client  *retryablehttp.Client
}

// NewFirebase creates a backend for the database at baseURL
// (e.g. https://example.firebaseio.com). auth is an optional database secret
// or ID token appended to every request; pass "" for open rules.
func NewFirebase(baseURL, auth string) *Firebase {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	return &Firebase{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		client:  client,
	}
}

func (f *Firebase) Get(ctx context.Context, path string) (any, error) {
	body, err := f.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

func (f *Firebase) Set(ctx context.Context, path string, value any) error {
	_, err := f.do(ctx, http.MethodPut, path, value)
	return err
}

func (f *Firebase) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := f.do(ctx, http.MethodPatch, path, fields)
	return err
}

func (f *Firebase) Delete(ctx context.Context, path string) error {
	_, err := f.do(ctx, http.MethodDelete, path, nil)
	return err
}

func (f *Firebase) Append(ctx context.Context, path string, value any) (string, error) {
	body, err := f.do(ctx, http.MethodPost, path, value)
	if err != nil {
		return "", err
	}

	var pushed struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &pushed); err != nil {
		return "", fmt.Errorf("failed to decode push response: %w", err)
	}
	return pushed.Name, nil
}

func (f *Firebase) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	target := f.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if f.auth != "" {
		target += "?auth=" + url.QueryEscape(f.auth)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload for %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed for %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read store response for %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store returned %d for %s %s", resp.StatusCode, method, path)
	}
	return raw, nil
}

func decodeBody(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}
	// Absent paths come back as JSON null.
	return v, nil
}
