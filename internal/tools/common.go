package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/mosteligible/mcp-codemode/internal/middleware"
)

// resolveGraphToken returns a Microsoft Graph bearer token in precedence
// order: explicit argument, request context, then process environment.
func resolveGraphToken(ctx context.Context, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if creds := middleware.CredentialsFrom(ctx); creds.GraphToken != "" {
		return creds.GraphToken, nil
	}
	if v := os.Getenv("MICROSOFT_GRAPH_TOKEN"); v != "" {
		return v, nil
	}
	if v := os.Getenv("GRAPH_TOKEN"); v != "" {
		return v, nil
	}
	return "", errors.New("Microsoft Graph token is required. Provide token argument or set MICROSOFT_GRAPH_TOKEN/GRAPH_TOKEN.")
}

// resolveGitHubUsername returns a GitHub username from the explicit argument
// or the request context.
func resolveGitHubUsername(ctx context.Context, arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if creds := middleware.CredentialsFrom(ctx); creds.GitHubUsername != "" {
		return creds.GitHubUsername, nil
	}
	return "", errors.New("GitHub username is required. Provide username argument or set the X-GitHub-Username header.")
}

// requestJSON sends an HTTP request and decodes the JSON response. Non-2xx
// statuses are returned as errors carrying the status code.
func (r *Registry) requestJSON(ctx context.Context, method, rawURL string, headers map[string]string, query url.Values, body any) (any, error) {
	if len(query) > 0 {
		sep := "?"
		if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		rawURL = rawURL + sep + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned %d for %s %s", resp.StatusCode, method, req.URL.Path)
	}

	var payload any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("decode upstream response: %w", err)
		}
	}
	return payload, nil
}

// collectPaginatedValues walks Graph-style `value` collections following
// @odata.nextLink up to maxPages pages.
func (r *Registry) collectPaginatedValues(ctx context.Context, firstURL string, headers map[string]string, query url.Values, maxPages int) ([]any, error) {
	results := make([]any, 0)
	nextURL := firstURL
	currentQuery := query

	for page := 0; nextURL != "" && page < maxPages; page++ {
		payload, err := r.requestJSON(ctx, http.MethodGet, nextURL, headers, currentQuery, nil)
		if err != nil {
			return nil, err
		}
		currentQuery = nil

		obj, ok := payload.(map[string]any)
		if !ok {
			break
		}
		if value, ok := obj["value"].([]any); ok {
			results = append(results, value...)
		}
		nextURL, _ = obj["@odata.nextLink"].(string)
	}

	return results, nil
}

// jsonResult marshals a tool payload into an indented JSON text result.
func jsonResult(payload any) (string, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(encoded), nil
}
