// Package githubapi is a minimal GitHub REST + GraphQL client scoped
// to what the durable store adapter's remote backend needs: reading
// and writing blobs via the Contents API, building commits via the
// Git Data API (trees, commits, refs) for atomic multi-file batches,
// and opening pull requests. Discussion creation has no REST
// endpoint, so that one mutation goes through GraphQL.
package githubapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.github.com"
const graphQLURL = "https://api.github.com/graphql"

// Client talks to one repository's REST and GraphQL surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
	userAgent  string
}

// FromEnvironment builds a Client from the environment variables the
// hosting platform injects: GITHUB_TOKEN/GH_TOKEN for auth,
// GITHUB_REPOSITORY ("owner/repo") for the target. Returns nil, nil
// when no repository is configured — callers fall back to the local
// backend.
func FromEnvironment() (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	repoSlug := os.Getenv("GITHUB_REPOSITORY")
	if token == "" || repoSlug == "" {
		return nil, nil
	}
	owner, repo, ok := strings.Cut(repoSlug, "/")
	if !ok {
		return nil, fmt.Errorf("malformed GITHUB_REPOSITORY %q", repoSlug)
	}
	return New(token, owner, repo), nil
}

// New builds a Client against api.github.com for owner/repo.
func New(token, owner, repo string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		owner:      owner,
		repo:       repo,
		userAgent:  "content-acquisition-pipeline",
	}
}

// IsGitHubActions reports whether the process is running under
// GitHub Actions, the signal the pipeline uses to prefer the remote
// backend over local filesystem writes.
func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// WorkingRef returns the branch the run started from, per
// GITHUB_REF_NAME, defaulting to "main".
func WorkingRef() string {
	if ref := os.Getenv("GITHUB_REF_NAME"); ref != "" {
		return ref
	}
	return "main"
}

// RunID returns GITHUB_RUN_ID for provenance stamping, or "".
func RunID() string {
	return os.Getenv("GITHUB_RUN_ID")
}

// RepoSlug returns "owner/repo", for building user-facing URLs.
func (c *Client) RepoSlug() string {
	return c.owner + "/" + c.repo
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

func (c *Client) graphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	payload := map[string]any{"query": query, "variables": variables}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphQLURL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode graphql envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

// contentEntry is the Contents API response/request shape.
type contentEntry struct {
	SHA     string `json:"sha,omitempty"`
	Content string `json:"content,omitempty"`
}

// GetFile fetches a file's decoded content and blob SHA at ref. Returns
// (nil, "", nil) if the file does not exist.
func (c *Client) GetFile(ctx context.Context, path, ref string) ([]byte, string, error) {
	var entry contentEntry
	resp, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", c.owner, c.repo, path, ref), nil, &entry)
	if err != nil {
		var statusErr *StatusError
		if isStatusError(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, "", nil
		}
		return nil, "", err
	}
	_ = resp
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return nil, "", fmt.Errorf("decode content: %w", err)
	}
	return decoded, entry.SHA, nil
}

// PutFile creates or updates a single file via the Contents API —
// one call, one commit. existingSHA must be the blob SHA returned by
// GetFile when updating, empty when creating.
func (c *Client) PutFile(ctx context.Context, path string, data []byte, message, branch, existingSHA string) error {
	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(data),
		"branch":  branch,
	}
	if existingSHA != "" {
		body["sha"] = existingSHA
	}
	_, err := c.do(ctx, http.MethodPut,
		fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, path), body, nil)
	return err
}

func isStatusError(err error, target **StatusError) bool {
	se, ok := err.(*StatusError)
	if !ok {
		return false
	}
	*target = se
	return true
}
