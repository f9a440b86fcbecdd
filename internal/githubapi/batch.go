package githubapi

import (
	"context"
	"fmt"
	"net/http"
)

// FileWrite is one blob destined for a batch commit.
type FileWrite struct {
	Path    string
	Content []byte
}

type gitRef struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type gitCommit struct {
	SHA string `json:"sha"`
}

type gitTreeEntry struct {
	Path    string `json:"path"`
	Mode    string `json:"mode"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type gitTree struct {
	SHA string `json:"sha"`
}

type gitBlob struct {
	SHA string `json:"sha"`
}

// GetRefSHA returns the commit SHA a branch currently points at.
func (c *Client) GetRefSHA(ctx context.Context, branch string) (string, error) {
	var ref gitRef
	_, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", c.owner, c.repo, branch), nil, &ref)
	if err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// CreateBranch points a new branch at fromSHA. If the branch already
// exists the API answers 422, which is returned as an error.
func (c *Client) CreateBranch(ctx context.Context, branch, fromSHA string) error {
	body := map[string]any{
		"ref": "refs/heads/" + branch,
		"sha": fromSHA,
	}
	_, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/git/refs", c.owner, c.repo), body, nil)
	return err
}

// UpdateRef fast-forwards (or, with force, rewrites) a branch to
// newSHA.
func (c *Client) UpdateRef(ctx context.Context, branch, newSHA string, force bool) error {
	body := map[string]any{"sha": newSHA, "force": force}
	_, err := c.do(ctx, http.MethodPatch,
		fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", c.owner, c.repo, branch), body, nil)
	return err
}

// CommitBatch builds one tree containing files, one commit parented
// on parentSHA, and returns the new commit SHA. It does not move any
// ref — the caller decides whether to UpdateRef (direct push) or
// retry on conflict first. This is the vehicle behind PutBatch's "one
// tree object referencing all blobs, one ref-update" contract.
func (c *Client) CommitBatch(ctx context.Context, parentSHA string, files []FileWrite, message string) (string, error) {
	entries := make([]gitTreeEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, gitTreeEntry{
			Path:    f.Path,
			Mode:    "100644",
			Type:    "blob",
			Content: string(f.Content),
		})
	}

	var tree gitTree
	_, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/git/trees", c.owner, c.repo),
		map[string]any{"base_tree": parentSHA, "tree": entries}, &tree)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}

	var commit gitCommit
	_, err = c.do(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/git/commits", c.owner, c.repo),
		map[string]any{"message": message, "tree": tree.SHA, "parents": []string{parentSHA}}, &commit)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	return commit.SHA, nil
}

// CreatePullRequest opens a PR from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, head, base string) (number int, err error) {
	var pr struct {
		Number int `json:"number"`
	}
	_, err = c.do(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/pulls", c.owner, c.repo),
		map[string]any{"title": title, "body": body, "head": head, "base": base}, &pr)
	if err != nil {
		return 0, err
	}
	return pr.Number, nil
}
