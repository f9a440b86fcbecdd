package githubapi

import "context"

// CreateDiscussion opens a discussion thread in categoryID. The
// Discussions API has no REST equivalent, so this is the one mutation
// in this package that goes over GraphQL rather than REST.
func (c *Client) CreateDiscussion(ctx context.Context, repositoryID, categoryID, title, body string) (string, error) {
	const mutation = `
mutation($repositoryId: ID!, $categoryId: ID!, $title: String!, $body: String!) {
  createDiscussion(input: {repositoryId: $repositoryId, categoryId: $categoryId, title: $title, body: $body}) {
    discussion { id url }
  }
}`
	var result struct {
		CreateDiscussion struct {
			Discussion struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"discussion"`
		} `json:"createDiscussion"`
	}
	err := c.graphQL(ctx, mutation, map[string]any{
		"repositoryId": repositoryID,
		"categoryId":   categoryID,
		"title":        title,
		"body":         body,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.CreateDiscussion.Discussion.URL, nil
}

// RepositoryID resolves the node ID GraphQL mutations need for this
// client's owner/repo.
func (c *Client) RepositoryID(ctx context.Context) (string, error) {
	const query = `
query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) { id }
}`
	var result struct {
		Repository struct {
			ID string `json:"id"`
		} `json:"repository"`
	}
	err := c.graphQL(ctx, query, map[string]any{"owner": c.owner, "name": c.repo}, &result)
	if err != nil {
		return "", err
	}
	return result.Repository.ID, nil
}
