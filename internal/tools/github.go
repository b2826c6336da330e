package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

const githubPerPage = 100

func githubRepositoriesTool() mcp.Tool {
	return mcp.NewTool("github_list_user_repositories",
		mcp.WithDescription("List public repositories owned by or associated with a GitHub user."),
		mcp.WithString("username",
			mcp.Description("GitHub username. Falls back to the X-GitHub-Username request header.")),
		mcp.WithString("type",
			mcp.Description("Repository type filter: all, owner, or member (default: owner).")),
		mcp.WithString("sort",
			mcp.Description("Sort field: created, updated, pushed, or full_name (default: updated).")),
	)
}

func githubPullRequestsTool() mcp.Tool {
	return mcp.NewTool("github_list_pull_requests",
		mcp.WithDescription("List pull requests authored by a GitHub user via the public search API."),
		mcp.WithString("username",
			mcp.Description("GitHub username. Falls back to the X-GitHub-Username request header.")),
	)
}

func githubIssuesTool() mcp.Tool {
	return mcp.NewTool("github_list_issues",
		mcp.WithDescription("List issues authored by a GitHub user via the public search API."),
		mcp.WithString("username",
			mcp.Description("GitHub username. Falls back to the X-GitHub-Username request header.")),
	)
}

func (r *Registry) githubHeaders() map[string]string {
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if r.cfg.GitHubToken != "" {
		headers["Authorization"] = "Bearer " + r.cfg.GitHubToken
	}
	return headers
}

func (r *Registry) githubListUserRepositories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := resolveGitHubUsername(ctx, req.GetString("username", ""))
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	typeFilter := req.GetString("type", "owner")
	sort := req.GetString("sort", "updated")

	repositories := make([]any, 0)
	for page := 1; page <= 5; page++ {
		payload, err := r.requestJSON(ctx, http.MethodGet,
			r.cfg.GitHubBaseURL+"/users/"+url.PathEscape(username)+"/repos",
			r.githubHeaders(),
			url.Values{
				"type":     []string{typeFilter},
				"sort":     []string{sort},
				"per_page": []string{strconv.Itoa(githubPerPage)},
				"page":     []string{strconv.Itoa(page)},
			}, nil)
		if err != nil {
			return errorResult(fmt.Sprintf("Error listing repositories: %v", err)), nil
		}

		items, ok := payload.([]any)
		if !ok {
			break
		}
		repositories = append(repositories, items...)
		if len(items) < githubPerPage {
			break
		}
	}

	text, err := jsonResult(repositories)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (r *Registry) githubListPullRequests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.githubSearchIssues(ctx, req, "pr", "Error listing pull requests: %v")
}

func (r *Registry) githubListIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.githubSearchIssues(ctx, req, "issue", "Error listing issues: %v")
}

// githubSearchIssues pages through /search/issues for items authored by the
// user, filtered to the given type (pr or issue).
func (r *Registry) githubSearchIssues(ctx context.Context, req mcp.CallToolRequest, itemType, errFormat string) (*mcp.CallToolResult, error) {
	username, err := resolveGitHubUsername(ctx, req.GetString("username", ""))
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}

	results := make([]any, 0)
	for page := 1; page <= 5; page++ {
		payload, err := r.requestJSON(ctx, http.MethodGet,
			r.cfg.GitHubBaseURL+"/search/issues",
			r.githubHeaders(),
			url.Values{
				"q":        []string{fmt.Sprintf("type:%s author:%s", itemType, username)},
				"per_page": []string{strconv.Itoa(githubPerPage)},
				"page":     []string{strconv.Itoa(page)},
			}, nil)
		if err != nil {
			return errorResult(fmt.Sprintf(errFormat, err)), nil
		}

		obj, ok := payload.(map[string]any)
		if !ok {
			break
		}
		items, ok := obj["items"].([]any)
		if !ok || len(items) == 0 {
			break
		}
		results = append(results, items...)
		if len(items) < githubPerPage {
			break
		}
	}

	text, err := jsonResult(results)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}
