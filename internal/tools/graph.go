package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

func graphUserInfoTool() mcp.Tool {
	return mcp.NewTool("graph_get_user_information",
		mcp.WithDescription("Get the signed-in user's profile information from Microsoft Graph."),
		mcp.WithString("token",
			mcp.Description("Optional Microsoft Graph bearer token. Falls back to the request context or environment.")),
	)
}

func graphMailFoldersTool() mcp.Tool {
	return mcp.NewTool("graph_list_mail_folders",
		mcp.WithDescription("List all mail folders for the signed-in user's mailbox."),
		mcp.WithString("token",
			mcp.Description("Optional Microsoft Graph bearer token.")),
	)
}

func graphMailboxMessagesTool() mcp.Tool {
	return mcp.NewTool("graph_list_mailbox_messages",
		mcp.WithDescription("List messages from the user's mailbox or a specific mail folder."),
		mcp.WithString("folder_id",
			mcp.Description("Optional mail folder ID. If omitted, reads from the default mailbox root.")),
		mcp.WithNumber("top",
			mcp.Description("Number of messages per page (default: 25).")),
		mcp.WithString("token",
			mcp.Description("Optional Microsoft Graph bearer token.")),
	)
}

func graphUserMeetingsTool() mcp.Tool {
	return mcp.NewTool("graph_list_user_meetings",
		mcp.WithDescription("List meetings from the signed-in user's calendar view for a time range."),
		mcp.WithString("start_datetime",
			mcp.Description("ISO-8601 range start in UTC (example: 2026-08-24T09:00:00Z)."),
			mcp.Required()),
		mcp.WithString("end_datetime",
			mcp.Description("ISO-8601 range end in UTC."),
			mcp.Required()),
		mcp.WithNumber("top",
			mcp.Description("Max number of events to request (default: 100).")),
		mcp.WithString("token",
			mcp.Description("Optional Microsoft Graph bearer token.")),
	)
}

func (r *Registry) graphHeaders(ctx context.Context, req mcp.CallToolRequest) (map[string]string, error) {
	token, err := resolveGraphToken(ctx, req.GetString("token", ""))
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

func (r *Registry) graphGetUserInformation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	headers, err := r.graphHeaders(ctx, req)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}

	payload, err := r.requestJSON(ctx, http.MethodGet, r.cfg.GraphBaseURL+"/me", headers, nil, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("Error fetching user information: %v", err)), nil
	}
	text, err := jsonResult(payload)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (r *Registry) graphListMailFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	headers, err := r.graphHeaders(ctx, req)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}

	folders, err := r.collectPaginatedValues(ctx, r.cfg.GraphBaseURL+"/me/mailFolders", headers, nil, 5)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing mail folders: %v", err)), nil
	}
	text, err := jsonResult(folders)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (r *Registry) graphListMailboxMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	headers, err := r.graphHeaders(ctx, req)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}

	endpoint := r.cfg.GraphBaseURL + "/me/messages"
	if folderID := req.GetString("folder_id", ""); folderID != "" {
		endpoint = r.cfg.GraphBaseURL + "/me/mailFolders/" + url.PathEscape(folderID) + "/messages"
	}
	top := req.GetInt("top", 25)

	messages, err := r.collectPaginatedValues(ctx, endpoint, headers,
		url.Values{"$top": []string{strconv.Itoa(top)}}, 2)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing mailbox messages: %v", err)), nil
	}
	text, err := jsonResult(messages)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (r *Registry) graphListUserMeetings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, err := req.RequireString("start_datetime")
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	end, err := req.RequireString("end_datetime")
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	headers, err := r.graphHeaders(ctx, req)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}

	payload, err := r.requestJSON(ctx, http.MethodGet, r.cfg.GraphBaseURL+"/me/calendarView", headers,
		url.Values{
			"startDateTime": []string{start},
			"endDateTime":   []string{end},
			"$top":          []string{strconv.Itoa(req.GetInt("top", 100))},
		}, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing meetings: %v", err)), nil
	}

	meetings := []any{}
	if obj, ok := payload.(map[string]any); ok {
		if value, ok := obj["value"].([]any); ok {
			meetings = value
		}
	}
	text, err := jsonResult(meetings)
	if err != nil {
		return errorResult("Error: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}
