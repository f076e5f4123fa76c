package api

import (
	"context"
	"net/url"
)

const (
	pathAgentQuery   = "/agent/query"
	pathAgentModel   = "/agent/model"
	pathAgentSession = "/agent/session/"
)

// AgentQuery sends a text turn to the agent and returns its reply.
func (c *Client) AgentQuery(ctx context.Context, uid, query string) (string, error) {
	body := struct {
		UID   string `json:"uid"`
		Query string `json:"query"`
	}{uid, query}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.Post(ctx, pathAgentQuery, body, &out, WithUser(uid)); err != nil {
		return "", err
	}
	return out.Response, nil
}

// AgentQueryWithFiles sends a turn with attachments as multipart.
func (c *Client) AgentQueryWithFiles(ctx context.Context, uid, query string, files []Image) (string, error) {
	form := NewForm().Field("uid", uid).Field("query", query)
	for _, f := range files {
		form.File("files", f.Name, f.MIME, f.Data)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.Post(ctx, pathAgentQuery, form, &out, WithUser(uid)); err != nil {
		return "", err
	}
	return out.Response, nil
}

// AgentModel returns the name of the model behind the agent.
func (c *Client) AgentModel(ctx context.Context) (string, error) {
	var out struct {
		Model string `json:"model"`
	}
	if err := c.Get(ctx, pathAgentModel, &out); err != nil {
		return "", err
	}
	return out.Model, nil
}

// LoadAgentSession fetches the stored transcript and outputs for uid.
func (c *Client) LoadAgentSession(ctx context.Context, uid string) (*AgentSession, error) {
	var out AgentSession
	if err := c.Get(ctx, pathAgentSession+url.PathEscape(uid), &out, WithUser(uid)); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearAgentSession wipes the stored session for uid.
func (c *Client) ClearAgentSession(ctx context.Context, uid string) error {
	return c.Post(ctx, pathAgentSession+url.PathEscape(uid)+"/clear", struct{}{}, nil, WithUser(uid))
}
