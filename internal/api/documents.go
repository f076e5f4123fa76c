package api

import (
	"context"
	"net/http"
)

const (
	pathDocumentsSave  = "/documents/save"
	pathDocumentsEmail = "/documents/email"
)

// GenerateDocument asks the flow-specific endpoint for a PDF.
func (c *Client) GenerateDocument(ctx context.Context, uid, endpoint string) ([]byte, error) {
	body := struct {
		UID string `json:"uid"`
	}{uid}
	data, _, err := c.Download(ctx, http.MethodPost, endpoint, body, WithUser(uid))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveDocument re-uploads a generated PDF to cloud storage and returns its URL.
func (c *Client) SaveDocument(ctx context.Context, uid, flow string, pdf []byte) (string, error) {
	form := NewForm().Field("uid", uid).Field("flow", flow).File("file", flow+".pdf", "application/pdf", pdf)
	var out struct {
		URL string `json:"url"`
	}
	if err := c.Post(ctx, pathDocumentsSave, form, &out, WithUser(uid)); err != nil {
		return "", err
	}
	return out.URL, nil
}

// SendConfirmationEmail triggers the "your design document is ready" email.
func (c *Client) SendConfirmationEmail(ctx context.Context, uid string) error {
	body := struct {
		UID string `json:"uid"`
	}{uid}
	return c.Post(ctx, pathDocumentsEmail, body, nil, WithUser(uid))
}
