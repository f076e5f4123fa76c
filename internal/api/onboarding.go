package api

import "context"

const (
	pathExtractFloorPlan = "/floorplan/extract"
	pathGenerateStyles   = "/styles/generate"
	pathPreferences      = "/preferences"
	pathUserFlow         = "/users/flow"
)

// ExtractFloorPlan runs the floor-plan analysis on an uploaded plan.
func (c *Client) ExtractFloorPlan(ctx context.Context, uid string, img Image) (*Extraction, error) {
	var out struct {
		Result Extraction `json:"result"`
	}
	form := NewForm().Field("uid", uid).File("file", img.Name, img.MIME, img.Data)
	if err := c.Post(ctx, pathExtractFloorPlan, form, &out, WithUser(uid)); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// StyleRequest feeds the style generator.
type StyleRequest struct {
	UID        string      `json:"uid"`
	Themes     []string    `json:"themes"`
	Extraction *Extraction `json:"extraction,omitempty"`
	Prefs      Preferences `json:"preferences"`
}

// GenerateStyles produces style boards for the chosen themes.
func (c *Client) GenerateStyles(ctx context.Context, req StyleRequest) ([]GeneratedStyle, error) {
	var out struct {
		Styles []GeneratedStyle `json:"styles"`
	}
	if err := c.Post(ctx, pathGenerateStyles, req, &out, WithUser(req.UID)); err != nil {
		return nil, err
	}
	return out.Styles, nil
}

// SavePreferences stores the questionnaire and the onboarding flow it came from.
func (c *Client) SavePreferences(ctx context.Context, uid, flow string, prefs Preferences) error {
	body := struct {
		UID         string      `json:"uid"`
		Flow        string      `json:"flow"`
		Preferences Preferences `json:"preferences"`
	}{uid, flow, prefs}
	return c.Post(ctx, pathPreferences, body, nil, WithUser(uid))
}

// UserFlow returns the onboarding flow tag recorded for uid.
func (c *Client) UserFlow(ctx context.Context, uid string) (string, error) {
	var out struct {
		Flow string `json:"flow"`
	}
	if err := c.Get(ctx, pathUserFlow, &out, WithUser(uid), WithQuery("uid", uid)); err != nil {
		return "", err
	}
	return out.Flow, nil
}
