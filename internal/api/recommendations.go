package api

import (
	"context"
	"net/url"
)

const (
	pathRecommendations = "/recommendations"
	pathSaved           = "/recommendations/saved"
)

// SearchRecommendations returns ranked items for one furniture class.
func (c *Client) SearchRecommendations(ctx context.Context, req SearchRequest) ([]Recommendation, error) {
	var out struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := c.Post(ctx, pathRecommendations, req, &out); err != nil {
		return nil, err
	}
	for i := range out.Recommendations {
		if out.Recommendations[i].Furniture == "" {
			out.Recommendations[i].Furniture = req.FurnitureName
		}
	}
	return out.Recommendations, nil
}

// SaveRecommendation persists an item for uid. A 409 means it is already saved.
func (c *Client) SaveRecommendation(ctx context.Context, uid string, rec Recommendation) error {
	body := struct {
		UID            string         `json:"uid"`
		Recommendation Recommendation `json:"recommendation"`
	}{uid, rec}
	return c.Post(ctx, pathSaved, body, nil, WithUser(uid))
}

// DeleteRecommendation removes a saved item.
func (c *Client) DeleteRecommendation(ctx context.Context, uid, id string) error {
	return c.Delete(ctx, pathSaved+"/"+url.PathEscape(id), nil, WithUser(uid))
}

// SavedRecommendations lists the items uid has saved.
func (c *Client) SavedRecommendations(ctx context.Context, uid string) ([]Recommendation, error) {
	var out struct {
		Recommendations []Recommendation `json:"recommendations"`
	}
	if err := c.Get(ctx, pathSaved, &out, WithUser(uid), WithQuery("uid", uid)); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}
