package api

import "context"

const (
	pathDetectFurniture = "/detect-furniture"
	pathClassifyStyle   = "/classify-style"
)

// DetectFurniture finds furniture in a room photo.
func (c *Client) DetectFurniture(ctx context.Context, img Image) ([]Detection, error) {
	var out struct {
		Detections []Detection `json:"detections"`
	}
	form := NewForm().File("file", img.Name, img.MIME, img.Data)
	if err := c.Post(ctx, pathDetectFurniture, form, &out); err != nil {
		return nil, err
	}
	return out.Detections, nil
}

// ClassifyRoomStyle detects the interior style of a room photo.
func (c *Client) ClassifyRoomStyle(ctx context.Context, img Image) (*StyleResult, error) {
	var out struct {
		Result StyleResult `json:"result"`
	}
	form := NewForm().File("file", img.Name, img.MIME, img.Data)
	if err := c.Post(ctx, pathClassifyStyle, form, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}
