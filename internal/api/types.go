package api

import "encoding/json"

// Image is a file handed to a multipart endpoint.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// Detection is one furniture item found in a room photo.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	URL        string  `json:"url"`
}

// StyleResult is the room style classification.
type StyleResult struct {
	DetectedStyle string             `json:"detected_style"`
	Confidence    float64            `json:"confidence,omitempty"`
	Scores        map[string]float64 `json:"scores,omitempty"`
}

// UnitInfo describes the unit recovered from a floor plan.
type UnitInfo struct {
	UnitType string `json:"unit_type"`
	UnitSize string `json:"unit_size"`
	Rooms    int    `json:"rooms"`
}

// RoomCounts holds per-room-type counts. The review step edits these in place.
type RoomCounts struct {
	Bedroom    int `json:"bedroom"`
	Bathroom   int `json:"bathroom"`
	Kitchen    int `json:"kitchen"`
	LivingRoom int `json:"living_room"`
	Balcony    int `json:"balcony"`
	Study      int `json:"study"`
}

// Extraction is the floor-plan analysis result.
type Extraction struct {
	Unit           UnitInfo   `json:"unit_info"`
	Counts         RoomCounts `json:"room_counts"`
	SegmentedImage string     `json:"segmented_image"`
}

// GeneratedStyle is one style board produced by the style generator.
type GeneratedStyle struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Preferences is the homeowner questionnaire.
type Preferences struct {
	BudgetMin  int      `json:"budget_min" validate:"gte=0"`
	BudgetMax  int      `json:"budget_max" validate:"gtfield=BudgetMin"`
	Occupants  int      `json:"occupants" validate:"gte=1,lte=20"`
	Lifestyle  []string `json:"lifestyle,omitempty"`
	MoveInDate string   `json:"move_in_date,omitempty"`
	Themes     []string `json:"themes,omitempty" validate:"max=2"`
}

// Recommendation is one furniture suggestion. ID is the image reference.
type Recommendation struct {
	ID          string  `json:"image"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Match       float64 `json:"match"`
	ImageURL    string  `json:"image_url,omitempty"`
	Furniture   string  `json:"furniture_name,omitempty"`
}

// SearchRequest asks for recommendations of one furniture class.
type SearchRequest struct {
	Style         string `json:"style"`
	FurnitureName string `json:"furniture_name"`
	PerPage       int    `json:"per_page"`
	Page          int    `json:"page,omitempty"`
}

// Step kinds recorded in an agent session.
const (
	StepUserQuery  = "user_query"
	StepResponse   = "response"
	StepToolResult = "tool_result"
	StepProgress   = "progress"
)

// AgentStep is one entry of a stored agent session.
type AgentStep struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AgentSession is the stored transcript and outputs of a user's agent.
type AgentSession struct {
	Steps   []AgentStep                `json:"steps"`
	Outputs map[string]json.RawMessage `json:"Outputs"`
}
