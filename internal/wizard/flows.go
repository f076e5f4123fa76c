package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/document"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/planperfect/planperfect/internal/upload"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// ValidatePreferences checks the questionnaire.
func ValidatePreferences(p api.Preferences) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid preferences: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid preferences: %w", err)
	}
	return nil
}

// Backend is the onboarding subset of the API client.
type Backend interface {
	ExtractFloorPlan(ctx context.Context, uid string, img api.Image) (*api.Extraction, error)
	GenerateStyles(ctx context.Context, req api.StyleRequest) ([]api.GeneratedStyle, error)
	SavePreferences(ctx context.Context, uid, flow string, prefs api.Preferences) error
	DetectFurniture(ctx context.Context, img api.Image) ([]api.Detection, error)
	ClassifyRoomStyle(ctx context.Context, img api.Image) (*api.StyleResult, error)
}

// Recommender loads recommendations once the furniture is chosen.
type Recommender interface {
	SetStyle(style string)
	FetchAll(ctx context.Context, furniture []string) error
}

// UserSource yields the signed-in user.
type UserSource interface {
	RequireUser() (session.User, error)
}

// Deps wires a flow.
type Deps struct {
	Backend     Backend
	Users       UserSource
	Recommender Recommender

	// Plain runs processing steps without the staged progress display,
	// for non-interactive use.
	Plain bool
}

func (d Deps) stages(labels ...string) []string {
	if d.Plain {
		return nil
	}
	return labels
}

func (d Deps) uid() (string, error) {
	u, err := d.Users.RequireUser()
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func imageOf(f *upload.FileRecord) api.Image {
	return api.Image{Name: f.Name, MIME: f.MIME, Data: f.Data}
}

// NewHomeownerState is collected by the new homeowner flow.
type NewHomeownerState struct {
	Prefs      *api.Preferences
	FloorPlan  *upload.FileRecord
	Extraction *api.Extraction
	Confirmed  bool
	Themes     []string
	Styles     []api.GeneratedStyle
}

// New homeowner step ids.
const (
	StepPreferences = "preferences"
	StepFloorPlan   = "floor-plan"
	StepExtraction  = "extraction"
	StepReview      = "review"
	StepThemes      = "themes"
	StepGeneration  = "generation"
	StepStyles      = "styles"
)

// NewHomeowner builds the flow: preferences, floor plan upload, AI
// extraction, review, theme selection, style generation and results.
func NewHomeowner(d Deps) (*Machine[NewHomeownerState], error) {
	steps := []Step[NewHomeownerState]{
		{
			ID: StepPreferences, Title: "Your preferences", Icon: "✎",
			Complete: func(s NewHomeownerState) bool {
				return s.Prefs != nil && ValidatePreferences(*s.Prefs) == nil
			},
		},
		{
			ID: StepFloorPlan, Title: "Upload floor plan", Icon: "⬆",
			Complete: func(s NewHomeownerState) bool { return s.FloorPlan != nil },
		},
		{
			ID: StepExtraction, Title: "Reading your floor plan", Icon: "⚙", Kind: KindProcessing,
			Stages: d.stages("Uploading floor plan", "Detecting rooms", "Measuring spaces", "Summarising layout"),
			Process: func(ctx context.Context, s NewHomeownerState) (NewHomeownerState, error) {
				uid, err := d.uid()
				if err != nil {
					return s, err
				}
				ext, err := d.Backend.ExtractFloorPlan(ctx, uid, imageOf(s.FloorPlan))
				if err != nil {
					return s, err
				}
				s.Extraction = ext
				s.Confirmed = false
				return s, nil
			},
		},
		{
			ID: StepReview, Title: "Review your unit", Icon: "✓",
			Complete: func(s NewHomeownerState) bool { return s.Extraction != nil && s.Confirmed },
		},
		{
			ID: StepThemes, Title: "Pick your themes", Icon: "★",
			Complete: func(s NewHomeownerState) bool {
				return len(s.Themes) > 0 && len(s.Themes) <= config.MaxThemeSelection
			},
		},
		{
			ID: StepGeneration, Title: "Generating styles", Icon: "⚙", Kind: KindProcessing,
			Stages: d.stages("Saving preferences", "Composing mood boards", "Rendering styles"),
			Process: func(ctx context.Context, s NewHomeownerState) (NewHomeownerState, error) {
				uid, err := d.uid()
				if err != nil {
					return s, err
				}
				prefs := *s.Prefs
				prefs.Themes = s.Themes
				if err := d.Backend.SavePreferences(ctx, uid, document.FlowNewHomeowner, prefs); err != nil {
					return s, err
				}
				styles, err := d.Backend.GenerateStyles(ctx, api.StyleRequest{
					UID:        uid,
					Themes:     s.Themes,
					Extraction: s.Extraction,
					Prefs:      prefs,
				})
				if err != nil {
					return s, err
				}
				s.Styles = styles
				return s, nil
			},
		},
		{
			ID: StepStyles, Title: "Your styles", Icon: "◆",
			Complete: func(s NewHomeownerState) bool { return len(s.Styles) > 0 },
		},
	}
	return New(steps, NewHomeownerState{})
}

// ExistingHomeownerState is collected by the existing homeowner flow.
type ExistingHomeownerState struct {
	Photo      *upload.FileRecord
	Style      *api.StyleResult
	Detections []api.Detection
	Furniture  []string
	Prefs      *api.Preferences
	Loaded     bool
}

// Existing homeowner step ids.
const (
	StepRoomPhoto       = "room-photo"
	StepAnalysis        = "analysis"
	StepFurniture       = "furniture"
	StepBudget          = "budget"
	StepRecommendations = "recommendations"
	StepBrowse          = "browse"
)

// ExistingHomeowner builds the flow: room photo upload, style analysis,
// furniture selection, budget and recommendations.
func ExistingHomeowner(d Deps) (*Machine[ExistingHomeownerState], error) {
	steps := []Step[ExistingHomeownerState]{
		{
			ID: StepRoomPhoto, Title: "Upload a room photo", Icon: "⬆",
			Complete: func(s ExistingHomeownerState) bool { return s.Photo != nil },
		},
		{
			ID: StepAnalysis, Title: "Analysing your room", Icon: "⚙", Kind: KindProcessing,
			Stages: d.stages("Uploading photo", "Detecting furniture", "Classifying style"),
			Process: func(ctx context.Context, s ExistingHomeownerState) (ExistingHomeownerState, error) {
				img := imageOf(s.Photo)
				var style *api.StyleResult
				var detections []api.Detection
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					var err error
					style, err = d.Backend.ClassifyRoomStyle(gctx, img)
					return err
				})
				g.Go(func() error {
					var err error
					detections, err = d.Backend.DetectFurniture(gctx, img)
					return err
				})
				if err := g.Wait(); err != nil {
					return s, err
				}
				s.Style = style
				s.Detections = detections
				s.Furniture = nil
				return s, nil
			},
		},
		{
			ID: StepFurniture, Title: "Choose furniture", Icon: "☐",
			Complete: func(s ExistingHomeownerState) bool {
				return len(s.Furniture) > 0 && len(s.Furniture) <= config.MaxFurnitureSelection
			},
		},
		{
			ID: StepBudget, Title: "Budget and preferences", Icon: "✎",
			Complete: func(s ExistingHomeownerState) bool {
				return s.Prefs != nil && ValidatePreferences(*s.Prefs) == nil
			},
		},
		{
			ID: StepRecommendations, Title: "Finding recommendations", Icon: "⚙", Kind: KindProcessing,
			Stages: d.stages("Saving preferences", "Searching catalogue", "Ranking matches"),
			Process: func(ctx context.Context, s ExistingHomeownerState) (ExistingHomeownerState, error) {
				uid, err := d.uid()
				if err != nil {
					return s, err
				}
				if err := d.Backend.SavePreferences(ctx, uid, document.FlowExistingHomeowner, *s.Prefs); err != nil {
					return s, err
				}
				if d.Recommender != nil {
					if s.Style != nil {
						d.Recommender.SetStyle(s.Style.DetectedStyle)
					}
					if err := d.Recommender.FetchAll(ctx, s.Furniture); err != nil {
						return s, err
					}
				}
				s.Loaded = true
				return s, nil
			},
		},
		{
			ID: StepBrowse, Title: "Browse recommendations", Icon: "◆",
			Complete: func(s ExistingHomeownerState) bool { return s.Loaded },
		},
	}
	return New(steps, ExistingHomeownerState{})
}

// FurnitureClasses returns the distinct detected classes in detection order.
func FurnitureClasses(dets []api.Detection) []string {
	seen := make(map[string]bool, len(dets))
	var out []string
	for _, d := range dets {
		c := strings.TrimSpace(d.Class)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
