package wizard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/document"
	"github.com/planperfect/planperfect/internal/session"
	"github.com/planperfect/planperfect/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct{}

func (fakeUsers) RequireUser() (session.User, error) { return session.User{ID: "u1"}, nil }

type fakeOnboarding struct {
	mu          sync.Mutex
	flows       []string
	savedPrefs  []api.Preferences
	styleReq    *api.StyleRequest
	classifyErr atomic.Int32 // failures left
}

func (f *fakeOnboarding) ExtractFloorPlan(_ context.Context, _ string, img api.Image) (*api.Extraction, error) {
	return &api.Extraction{
		Unit:   api.UnitInfo{UnitType: "3-room flat", UnitSize: "67 sqm", Rooms: 5},
		Counts: api.RoomCounts{Bedroom: 2, Bathroom: 2, Kitchen: 1, LivingRoom: 1},
	}, nil
}

func (f *fakeOnboarding) GenerateStyles(_ context.Context, req api.StyleRequest) ([]api.GeneratedStyle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.styleReq = &req
	return []api.GeneratedStyle{{Name: "Warm Japanese"}, {Name: "Soft Contemporary"}}, nil
}

func (f *fakeOnboarding) SavePreferences(_ context.Context, _, flow string, prefs api.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flows = append(f.flows, flow)
	f.savedPrefs = append(f.savedPrefs, prefs)
	return nil
}

func (f *fakeOnboarding) DetectFurniture(context.Context, api.Image) ([]api.Detection, error) {
	return []api.Detection{{Class: "sofa"}, {Class: "chair"}, {Class: "sofa"}, {Class: "lamp"}}, nil
}

func (f *fakeOnboarding) ClassifyRoomStyle(context.Context, api.Image) (*api.StyleResult, error) {
	if f.classifyErr.Add(-1) >= 0 {
		return nil, &api.Error{Kind: api.KindInternal, Status: 502, Detail: "model offline"}
	}
	return &api.StyleResult{DetectedStyle: "Scandinavian"}, nil
}

type fakeRecommender struct {
	style     string
	furniture []string
}

func (f *fakeRecommender) SetStyle(s string) { f.style = s }
func (f *fakeRecommender) FetchAll(_ context.Context, furniture []string) error {
	f.furniture = furniture
	return nil
}

var validPrefs = api.Preferences{BudgetMin: 10000, BudgetMax: 40000, Occupants: 3}

func file(name string) *upload.FileRecord {
	return &upload.FileRecord{Name: name, MIME: "image/png", Data: []byte("png")}
}

func TestValidatePreferences(t *testing.T) {
	assert.NoError(t, ValidatePreferences(validPrefs))

	bad := validPrefs
	bad.BudgetMax = 5000
	assert.ErrorContains(t, ValidatePreferences(bad), "BudgetMax")

	bad = validPrefs
	bad.Occupants = 0
	assert.ErrorContains(t, ValidatePreferences(bad), "Occupants")

	bad = validPrefs
	bad.Themes = []string{"a", "b", "c"}
	assert.ErrorContains(t, ValidatePreferences(bad), "Themes")
}

func TestNewHomeowner_FullFlow(t *testing.T) {
	ctx := context.Background()
	be := &fakeOnboarding{}
	m, err := NewHomeowner(Deps{Backend: be, Users: fakeUsers{}, Plain: true})
	require.NoError(t, err)

	bad := validPrefs
	bad.Occupants = 0
	require.NoError(t, m.Edit(func(s *NewHomeownerState) { s.Prefs = &bad }))
	assert.ErrorIs(t, m.Next(ctx), ErrStepIncomplete, "invalid preferences do not count")

	require.NoError(t, m.Edit(func(s *NewHomeownerState) { p := validPrefs; s.Prefs = &p }))
	require.NoError(t, m.Next(ctx))
	assert.ErrorIs(t, m.Next(ctx), ErrStepIncomplete, "floor plan required")

	require.NoError(t, m.Edit(func(s *NewHomeownerState) { s.FloorPlan = file("plan.png") }))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	st := m.Status()
	require.Equal(t, StepReview, st.StepID)
	assert.Equal(t, 2, m.State().Extraction.Counts.Bedroom)
	assert.False(t, m.CanNext(), "review needs confirmation")

	require.NoError(t, m.Edit(func(s *NewHomeownerState) {
		s.Extraction.Counts.Study = 1
		s.Confirmed = true
	}))
	require.NoError(t, m.Next(ctx))
	require.Equal(t, StepThemes, m.Status().StepID)

	require.NoError(t, m.Edit(func(s *NewHomeownerState) { s.Themes = []string{"Contemporary", "Japanese"} }))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	require.Equal(t, StepStyles, m.Status().StepID)
	assert.Len(t, m.State().Styles, 2)
	assert.Equal(t, []string{document.FlowNewHomeowner}, be.flows)
	assert.Equal(t, []string{"Contemporary", "Japanese"}, be.savedPrefs[0].Themes)
	require.NotNil(t, be.styleReq)
	assert.Equal(t, 1, be.styleReq.Extraction.Counts.Study, "edits from review reach generation")

	require.NoError(t, m.Next(ctx))
	assert.Equal(t, PhaseDone, m.Status().Phase)
}

func TestExistingHomeowner_FailureRetryAndRecommendations(t *testing.T) {
	ctx := context.Background()
	be := &fakeOnboarding{}
	be.classifyErr.Store(1)
	rec := &fakeRecommender{}
	m, err := ExistingHomeowner(Deps{Backend: be, Users: fakeUsers{}, Recommender: rec, Plain: true})
	require.NoError(t, err)

	require.NoError(t, m.Edit(func(s *ExistingHomeownerState) { s.Photo = file("room.png") }))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	st := m.Status()
	require.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, api.KindInternal, api.KindOf(st.Err))

	require.NoError(t, m.Retry(ctx))
	m.Wait()
	require.Equal(t, StepFurniture, m.Status().StepID)
	state := m.State()
	assert.Equal(t, "Scandinavian", state.Style.DetectedStyle)
	assert.Equal(t, []string{"sofa", "chair", "lamp"}, FurnitureClasses(state.Detections))

	require.NoError(t, m.Edit(func(s *ExistingHomeownerState) {
		s.Furniture = []string{"sofa", "chair", "lamp", "bed", "table"}
	}))
	assert.False(t, m.CanNext(), "more than the furniture cap")
	require.NoError(t, m.Edit(func(s *ExistingHomeownerState) { s.Furniture = []string{"sofa", "lamp"} }))
	require.NoError(t, m.Next(ctx))

	require.NoError(t, m.Edit(func(s *ExistingHomeownerState) { p := validPrefs; s.Prefs = &p }))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	assert.Equal(t, StepBrowse, m.Status().StepID)
	assert.Equal(t, "Scandinavian", rec.style)
	assert.Equal(t, []string{"sofa", "lamp"}, rec.furniture)
	assert.Equal(t, []string{document.FlowExistingHomeowner}, be.flows)
}

func TestExistingHomeowner_StagedProgress(t *testing.T) {
	ctx := context.Background()
	m, err := ExistingHomeowner(Deps{Backend: &fakeOnboarding{}, Users: fakeUsers{}})
	require.NoError(t, err)

	var mu sync.Mutex
	var sawProgress bool
	defer m.Subscribe(func(st Status) {
		if st.Progress != nil {
			mu.Lock()
			sawProgress = true
			mu.Unlock()
		}
	})()

	require.NoError(t, m.Edit(func(s *ExistingHomeownerState) { s.Photo = file("room.png") }))
	require.NoError(t, m.Next(ctx))
	m.Wait()

	assert.Equal(t, StepFurniture, m.Status().StepID)
	mu.Lock()
	assert.True(t, sawProgress)
	mu.Unlock()
}

func TestFlows_RequireUser(t *testing.T) {
	m, err := NewHomeowner(Deps{Backend: &fakeOnboarding{}, Users: noUser{}, Plain: true})
	require.NoError(t, err)
	require.NoError(t, m.Edit(func(s *NewHomeownerState) {
		p := validPrefs
		s.Prefs = &p
		s.FloorPlan = file("plan.png")
	}))
	require.NoError(t, m.Next(context.Background()))
	require.NoError(t, m.Next(context.Background()))
	m.Wait()
	assert.ErrorIs(t, m.Status().Err, session.ErrNotLoggedIn)
}

type noUser struct{}

func (noUser) RequireUser() (session.User, error) { return session.User{}, session.ErrNotLoggedIn }
