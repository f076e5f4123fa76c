// Package recommend is the recommendations browser: per-furniture lists,
// "not relevant" replacement and save/unsave.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/planperfect/planperfect/internal/api"
	"github.com/planperfect/planperfect/internal/config"
	"github.com/planperfect/planperfect/internal/notify"
	"github.com/planperfect/planperfect/internal/session"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrToggleInFlight rejects a second toggle on an item whose save or
	// unsave has not answered yet.
	ErrToggleInFlight = errors.New("save already in progress for this item")
	// ErrNoList is returned for a furniture class that was never fetched.
	ErrNoList = errors.New("no recommendations loaded for this furniture")
	// ErrIndex is returned for a position outside the list.
	ErrIndex = errors.New("recommendation index out of range")
)

// AlreadySavedMessage is the informational text for a duplicate save.
const AlreadySavedMessage = "This item is already in your saved recommendations."

// Backend is the subset of the API client the browser uses.
type Backend interface {
	SearchRecommendations(ctx context.Context, req api.SearchRequest) ([]api.Recommendation, error)
	SaveRecommendation(ctx context.Context, uid string, rec api.Recommendation) error
	DeleteRecommendation(ctx context.Context, uid, id string) error
	SavedRecommendations(ctx context.Context, uid string) ([]api.Recommendation, error)
}

// UserSource yields the signed-in user.
type UserSource interface {
	RequireUser() (session.User, error)
}

// Options configures a Browser.
type Options struct {
	Backend  Backend
	Users    UserSource
	Notifier notify.Notifier
	Flag     *session.RecommendationsFlag
	Style    string

	// PageFn picks the replacement page in [1, n]. Defaults to a random page.
	PageFn func(n int) int
}

// Browser holds one list per furniture class. Items are kept as whole
// records so a list can never drift out of step with its own fields.
type Browser struct {
	backend  Backend
	users    UserSource
	notifier notify.Notifier
	flag     *session.RecommendationsFlag
	pageFn   func(n int) int

	mu       sync.Mutex
	style    string
	order    []string
	lists    map[string][]api.Recommendation
	saved    map[string]api.Recommendation
	inFlight map[string]bool
}

// New creates a Browser.
func New(opts Options) *Browser {
	if opts.PageFn == nil {
		opts.PageFn = func(n int) int { return rand.IntN(n) + 1 }
	}
	if opts.Flag == nil {
		opts.Flag = session.NewRecommendationsFlag()
	}
	return &Browser{
		backend:  opts.Backend,
		users:    opts.Users,
		notifier: opts.Notifier,
		flag:     opts.Flag,
		pageFn:   opts.PageFn,
		style:    opts.Style,
		lists:    make(map[string][]api.Recommendation),
		saved:    make(map[string]api.Recommendation),
		inFlight: make(map[string]bool),
	}
}

// SetStyle changes the style used by later searches.
func (b *Browser) SetStyle(style string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.style = style
}

// Fetch loads the first page for furniture, replacing any previous list.
func (b *Browser) Fetch(ctx context.Context, furniture string) ([]api.Recommendation, error) {
	b.mu.Lock()
	style := b.style
	b.mu.Unlock()

	items, err := b.backend.SearchRecommendations(ctx, api.SearchRequest{
		Style:         style,
		FurnitureName: furniture,
		PerPage:       config.RecommendationsPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", furniture, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.lists[furniture]; !ok {
		b.order = append(b.order, furniture)
	}
	b.lists[furniture] = items
	return slices.Clone(items), nil
}

// FetchAll loads every furniture class concurrently. Failures are reported
// per class; the first one is returned.
func (b *Browser) FetchAll(ctx context.Context, furniture []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range furniture {
		g.Go(func() error {
			_, err := b.Fetch(gctx, f)
			return err
		})
	}
	err := g.Wait()
	if err != nil && b.notifier != nil {
		b.notifier.Report(err, "Could not load recommendations.")
	}
	return err
}

// Furniture returns the fetched classes in first-fetch order.
func (b *Browser) Furniture() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.order)
}

// List returns the items for furniture.
func (b *Browser) List(furniture string) []api.Recommendation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lists[furniture])
}

// NotRelevant drops the item at index and splices one replacement from a
// random page into the same position. When the page has nothing new the
// item is simply removed.
func (b *Browser) NotRelevant(ctx context.Context, furniture string, index int) (*api.Recommendation, error) {
	b.mu.Lock()
	list, ok := b.lists[furniture]
	if !ok {
		b.mu.Unlock()
		return nil, ErrNoList
	}
	if index < 0 || index >= len(list) {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrIndex, index, len(list))
	}
	dropped := list[index]
	style := b.style
	b.mu.Unlock()

	page := b.pageFn(config.ReplacementPages)
	candidates, err := b.backend.SearchRecommendations(ctx, api.SearchRequest{
		Style:         style,
		FurnitureName: furniture,
		PerPage:       config.RecommendationsPerPage,
		Page:          page,
	})
	if err != nil {
		if b.notifier != nil {
			b.notifier.Report(err, "Could not load a replacement.")
		}
		return nil, fmt.Errorf("replacement for %s: %w", furniture, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	list = b.lists[furniture]
	// The list may have changed while the search ran; find the item again.
	pos := slices.IndexFunc(list, func(r api.Recommendation) bool { return r.ID == dropped.ID })
	if pos < 0 {
		return nil, nil
	}

	var replacement *api.Recommendation
	for _, c := range candidates {
		if c.ID == dropped.ID || slices.ContainsFunc(list, func(r api.Recommendation) bool { return r.ID == c.ID }) {
			continue
		}
		replacement = &c
		break
	}

	next := slices.Clone(list)
	if replacement == nil {
		next = slices.Delete(next, pos, pos+1)
		slog.Debug("no replacement found", "furniture", furniture, "page", page)
	} else {
		next[pos] = *replacement
	}
	b.lists[furniture] = next
	return replacement, nil
}

// IsSaved reports whether id is in the saved set.
func (b *Browser) IsSaved(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.saved[id]
	return ok
}

// Saved returns the saved items.
func (b *Browser) Saved() []api.Recommendation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.Recommendation, 0, len(b.saved))
	for _, r := range b.saved {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, c api.Recommendation) int {
		switch {
		case a.ID < c.ID:
			return -1
		case a.ID > c.ID:
			return 1
		}
		return 0
	})
	return out
}

// LoadSaved replaces the saved set with the backend's list.
func (b *Browser) LoadSaved(ctx context.Context) ([]api.Recommendation, error) {
	user, err := b.users.RequireUser()
	if err != nil {
		return nil, err
	}
	items, err := b.backend.SavedRecommendations(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load saved: %w", err)
	}

	b.mu.Lock()
	b.saved = make(map[string]api.Recommendation, len(items))
	for _, r := range items {
		b.saved[r.ID] = r
	}
	n := len(b.saved)
	b.mu.Unlock()

	b.flag.SetCount(n)
	return items, nil
}

// ToggleSave saves item when it is not saved and unsaves it otherwise. The
// local set changes before the call and is rolled back if it fails. It
// reports whether the item is saved afterwards.
func (b *Browser) ToggleSave(ctx context.Context, item api.Recommendation) (bool, error) {
	user, err := b.users.RequireUser()
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	if b.inFlight[item.ID] {
		b.mu.Unlock()
		return b.IsSaved(item.ID), ErrToggleInFlight
	}
	b.inFlight[item.ID] = true
	_, wasSaved := b.saved[item.ID]
	if wasSaved {
		delete(b.saved, item.ID)
	} else {
		b.saved[item.ID] = item
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.inFlight, item.ID)
		b.mu.Unlock()
	}()

	if wasSaved {
		err = b.backend.DeleteRecommendation(ctx, user.ID, item.ID)
	} else {
		err = b.backend.SaveRecommendation(ctx, user.ID, item)
	}

	switch {
	case err == nil:
		if wasSaved {
			b.flag.Add(-1)
			b.info("Removed from saved recommendations.")
		} else {
			b.flag.Add(1)
			b.success("Saved to your recommendations.")
		}
		return !wasSaved, nil

	case !wasSaved && api.IsConflict(err):
		// Already saved on the backend: the optimistic state is right.
		b.flag.Add(1)
		b.info(AlreadySavedMessage)
		return true, nil
	}

	b.mu.Lock()
	if wasSaved {
		b.saved[item.ID] = item
	} else {
		delete(b.saved, item.ID)
	}
	b.mu.Unlock()

	if b.notifier != nil {
		b.notifier.Report(err, "Could not update saved recommendations.")
	}
	return wasSaved, err
}

func (b *Browser) info(msg string) {
	if b.notifier != nil {
		b.notifier.Info(msg)
	}
}

func (b *Browser) success(msg string) {
	if b.notifier != nil {
		b.notifier.Success(msg)
	}
}
