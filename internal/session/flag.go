package session

// SavedState is what the navigation line needs to know about saved items.
type SavedState struct {
	HasSaved bool
	Count    int
}

// RecommendationsFlag tracks whether the user has saved recommendations.
// The recommendations browser writes it; the status line reads it.
type RecommendationsFlag struct {
	v *Value[SavedState]
}

// NewRecommendationsFlag creates a cleared flag.
func NewRecommendationsFlag() *RecommendationsFlag {
	return &RecommendationsFlag{v: NewValue(SavedState{})}
}

// Get returns the current state.
func (f *RecommendationsFlag) Get() SavedState { return f.v.Get() }

// SetCount records an absolute count, e.g. after listing saved items.
func (f *RecommendationsFlag) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	f.v.Set(SavedState{HasSaved: n > 0, Count: n})
}

// Add adjusts the count by delta (negative to remove).
func (f *RecommendationsFlag) Add(delta int) {
	f.v.Update(func(s SavedState) SavedState {
		n := s.Count + delta
		if n < 0 {
			n = 0
		}
		return SavedState{HasSaved: n > 0, Count: n}
	})
}

// Subscribe is notified on every change.
func (f *RecommendationsFlag) Subscribe(fn func(SavedState)) func() {
	return f.v.Subscribe(fn)
}
