package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_SubscribeAndUnsubscribe(t *testing.T) {
	v := NewValue(1)

	var got []int
	unsub := v.Subscribe(func(n int) { got = append(got, n) })

	v.Set(2)
	v.Update(func(n int) int { return n * 10 })
	unsub()
	unsub() // second call is harmless
	v.Set(99)

	assert.Equal(t, []int{2, 20}, got)
	assert.Equal(t, 99, v.Get())
}

func TestValue_ConcurrentUpdates(t *testing.T) {
	v := NewValue(0)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, v.Get())
}

func TestAuth_LoginLogout(t *testing.T) {
	store, err := NewUserStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	a := NewAuth(store)
	assert.False(t, a.LoggedIn())
	_, err = a.RequireUser()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	var events []*User
	unsub := a.Subscribe(func(u *User) { events = append(events, u) })
	defer unsub()

	user := User{ID: "u1", DisplayName: "Ana", Email: "ana@example.com"}
	require.NoError(t, a.Login(user))
	cur, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, user, cur)

	// A fresh Auth on the same store restores the user.
	restored := NewAuth(store)
	require.NoError(t, restored.Restore())
	assert.True(t, restored.LoggedIn())

	require.NoError(t, a.Logout())
	assert.False(t, a.LoggedIn())

	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])

	again := NewAuth(store)
	require.NoError(t, again.Restore())
	assert.False(t, again.LoggedIn())
}

func TestAuth_Login_RejectsInvalidUser(t *testing.T) {
	a := NewAuth(nil)

	assert.Error(t, a.Login(User{}))
	assert.Error(t, a.Login(User{ID: "u1", Email: "not-an-email"}))
	assert.False(t, a.LoggedIn())
}

func TestUserStore_FileBacked(t *testing.T) {
	dir := t.TempDir()
	s, err := NewUserStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveUser(User{ID: "a"}))
	require.NoError(t, s.SaveUser(User{ID: "b", DisplayName: "Bo"}))
	require.NoError(t, s.Close())

	s, err = NewUserStore(dir)
	require.NoError(t, err)
	defer s.Close()

	u, err := s.LoadUser()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "b", u.ID)
	assert.Equal(t, "Bo", u.DisplayName)
}

func TestRecommendationsFlag(t *testing.T) {
	f := NewRecommendationsFlag()
	assert.Equal(t, SavedState{}, f.Get())

	var last SavedState
	unsub := f.Subscribe(func(s SavedState) { last = s })
	defer unsub()

	f.Add(1)
	assert.Equal(t, SavedState{HasSaved: true, Count: 1}, last)

	f.Add(-1)
	assert.Equal(t, SavedState{HasSaved: false, Count: 0}, last)

	f.Add(-3)
	assert.Equal(t, 0, f.Get().Count)

	f.SetCount(4)
	assert.Equal(t, SavedState{HasSaved: true, Count: 4}, f.Get())
}
