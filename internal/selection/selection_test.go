package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemes_Fixture(t *testing.T) {
	themes := Themes()
	require.Len(t, themes, 12)
	for i, th := range themes {
		assert.Equal(t, i+1, th.ID)
		assert.NotEmpty(t, th.Name)
	}
	th, ok := ThemeByID(3)
	require.True(t, ok)
	assert.Equal(t, "Contemporary", th.Name)
	_, ok = ThemeByID(13)
	assert.False(t, ok)
}

func TestThemePicker_SelectThreeThenSeven(t *testing.T) {
	p := NewThemePicker()
	require.Empty(t, p.Names())

	_, err := p.Toggle(3)
	require.NoError(t, err)
	_, err = p.Toggle(7)
	require.NoError(t, err)

	assert.Equal(t, []string{"Contemporary", "Japanese"}, p.Names())
	assert.True(t, p.AtMax())
	for _, th := range Themes() {
		want := th.ID != 3 && th.ID != 7
		assert.Equal(t, want, p.Disabled(th.ID), "theme %d", th.ID)
	}

	on, err := p.Toggle(3)
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, p.AtMax())
	assert.False(t, p.Disabled(1))
	assert.Equal(t, []string{"Japanese"}, p.Names())

	_, err = p.Toggle(99)
	assert.Error(t, err)
}

func TestFurniturePicker_FifthRejected(t *testing.T) {
	p := NewFurniturePicker()
	for _, f := range []string{"sofa", "chair", "table", "bed"} {
		on, err := p.Toggle(f)
		require.NoError(t, err)
		require.True(t, on)
	}
	before := p.Selected()

	on, err := p.Toggle("lamp")
	assert.ErrorIs(t, err, ErrAtMax)
	assert.False(t, on)
	assert.Equal(t, before, p.Selected(), "rejected selection leaves the set unchanged")
	assert.True(t, p.AtMax())
	assert.True(t, p.Disabled("lamp"))
	assert.False(t, p.Disabled("sofa"))

	p.Deselect("chair")
	assert.Equal(t, 3, p.Len())
	assert.False(t, p.AtMax())
	require.NoError(t, p.Select("lamp"))
	assert.Equal(t, []string{"sofa", "table", "bed", "lamp"}, p.Selected())
}

func TestCapped_SelectIsIdempotent(t *testing.T) {
	c := NewCapped[string](1)
	require.NoError(t, c.Select("a"))
	require.NoError(t, c.Select("a"))
	assert.ErrorIs(t, c.Select("b"), ErrAtMax)
	c.Reset()
	assert.Zero(t, c.Len())
}
