package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderer interface{ Name() string }

type stubRenderer struct{ name string }

func (s *stubRenderer) Name() string { return s.name }

func TestLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("rendersystem", &stubRenderer{name: "vk"}))

	rs, err := Lookup[renderer](r, "rendersystem")
	require.NoError(t, err)
	assert.Equal(t, "vk", rs.Name())

	_, err = Lookup[renderer](r, "audio")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Lookup[*int](r, "rendersystem")
	assert.True(t, errors.Is(err, ErrWrongType))
}

func TestRegisterFirstWins(t *testing.T) {
	r := New()
	first := &stubRenderer{name: "first"}
	require.NoError(t, r.Register("rendersystem", first))

	err := r.Register("rendersystem", &stubRenderer{name: "second"})
	assert.True(t, errors.Is(err, ErrDuplicate))

	got, err := Lookup[*stubRenderer](r, "rendersystem")
	require.NoError(t, err)
	assert.Same(t, first, got)

	assert.Error(t, r.Register("nil", nil))
}

func TestMerge(t *testing.T) {
	assert := assert.New(t)

	app := New()
	lib := New()

	own := &stubRenderer{name: "app"}
	assert.NoError(app.Register("rendersystem", own))
	assert.NoError(lib.Register("rendersystem", &stubRenderer{name: "lib"}))
	assert.NoError(lib.Register("input", &stubRenderer{name: "input"}))

	assert.Equal(1, app.Merge(lib))
	assert.Equal(0, app.Merge(app))
	assert.Equal(0, app.Merge(nil))
	assert.Equal([]string{"input", "rendersystem"}, app.Names())

	got, err := Lookup[*stubRenderer](app, "rendersystem")
	assert.NoError(err)
	assert.Same(own, got, "existing entries win")
}
