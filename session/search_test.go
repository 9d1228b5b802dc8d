package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidreach/cadence/errors"
)

func searchTestEngine(t *testing.T) *Engine {
	t.Helper()
	groups := map[string]string{
		"https://alpha.example.com/posts/1": "alpha-1",
		"https://alpha.example.com/posts/2": "alpha-2",
		"https://beta.example.com/posts/9":  "beta-9",
	}
	e := newTestEngine(t, staticResolver(groups), &fakeExecutor{}, fastConfig())

	for _, ref := range []string{
		"https://alpha.example.com/posts/1",
		"https://alpha.example.com/posts/2",
		"https://beta.example.com/posts/9",
	} {
		_, err := e.StartSession(context.Background(), StartRequest{TargetRef: ref, TargetCount: 100, IntervalSeconds: 1})
		require.NoError(t, err)
	}
	return e
}

func TestListSessionsUnfiltered(t *testing.T) {
	e := searchTestEngine(t)

	recs := e.ListSessions("")
	require.Len(t, recs, 3)
	// Insertion order is preserved for deterministic listings
	assert.Equal(t, "alpha-1", recs[0].GroupKey)
	assert.Equal(t, "alpha-2", recs[1].GroupKey)
	assert.Equal(t, "beta-9", recs[2].GroupKey)
}

func TestListSessionsFiltered(t *testing.T) {
	e := searchTestEngine(t)

	recs := e.ListSessions("BETA")
	require.Len(t, recs, 1)
	assert.Equal(t, "beta-9", recs[0].GroupKey)

	assert.Empty(t, e.ListSessions("nomatch"))
}

func TestSearchByGroup(t *testing.T) {
	e := searchTestEngine(t)

	recs, err := e.Search("alpha", SearchByGroup)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = e.Search("beta-9", SearchByGroup)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "beta-9", recs[0].GroupKey)
}

func TestSearchByTargetRef(t *testing.T) {
	e := searchTestEngine(t)

	recs, err := e.Search("beta.example.com", SearchByTargetRef)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://beta.example.com/posts/9", recs[0].TargetRef)

	// Case-insensitive against the normalized reference
	recs, err = e.Search("ALPHA.Example", SearchByTargetRef)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSearchAny(t *testing.T) {
	e := searchTestEngine(t)

	recs, err := e.Search("posts", SearchAny)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	// Matches session ids too
	id := recs[0].ID
	byID, err := e.Search(id, SearchAny)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, id, byID[0].ID)
}

func TestSearchInvalidInput(t *testing.T) {
	e := searchTestEngine(t)

	_, err := e.Search("x", SearchKind("bogus"))
	assert.True(t, errors.IsInvalidInput(err))

	_, err = e.Search("   ", SearchAny)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestSearchIsReadOnly(t *testing.T) {
	e := searchTestEngine(t)

	before := e.ListSessions("")
	_, err := e.Search("alpha", SearchAny)
	require.NoError(t, err)
	_ = e.FindByGroup("alpha-1")

	after := e.ListSessions("")
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].State, after[i].State)
	}
}
