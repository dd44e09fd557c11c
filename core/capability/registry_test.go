package capability

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/core/model"
)

func matchNamed(name string) MatchFunc {
	return func(context.Context, MatchRequest) ([]Candidate, error) {
		return []Candidate{{MatchedSkill: name}}, nil
	}
}

func callMatch(t *testing.T, e Entry[MatchFunc]) string {
	t.Helper()
	out, err := e.Handler(context.Background(), MatchRequest{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0].MatchedSkill
}

func TestResolvePrecedence(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "id1", Version: "v1", TenantScope: model.GlobalScope}, matchNamed("id1")))
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "id2", Version: "v1", TenantScope: "T"}, matchNamed("id2")))
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "id3", Version: "v2", TenantScope: model.GlobalScope}, matchNamed("id3")))

	cases := []struct {
		name string
		opts ResolveOptions
		want string
	}{
		{"tenant scoped wins over global", ResolveOptions{Tenant: "T"}, "id2@v1"},
		{"unknown tenant falls back to global", ResolveOptions{Tenant: "other"}, "id1@v1"},
		{"global tenant is first entry", ResolveOptions{Tenant: model.GlobalScope}, "id1@v1"},
		{"prefer beats tenant and version", ResolveOptions{Prefer: "id1", Tenant: "T", Version: "v2"}, "id1@v1"},
		{"version", ResolveOptions{Version: "v2", Tenant: "T"}, "id3@v2"},
		{"default first registered", ResolveOptions{}, "id1@v1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, ok := Resolve[MatchFunc](r, c.opts)
			require.True(t, ok)
			assert.Equal(t, c.want, e.Meta.Key())
			assert.Equal(t, e.Meta.ID, callMatch(t, e))
		})
	}
}

func TestResolvePinnedMissing(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "id1", Version: "v1"}, matchNamed("id1")))

	_, ok := Resolve[MatchFunc](r, ResolveOptions{Prefer: "id"})
	assert.False(t, ok, "prefer matches the whole id, not a prefix of it")
	_, ok = Resolve[MatchFunc](r, ResolveOptions{Version: "v9"})
	assert.False(t, ok)
	_, ok = Resolve[EvaluateFunc](r, ResolveOptions{})
	assert.False(t, ok, "entries are partitioned by kind")
}

func TestRegisterUpsertKeepsPosition(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "a", Version: "v1"}, matchNamed("old")))
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "b", Version: "v1"}, matchNamed("b")))
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "a", Version: "v1", Description: "new"}, matchNamed("new")))

	list := r.List(KindMatch)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "new", list[0].Description)
	assert.Equal(t, model.GlobalScope, list[0].TenantScope)

	e, ok := Resolve[MatchFunc](r, ResolveOptions{})
	require.True(t, ok)
	assert.Equal(t, "new", callMatch(t, e))
}

func TestRegisterValidation(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.RegisterMatch(model.CapabilityMeta{ID: "a", Version: "v1"}, nil), ErrNilHandler)
	assert.ErrorIs(t, r.RegisterMatch(model.CapabilityMeta{ID: "", Version: "v1"}, matchNamed("x")), ErrInvalidMeta)
	assert.Zero(t, r.Len(KindMatch))
}

func TestUnregister(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "a", Version: "v1"}, matchNamed("a")))
	require.NoError(t, r.RegisterMatch(model.CapabilityMeta{ID: "a", Version: "v2"}, matchNamed("a2")))

	assert.False(t, r.Unregister(KindEvaluate, "a", "v1"))
	assert.True(t, r.Unregister(KindMatch, "a", "v1"))
	assert.False(t, r.Unregister(KindMatch, "a", "v1"))

	e, ok := Resolve[MatchFunc](r, ResolveOptions{})
	require.True(t, ok)
	assert.Equal(t, "a@v2", e.Meta.Key())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindMatch, KindOf[MatchFunc]())
	assert.Equal(t, KindEvaluate, KindOf[EvaluateFunc]())
	assert.Equal(t, KindAllocate, KindOf[AllocateFunc]())
	k, ok := ParseKind("strategy.evaluate")
	assert.True(t, ok)
	assert.Equal(t, KindEvaluate, k)
	_, ok = ParseKind("nope")
	assert.False(t, ok)
}

func TestConcurrentResolveDuringRegistration(t *testing.T) {
	r := NewWithDefaults(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			meta := model.CapabilityMeta{ID: "dyn", Version: fmt.Sprintf("v%d", i%2)}
			assert.NoError(t, r.RegisterMatch(meta, matchNamed("dyn")))
		}(i)
		go func() {
			defer wg.Done()
			_, ok := Resolve[MatchFunc](r, ResolveOptions{})
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, r.Len(KindMatch))
}
