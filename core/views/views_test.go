package views_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/asaidimu/go-plane/core/views"
	"github.com/asaidimu/go-plane/seed"
	"github.com/asaidimu/go-plane/sqlite/sqlitetest"
)

type fixture struct {
	ctx  context.Context
	p    *persistence.Persistence
	f    *seed.Fixtures
	svc  *views.Service
	ws   string
	proj string
	user string
}

func newFixture(t *testing.T) *fixture {
	p := sqlitetest.New(t)
	ctx := context.Background()
	f := seed.New(p)
	user, err := f.User(ctx, seed.UserSpec{Email: "alice@example.com"})
	require.NoError(t, err)
	ws, _, err := f.Workspace(ctx, "Acme", user)
	require.NoError(t, err)
	proj, err := f.Project(ctx, ws, "Web")
	require.NoError(t, err)
	require.NoError(t, f.ProjectMember(ctx, ws, proj, user, true))

	svc := views.NewService(p)
	var mu sync.Mutex
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{ctx: ctx, p: p, f: f, svc: svc, ws: ws, proj: proj, user: user}
}

func (fx *fixture) favorites(t *testing.T) int {
	c, err := fx.p.Collection(schema.TableIssueViewFavorites)
	require.NoError(t, err)
	n, err := c.Count(fx.ctx, nil)
	require.NoError(t, err)
	return n
}

func names(docs []schema.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["name"].(string))
	}
	return out
}

func TestGlobalViews_Lifecycle(t *testing.T) {
	fx := newFixture(t)

	created, err := fx.svc.CreateGlobal(fx.ctx, fx.ws, fx.user, views.Input{
		Name:    "  Urgent  ",
		Filters: map[string]any{"priority": []any{"urgent"}},
	})
	require.NoError(t, err)
	id := created["id"].(string)
	assert.Equal(t, "Urgent", created["name"])
	assert.Nil(t, created["project_id"])
	assert.Equal(t, map[string]any{"priority": []any{"urgent"}}, created["filters"])

	got, err := fx.svc.GetGlobal(fx.ctx, fx.ws, id)
	require.NoError(t, err)
	assert.Equal(t, id, got["id"])

	updated, err := fx.svc.UpdateGlobal(fx.ctx, fx.ws, id, map[string]any{
		"name":         "Urgent work",
		"workspace_id": uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Urgent work", updated["name"])
	assert.Equal(t, fx.ws, updated["workspace_id"], "only editable fields change")
	assert.NotEqual(t, created["updated_at"], updated["updated_at"])

	require.NoError(t, fx.svc.DeleteGlobal(fx.ctx, fx.ws, id))
	_, err = fx.svc.GetGlobal(fx.ctx, fx.ws, id)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.ErrorIs(t, fx.svc.DeleteGlobal(fx.ctx, fx.ws, id), persistence.ErrNotFound)
}

func TestGlobalViews_RequireName(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateGlobal(fx.ctx, fx.ws, fx.user, views.Input{Name: "   "})
	require.Error(t, err)
	assert.True(t, persistence.IsValidationError(err))

	created, err := fx.svc.CreateGlobal(fx.ctx, fx.ws, fx.user, views.Input{Name: "Kept"})
	require.NoError(t, err)
	_, err = fx.svc.UpdateGlobal(fx.ctx, fx.ws, created["id"].(string), map[string]any{"name": ""})
	assert.True(t, persistence.IsValidationError(err))
}

func TestGlobalViews_ExcludeProjectViews(t *testing.T) {
	fx := newFixture(t)
	projectView, err := fx.f.View(fx.ctx, fx.ws, fx.proj, "Project", fx.user)
	require.NoError(t, err)
	_, err = fx.svc.CreateGlobal(fx.ctx, fx.ws, fx.user, views.Input{Name: "B"})
	require.NoError(t, err)
	_, err = fx.svc.CreateGlobal(fx.ctx, fx.ws, fx.user, views.Input{Name: "A"})
	require.NoError(t, err)

	list, err := fx.svc.ListGlobal(fx.ctx, fx.ws, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(list), "newest first")

	list, err = fx.svc.ListGlobal(fx.ctx, fx.ws, url.Values{"order_by": {"name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(list))

	list, err = fx.svc.ListGlobal(fx.ctx, fx.ws, url.Values{"order_by": {"-name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, names(list))

	_, err = fx.svc.GetGlobal(fx.ctx, fx.ws, projectView)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = fx.svc.GetGlobal(fx.ctx, fx.ws, "not-a-uuid")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestProjectViews_FavoritesFirst(t *testing.T) {
	fx := newFixture(t)
	var ids []string
	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		v, err := fx.svc.CreateProject(fx.ctx, fx.ws, fx.proj, fx.user, views.Input{Name: name})
		require.NoError(t, err)
		ids = append(ids, v["id"].(string))
	}
	_, created, err := fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, ids[0])
	require.NoError(t, err)
	assert.True(t, created)

	list, err := fx.svc.ListProject(fx.ctx, fx.ws, fx.proj, fx.user, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie", "Alpha", "Bravo"}, names(list))
	assert.Equal(t, true, list[0]["is_favorite"])
	assert.Equal(t, false, list[1]["is_favorite"])

	// Favorites are per user.
	bob, err := fx.f.User(fx.ctx, seed.UserSpec{Email: "bob@example.com"})
	require.NoError(t, err)
	require.NoError(t, fx.f.ProjectMember(fx.ctx, fx.ws, fx.proj, bob, true))
	list, err = fx.svc.ListProject(fx.ctx, fx.ws, fx.proj, bob, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, names(list))
}

func TestProjectViews_NonMemberSeesNothing(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateProject(fx.ctx, fx.ws, fx.proj, fx.user, views.Input{Name: "Private"})
	require.NoError(t, err)

	eve, err := fx.f.User(fx.ctx, seed.UserSpec{Email: "eve@example.com"})
	require.NoError(t, err)
	list, err := fx.svc.ListProject(fx.ctx, fx.ws, fx.proj, eve, url.Values{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProjectViews_Fields(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateProject(fx.ctx, fx.ws, fx.proj, fx.user, views.Input{Name: "Slim"})
	require.NoError(t, err)

	list, err := fx.svc.ListProject(fx.ctx, fx.ws, fx.proj, fx.user, url.Values{"fields": {"name,is_favorite"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0], 3)
	assert.Equal(t, "Slim", list[0]["name"])
	assert.Contains(t, list[0], "id")
	assert.Contains(t, list[0], "is_favorite")
}

func TestCreateFavorite_Twice(t *testing.T) {
	fx := newFixture(t)
	view, err := fx.f.View(fx.ctx, fx.ws, fx.proj, "Mine", fx.user)
	require.NoError(t, err)

	first, created, err := fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first["id"], second["id"])
	assert.Equal(t, 1, fx.favorites(t))
}

func TestCreateFavorite_Concurrent(t *testing.T) {
	fx := newFixture(t)
	view, err := fx.f.View(fx.ctx, fx.ws, fx.proj, "Mine", fx.user)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
			errs[i] = err
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, fx.favorites(t))
}

func TestCreateFavorite_UnknownView(t *testing.T) {
	fx := newFixture(t)
	_, _, err := fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.Equal(t, 0, fx.favorites(t))
}

func TestDeleteFavorite(t *testing.T) {
	fx := newFixture(t)
	view, err := fx.f.View(fx.ctx, fx.ws, fx.proj, "Mine", fx.user)
	require.NoError(t, err)

	assert.ErrorIs(t, fx.svc.DeleteFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view), persistence.ErrNotFound)
	assert.Equal(t, 0, fx.favorites(t))

	_, _, err = fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
	require.NoError(t, err)
	require.NoError(t, fx.svc.DeleteFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view))
	assert.Equal(t, 0, fx.favorites(t))
	assert.ErrorIs(t, fx.svc.DeleteFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view), persistence.ErrNotFound)
}

func TestFavoriteEvents(t *testing.T) {
	fx := newFixture(t)
	view, err := fx.f.View(fx.ctx, fx.ws, fx.proj, "Mine", fx.user)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := map[persistence.PersistenceEventType]int{}
	record := func(ctx context.Context, ev persistence.PersistenceEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.Type]++
		return nil
	}
	for _, ev := range []persistence.PersistenceEventType{persistence.FavoriteCreated, persistence.FavoriteDeleted} {
		fx.p.RegisterSubscription(persistence.RegisterSubscriptionOptions{Event: ev, Callback: record})
	}

	_, _, err = fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
	require.NoError(t, err)
	_, _, err = fx.svc.CreateFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view)
	require.NoError(t, err)
	require.NoError(t, fx.svc.DeleteFavorite(fx.ctx, fx.ws, fx.proj, fx.user, view))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[persistence.FavoriteCreated] == 1 && seen[persistence.FavoriteDeleted] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestFields(t *testing.T) {
	fields := views.Fields()
	assert.Contains(t, fields, "is_favorite")
	assert.Contains(t, fields, "name")
	assert.NotContains(t, fields, "bogus")
}
