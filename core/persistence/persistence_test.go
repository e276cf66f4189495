package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/asaidimu/go-plane/seed"
	"github.com/asaidimu/go-plane/sqlite/sqlitetest"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()

	applied, err := p.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied, "tables were created by the first run")

	records, err := p.Schemas(ctx)
	require.NoError(t, err)
	tables, err := schema.Catalog()
	require.NoError(t, err)
	assert.Len(t, records, len(tables))
	for _, rec := range records {
		assert.Equal(t, "1.0.0", rec.Version)
		assert.NotEmpty(t, rec.Schema)
	}
}

func TestCollection_UnknownTable(t *testing.T) {
	p := sqlitetest.New(t)
	_, err := p.Collection("nope")
	assert.Error(t, err)
}

func TestCollection_CreateValidates(t *testing.T) {
	p := sqlitetest.New(t)
	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)

	_, err = users.Create(context.Background(), map[string]any{"id": "not-a-uuid", "email": "x@example.com"})
	require.Error(t, err)
	assert.True(t, persistence.IsValidationError(err))
}

func TestCollection_CreateConflict(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()
	f := seed.New(p)
	_, err := f.User(ctx, seed.UserSpec{Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = f.User(ctx, seed.UserSpec{Email: "alice@example.com"})
	assert.ErrorIs(t, err, persistence.ErrConflict)
}

func TestCollection_FindOne(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()
	f := seed.New(p)
	id, err := f.User(ctx, seed.UserSpec{Email: "alice@example.com"})
	require.NoError(t, err)

	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)
	doc, err := users.FindOne(ctx, query.Condition("id", query.ComparisonOperatorEq, id))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", doc["email"])
	assert.Equal(t, true, doc["is_active"])
	assert.Equal(t, "UTC", doc["user_timezone"])

	_, err = users.FindOne(ctx, query.Condition("id", query.ComparisonOperatorEq, uuid.NewString()))
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestTransact_RollsBackOnError(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := p.Transact(ctx, func(tx *persistence.Persistence) error {
		if _, err := seed.New(tx).User(ctx, seed.UserSpec{Email: "ghost@example.com"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)
	n, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTransact_Commits(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()

	err := p.Transact(ctx, func(tx *persistence.Persistence) error {
		_, err := seed.New(tx).User(ctx, seed.UserSpec{Email: "kept@example.com"})
		return err
	})
	require.NoError(t, err)

	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)
	n, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateIfAbsent_KeepsOneRow(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()
	f := seed.New(p)
	user, err := f.User(ctx, seed.UserSpec{Email: "alice@example.com"})
	require.NoError(t, err)
	ws, _, err := f.Workspace(ctx, "Acme", user)
	require.NoError(t, err)
	proj, err := f.Project(ctx, ws, "Web")
	require.NoError(t, err)
	view, err := f.View(ctx, ws, proj, "Mine", user)
	require.NoError(t, err)

	favorites, err := p.Collection(schema.TableIssueViewFavorites)
	require.NoError(t, err)
	record := func() map[string]any {
		return map[string]any{
			"id":           uuid.NewString(),
			"workspace_id": ws,
			"project_id":   proj,
			"view_id":      view,
			"user_id":      user,
			"created_at":   f.Now(),
		}
	}

	doc, created, err := favorites.CreateIfAbsent(ctx, record())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, view, doc["view_id"])

	doc, created, err = favorites.CreateIfAbsent(ctx, record())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, doc)

	n, err := favorites.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscriptions(t *testing.T) {
	p := sqlitetest.New(t)

	var mu sync.Mutex
	var created []string
	id := p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event:  persistence.ViewCreated,
		Label:  query.StringPtr("audit"),
		Filter: query.Condition("name", query.ComparisonOperatorEq, "Watched"),
		Callback: func(ctx context.Context, ev persistence.PersistenceEvent) error {
			mu.Lock()
			defer mu.Unlock()
			created = append(created, ev.Output.(schema.Document)["name"].(string))
			return nil
		},
	})

	subs := p.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, "audit", *subs[0].Label)
	assert.Equal(t, id, *subs[0].Id)

	p.Emit(persistence.ViewCreated, schema.TableIssueViews, schema.Document{"name": "Ignored"}, nil)
	p.Emit(persistence.ViewCreated, schema.TableIssueViews, schema.Document{"name": "Watched"}, nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(created) == 1
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"Watched"}, created)
	mu.Unlock()

	p.UnregisterSubscription(id)
	assert.Empty(t, p.Subscriptions())
}

func TestTransact_EmitsFailure(t *testing.T) {
	p := sqlitetest.New(t)

	events := make(chan persistence.PersistenceEvent, 1)
	p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
		Event: persistence.TransactionFailed,
		Callback: func(ctx context.Context, ev persistence.PersistenceEvent) error {
			events <- ev
			return nil
		},
	})

	err := p.Transact(context.Background(), func(tx *persistence.Persistence) error {
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	select {
	case ev := <-events:
		assert.Equal(t, "transaction", ev.Operation)
		require.NotNil(t, ev.Error)
		assert.Equal(t, "boom", *ev.Error)
		assert.NotNil(t, ev.Duration)
		assert.Nil(t, ev.Collection)
	case <-time.After(time.Second):
		t.Fatal("no transaction.failed event")
	}
}

func TestReset_DropsData(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()

	_, err := seed.Demo(ctx, p)
	require.NoError(t, err)

	require.NoError(t, p.Reset(ctx))
	_, err = p.Schemas(ctx)
	assert.Error(t, err, "the registry is gone")

	applied, err := p.Migrate(ctx)
	require.NoError(t, err)
	tables, err := schema.Catalog()
	require.NoError(t, err)
	assert.Len(t, applied, len(tables))

	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)
	q := query.NewQueryBuilder().Build()
	res, err := users.Read(ctx, &q)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}
