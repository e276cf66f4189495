package seed_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/issues"
	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/asaidimu/go-plane/seed"
	"github.com/asaidimu/go-plane/sqlite/sqlitetest"
)

func TestDemo(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()

	demo, err := seed.Demo(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "plane-demo", demo.Slug)

	auth := access.NewAuthorizer(p)
	user, err := auth.Authenticate(ctx, demo.Token)
	require.NoError(t, err)
	assert.Equal(t, demo.UserID, user["id"])
	assert.Equal(t, demo.WorkspaceID, user["last_workspace_id"])

	ws, err := auth.Workspace(ctx, demo.Slug, demo.UserID)
	require.NoError(t, err)
	_, err = auth.Project(ctx, ws, demo.ProjectID, demo.UserID)
	require.NoError(t, err)

	svc := issues.NewService(p, issues.Options{Pages: query.DefaultPageSettings()})
	res, err := svc.List(ctx, access.WorkspaceIssues(ws.ID, demo.UserID), url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Count)

	views, err := p.Collection(schema.TableIssueViews)
	require.NoError(t, err)
	n, err := views.Count(ctx, query.Condition("workspace_id", query.ComparisonOperatorEq, ws.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDemo_RunsOncePerDatabase(t *testing.T) {
	p := sqlitetest.New(t)
	ctx := context.Background()

	_, err := seed.Demo(ctx, p)
	require.NoError(t, err)

	_, err = seed.Demo(ctx, p)
	assert.ErrorIs(t, err, persistence.ErrConflict, "the demo email is unique")

	users, err := p.Collection(schema.TableUsers)
	require.NoError(t, err)
	n, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
