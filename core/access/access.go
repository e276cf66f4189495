// Package access resolves who is calling and what they may see. It answers
// authentication and membership questions before any list query runs, and
// supplies the scoping predicates list queries are built on.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("authentication credentials were not provided or are invalid")

// Workspace is the workspace a request operates in.
type Workspace struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Project is the project a request operates in.
type Project struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
}

// Authorizer checks credentials and memberships.
type Authorizer struct {
	p      *persistence.Persistence
	logger *zap.Logger
}

// NewAuthorizer creates an Authorizer reading through p.
func NewAuthorizer(p *persistence.Persistence) *Authorizer {
	return &Authorizer{p: p, logger: p.Logger()}
}

func eq(field string, value any) *query.QueryFilter {
	return query.Condition(field, query.ComparisonOperatorEq, value)
}

// Authenticate returns the active user holding token.
func (a *Authorizer) Authenticate(ctx context.Context, token string) (schema.Document, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	users, err := a.p.Collection(schema.TableUsers)
	if err != nil {
		return nil, err
	}
	user, err := users.FindOne(ctx, query.And(eq("token", token), eq("is_active", true)))
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Workspace resolves a workspace slug for an active member. An unknown slug
// and a workspace the user does not belong to are reported alike, as
// persistence.ErrForbidden.
func (a *Authorizer) Workspace(ctx context.Context, slug, userID string) (*Workspace, error) {
	workspaces, err := a.p.Collection(schema.TableWorkspaces)
	if err != nil {
		return nil, err
	}
	ws, err := workspaces.FindOne(ctx, eq("slug", slug))
	if errors.Is(err, persistence.ErrNotFound) {
		a.logger.Debug("Unknown workspace", zap.String("slug", slug))
		return nil, persistence.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	members, err := a.p.Collection(schema.TableWorkspaceMembers)
	if err != nil {
		return nil, err
	}
	n, err := members.Count(ctx, query.And(eq("workspace_id", ws["id"]), eq("member_id", userID), eq("is_active", true)))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		a.logger.Debug("Not a workspace member", zap.String("slug", slug), zap.String("user_id", userID))
		return nil, persistence.ErrForbidden
	}
	return &Workspace{ID: str(ws["id"]), Slug: str(ws["slug"]), Name: str(ws["name"])}, nil
}

// Project resolves a project of ws for an active project member.
func (a *Authorizer) Project(ctx context.Context, ws *Workspace, projectID, userID string) (*Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, persistence.ErrForbidden
	}
	projects, err := a.p.Collection(schema.TableProjects)
	if err != nil {
		return nil, err
	}
	project, err := projects.FindOne(ctx, query.And(eq("id", projectID), eq("workspace_id", ws.ID)))
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, persistence.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	members, err := a.p.Collection(schema.TableProjectMembers)
	if err != nil {
		return nil, err
	}
	n, err := members.Count(ctx, query.And(eq("project_id", projectID), eq("member_id", userID), eq("is_active", true)))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		a.logger.Debug("Not a project member", zap.String("project_id", projectID), zap.String("user_id", userID))
		return nil, persistence.ErrForbidden
	}
	return &Project{ID: str(project["id"]), WorkspaceID: ws.ID, Name: str(project["name"])}, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
