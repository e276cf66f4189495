// Package views manages saved issue views and the favorites users mark on
// them. Workspace-wide (global) views have no project; project views carry
// an is_favorite flag for the requesting user.
package views

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// DefaultOrder orders global views when no allowed order_by is given.
const DefaultOrder = "-created_at"

// editable are the view fields a client may set.
var editable = []string{"name", "description", "query", "filters", "display_filters", "display_properties", "access"}

// Input is the body of a view create request.
type Input struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Query             map[string]any `json:"query"`
	Filters           map[string]any `json:"filters"`
	DisplayFilters    map[string]any `json:"display_filters"`
	DisplayProperties map[string]any `json:"display_properties"`
	Access            *int           `json:"access"`
}

// Service reads and writes views and favorites.
type Service struct {
	p      *persistence.Persistence
	logger *zap.Logger
	// Now stamps created_at and updated_at.
	Now func() time.Time
}

// NewService creates a view Service.
func NewService(p *persistence.Persistence) *Service {
	return &Service{p: p, logger: p.Logger(), Now: time.Now}
}

func (s *Service) timestamp() string {
	return schema.FormatTimestamp(s.Now())
}

func eq(field string, value any) *query.QueryFilter {
	return query.Condition(field, query.ComparisonOperatorEq, value)
}

func nameRequired() error {
	return &persistence.ValidationError{
		Collection: schema.TableIssueViews,
		Issues: []schema.Issue{{
			Code:    "REQUIRED_FIELD_MISSING",
			Message: "This field is required.",
			Path:    "name",
		}},
	}
}

func (in Input) record() map[string]any {
	rec := map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"description": in.Description,
	}
	for field, value := range map[string]map[string]any{
		"query":              in.Query,
		"filters":            in.Filters,
		"display_filters":    in.DisplayFilters,
		"display_properties": in.DisplayProperties,
	} {
		if value == nil {
			value = map[string]any{}
		}
		rec[field] = value
	}
	if in.Access != nil {
		rec["access"] = *in.Access
	}
	return rec
}

// Fields are the names the fields parameter of a project view list may select.
func Fields() []string {
	sc := schema.MustTable(schema.TableIssueViews)
	names := make([]string, 0, len(sc.Fields)+1)
	for name := range sc.Fields {
		names = append(names, name)
	}
	return append(names, "is_favorite")
}

// globalView selects one global view of a workspace.
func globalView(workspaceID, viewID string) *query.QueryFilter {
	return query.And(access.GlobalViews(workspaceID), eq("id", viewID))
}

// ListGlobal lists the global views of a workspace ordered by the allowed
// order_by parameter.
func (s *Service) ListGlobal(ctx context.Context, workspaceID string, params url.Values) ([]schema.Document, error) {
	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return nil, err
	}
	dsl := query.NewQueryBuilder().
		Filter(access.GlobalViews(workspaceID)).
		Sort(query.ResolveOrder(params.Get("order_by"), query.ViewOrderKeys, DefaultOrder)...).
		Build()
	res, err := views.Read(ctx, &dsl)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (s *Service) create(ctx context.Context, workspaceID, projectID, userID string, in Input) (schema.Document, error) {
	rec := in.record()
	if rec["name"] == "" {
		return nil, nameRequired()
	}
	now := s.timestamp()
	rec["id"] = uuid.NewString()
	rec["workspace_id"] = workspaceID
	rec["created_by"] = userID
	rec["created_at"] = now
	rec["updated_at"] = now
	if projectID != "" {
		rec["project_id"] = projectID
	}

	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return nil, err
	}
	rows, err := views.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	view := rows[0]
	s.logger.Info("View created",
		zap.String("view_id", rec["id"].(string)),
		zap.String("workspace_id", workspaceID),
		zap.String("project_id", projectID),
	)
	s.p.Emit(persistence.ViewCreated, schema.TableIssueViews, view, map[string]any{"user_id": userID})
	return view, nil
}

// CreateGlobal creates a workspace-wide view.
func (s *Service) CreateGlobal(ctx context.Context, workspaceID, userID string, in Input) (schema.Document, error) {
	return s.create(ctx, workspaceID, "", userID, in)
}

// GetGlobal returns a global view of a workspace, or persistence.ErrNotFound.
func (s *Service) GetGlobal(ctx context.Context, workspaceID, viewID string) (schema.Document, error) {
	if _, err := uuid.Parse(viewID); err != nil {
		return nil, persistence.ErrNotFound
	}
	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return nil, err
	}
	return views.FindOne(ctx, globalView(workspaceID, viewID))
}

// UpdateGlobal applies the editable fields of patch to a global view and
// returns the stored view. Other keys are ignored.
func (s *Service) UpdateGlobal(ctx context.Context, workspaceID, viewID string, patch map[string]any) (schema.Document, error) {
	if _, err := uuid.Parse(viewID); err != nil {
		return nil, persistence.ErrNotFound
	}
	updates := make(map[string]any, len(editable)+1)
	for _, field := range editable {
		if value, ok := patch[field]; ok {
			updates[field] = value
		}
	}
	if name, ok := updates["name"]; ok {
		if str, _ := name.(string); strings.TrimSpace(str) == "" {
			return nil, nameRequired()
		}
	}
	updates["updated_at"] = s.timestamp()

	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return nil, err
	}
	n, err := views.Update(ctx, updates, globalView(workspaceID, viewID))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, persistence.ErrNotFound
	}
	return views.FindOne(ctx, globalView(workspaceID, viewID))
}

// DeleteGlobal removes a global view, or reports persistence.ErrNotFound.
func (s *Service) DeleteGlobal(ctx context.Context, workspaceID, viewID string) error {
	if _, err := uuid.Parse(viewID); err != nil {
		return persistence.ErrNotFound
	}
	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return err
	}
	n, err := views.Delete(ctx, globalView(workspaceID, viewID))
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListProject lists the views of a project with the is_favorite flag of
// userID, favorites first and then by name.
func (s *Service) ListProject(ctx context.Context, workspaceID, projectID, userID string, params url.Values) ([]schema.Document, error) {
	views, err := s.p.Collection(schema.TableIssueViews)
	if err != nil {
		return nil, err
	}
	dsl := query.NewQueryBuilder().
		Filter(access.ProjectViews(workspaceID, projectID, userID)).
		Annotate("is_favorite").
		Bind("user_id", userID).
		OrderByDesc("is_favorite").
		OrderByAsc("name").
		OrderByAsc(query.TieBreakField).
		Build()
	dsl.Projection = query.ResolveProjection(params.Get("fields"), Fields())
	res, err := views.Read(ctx, &dsl)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// CreateProject creates a view in a project.
func (s *Service) CreateProject(ctx context.Context, workspaceID, projectID, userID string, in Input) (schema.Document, error) {
	return s.create(ctx, workspaceID, projectID, userID, in)
}

// CreateFavorite marks a project view as a favorite of userID. It reports
// whether the favorite was created; marking a view twice keeps one row and
// returns the existing favorite.
func (s *Service) CreateFavorite(ctx context.Context, workspaceID, projectID, userID, viewID string) (schema.Document, bool, error) {
	if _, err := uuid.Parse(viewID); err != nil {
		return nil, false, persistence.ErrNotFound
	}
	var (
		favorite schema.Document
		created  bool
	)
	err := s.p.Transact(ctx, func(tx *persistence.Persistence) error {
		views, err := tx.Collection(schema.TableIssueViews)
		if err != nil {
			return err
		}
		if _, err := views.FindOne(ctx, query.And(
			eq("id", viewID), eq("workspace_id", workspaceID), eq("project_id", projectID),
		)); err != nil {
			return err
		}

		favorites, err := tx.Collection(schema.TableIssueViewFavorites)
		if err != nil {
			return err
		}
		favorite, created, err = favorites.CreateIfAbsent(ctx, map[string]any{
			"id":           uuid.NewString(),
			"workspace_id": workspaceID,
			"project_id":   projectID,
			"view_id":      viewID,
			"user_id":      userID,
			"created_at":   s.timestamp(),
		})
		if err != nil || created {
			return err
		}
		favorite, err = favorites.FindOne(ctx, query.And(eq("view_id", viewID), eq("user_id", userID)))
		return err
	})
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			s.logger.Error("Failed to create favorite", zap.String("view_id", viewID), zap.Error(err))
		}
		return nil, false, err
	}
	if created {
		s.p.Emit(persistence.FavoriteCreated, schema.TableIssueViewFavorites, favorite, map[string]any{"user_id": userID})
	}
	return favorite, created, nil
}

// DeleteFavorite removes the favorite userID put on a project view. Removing
// a favorite that does not exist reports persistence.ErrNotFound and changes
// nothing.
func (s *Service) DeleteFavorite(ctx context.Context, workspaceID, projectID, userID, viewID string) error {
	if _, err := uuid.Parse(viewID); err != nil {
		return persistence.ErrNotFound
	}
	favorites, err := s.p.Collection(schema.TableIssueViewFavorites)
	if err != nil {
		return err
	}
	n, err := favorites.Delete(ctx, query.And(
		eq("workspace_id", workspaceID),
		eq("project_id", projectID),
		eq("view_id", viewID),
		eq("user_id", userID),
	))
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	s.p.Emit(persistence.FavoriteDeleted, schema.TableIssueViewFavorites,
		schema.Document{"view_id": viewID, "user_id": userID, "project_id": projectID},
		map[string]any{"user_id": userID})
	return nil
}
