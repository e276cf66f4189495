// Package issues lists issues: it turns request parameters into a QueryDSL
// over the caller's scope and runs the listing pipeline.
package issues

import (
	"context"
	"net/url"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"go.uber.org/zap"
)

// Annotations attached to every listed issue.
var Annotations = []string{
	"sub_issues_count",
	"link_count",
	"attachment_count",
	"label_ids",
	"assignee_ids",
	"module_ids",
	"cycle_id",
}

// Options configure a Service.
type Options struct {
	Pages query.PageSettings
	// CountFilter narrows the per-group totals of grouped lists.
	CountFilter *query.QueryFilter
}

// Service lists issues.
type Service struct {
	p       *persistence.Persistence
	options Options
	logger  *zap.Logger
}

// NewService creates an issue Service.
func NewService(p *persistence.Persistence, options Options) *Service {
	return &Service{p: p, options: options, logger: p.Logger()}
}

// Fields are the names the fields parameter may select.
func Fields() []string {
	sc := schema.MustTable(schema.TableIssues)
	names := make([]string, 0, len(sc.Fields)+len(Annotations))
	for name := range sc.Fields {
		names = append(names, name)
	}
	return append(names, Annotations...)
}

// Request is a parsed list request.
type Request struct {
	DSL    query.QueryDSL
	Cursor query.Cursor
}

// ParseRequest builds the list request for params within scope. It never
// fails: malformed parameters fall back to an empty filter, the default
// order, no grouping and the first page.
func (s *Service) ParseRequest(scope *query.QueryFilter, params url.Values) Request {
	pages := s.options.Pages
	perPage := pages.ParsePerPage(params.Get("per_page"))
	cursor := pages.ParseCursor(params.Get("cursor"), perPage)

	qb := query.NewQueryBuilder().
		Filter(query.Scope(scope, query.BuildFilters(params, query.IssueFilterFields))).
		Annotate(Annotations...).
		Sort(query.ResolveOrder(params.Get("order_by"), query.IssueOrderKeys, query.DefaultIssueOrder)...)

	if group := query.ResolveGroupBy(params.Get("group_by"), query.IssueGroupKeys); group != nil {
		qb.GroupBy(group.Field, group.Name)
	}
	dsl := qb.Build()
	if dsl.GroupBy != nil {
		dsl.GroupBy.CountFilter = s.options.CountFilter
		dsl.GroupBy.Cursors = pages.ParseGroupCursors(params["group_cursor"])
	}
	dsl.Projection = query.ResolveProjection(params.Get("fields"), Fields())
	return Request{DSL: dsl, Cursor: cursor}
}

// List runs the listing pipeline for params within scope.
func (s *Service) List(ctx context.Context, scope *query.QueryFilter, params url.Values) (*query.QueryResult, error) {
	req := s.ParseRequest(scope, params)
	issues, err := s.p.Collection(schema.TableIssues)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Listing issues",
		zap.String("cursor", req.Cursor.String()),
		zap.Bool("grouped", req.DSL.GroupBy != nil),
	)
	return issues.List(ctx, &req.DSL, req.Cursor)
}
