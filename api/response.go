package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/account"
	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// APIError describes why a request failed.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// Fields holds per-field messages of validation failures.
	Fields map[string][]string `json:"fields,omitempty"`
}

func abort(c *gin.Context, status int, apiErr *APIError) {
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: apiErr})
}

// fail maps err onto a status and error body. Storage failures are logged and
// reported without detail.
func (s *Server) fail(c *gin.Context, err error) {
	var accountErr *account.ValidationError
	var storeErr *persistence.ValidationError
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		abort(c, http.StatusUnauthorized, &APIError{Code: "UNAUTHENTICATED", Message: err.Error()})
	case errors.Is(err, persistence.ErrForbidden):
		abort(c, http.StatusForbidden, &APIError{Code: "FORBIDDEN", Message: "You do not have permission to perform this action."})
	case errors.Is(err, persistence.ErrNotFound):
		abort(c, http.StatusNotFound, &APIError{Code: "NOT_FOUND", Message: "Not found."})
	case errors.Is(err, persistence.ErrConflict):
		abort(c, http.StatusConflict, &APIError{Code: "CONFLICT", Message: "The resource already exists."})
	case errors.As(err, &accountErr):
		abort(c, http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: "Invalid input.", Fields: accountErr.Fields})
	case errors.As(err, &storeErr):
		abort(c, http.StatusBadRequest, &APIError{Code: "VALIDATION_ERROR", Message: "Invalid input.", Fields: issueFields(storeErr.Issues)})
	default:
		s.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		abort(c, http.StatusInternalServerError, &APIError{Code: "INTERNAL_ERROR", Message: "Something went wrong."})
	}
}

func issueFields(issues []schema.Issue) map[string][]string {
	fields := make(map[string][]string, len(issues))
	for _, issue := range issues {
		key := issue.Path
		if key == "" {
			key = account.NonFieldKey
		}
		fields[key] = append(fields[key], issue.Message)
	}
	return fields
}

func badJSON(c *gin.Context, err error) {
	abort(c, http.StatusBadRequest, &APIError{Code: "INVALID_JSON", Message: "Invalid JSON in request body.", Details: err.Error()})
}

// Page is one page of a flat list.
type Page struct {
	Results         []schema.Document `json:"results"`
	TotalCount      int               `json:"total_count"`
	Count           int               `json:"count"`
	TotalPages      int               `json:"total_pages"`
	NextCursor      string            `json:"next_cursor"`
	PrevCursor      string            `json:"prev_cursor"`
	NextPageResults bool              `json:"next_page_results"`
	PrevPageResults bool              `json:"prev_page_results"`
}

// GroupPage is the page of one group of a grouped list.
type GroupPage struct {
	Results         []schema.Document `json:"results"`
	TotalCount      int               `json:"total_count"`
	NextCursor      string            `json:"next_cursor"`
	PrevCursor      string            `json:"prev_cursor"`
	NextPageResults bool              `json:"next_page_results"`
	PrevPageResults bool              `json:"prev_page_results"`
}

// GroupedPage is a grouped list: one page per group key. GroupKeys lists the
// keys of Results in display order, the no-value group last.
type GroupedPage struct {
	GroupedBy  string                `json:"grouped_by"`
	TotalCount int                   `json:"total_count"`
	GroupKeys  []string              `json:"group_keys"`
	Results    map[string]*GroupPage `json:"results"`
}

func page(res *query.QueryResult) any {
	if res.GroupedBy != "" {
		out := &GroupedPage{
			GroupedBy:  res.GroupedBy,
			TotalCount: res.Count,
			GroupKeys:  make([]string, 0, len(res.Groups)),
			Results:    make(map[string]*GroupPage, len(res.Groups)),
		}
		for _, g := range res.Groups {
			out.GroupKeys = append(out.GroupKeys, g.Key)
			out.Results[g.Key] = &GroupPage{
				Results:         g.Data,
				TotalCount:      g.Pagination.Total,
				NextCursor:      g.Pagination.NextCursor,
				PrevCursor:      g.Pagination.PrevCursor,
				NextPageResults: g.Pagination.HasNext,
				PrevPageResults: g.Pagination.HasPrev,
			}
		}
		return out
	}
	out := &Page{Results: res.Data, TotalCount: res.Count, Count: len(res.Data)}
	if p := res.Pagination; p != nil {
		out.TotalPages = p.TotalPages
		out.NextCursor = p.NextCursor
		out.PrevCursor = p.PrevCursor
		out.NextPageResults = p.HasNext
		out.PrevPageResults = p.HasPrev
	}
	return out
}
