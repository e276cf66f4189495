package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Page size bounds used when no explicit settings are configured.
const (
	DefaultPerPage = 100
	MaxPerPage     = 1000
)

// Cursor designates one page of an ordered result. Its wire form is
// "per_page:page:is_prev"; clients treat it as opaque.
type Cursor struct {
	PerPage int
	Page    int
	IsPrev  bool
}

// String renders the cursor in its wire form.
func (c Cursor) String() string {
	prev := 0
	if c.IsPrev {
		prev = 1
	}
	return fmt.Sprintf("%d:%d:%d", c.PerPage, c.Page, prev)
}

// Offset is the number of rows skipped before this page.
func (c Cursor) Offset() int {
	return c.PerPage * c.Page
}

// Next designates the page after c.
func (c Cursor) Next() Cursor {
	return Cursor{PerPage: c.PerPage, Page: c.Page + 1}
}

// Prev designates the page before c. The first page is its own predecessor.
func (c Cursor) Prev() Cursor {
	page := c.Page - 1
	if page < 0 {
		page = 0
	}
	return Cursor{PerPage: c.PerPage, Page: page, IsPrev: true}
}

// PageSettings bounds the page sizes clients may request.
type PageSettings struct {
	DefaultPerPage int
	MaxPerPage     int
}

// DefaultPageSettings returns the built-in page size bounds.
func DefaultPageSettings() PageSettings {
	return PageSettings{DefaultPerPage: DefaultPerPage, MaxPerPage: MaxPerPage}
}

func (s PageSettings) normalized() PageSettings {
	if s.MaxPerPage <= 0 {
		s.MaxPerPage = MaxPerPage
	}
	if s.DefaultPerPage <= 0 || s.DefaultPerPage > s.MaxPerPage {
		s.DefaultPerPage = min(DefaultPerPage, s.MaxPerPage)
	}
	return s
}

// ParseCursor decodes a cursor. It never fails: anything malformed yields the
// first page at the given page size. A page size of zero or less uses the
// default, and sizes above the maximum are clamped.
func (s PageSettings) ParseCursor(raw string, perPage int) Cursor {
	s = s.normalized()
	c, ok := decodeCursor(raw)
	if !ok {
		return Cursor{PerPage: s.clamp(perPage)}
	}
	c.PerPage = s.clamp(c.PerPage)
	return c
}

func decodeCursor(raw string) (Cursor, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return Cursor{}, false
	}
	size, err := strconv.Atoi(parts[0])
	if err != nil || size <= 0 {
		return Cursor{}, false
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 0 {
		return Cursor{}, false
	}
	c := Cursor{PerPage: size, Page: page}
	switch parts[2] {
	case "0":
	case "1":
		c.IsPrev = true
	default:
		return Cursor{}, false
	}
	return c, true
}

// ParsePerPage decodes a per_page parameter, normalizing bad input to the default.
func (s PageSettings) ParsePerPage(raw string) int {
	s = s.normalized()
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return s.DefaultPerPage
	}
	return s.clamp(n)
}

func (s PageSettings) clamp(n int) int {
	if n <= 0 {
		return s.DefaultPerPage
	}
	if n > s.MaxPerPage {
		return s.MaxPerPage
	}
	return n
}

// ParseGroupCursors decodes group_cursor parameters of the form
// "<group key>:<cursor>". The key is everything before the cursor's three
// colon-separated parts. Malformed entries are ignored.
func (s PageSettings) ParseGroupCursors(values []string) map[string]Cursor {
	s = s.normalized()
	out := make(map[string]Cursor)
	for _, raw := range values {
		parts := strings.Split(raw, ":")
		if len(parts) < 4 {
			continue
		}
		key := strings.Join(parts[:len(parts)-3], ":")
		if key == "" {
			continue
		}
		c, ok := decodeCursor(strings.Join(parts[len(parts)-3:], ":"))
		if !ok {
			continue
		}
		c.PerPage = s.clamp(c.PerPage)
		out[key] = c
	}
	return out
}

// PageResult builds pagination metadata for a page of c holding fetched rows out of
// total, where fetched may include one look-ahead row.
func PageResult(c Cursor, fetched, total int) PaginationResult {
	res := PaginationResult{
		Total:      total,
		PerPage:    c.PerPage,
		HasNext:    fetched > c.PerPage,
		HasPrev:    c.Page > 0,
		NextCursor: c.Next().String(),
		PrevCursor: c.Prev().String(),
	}
	if c.PerPage > 0 {
		res.TotalPages = (total + c.PerPage - 1) / c.PerPage
	}
	return res
}
