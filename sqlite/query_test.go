package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
)

func generator(t *testing.T, table string) *SqliteQuery {
	t.Helper()
	g, err := NewSqliteQuery(schema.MustTable(table))
	require.NoError(t, err)
	return g
}

func TestNewSqliteQuery(t *testing.T) {
	_, err := NewSqliteQuery(nil)
	assert.Error(t, err)
	_, err = NewSqliteQuery(&schema.SchemaDefinition{})
	assert.Error(t, err)
}

func TestGenerateCountSQL(t *testing.T) {
	g := generator(t, schema.TableIssues)

	tests := []struct {
		name     string
		filter   *query.QueryFilter
		expected string
		params   []any
	}{
		{
			name:     "no filter",
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t";`,
		},
		{
			name:     "stored column",
			filter:   query.Condition("priority", query.ComparisonOperatorEq, "high"),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE "t"."priority" = ?;`,
			params:   []any{"high"},
		},
		{
			name:     "boolean stored as integer",
			filter:   query.Condition("is_draft", query.ComparisonOperatorEq, false),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE "t"."is_draft" = ?;`,
			params:   []any{0},
		},
		{
			name:     "relation membership",
			filter:   query.Condition("labels", query.ComparisonOperatorIn, []any{"l1", "l2"}),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE EXISTS (SELECT 1 FROM "issue_labels" AS "r" WHERE "r"."issue_id" = "t"."id" AND "r"."label_id" IN (?,?));`,
			params:   []any{"l1", "l2"},
		},
		{
			name:     "negated relation",
			filter:   query.Condition("labels", query.ComparisonOperatorNin, []any{"l1"}),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE NOT EXISTS (SELECT 1 FROM "issue_labels" AS "r" WHERE "r"."issue_id" = "t"."id" AND "r"."label_id" IN (?));`,
			params:   []any{"l1"},
		},
		{
			name:     "relation without rows",
			filter:   query.Condition("assignees", query.ComparisonOperatorNotExists, nil),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE NOT EXISTS (SELECT 1 FROM "issue_assignees" AS "r" WHERE "r"."issue_id" = "t"."id" AND "r"."assignee_id" IS NOT NULL);`,
		},
		{
			name:     "relation through local key with where",
			filter:   query.Condition("project_members", query.ComparisonOperatorEq, "u1"),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE EXISTS (SELECT 1 FROM "project_members" AS "r" WHERE "r"."project_id" = "t"."project_id" AND ("r"."is_active" = 1) AND "r"."member_id" = ?);`,
			params:   []any{"u1"},
		},
		{
			name:     "empty in matches nothing",
			filter:   query.Condition("state_id", query.ComparisonOperatorIn, []any{}),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE 1=0;`,
		},
		{
			name: "group",
			filter: query.Or(
				query.Condition("target_date", query.ComparisonOperatorNotExists, nil),
				query.Condition("target_date", query.ComparisonOperatorGte, "2024-01-01"),
			),
			expected: `SELECT COUNT(*) AS "count" FROM "issues" AS "t" WHERE ("t"."target_date" IS NULL OR "t"."target_date" >= ?);`,
			params:   []any{"2024-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := g.GenerateCountSQL(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sql)
			assert.Equal(t, tt.params, params)
		})
	}

	_, _, err := g.GenerateCountSQL(query.Condition("bogus", query.ComparisonOperatorEq, 1))
	assert.Error(t, err)
}

func TestGenerateSelectSQL_Annotations(t *testing.T) {
	g := generator(t, schema.TableIssues)
	dsl := query.NewQueryBuilder().
		Where("priority").Eq("high").
		Annotate("link_count", "label_ids", "cycle_id").
		OrderByDesc("link_count").
		Limit(10).
		Offset(20).
		Build()

	sql, params, err := g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "t".*, `+
		`COALESCE((SELECT COUNT(*) FROM "issue_links" AS "a" WHERE "a"."issue_id" = "t"."id"), 0) AS "link_count", `+
		`COALESCE((SELECT json_group_array(DISTINCT "a"."label_id") FROM "issue_labels" AS "a" WHERE "a"."issue_id" = "t"."id" AND "a"."label_id" IS NOT NULL), '[]') AS "label_ids", `+
		`(SELECT "a"."cycle_id" FROM "issue_cycles" AS "a" WHERE "a"."issue_id" = "t"."id" AND "a"."cycle_id" IS NOT NULL ORDER BY "a"."cycle_id" LIMIT 1) AS "cycle_id" `+
		`FROM "issues" AS "t" WHERE "t"."priority" = ? `+
		`ORDER BY COALESCE((SELECT COUNT(*) FROM "issue_links" AS "a" WHERE "a"."issue_id" = "t"."id"), 0) DESC `+
		`LIMIT 10 OFFSET 20;`, sql)
	assert.Equal(t, []any{"high"}, params)

	_, _, err = g.GenerateSelectSQL(nil)
	assert.Error(t, err)

	bad := query.NewQueryBuilder().Annotate("nope").Build()
	_, _, err = g.GenerateSelectSQL(&bad)
	assert.Error(t, err)
}

func TestGenerateSelectSQL_BoundAnnotationParamOrder(t *testing.T) {
	g := generator(t, schema.TableIssueViews)
	dsl := query.NewQueryBuilder().
		Where("workspace_id").Eq("w1").
		Annotate("is_favorite").
		Bind("user_id", "u1").
		OrderByDesc("is_favorite").
		OrderByAsc("name").
		Build()

	sql, params, err := g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	favorite := `EXISTS (SELECT 1 FROM "issue_view_favorites" AS "a" WHERE "a"."view_id" = "t"."id" AND "a"."user_id" = ?)`
	assert.Equal(t, `SELECT "t".*, `+favorite+` AS "is_favorite" FROM "issue_views" AS "t" `+
		`WHERE "t"."workspace_id" = ? ORDER BY `+favorite+` DESC, "t"."name" ASC;`, sql)
	assert.Equal(t, []any{"u1", "w1", "u1"}, params, "select, then where, then order arguments")

	unbound := query.NewQueryBuilder().Annotate("is_favorite").Build()
	_, _, err = g.GenerateSelectSQL(&unbound)
	assert.Error(t, err)

	filtered := query.NewQueryBuilder().Where("is_favorite").Eq(true).Build()
	_, _, err = g.GenerateSelectSQL(&filtered)
	assert.Error(t, err, "bound annotations are not filterable")
}

func TestGenerateSelectSQL_RankAndNulls(t *testing.T) {
	g := generator(t, schema.TableIssues)
	dsl := query.NewQueryBuilder().
		Sort(
			query.SortConfiguration{Field: "priority", Direction: query.SortDirectionAsc, Values: []any{"urgent", "high"}},
			query.SortConfiguration{Field: "target_date", Direction: query.SortDirectionDesc, NullsLast: true},
			query.SortConfiguration{Field: "labels", Direction: query.SortDirectionDesc},
			query.SortConfiguration{Field: "state_group"},
		).
		Build()

	sql, params, err := g.GenerateSelectSQL(&dsl)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "t".* FROM "issues" AS "t" ORDER BY `+
		`CASE "t"."priority" WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END ASC, `+
		`"t"."target_date" DESC NULLS LAST, `+
		`(SELECT MAX("r"."label_id") FROM "issue_labels" AS "r" WHERE "r"."issue_id" = "t"."id") DESC, `+
		`(SELECT "r"."group" FROM "states" AS "r" WHERE "r"."id" = "t"."state_id" LIMIT 1) ASC;`, sql)
	assert.Equal(t, []any{"urgent", "high"}, params)
}

func TestGenerateGroupKeysSQL(t *testing.T) {
	g := generator(t, schema.TableIssues)
	scope := query.Condition("workspace_id", query.ComparisonOperatorEq, "w1")

	sql, params, err := g.GenerateGroupKeysSQL("priority", scope)
	require.NoError(t, err)
	assert.Equal(t, `SELECT DISTINCT "t"."priority" AS "group_key" FROM "issues" AS "t" WHERE "t"."workspace_id" = ?;`, sql)
	assert.Equal(t, []any{"w1"}, params)

	sql, _, err = g.GenerateGroupKeysSQL("labels", scope)
	require.NoError(t, err)
	assert.Equal(t, `SELECT DISTINCT "r"."label_id" AS "group_key" FROM "issues" AS "t" `+
		`LEFT JOIN "issue_labels" AS "r" ON "r"."issue_id" = "t"."id" WHERE "t"."workspace_id" = ?;`, sql)

	_, _, err = g.GenerateGroupKeysSQL("bogus", nil)
	assert.Error(t, err)
}

func TestGenerateInsertSQL(t *testing.T) {
	g := generator(t, schema.TableIssueViewFavorites)
	record := map[string]any{"id": "f1", "view_id": "v1", "user_id": "u1"}

	sql, params, err := g.GenerateInsertSQL([]map[string]any{record}, false)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "issue_view_favorites" ("id", "user_id", "view_id") VALUES (?, ?, ?) RETURNING *;`, sql)
	assert.Equal(t, []any{"f1", "u1", "v1"}, params)

	sql, _, err = g.GenerateInsertSQL([]map[string]any{record}, true)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "issue_view_favorites" ("id", "user_id", "view_id") VALUES (?, ?, ?) ON CONFLICT DO NOTHING RETURNING *;`, sql)

	_, _, err = g.GenerateInsertSQL(nil, false)
	assert.Error(t, err)
	_, _, err = g.GenerateInsertSQL([]map[string]any{{"bogus": 1}}, false)
	assert.Error(t, err)
}

func TestGenerateUpdateSQL(t *testing.T) {
	g := generator(t, schema.TableIssueViews)
	sql, params, err := g.GenerateUpdateSQL(
		map[string]any{"name": "Mine", "filters": map[string]any{"priority": []any{"high"}}},
		query.Condition("id", query.ComparisonOperatorEq, "v1"),
	)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "issue_views" AS "t" SET "filters" = ?, "name" = ? WHERE "t"."id" = ?;`, sql)
	assert.Equal(t, []any{`{"priority":["high"]}`, "Mine", "v1"}, params)

	_, _, err = g.GenerateUpdateSQL(nil, nil)
	assert.Error(t, err)
}

func TestGenerateDeleteSQL(t *testing.T) {
	g := generator(t, schema.TableIssueViewFavorites)

	_, _, err := g.GenerateDeleteSQL(nil, false)
	assert.Error(t, err)

	sql, _, err := g.GenerateDeleteSQL(nil, true)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "issue_view_favorites" AS "t";`, sql)

	sql, params, err := g.GenerateDeleteSQL(query.And(
		query.Condition("view_id", query.ComparisonOperatorEq, "v1"),
		query.Condition("user_id", query.ComparisonOperatorEq, "u1"),
	), false)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "issue_view_favorites" AS "t" WHERE ("t"."view_id" = ? AND "t"."user_id" = ?);`, sql)
	assert.Equal(t, []any{"v1", "u1"}, params)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}
