package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "missing name",
			input:   `{"fields": {"id": {"type": "identifier"}}}`,
			wantErr: "table name",
		},
		{
			name:    "no fields",
			input:   `{"name": "t"}`,
			wantErr: "defines no fields",
		},
		{
			name:    "incomplete relation",
			input:   `{"name": "t", "fields": {"id": {"type": "identifier"}}, "relations": {"r": {"table": "x"}}}`,
			wantErr: "incomplete",
		},
		{
			name:    "relation on unknown column",
			input:   `{"name": "t", "fields": {"id": {"type": "identifier"}}, "relations": {"r": {"table": "x", "localKey": "nope", "foreignKey": "t_id", "valueColumn": "v"}}}`,
			wantErr: "unknown column",
		},
		{
			name:    "array annotation without value",
			input:   `{"name": "t", "fields": {"id": {"type": "identifier"}}, "annotations": [{"name": "a", "type": "array", "table": "x", "foreignKey": "t_id"}]}`,
			wantErr: "value column",
		},
		{
			name:    "annotation shadows field",
			input:   `{"name": "t", "fields": {"id": {"type": "identifier"}}, "annotations": [{"name": "id", "type": "count", "table": "x", "foreignKey": "t_id"}]}`,
			wantErr: "shadows",
		},
		{
			name:  "valid",
			input: `{"name": "t", "fields": {"id": {"type": "identifier"}}, "annotations": [{"name": "n", "type": "count", "table": "x", "foreignKey": "t_id"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Parse([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "id", sc.Fields["id"].Name)
		})
	}
}

func TestCatalog(t *testing.T) {
	tables, err := Catalog()
	require.NoError(t, err)
	assert.Len(t, tables, len(tableOrder))
	assert.Equal(t, TableUsers, tables[0].Name)

	issues := MustTable(TableIssues)
	assert.True(t, issues.HasField("priority"))
	assert.True(t, issues.HasField("labels"))
	assert.True(t, issues.HasField("label_ids"))
	assert.False(t, issues.HasField("nope"))
	assert.Equal(t, []string{
		"sub_issues_count", "link_count", "attachment_count",
		"label_ids", "assignee_ids", "module_ids", "cycle_id",
	}, issues.AnnotationNames())
	assert.True(t, issues.Relations["labels"].Multiple)
	assert.False(t, issues.Relations["state_group"].Multiple)
	assert.Equal(t, "state_id", issues.Relations["state_group"].Key())
	assert.Equal(t, "id", issues.Relations["labels"].Key())
	assert.Len(t, issues.EnumValues("priority"), 5)
	assert.Len(t, issues.EnumValues("state_group"), 5)

	views := MustTable(TableIssueViews)
	fav := views.Annotation("is_favorite")
	require.NotNil(t, fav)
	assert.Equal(t, AnnotationExists, fav.Type)
	assert.Equal(t, []string{"user_id"}, fav.Bind)

	_, err = Table("missing")
	assert.Error(t, err)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 5000, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-03-01T09:00:00.000005Z", FormatTimestamp(ts))
	assert.Len(t, FormatTimestamp(time.Unix(0, 0)), len(TimestampLayout))
}
