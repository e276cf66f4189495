package schema

import (
	"embed"
	"fmt"
	"sync"
)

//go:embed tables/*.json
var tableFiles embed.FS

// Table names of the tracker catalog.
const (
	TableUsers              = "users"
	TableWorkspaces         = "workspaces"
	TableWorkspaceMembers   = "workspace_members"
	TableProjects           = "projects"
	TableProjectMembers     = "project_members"
	TableStates             = "states"
	TableIssues             = "issues"
	TableLabels             = "labels"
	TableIssueLabels        = "issue_labels"
	TableIssueAssignees     = "issue_assignees"
	TableModules            = "modules"
	TableIssueModules       = "issue_modules"
	TableCycles             = "cycles"
	TableIssueCycles        = "issue_cycles"
	TableIssueLinks         = "issue_links"
	TableIssueAttachments   = "issue_attachments"
	TableIssueInbox         = "issue_inbox"
	TableIssueViews         = "issue_views"
	TableIssueViewFavorites = "issue_view_favorites"
)

// tableOrder is the creation order; referenced tables come first.
var tableOrder = []string{
	TableUsers,
	TableWorkspaces,
	TableWorkspaceMembers,
	TableProjects,
	TableProjectMembers,
	TableStates,
	TableIssues,
	TableLabels,
	TableIssueLabels,
	TableIssueAssignees,
	TableModules,
	TableIssueModules,
	TableCycles,
	TableIssueCycles,
	TableIssueLinks,
	TableIssueAttachments,
	TableIssueInbox,
	TableIssueViews,
	TableIssueViewFavorites,
}

var (
	catalogOnce sync.Once
	catalog     map[string]*SchemaDefinition
	catalogErr  error
)

func loadCatalog() {
	catalog = make(map[string]*SchemaDefinition, len(tableOrder))
	for _, name := range tableOrder {
		data, err := tableFiles.ReadFile("tables/" + name + ".json")
		if err != nil {
			catalogErr = fmt.Errorf("missing schema for table '%s': %w", name, err)
			return
		}
		sc, err := Parse(data)
		if err != nil {
			catalogErr = err
			return
		}
		catalog[name] = sc
	}
}

// Catalog returns every table schema in creation order.
func Catalog() ([]*SchemaDefinition, error) {
	catalogOnce.Do(loadCatalog)
	if catalogErr != nil {
		return nil, catalogErr
	}
	out := make([]*SchemaDefinition, 0, len(tableOrder))
	for _, name := range tableOrder {
		out = append(out, catalog[name])
	}
	return out, nil
}

// Table returns the schema of a catalog table.
func Table(name string) (*SchemaDefinition, error) {
	catalogOnce.Do(loadCatalog)
	if catalogErr != nil {
		return nil, catalogErr
	}
	sc, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("table '%s' is not part of the catalog", name)
	}
	return sc, nil
}

// MustTable is Table for names known at compile time.
func MustTable(name string) *SchemaDefinition {
	sc, err := Table(name)
	if err != nil {
		panic(err)
	}
	return sc
}
