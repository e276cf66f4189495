package access

import (
	"github.com/asaidimu/go-plane/core/query"
)

// Inbox statuses of issues that are listed. Issues still pending triage
// (-2) or snoozed (0) stay in the inbox.
var listedInboxStatuses = []any{1, -1, 2}

// issueBase keeps the issues a list may ever show: live, published, and out
// of triage.
func issueBase() *query.QueryFilter {
	return query.NewQueryBuilder().
		Where("deleted_at").NotExists().
		Where("archived_at").NotExists().
		Where("is_draft").Eq(false).
		WhereGroup(query.LogicalOperatorOr).
		Where("inbox_status").NotExists().
		Where("inbox_status").In(listedInboxStatuses...).
		End().
		Build().Filters
}

// WorkspaceIssues scopes issues to a workspace and to the projects userID is an
// active member of.
func WorkspaceIssues(workspaceID, userID string) *query.QueryFilter {
	return query.And(
		query.Condition("workspace_id", query.ComparisonOperatorEq, workspaceID),
		query.Condition("project_members", query.ComparisonOperatorEq, userID),
		issueBase(),
	)
}

// ProjectIssues scopes issues to one project of a workspace, for an active
// member of it.
func ProjectIssues(workspaceID, projectID, userID string) *query.QueryFilter {
	return query.And(
		query.Condition("workspace_id", query.ComparisonOperatorEq, workspaceID),
		query.Condition("project_id", query.ComparisonOperatorEq, projectID),
		query.Condition("project_members", query.ComparisonOperatorEq, userID),
		issueBase(),
	)
}

// ProjectViews scopes views to one project, for an active member of it.
func ProjectViews(workspaceID, projectID, userID string) *query.QueryFilter {
	return query.And(
		query.Condition("workspace_id", query.ComparisonOperatorEq, workspaceID),
		query.Condition("project_id", query.ComparisonOperatorEq, projectID),
		query.Condition("project_members", query.ComparisonOperatorEq, userID),
	)
}

// GlobalViews scopes views to the workspace-wide views of a workspace.
func GlobalViews(workspaceID string) *query.QueryFilter {
	return query.And(
		query.Condition("workspace_id", query.ComparisonOperatorEq, workspaceID),
		query.Condition("project_id", query.ComparisonOperatorNotExists, nil),
	)
}
