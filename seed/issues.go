package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/asaidimu/go-plane/core/schema"
)

// IssueSpec describes an issue and the rows related to it.
type IssueSpec struct {
	WorkspaceID string
	ProjectID   string
	Name        string
	Priority    string // defaults to "none"
	StateID     string
	ParentID    string
	StartDate   string
	TargetDate  string
	CreatedBy   string
	IsDraft     bool
	Archived    bool
	Deleted     bool

	Labels      []string
	Assignees   []string
	Modules     []string
	CycleID     string
	Links       int
	Attachments int
	// InboxStatus, when set, files the issue in the intake inbox.
	InboxStatus *int
}

type issueRecord struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Priority    string  `json:"priority"`
	StateID     *string `json:"state_id,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	SequenceID  int     `json:"sequence_id"`
	StartDate   *string `json:"start_date,omitempty"`
	TargetDate  *string `json:"target_date,omitempty"`
	IsDraft     bool    `json:"is_draft"`
	ArchivedAt  *string `json:"archived_at,omitempty"`
	DeletedAt   *string `json:"deleted_at,omitempty"`
	CreatedBy   *string `json:"created_by,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type linkRecord struct {
	ID        string `json:"id"`
	IssueID   string `json:"issue_id"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type attachmentRecord struct {
	ID        string `json:"id"`
	IssueID   string `json:"issue_id"`
	Asset     string `json:"asset"`
	Size      int    `json:"size"`
	CreatedAt string `json:"created_at"`
}

type inboxRecord struct {
	ID      string `json:"id"`
	IssueID string `json:"issue_id"`
	Status  int    `json:"status"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Issue creates an issue with its labels, assignees, modules, cycle, links,
// attachments and inbox entry, and returns its id.
func (f *Fixtures) Issue(ctx context.Context, spec IssueSpec) (string, error) {
	f.seq[spec.ProjectID]++
	now := f.Now()
	rec := issueRecord{
		ID:          uuid.NewString(),
		WorkspaceID: spec.WorkspaceID,
		ProjectID:   spec.ProjectID,
		Name:        spec.Name,
		Priority:    spec.Priority,
		StateID:     optional(spec.StateID),
		ParentID:    optional(spec.ParentID),
		SequenceID:  f.seq[spec.ProjectID],
		StartDate:   optional(spec.StartDate),
		TargetDate:  optional(spec.TargetDate),
		IsDraft:     spec.IsDraft,
		CreatedBy:   optional(spec.CreatedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Priority == "" {
		rec.Priority = "none"
	}
	if spec.Archived {
		rec.ArchivedAt = &now
	}
	if spec.Deleted {
		rec.DeletedAt = &now
	}
	if _, err := f.insert(ctx, schema.TableIssues, rec); err != nil {
		return "", err
	}

	links := []struct {
		table, column string
		ids           []string
	}{
		{schema.TableIssueLabels, "label_id", spec.Labels},
		{schema.TableIssueAssignees, "assignee_id", spec.Assignees},
		{schema.TableIssueModules, "module_id", spec.Modules},
	}
	if spec.CycleID != "" {
		links = append(links, struct {
			table, column string
			ids           []string
		}{schema.TableIssueCycles, "cycle_id", []string{spec.CycleID}})
	}
	for _, l := range links {
		for _, id := range l.ids {
			if err := f.relate(ctx, l.table, rec.ID, l.column, id); err != nil {
				return "", err
			}
		}
	}

	for i := 0; i < spec.Links; i++ {
		link := linkRecord{ID: uuid.NewString(), IssueID: rec.ID, URL: fmt.Sprintf("https://example.com/%s/%d", rec.ID, i), CreatedAt: f.Now()}
		if _, err := f.insert(ctx, schema.TableIssueLinks, link); err != nil {
			return "", err
		}
	}
	for i := 0; i < spec.Attachments; i++ {
		att := attachmentRecord{ID: uuid.NewString(), IssueID: rec.ID, Asset: fmt.Sprintf("assets/%s/%d.png", rec.ID, i), Size: 1024, CreatedAt: f.Now()}
		if _, err := f.insert(ctx, schema.TableIssueAttachments, att); err != nil {
			return "", err
		}
	}
	if spec.InboxStatus != nil {
		inbox := inboxRecord{ID: uuid.NewString(), IssueID: rec.ID, Status: *spec.InboxStatus}
		if _, err := f.insert(ctx, schema.TableIssueInbox, inbox); err != nil {
			return "", err
		}
	}
	return rec.ID, nil
}

// relate inserts a row of a link table joining an issue to another record.
func (f *Fixtures) relate(ctx context.Context, table, issueID, column, id string) error {
	c, err := f.p.Collection(table)
	if err != nil {
		return err
	}
	_, err = c.Create(ctx, map[string]any{"id": uuid.NewString(), "issue_id": issueID, column: id})
	return err
}
