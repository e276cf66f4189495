package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/schema"
)

type viewRecord struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	ProjectID   string         `json:"project_id,omitempty"`
	Name        string         `json:"name"`
	Filters     map[string]any `json:"filters"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// View creates a saved view; an empty projectID makes it workspace-wide.
func (f *Fixtures) View(ctx context.Context, workspaceID, projectID, name, createdBy string) (string, error) {
	now := f.Now()
	rec := viewRecord{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Name:        name,
		Filters:     map[string]any{},
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.insert(ctx, schema.TableIssueViews, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// DemoWorkspace identifies what Demo created.
type DemoWorkspace struct {
	UserID      string
	Token       string
	WorkspaceID string
	Slug        string
	ProjectID   string
}

// Demo password of the demo user.
const DemoPassword = "plane-demo-password"

// Demo creates a demo user owning a workspace with one project, its workflow
// states, labels, a module, a cycle, a handful of issues and two views. All
// records are written in one transaction.
func Demo(ctx context.Context, p *persistence.Persistence) (*DemoWorkspace, error) {
	var demo DemoWorkspace
	err := p.Transact(ctx, func(tx *persistence.Persistence) error {
		f := New(tx)
		var err error
		demo.Token = uuid.NewString()
		demo.UserID, err = f.User(ctx, UserSpec{
			Email:     "demo@plane.local",
			FirstName: "Demo",
			LastName:  "User",
			Password:  DemoPassword,
			Token:     demo.Token,
		})
		if err != nil {
			return err
		}
		demo.WorkspaceID, demo.Slug, err = f.Workspace(ctx, "Plane Demo", demo.UserID)
		if err != nil {
			return err
		}
		if err := f.SetLastWorkspace(ctx, demo.UserID, demo.WorkspaceID); err != nil {
			return err
		}
		demo.ProjectID, err = f.Project(ctx, demo.WorkspaceID, "Web App")
		if err != nil {
			return err
		}
		if err := f.ProjectMember(ctx, demo.WorkspaceID, demo.ProjectID, demo.UserID, true); err != nil {
			return err
		}
		return f.demoIssues(ctx, demo.WorkspaceID, demo.ProjectID, demo.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed demo workspace: %w", err)
	}
	return &demo, nil
}

func (f *Fixtures) demoIssues(ctx context.Context, ws, proj, user string) error {
	states := map[string]string{}
	for _, s := range []struct{ name, group string }{
		{"Backlog", "backlog"},
		{"Todo", "unstarted"},
		{"In Progress", "started"},
		{"Done", "completed"},
		{"Cancelled", "cancelled"},
	} {
		id, err := f.State(ctx, ws, proj, s.name, s.group)
		if err != nil {
			return err
		}
		states[s.name] = id
	}
	bug, err := f.Label(ctx, ws, proj, "bug")
	if err != nil {
		return err
	}
	feature, err := f.Label(ctx, ws, proj, "feature")
	if err != nil {
		return err
	}
	module, err := f.Module(ctx, ws, proj, "Authentication")
	if err != nil {
		return err
	}
	cycle, err := f.Cycle(ctx, ws, proj, "Sprint 1")
	if err != nil {
		return err
	}

	parent, err := f.Issue(ctx, IssueSpec{
		WorkspaceID: ws, ProjectID: proj, Name: "Sign-in flow", Priority: "high",
		StateID: states["In Progress"], CreatedBy: user, Labels: []string{feature},
		Assignees: []string{user}, Modules: []string{module}, CycleID: cycle, Links: 1,
		StartDate: "2024-01-02", TargetDate: "2024-01-20",
	})
	if err != nil {
		return err
	}
	issues := []IssueSpec{
		{Name: "Password reset email", Priority: "medium", StateID: states["Todo"], ParentID: parent, Labels: []string{feature}, Modules: []string{module}, CycleID: cycle},
		{Name: "Session expires too early", Priority: "urgent", StateID: states["Todo"], Labels: []string{bug}, Assignees: []string{user}, Attachments: 2},
		{Name: "Dark mode", Priority: "low", StateID: states["Backlog"], Labels: []string{feature}},
		{Name: "Broken avatar upload", Priority: "high", StateID: states["Done"], Labels: []string{bug, feature}, Links: 2},
		{Name: "Drop legacy API", StateID: states["Cancelled"]},
		{Name: "Untriaged report", Priority: "none"},
	}
	for _, spec := range issues {
		spec.WorkspaceID, spec.ProjectID, spec.CreatedBy = ws, proj, user
		if _, err := f.Issue(ctx, spec); err != nil {
			return err
		}
	}
	if _, err := f.View(ctx, ws, "", "All urgent work", user); err != nil {
		return err
	}
	_, err = f.View(ctx, ws, proj, "My bugs", user)
	return err
}
