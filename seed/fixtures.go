// Package seed writes tracker records: the fixtures used by tests and the demo
// workspace created by the seed command.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goslug "github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/asaidimu/go-plane/utils"
)

// Fixtures inserts records with deterministic timestamps: every record is one
// minute younger than the previous one.
type Fixtures struct {
	p     *persistence.Persistence
	clock time.Time
	seq   map[string]int
	// PasswordCost is the bcrypt cost used for user passwords.
	PasswordCost int
}

// New returns fixtures writing through p.
func New(p *persistence.Persistence) *Fixtures {
	return &Fixtures{
		p:            p,
		clock:        time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		seq:          make(map[string]int),
		PasswordCost: bcrypt.DefaultCost,
	}
}

// Now advances the fixture clock and returns it as a stored timestamp.
func (f *Fixtures) Now() string {
	f.clock = f.clock.Add(time.Minute)
	return schema.FormatTimestamp(f.clock)
}

func (f *Fixtures) insert(ctx context.Context, table string, record any) (schema.Document, error) {
	data, err := utils.StructToMap(record)
	if err != nil {
		return nil, err
	}
	c, err := f.p.Collection(table)
	if err != nil {
		return nil, err
	}
	rows, err := c.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("expected one %s row, got %d", table, len(rows))
	}
	return rows[0], nil
}

type userRecord struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Username          string  `json:"username"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	DisplayName       string  `json:"display_name"`
	Password          string  `json:"password,omitempty"`
	Token             string  `json:"token"`
	IsPasswordAutoset bool    `json:"is_password_autoset"`
	LastWorkspaceID   *string `json:"last_workspace_id,omitempty"`
	DateJoined        string  `json:"date_joined"`
	CreatedAt         string  `json:"created_at"`
}

// UserSpec describes a user. Token defaults to a random value and an empty
// Password creates a user whose password was set automatically.
type UserSpec struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Token     string
}

// User creates a user and returns its id.
func (f *Fixtures) User(ctx context.Context, spec UserSpec) (string, error) {
	rec := userRecord{
		ID:          uuid.NewString(),
		Email:       spec.Email,
		Username:    strings.Split(spec.Email, "@")[0],
		FirstName:   spec.FirstName,
		LastName:    spec.LastName,
		DisplayName: strings.Split(spec.Email, "@")[0],
		Token:       spec.Token,
	}
	if rec.Token == "" {
		rec.Token = uuid.NewString()
	}
	if spec.Password == "" {
		rec.IsPasswordAutoset = true
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), f.PasswordCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		rec.Password = string(hash)
	}
	rec.CreatedAt = f.Now()
	rec.DateJoined = rec.CreatedAt
	if _, err := f.insert(ctx, schema.TableUsers, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// SetLastWorkspace records the workspace a user last visited.
func (f *Fixtures) SetLastWorkspace(ctx context.Context, userID, workspaceID string) error {
	c, err := f.p.Collection(schema.TableUsers)
	if err != nil {
		return err
	}
	_, err = c.Update(ctx, map[string]any{"last_workspace_id": workspaceID},
		query.Condition("id", query.ComparisonOperatorEq, userID))
	return err
}

type workspaceRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

// Workspace creates a workspace owned by ownerID, who becomes an active
// member. It returns the workspace id and slug.
func (f *Fixtures) Workspace(ctx context.Context, name, ownerID string) (string, string, error) {
	rec := workspaceRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      goslug.Make(name),
		OwnerID:   ownerID,
		CreatedAt: f.Now(),
	}
	if !goslug.IsSlug(rec.Slug) {
		return "", "", fmt.Errorf("workspace name %q does not yield a valid slug", name)
	}
	if _, err := f.insert(ctx, schema.TableWorkspaces, rec); err != nil {
		return "", "", err
	}
	if err := f.WorkspaceMember(ctx, rec.ID, ownerID, true); err != nil {
		return "", "", err
	}
	return rec.ID, rec.Slug, nil
}

type memberRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id,omitempty"`
	MemberID    string `json:"member_id"`
	Role        int    `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// WorkspaceMember adds userID to a workspace.
func (f *Fixtures) WorkspaceMember(ctx context.Context, workspaceID, userID string, active bool) error {
	_, err := f.insert(ctx, schema.TableWorkspaceMembers, memberRecord{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		MemberID:    userID,
		Role:        20,
		IsActive:    active,
		CreatedAt:   f.Now(),
	})
	return err
}

type projectRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	CreatedAt   string `json:"created_at"`
}

// Project creates a project and returns its id.
func (f *Fixtures) Project(ctx context.Context, workspaceID, name string) (string, error) {
	identifier := strings.ToUpper(strings.ReplaceAll(goslug.Make(name), "-", ""))
	if len(identifier) > 5 {
		identifier = identifier[:5]
	}
	rec := projectRecord{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		Identifier:  identifier,
		CreatedAt:   f.Now(),
	}
	if _, err := f.insert(ctx, schema.TableProjects, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ProjectMember adds userID to a project.
func (f *Fixtures) ProjectMember(ctx context.Context, workspaceID, projectID, userID string, active bool) error {
	_, err := f.insert(ctx, schema.TableProjectMembers, memberRecord{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		MemberID:    userID,
		Role:        20,
		IsActive:    active,
		CreatedAt:   f.Now(),
	})
	return err
}

type stateRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Group       string `json:"group"`
}

// State creates a workflow state in one of the state groups.
func (f *Fixtures) State(ctx context.Context, workspaceID, projectID, name, group string) (string, error) {
	rec := stateRecord{ID: uuid.NewString(), WorkspaceID: workspaceID, ProjectID: projectID, Name: name, Group: group}
	if _, err := f.insert(ctx, schema.TableStates, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

type namedRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
}

func (f *Fixtures) named(ctx context.Context, table, workspaceID, projectID, name string) (string, error) {
	rec := namedRecord{ID: uuid.NewString(), WorkspaceID: workspaceID, ProjectID: projectID, Name: name}
	if _, err := f.insert(ctx, table, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Label creates a label.
func (f *Fixtures) Label(ctx context.Context, workspaceID, projectID, name string) (string, error) {
	return f.named(ctx, schema.TableLabels, workspaceID, projectID, name)
}

// Module creates a module.
func (f *Fixtures) Module(ctx context.Context, workspaceID, projectID, name string) (string, error) {
	return f.named(ctx, schema.TableModules, workspaceID, projectID, name)
}

// Cycle creates a cycle.
func (f *Fixtures) Cycle(ctx context.Context, workspaceID, projectID, name string) (string, error) {
	return f.named(ctx, schema.TableCycles, workspaceID, projectID, name)
}
