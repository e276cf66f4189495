// Package account serves the signed-in user: the profile payloads and the
// password change.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/schema"
	"github.com/asaidimu/go-plane/utils"
)

// Me is the profile of the signed-in user.
type Me struct {
	ID                string  `json:"id"`
	Avatar            string  `json:"avatar"`
	CoverImage        *string `json:"cover_image"`
	DateJoined        *string `json:"date_joined"`
	DisplayName       string  `json:"display_name"`
	Email             string  `json:"email"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	IsActive          bool    `json:"is_active"`
	IsBot             bool    `json:"is_bot"`
	IsEmailVerified   bool    `json:"is_email_verified"`
	IsManaged         bool    `json:"is_managed"`
	MobileNumber      *string `json:"mobile_number"`
	UserTimezone      string  `json:"user_timezone"`
	Username          *string `json:"username"`
	IsPasswordAutoset bool    `json:"is_password_autoset"`
}

// WorkspaceSettings tells a client which workspace to open.
type WorkspaceSettings struct {
	LastWorkspaceID       *string `json:"last_workspace_id"`
	LastWorkspaceSlug     *string `json:"last_workspace_slug"`
	FallbackWorkspaceID   *string `json:"fallback_workspace_id"`
	FallbackWorkspaceSlug *string `json:"fallback_workspace_slug"`
	Invites               int     `json:"invites"`
}

// Settings is the settings payload of the signed-in user.
type Settings struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Workspace WorkspaceSettings `json:"workspace"`
}

// Service reads and updates the signed-in user.
type Service struct {
	p      *persistence.Persistence
	logger *zap.Logger
	// Cost is the bcrypt cost of new password hashes.
	Cost int
	Now  func() time.Time
}

// NewService creates an account Service.
func NewService(p *persistence.Persistence) *Service {
	return &Service{p: p, logger: p.Logger(), Cost: bcrypt.DefaultCost, Now: time.Now}
}

func eq(field string, value any) *query.QueryFilter {
	return query.Condition(field, query.ComparisonOperatorEq, value)
}

// Me returns the profile of user.
func (s *Service) Me(user schema.Document) (*Me, error) {
	me, err := utils.MapToStruct[Me](user)
	if err != nil {
		return nil, fmt.Errorf("failed to read user profile: %w", err)
	}
	return &me, nil
}

// Settings returns the settings of user. The last visited workspace is
// offered while the user is still an active member of it; otherwise the
// workspace the user joined first is the fallback.
func (s *Service) Settings(ctx context.Context, user schema.Document) (*Settings, error) {
	me, err := s.Me(user)
	if err != nil {
		return nil, err
	}
	out := &Settings{ID: me.ID, Email: me.Email}

	memberships, err := s.activeWorkspaceIDs(ctx, me.ID)
	if err != nil {
		return nil, err
	}

	if last, _ := user["last_workspace_id"].(string); last != "" && contains(memberships, last) {
		ws, err := s.workspace(ctx, eq("id", last))
		if err != nil {
			return nil, err
		}
		slug := stringField(ws, "slug")
		out.Workspace = WorkspaceSettings{
			LastWorkspaceID:       &last,
			LastWorkspaceSlug:     &slug,
			FallbackWorkspaceID:   &last,
			FallbackWorkspaceSlug: &slug,
		}
		return out, nil
	}

	if len(memberships) == 0 {
		return out, nil
	}
	ws, err := s.workspace(ctx, query.Condition("id", query.ComparisonOperatorIn, memberships))
	if errors.Is(err, persistence.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	id, slug := stringField(ws, "id"), stringField(ws, "slug")
	out.Workspace.FallbackWorkspaceID = &id
	out.Workspace.FallbackWorkspaceSlug = &slug
	return out, nil
}

type membership struct {
	WorkspaceID string `json:"workspace_id"`
}

func (s *Service) activeWorkspaceIDs(ctx context.Context, userID string) ([]any, error) {
	members, err := s.p.Collection(schema.TableWorkspaceMembers)
	if err != nil {
		return nil, err
	}
	dsl := query.NewQueryBuilder().
		Where("member_id").Eq(userID).
		Where("is_active").Eq(true).
		Select().Include("workspace_id").End().
		Build()
	res, err := members.Read(ctx, &dsl)
	if err != nil {
		return nil, err
	}
	rows, err := utils.DocumentsToStructs[membership](res.Data)
	if err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.WorkspaceID)
	}
	return ids, nil
}

// workspace returns the earliest created workspace matching filter.
func (s *Service) workspace(ctx context.Context, filter *query.QueryFilter) (schema.Document, error) {
	workspaces, err := s.p.Collection(schema.TableWorkspaces)
	if err != nil {
		return nil, err
	}
	dsl := query.NewQueryBuilder().
		Filter(filter).
		OrderByAsc("created_at").
		OrderByAsc("id").
		Limit(1).
		Build()
	res, err := workspaces.Read(ctx, &dsl)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, persistence.ErrNotFound
	}
	return res.Data[0], nil
}

// ChangePassword replaces the password of user after checking the current
// one. A password set automatically at sign-up counts as set by the user
// afterwards.
func (s *Service) ChangePassword(ctx context.Context, user schema.Document, in ChangePasswordInput) error {
	if err := ValidateChangePassword(in); err != nil {
		return err
	}
	hash := stringField(user, "password")
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(in.OldPassword)) != nil {
		return &ValidationError{Fields: map[string][]string{NonFieldKey: {MsgWrongPassword}}}
	}
	next, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.Cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users, err := s.p.Collection(schema.TableUsers)
	if err != nil {
		return err
	}
	userID := stringField(user, "id")
	n, err := users.Update(ctx, map[string]any{
		"password":            string(next),
		"is_password_autoset": false,
		"updated_at":          schema.FormatTimestamp(s.Now()),
	}, eq("id", userID))
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	s.logger.Info("Password changed", zap.String("user_id", userID))
	return nil
}

func contains(values []any, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func stringField(doc schema.Document, field string) string {
	s, _ := doc[field].(string)
	return s
}
