// Package api serves the tracker over HTTP with gin. Every route requires a
// bearer token; workspace and project routes also require an active
// membership, checked before any list query runs.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/account"
	"github.com/asaidimu/go-plane/core/issues"
	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/core/views"
)

// Options configure a Server.
type Options struct {
	Issues issues.Options
	// Mode is the gin mode; empty keeps gin's current mode.
	Mode string
	// PasswordCost overrides the bcrypt cost of changed passwords.
	PasswordCost int
}

// Server routes requests to the domain services.
type Server struct {
	engine   *gin.Engine
	logger   *zap.Logger
	auth     *access.Authorizer
	issues   *issues.Service
	views    *views.Service
	accounts *account.Service
}

// New builds a Server over p.
func New(p *persistence.Persistence, options Options) *Server {
	if options.Mode != "" {
		gin.SetMode(options.Mode)
	}
	s := &Server{
		engine:   gin.New(),
		logger:   p.Logger(),
		auth:     access.NewAuthorizer(p),
		issues:   issues.NewService(p, options.Issues),
		views:    views.NewService(p),
		accounts: account.NewService(p),
	}
	if options.PasswordCost > 0 {
		s.accounts.Cost = options.PasswordCost
	}
	s.engine.Use(gin.Recovery(), AccessLog(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api", s.authenticate)

	me := api.Group("/users/me")
	me.GET("", s.me)
	me.GET("/settings", s.meSettings)
	me.POST("/change-password", s.changePassword)

	ws := api.Group("/workspaces/:slug", s.workspaceMember)
	ws.GET("/issues", s.listWorkspaceIssues)
	ws.GET("/views", s.listGlobalViews)
	ws.POST("/views", s.createGlobalView)
	ws.GET("/views/:view_id", s.getGlobalView)
	ws.PATCH("/views/:view_id", s.updateGlobalView)
	ws.DELETE("/views/:view_id", s.deleteGlobalView)

	project := ws.Group("/projects/:project_id", s.projectMember)
	project.GET("/issues", s.listProjectIssues)
	project.GET("/views", s.listProjectViews)
	project.POST("/views", s.createProjectView)
	project.POST("/user-favorite-views", s.createFavorite)
	project.DELETE("/user-favorite-views/:view_id", s.deleteFavorite)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("address", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
