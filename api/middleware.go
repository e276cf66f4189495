package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/schema"
)

// Context keys set by the authorization middleware.
const (
	userKey      = "plane.user"
	workspaceKey = "plane.workspace"
	projectKey   = "plane.project"
)

// AccessLog logs one line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("Request", fields...)
			return
		}
		logger.Info("Request", fields...)
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate resolves the bearer token to an active user.
func (s *Server) authenticate(c *gin.Context) {
	user, err := s.auth.Authenticate(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(userKey, user)
	c.Next()
}

// workspaceMember admits active members of the :slug workspace.
func (s *Server) workspaceMember(c *gin.Context) {
	ws, err := s.auth.Workspace(c.Request.Context(), c.Param("slug"), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(workspaceKey, ws)
	c.Next()
}

// projectMember admits active members of the :project_id project.
func (s *Server) projectMember(c *gin.Context) {
	project, err := s.auth.Project(c.Request.Context(), currentWorkspace(c), c.Param("project_id"), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(projectKey, project)
	c.Next()
}

func currentUser(c *gin.Context) schema.Document {
	return c.MustGet(userKey).(schema.Document)
}

func userID(c *gin.Context) string {
	id, _ := currentUser(c)["id"].(string)
	return id
}

func currentWorkspace(c *gin.Context) *access.Workspace {
	return c.MustGet(workspaceKey).(*access.Workspace)
}

func currentProject(c *gin.Context) *access.Project {
	return c.MustGet(projectKey).(*access.Project)
}
