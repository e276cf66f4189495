package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/asaidimu/go-plane/core/access"
	"github.com/asaidimu/go-plane/core/account"
	"github.com/asaidimu/go-plane/core/query"
	"github.com/asaidimu/go-plane/core/views"
)

func (s *Server) me(c *gin.Context) {
	me, err := s.accounts.Me(currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

func (s *Server) meSettings(c *gin.Context) {
	settings, err := s.accounts.Settings(c.Request.Context(), currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) changePassword(c *gin.Context) {
	var in account.ChangePasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c, err)
		return
	}
	if err := s.accounts.ChangePassword(c.Request.Context(), currentUser(c), in); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (s *Server) listWorkspaceIssues(c *gin.Context) {
	ws := currentWorkspace(c)
	res, err := s.issues.List(c.Request.Context(), access.WorkspaceIssues(ws.ID, userID(c)), query.ParseParams(c.Request.URL.RawQuery))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(res))
}

func (s *Server) listProjectIssues(c *gin.Context) {
	ws, project := currentWorkspace(c), currentProject(c)
	res, err := s.issues.List(c.Request.Context(), access.ProjectIssues(ws.ID, project.ID, userID(c)), query.ParseParams(c.Request.URL.RawQuery))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page(res))
}

func (s *Server) listGlobalViews(c *gin.Context) {
	list, err := s.views.ListGlobal(c.Request.Context(), currentWorkspace(c).ID, query.ParseParams(c.Request.URL.RawQuery))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createGlobalView(c *gin.Context) {
	var in views.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c, err)
		return
	}
	view, err := s.views.CreateGlobal(c.Request.Context(), currentWorkspace(c).ID, userID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) getGlobalView(c *gin.Context) {
	view, err := s.views.GetGlobal(c.Request.Context(), currentWorkspace(c).ID, c.Param("view_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateGlobalView(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c, err)
		return
	}
	view, err := s.views.UpdateGlobal(c.Request.Context(), currentWorkspace(c).ID, c.Param("view_id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteGlobalView(c *gin.Context) {
	if err := s.views.DeleteGlobal(c.Request.Context(), currentWorkspace(c).ID, c.Param("view_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listProjectViews(c *gin.Context) {
	ws, project := currentWorkspace(c), currentProject(c)
	list, err := s.views.ListProject(c.Request.Context(), ws.ID, project.ID, userID(c), query.ParseParams(c.Request.URL.RawQuery))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createProjectView(c *gin.Context) {
	var in views.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c, err)
		return
	}
	ws, project := currentWorkspace(c), currentProject(c)
	view, err := s.views.CreateProject(c.Request.Context(), ws.ID, project.ID, userID(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

type favoriteRequest struct {
	ViewID string `json:"view" binding:"required"`
}

func (s *Server) createFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	ws, project := currentWorkspace(c), currentProject(c)
	favorite, created, err := s.views.CreateFavorite(c.Request.Context(), ws.ID, project.ID, userID(c), req.ViewID)
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, favorite)
}

func (s *Server) deleteFavorite(c *gin.Context) {
	ws, project := currentWorkspace(c), currentProject(c)
	if err := s.views.DeleteFavorite(c.Request.Context(), ws.ID, project.ID, userID(c), c.Param("view_id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
