package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tasknotes/internal/collection"
	"github.com/nhle/tasknotes/internal/model"
)

func (s *Server) handleListTasks(c *gin.Context) {
	f := collection.TaskFilter{
		Query:      c.Query("q"),
		CategoryID: c.Query("category"),
		Priority:   model.Priority(c.Query("priority")),
	}
	if raw, ok := c.GetQuery("personal"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "personal must be a boolean"})
			return
		}
		f.Personal = &v
	}
	c.JSON(http.StatusOK, gin.H{"tasks": nonNil(s.ws.Tasks.View(f))})
}

func (s *Server) handleBoard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"columns": s.ws.Tasks.ByStatus()})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req model.TaskInsert
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.ws.Tasks.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.ws.Tasks.Update(c.Request.Context(), c.Param("id"), req.update())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleToggleTask(c *gin.Context) {
	task, err := s.ws.Tasks.ToggleCompletion(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.ws.Tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": nonNil(s.ws.Categories.List())})
}

func (s *Server) handleCreateCategory(c *gin.Context) {
	var req model.CategoryInsert
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat, err := s.ws.Categories.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": cat})
}

func (s *Server) handleUpdateCategory(c *gin.Context) {
	var req categoryPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cat, err := s.ws.Categories.Update(c.Request.Context(), c.Param("id"), req.update())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}

func (s *Server) handleDeleteCategory(c *gin.Context) {
	if err := s.ws.Categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListNotes(c *gin.Context) {
	f := collection.Filter{
		Query:        c.Query("q"),
		CategoryID:   c.Query("category"),
		PersonalOnly: c.Query("personal") == "true",
	}
	c.JSON(http.StatusOK, gin.H{"notes": nonNil(s.ws.Notes.View(f))})
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var req model.NoteInsert
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.ws.Notes.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	var req notePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.ws.Notes.Update(c.Request.Context(), c.Param("id"), req.update())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

func (s *Server) handleTogglePin(c *gin.Context) {
	note, err := s.ws.Notes.TogglePin(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	if err := s.ws.Notes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
