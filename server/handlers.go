package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teranos/hireflow/auth"
	"github.com/teranos/hireflow/version"
	"github.com/teranos/hireflow/workflow"
)

// bulkRequest is the body of POST /api/jobs/bulk/:action
type bulkRequest struct {
	IDs []string `json:"ids"`
	workflow.Payload
}

// createRequest is the body of POST /api/jobs
type createRequest struct {
	Title                string            `json:"title"`
	EmployerID           string            `json:"employer_id,omitempty"`
	Priority             workflow.Priority `json:"priority,omitempty"`
	ScheduledPublishDate *time.Time        `json:"scheduled_publish_date,omitempty"`
	ExpiryDate           *time.Time        `json:"expiry_date,omitempty"`
}

func (s *Server) actor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authorization token is required"})
	}
	return actor, ok
}

// bindPayload decodes an optional JSON body; an empty body is an empty payload
func bindPayload(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	state := s.State()
	status := http.StatusOK
	if state != ServerStateRunning {
		status = http.StatusServiceUnavailable
	}
	body := gin.H{
		"status":  state.String(),
		"version": version.Get().Short(),
		"clients": s.clients.Load(),
	}
	if s.events != nil {
		body["subscribers"] = s.events.Subscribers()
		body["dropped_events"] = s.events.Dropped()
	}
	c.JSON(status, body)
}

func (s *Server) handleCreateJobPost(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if s.posts == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{Error: "job post creation is not enabled"})
		return
	}

	var req createRequest
	if !bindPayload(c, &req) {
		return
	}

	post := &workflow.JobPost{
		Title:                strings.TrimSpace(req.Title),
		Priority:             req.Priority,
		ScheduledPublishDate: req.ScheduledPublishDate,
		ExpiryDate:           req.ExpiryDate,
	}
	switch {
	case actor.Role == workflow.RoleEmployer:
		if req.EmployerID != "" && req.EmployerID != actor.ID {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
				Error: "employers may only create their own job posts",
				Kind:  workflow.KindPermissionDenied,
			})
			return
		}
		post.EmployerID = actor.ID
	case actor.Role.IsAdmin():
		post.EmployerID = req.EmployerID
	default:
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
			Error: "role " + string(actor.Role) + " may not create job posts",
			Kind:  workflow.KindPermissionDenied,
		})
		return
	}

	if err := s.posts.Create(c.Request.Context(), post); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (s *Server) handleGetJobPost(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	post, err := s.engine.GetJobPost(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleApply(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	action, err := workflow.ParseAction(c.Param("action"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var payload workflow.Payload
	if !bindPayload(c, &payload) {
		return
	}

	res, err := s.engine.Apply(c.Request.Context(), c.Param("id"), action, actor, payload)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleAvailableActions(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	actions, err := s.engine.AvailableActions(c.Request.Context(), id, actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if actions == nil {
		actions = []workflow.Action{}
	}
	c.JSON(http.StatusOK, gin.H{"job_post_id": id, "actions": actions})
}

func (s *Server) handleHistory(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	entries, err := s.engine.History(c.Request.Context(), id, actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []workflow.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"job_post_id": id, "entries": entries})
}

func (s *Server) handleBulk(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	action, err := workflow.ParseAction(c.Param("action"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := s.engine.ApplyBulk(c.Request.Context(), req.IDs, action, actor, req.Payload)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleEmployerHistory(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	page, err := s.engine.EmployerHistory(c.Request.Context(), c.Param("id"), actor, workflow.Page{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []workflow.LogEntry{}
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleStats(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	counts, err := s.engine.Stats(c.Request.Context(), actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"by_status": counts, "total": total})
}

func (s *Server) handlePulseStats(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if !actor.Role.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{
			Error: "pulse stats require an admin role",
			Kind:  workflow.KindPermissionDenied,
		})
		return
	}
	if s.pulse == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, s.pulse.GetStats())
}
