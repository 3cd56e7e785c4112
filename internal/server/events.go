package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/opsflow/pkg/api"
	"github.com/petrijr/opsflow/pkg/worker"
)

// POST /publish_event
func (s *Server) publishEvent(c *gin.Context) {
	var evt api.Event
	if err := c.ShouldBindJSON(&evt); err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", worker.ErrMalformedEvent, err))
		return
	}
	if err := s.opts.Events.PublishEvent(c.Request.Context(), evt); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": true})
}

// GET /runs?status=running
func (s *Server) listRuns(c *gin.Context) {
	status := api.Status(c.Query("status"))
	c.JSON(http.StatusOK, gin.H{"runs": s.opts.Runs.List(status)})
}

// GET /runs/:id
func (s *Server) getRun(c *gin.Context) {
	run, err := s.opts.Runs.Get(c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
