package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/opsflow/pkg/api"
)

// DecodeWorkflow parses a workflow document. YAML is used when the content
// type says so; anything else is treated as JSON.
func DecodeWorkflow(contentType string, body []byte) (*api.Workflow, error) {
	var wf api.Workflow
	if isYAML(contentType) {
		if err := yaml.Unmarshal(body, &wf); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrInvalidWorkflow, err)
		}
		return &wf, nil
	}
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrInvalidWorkflow, err)
	}
	return &wf, nil
}

func isYAML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "yaml")
}

// POST /workflows
func (s *Server) createWorkflow(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.abortWithError(c, fmt.Errorf("%w: %v", api.ErrInvalidWorkflow, err))
		return
	}

	wf, err := DecodeWorkflow(c.ContentType(), body)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if s.opts.Validator != nil {
		if err := s.opts.Validator.Validate(wf); err != nil {
			s.abortWithError(c, err)
			return
		}
	}
	if err := s.opts.Workflows.SaveWorkflow(c.Request.Context(), wf); err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.InfoContext(c.Request.Context(), "workflow_created",
		slog.String("workflow_id", wf.ID),
		slog.Int("nodes", len(wf.Nodes)),
		slog.Int("edges", len(wf.Edges)),
	)
	c.JSON(http.StatusOK, gin.H{"id": wf.ID})
}

// GET /workflows/:id
func (s *Server) getWorkflow(c *gin.Context) {
	wf, err := s.opts.Workflows.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}
