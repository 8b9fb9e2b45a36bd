package api

import (
	"github.com/gin-gonic/gin"
)

const (
	HealthPath    = "/actuator/health"
	ReadinessPath = "/actuator/health/readiness"
	MetricsPath   = "/metrics"
)

func (s *Server) getHealth(c *gin.Context) {
	report := s.health.Check()
	c.JSON(report.Status.HTTPStatus(), report)
}
