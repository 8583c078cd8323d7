package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The cash-flow endpoints drive the interactive confirmation dialog for
// settling an invoice in cash. The flow state survives across requests
// until it closes or is cancelled.

func (s *Server) GetCashFlowState(c *gin.Context) {
	state := s.cashFlows.State(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": state}})
}

func (s *Server) ConfirmCashFlow(c *gin.Context) {
	state, err := s.cashFlows.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": state}})
}

func (s *Server) RetryCashFlow(c *gin.Context) {
	state, err := s.cashFlows.Retry(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": state}})
}

func (s *Server) CancelCashFlow(c *gin.Context) {
	if err := s.cashFlows.Cancel(c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
