package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetBillingStats(c *gin.Context) {
	stats, err := s.statsSvc.Snapshot(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) DownloadInvoiceDocument(c *gin.Context) {
	doc, err := s.exportSvc.InvoiceDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}
