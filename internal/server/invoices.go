package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invoicedomain "github.com/smallbiznis/creditd/internal/invoice/domain"
)

func (s *Server) getProforma(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.GenerateProforma(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getProformaPDF(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	pdf, filename, err := s.invoiceSvc.GenerateProformaPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename=`+filename)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func parseInvoiceID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		respondError(c, invoicedomain.NewInvoiceNotFound(c.Param("id")))
		return 0, false
	}
	return id, true
}
