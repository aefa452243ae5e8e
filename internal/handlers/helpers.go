package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/pkg/response"
)

// parseID reads a numeric path parameter. On failure the 400 response has
// already been written.
func parseID(c *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+label)
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the request body into req. Malformed JSON is a 400;
// field rules are checked later by the services.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.BadRequest(c, "invalid query parameters: "+err.Error())
		return false
	}
	return true
}
