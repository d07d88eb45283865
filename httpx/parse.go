package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse fills req from path params, then the query string, then a JSON
// body when one is sent, so body fields win. Only query and body decode
// errors are reported; a struct without uri tags is not a failure.
func Parse(c *gin.Context, req interface{}) error {
	if len(c.Params) > 0 {
		_ = c.ShouldBindUri(req)
	}
	if c.Request.URL.RawQuery != "" {
		if err := c.ShouldBindQuery(req); err != nil {
			return err
		}
	}
	if c.Request.ContentLength != 0 && c.Request.Body != nil {
		return c.ShouldBindJSON(req)
	}
	return nil
}
