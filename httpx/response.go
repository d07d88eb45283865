package httpx

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/gin-gonic/gin"
)

// Response unified envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// OkJson 200 with data
func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// NoRouteHandler JSON 404 for engine.NoRoute
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// NoMethodHandler JSON 405 for engine.NoMethod
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError writes err as JSON. Limiter errors are mapped to their errcode first;
// anything unrecognised becomes a 500 without internal details.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	layered := toLayered(err)
	if policy := policyFor(c); policy.shouldLog(layered.HTTPStatus()) {
		policy.log(c, layered, err)
	}

	c.JSON(layered.HTTPStatus(), Response{
		Code: layered.Code(),
		Msg:  layered.Message(),
		Data: layered.Data(),
	})
}

func toLayered(err error) *errcode.LayeredError {
	var layered *errcode.LayeredError
	switch {
	case errors.As(err, &layered):
		return layered
	case errors.Is(err, limiter.ErrInvalidPolicy):
		return errcode.ErrInvalidPolicy.Wrap(err).WithMsg(err.Error())
	case limiter.IsStoreUnavailable(err):
		return errcode.ErrLimiterUnavailable.Wrap(err)
	default:
		return errcode.ErrInternal.Wrap(err)
	}
}
