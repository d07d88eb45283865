package httpx

import (
	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/validator"
	"github.com/gin-gonic/gin"
)

// HandlerFunc handler over a decoded request; a nil error sends resp in the envelope
type HandlerFunc[Req any, Resp any] func(c *gin.Context, req *Req) (*Resp, error)

// Wrap turns h into a gin handler. The request is decoded with Parse and,
// when it implements validator.Validatable, checked before h runs.
//
//	admin.POST("/reset", httpx.Wrap(h.Reset))
func Wrap[Req any, Resp any](h HandlerFunc[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(Req)
		if err := bind(c, req); err != nil {
			HandleError(c, err)
			return
		}
		resp, err := h(c, req)
		if err != nil {
			HandleError(c, err)
			return
		}
		OkJson(c, resp)
	}
}

func bind(c *gin.Context, req interface{}) error {
	if err := Parse(c, req); err != nil {
		return errcode.ErrInvalidRequest.Wrapf(err, "invalid request: %v", err)
	}
	if v, ok := req.(validator.Validatable); ok {
		return validator.ValidateRequest(v)
	}
	return nil
}
