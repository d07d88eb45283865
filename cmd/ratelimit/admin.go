package main

import (
	"regexp"

	"github.com/KOMKZ/go-yogan-ratelimit/limiter"
	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var identityPattern = regexp.MustCompile(`^(ip|apikey|user):.+$`)

// adminHandler operator endpoints, mounted outside the limiter
type adminHandler struct {
	limiter *limiter.Limiter
}

// IdentityRequest identity plus the route whose policy applies ("" = default policy)
type IdentityRequest struct {
	Identity string `json:"identity" form:"identity"`
	Route    string `json:"route" form:"route"`
}

// Validate implements validator.Validatable
func (r *IdentityRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Identity,
			validation.Required,
			validation.Match(identityPattern).Error("must look like ip:<addr>, apikey:<key> or user:<id>")),
	)
}

// ResetResponse body of POST /admin/reset
type ResetResponse struct {
	Identity string         `json:"identity"`
	Policy   limiter.Policy `json:"policy"`
}

// UsageResponse body of GET /admin/usage
type UsageResponse struct {
	Identity  string         `json:"identity"`
	Route     string         `json:"route,omitempty"`
	Policy    limiter.Policy `json:"policy"`
	Usage     float64        `json:"usage"`
	Remaining int64          `json:"remaining"`
}

// Reset restores a full quota for the identity
func (h *adminHandler) Reset(c *gin.Context, req *IdentityRequest) (*ResetResponse, error) {
	policy := h.limiter.PolicyFor(req.Route)
	if err := h.limiter.Reset(c.Request.Context(), req.Identity, policy); err != nil {
		return nil, err
	}
	return &ResetResponse{Identity: req.Identity, Policy: policy}, nil
}

// Usage reports consumed quota without counting a request
func (h *adminHandler) Usage(c *gin.Context, req *IdentityRequest) (*UsageResponse, error) {
	resp, err := usageOf(c.Request.Context(), h.limiter, req.Identity, req.Route)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
