// Package api defines the request and response bodies exchanged with estimate clients and
// converts them to and from the pricing types.
package api

import (
	"strings"

	"github.com/Simplici0/renoprice/internal/pricing"
)

// EstimateRequest is the body of POST /estimate and POST /workorder, and one line of a batch.
type EstimateRequest struct {
	JobType             string             `json:"job_type" validate:"job_type"`
	Inputs              map[string]float64 `json:"inputs" validate:"omitempty,dive,keys,required,max=64,endkeys,gte=0"`
	Region              string             `json:"region,omitempty" validate:"max=80"`
	IncludeTax          *bool              `json:"include_tax,omitempty"`
	ComplexityModifiers Modifiers          `json:"complexity_modifiers,omitempty"`
	// Title labels the stored quote; it does not affect pricing.
	Title string `json:"title,omitempty" validate:"max=200"`
}

// BatchRequest is the body of POST /estimate/batch.
type BatchRequest struct {
	Jobs  []EstimateRequest `json:"jobs" validate:"required,min=1,max=50,dive"`
	Title string            `json:"title,omitempty" validate:"max=200"`
}

// JobRequest converts the body to a pricing request. include_tax defaults to true.
func (r EstimateRequest) JobRequest() pricing.JobRequest {
	includeTax := true
	if r.IncludeTax != nil {
		includeTax = *r.IncludeTax
	}
	return pricing.JobRequest{
		JobType:    strings.TrimSpace(r.JobType),
		Inputs:     r.Inputs,
		Region:     strings.TrimSpace(r.Region),
		IncludeTax: includeTax,
		Modifiers:  []pricing.Modifier(r.ComplexityModifiers),
	}
}

// JobRequests converts every line of the batch.
func (b BatchRequest) JobRequests() []pricing.JobRequest {
	out := make([]pricing.JobRequest, len(b.Jobs))
	for i, job := range b.Jobs {
		out[i] = job.JobRequest()
	}
	return out
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK               bool   `json:"ok"`
	Version          string `json:"version"`
	CatalogRefreshed string `json:"catalog_refreshed,omitempty"`
	JobTypes         int    `json:"job_types"`
}

// QuoteResponse wraps a stored estimate with its quote metadata.
type QuoteResponse struct {
	ID        string           `json:"id"`
	CreatedAt string           `json:"created_at"`
	Title     string           `json:"title,omitempty"`
	Estimate  pricing.Estimate `json:"estimate"`
}

// BatchResponse wraps a batch result with the ID it was stored under.
type BatchResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Title     string `json:"title,omitempty"`
	pricing.BatchResult
}

// ReloadResponse is the body of POST /admin/catalog/reload.
type ReloadResponse struct {
	JobTypes      int    `json:"job_types"`
	Regions       int    `json:"regions"`
	LastRefreshed string `json:"last_refreshed,omitempty"`
}
