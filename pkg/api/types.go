package api

import (
	"time"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Code      string `json:"code,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

// QuotaResponse reports the caller's standing for today
type QuotaResponse struct {
	UserID           string    `json:"userId"`
	IsPro            bool      `json:"isPro"`
	IsAdmin          bool      `json:"isAdmin"`
	Limit            int       `json:"limit"`
	Used             int       `json:"used"`
	Remaining        int       `json:"remaining"`
	GenerationsTotal int       `json:"generationsTotal"`
	ResetAt          time.Time `json:"resetAt"`
}

// UsersResponse lists quota records for the admin dashboard
type UsersResponse struct {
	Users []*hookgen.Record `json:"users"`
}

// ProRequest sets the pro flag; when IsPro is omitted the flag is toggled
type ProRequest struct {
	IsPro *bool `json:"isPro"`
}
