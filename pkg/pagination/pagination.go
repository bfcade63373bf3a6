package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts the limit and offset query parameters from the echo
// context, clamped to sane bounds.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}
