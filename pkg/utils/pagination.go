package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginationParams carries limit/offset paging plus an optional "before"
// cursor (a message ID) for history fetches.
type PaginationParams struct {
	Limit  int
	Offset int
	Before string
}

func GetPaginationParams(c echo.Context, defaultLimit int) PaginationParams {
	params := PaginationParams{
		Limit:  defaultLimit,
		Before: c.QueryParam("before"),
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			params.Limit = limit
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			params.Offset = offset
		}
	}

	return params
}
