package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetPagination extracts page and limit from the query string with defaults
// Default: Page 1, Limit 20
func GetPagination(c *gin.Context) (page, limit int) {
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "20")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}

	limit, err = strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 20
	}

	// Max limit cap (safe default)
	if limit > 100 {
		limit = 100
	}

	return page, limit
}

// GetOffset calculates the database offset based on page and limit
func GetOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// ParseIDParam parses a positive int64 path parameter.
func ParseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
