package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseAccountID 从 query 取 account_id，缺失/非法时直接写 400 并返回 0
func parseAccountID(c *gin.Context) int64 {
	raw := c.Query("account_id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_account_id"})
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_account_id", "detail": "account_id 必须是正整数"})
		return 0
	}
	return id
}
