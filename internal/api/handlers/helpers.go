package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func GetUserID(c *fiber.Ctx) int64 {
	userID, _ := strconv.Atoi(c.Locals("user_id").(string))
	return int64(userID)
}

func GetOrgID(c *fiber.Ctx) int64 {
	orgID, ok := c.Locals("org_id").(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(orgID)
	return int64(n)
}
