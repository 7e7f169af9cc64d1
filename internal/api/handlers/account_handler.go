package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	config "postpilot/configs"
	"postpilot/internal/service"
	"postpilot/pkg/utils"
)

type AccountHandler struct {
	s   service.AccountService
	cfg config.Config
}

func NewAccountHandler(s service.AccountService, cfg config.Config) *AccountHandler {
	return &AccountHandler{s: s, cfg: cfg}
}

func (h *AccountHandler) ConnectAccount(c *fiber.Ctx) error {
	tokenString := c.Cookies(h.cfg.CookieName)
	if tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Login required",
		})
	}

	return c.Redirect(h.s.GetAuthURL(tokenString))
}

// CallbackHandler runs outside the auth middleware; the user identity
// rides in the OAuth state parameter, which is the session token the
// connect redirect was issued with.
func (h *AccountHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid state token",
		})
	}

	userID, _ := strconv.ParseInt(claims.UserID, 10, 64)
	orgID, _ := strconv.ParseInt(claims.OrgID, 10, 64)

	if err := h.s.HandleCallback(c.Context(), code, userID, orgID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Redirect(h.cfg.FrontendURL + "/accounts")
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accounts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID := int64(c.QueryInt("id", 0))

	if err := h.s.Delete(c.Context(), userID, accountID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
