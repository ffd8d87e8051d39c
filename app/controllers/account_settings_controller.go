package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/MarekWeber/RevRescue/app/repository"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
)

// HandleAccountAPIKeyGenerate issues a fresh API key for the logged-in
// account. The raw secret is only ever present in this one response; the
// database keeps the hash.
func HandleAccountAPIKeyGenerate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetAccountRepository()

	account, err := repo.GetByID(userCtx.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Could not load account"})
	}

	rawKey, err := account.IssueAPIKey()
	if err != nil {
		log.Errorf("[Account] api key generation failed for account %d: %v", account.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Could not generate API key"})
	}
	if err := repo.Update(account); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Could not store API key"})
	}

	log.Infof("[Account] issued new api key %s... for account %d", account.APIKeyPrefix, account.ID)
	return c.JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     account.APIKeyPrefix,
		"created_at": account.APIKeyCreatedAt,
	})
}

// HandleAccountAPIKeyRevoke invalidates the account's current API key.
func HandleAccountAPIKeyRevoke(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetAccountRepository()

	account, err := repo.GetByID(userCtx.AccountID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Could not load account"})
	}
	if !account.HasActiveAPIKey() {
		return c.JSON(fiber.Map{"revoked": false})
	}

	account.RevokeAPIKey()
	if err := repo.Update(account); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Could not revoke API key"})
	}

	log.Infof("[Account] revoked api key for account %d", account.ID)
	return c.JSON(fiber.Map{"revoked": true})
}
