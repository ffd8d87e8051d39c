package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MarekWeber/RevRescue/internal/pkg/database"
	"github.com/MarekWeber/RevRescue/internal/pkg/env"
	"github.com/MarekWeber/RevRescue/internal/pkg/notify"
	"github.com/MarekWeber/RevRescue/internal/pkg/webhook"
)

const webhookProvider = "billingd"

// HandleBillingWebhook receives billing provider deliveries. The raw body is
// what the signature covers, so it is captured before any parsing.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("X-Billing-Signature")
	secret := env.GetEnv("WEBHOOK_SIGNING_SECRET", "")

	signatureValid := webhook.VerifySignature(rawBody, signature, secret)
	if !signatureValid && secret != "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	svc := webhook.NewServiceFromDB(database.GetDB(), notify.NewEmailNotifier())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := svc.Ingest(ctx, webhookProvider, rawBody, signatureValid)
	if err != nil {
		// Malformed payloads come back 400 and stop being retried; storage
		// failures map to 5xx so the provider redelivers.
		return jsonError(c, err)
	}
	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
