package controllers

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
)

func TestJsonErrorEnvelope(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: bad payload", faults.ErrValidation), fiber.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("%w: no such case", faults.ErrNotFound), fiber.StatusNotFound, "not_found"},
		{"benign transition", fmt.Errorf("%w: already resolved", faults.ErrInvalidTransition), fiber.StatusOK, "already_resolved"},
		{"storage", faults.Storage(fmt.Errorf("connection refused")), fiber.StatusInternalServerError, "internal_error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/boom", func(c *fiber.Ctx) error {
				return jsonError(c, tc.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), fmt.Sprintf(`"error":"%s"`, tc.code))
		})
	}
}
