package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
)

// errorStatus maps a service error to an HTTP status code.
func errorStatus(err error) int {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrPoolNotFound),
		errors.Is(err, services.ErrParticipantNotFound),
		errors.Is(err, services.ErrPayoutNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrNonceNotFound),
		errors.Is(err, services.ErrInvalidSignature):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrNotPoolHost):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrTransactionInProgress),
		errors.Is(err, services.ErrCreationInProgress),
		errors.Is(err, services.ErrAlreadyCheckedIn),
		errors.Is(err, services.ErrPoolConfirmed),
		errors.Is(err, services.ErrDepositsClosed),
		errors.Is(err, services.ErrRefundNotAvailable),
		errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrPoolNotOnchain),
		errors.Is(err, services.ErrNoProposedPayouts),
		errors.Is(err, services.ErrNothingToClaim),
		errors.Is(err, services.ErrParticipantRefunded),
		errors.Is(err, services.ErrNoCalls),
		errors.Is(err, services.ErrUserRejected):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrWalletNotReady),
		errors.Is(err, services.ErrConnectorLost):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, services.ErrConfirmationTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, services.ErrTransactionReverted),
		errors.Is(err, services.ErrTransactionFailed),
		errors.Is(err, services.ErrPoolIDNotFound):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorMessage returns the text placed in the error body. Transaction errors get the
// executor's user-facing message, everything else its own text.
func errorMessage(err error) string {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error()
	}
	for _, txErr := range []error{
		services.ErrUserRejected,
		services.ErrConnectorLost,
		services.ErrWalletNotReady,
		services.ErrTransactionInProgress,
		services.ErrConfirmationTimeout,
		services.ErrReconciliationGap,
		services.ErrTransactionReverted,
		services.ErrTransactionFailed,
	} {
		if errors.Is(err, txErr) {
			return services.UserMessage(err)
		}
	}
	if errorStatus(err) == fiber.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// respondError writes the {"error": ...} body for err and logs server-side failures.
func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{"error": errorMessage(err)}
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		body["fields"] = validationErr.Fields
	}
	var creationErr *services.CreationFailedError
	if errors.As(err, &creationErr) {
		body["draftId"] = creationErr.DraftID
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Host wallet is not configured"})
}
