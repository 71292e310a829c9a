package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

type NonceRequest struct {
	Address string `json:"address"`
}

type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// handleNonce issues a single-use sign-in challenge for an address
func (s *APIServer) handleNonce(c *fiber.Ctx) error {
	var body NonceRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !utils.IsValidEthereumAddress(body.Address) {
		return badRequest(c, "Invalid address")
	}

	challenge, err := s.deps.Auth.CreateNonce(body.Address)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(challenge)
}

// handleBackendLogin exchanges a signed challenge for a session token
func (s *APIServer) handleBackendLogin(c *fiber.Ctx) error {
	var body LoginRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !utils.IsValidEthereumAddress(body.Address) {
		return badRequest(c, "Invalid address")
	}
	if body.Signature == "" {
		return badRequest(c, "Signature is required")
	}

	result, err := s.deps.Auth.Login(body.Address, body.Signature)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
