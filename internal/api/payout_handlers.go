package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

type SavePayoutRequest struct {
	PoolID  string `json:"poolId"`
	Address string `json:"address"`
	// Amount is in token base units, as a decimal string or a JSON number
	Amount interface{} `json:"amount"`
}

// handleSavePayout stores a proposed winner amount and seeds the proposal list
func (s *APIServer) handleSavePayout(c *fiber.Ctx) error {
	var body SavePayoutRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.PoolID == "" {
		return badRequest(c, "poolId is required")
	}
	if !utils.IsValidEthereumAddress(body.Address) {
		return badRequest(c, "Invalid address")
	}
	amount, err := utils.ParseBigInt(body.Amount)
	if err != nil || amount.Sign() <= 0 {
		return badRequest(c, "amount must be a positive integer in base units")
	}
	if s.deps.Winners == nil {
		return unavailable(c)
	}

	payout, err := s.deps.Winners.Propose(body.PoolID, body.Address, amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"payout": fiber.Map{"address": payout.Address, "amount": payout.Amount.String()},
	})
}

// handleDeletePayout removes a saved payout and its proposal
func (s *APIServer) handleDeletePayout(c *fiber.Ctx) error {
	var body ParticipantRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.PoolID == "" {
		return badRequest(c, "poolId is required")
	}
	if !utils.IsValidEthereumAddress(body.Address) {
		return badRequest(c, "Invalid address")
	}

	pool, err := s.deps.Pools.ResolvePool(body.PoolID)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.deps.Payouts.DeletePayout(pool.ID, body.Address); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// handleListPayouts lists the payouts proposed for a pool
func (s *APIServer) handleListPayouts(c *fiber.Ctx) error {
	if s.deps.Winners == nil {
		return unavailable(c)
	}
	proposed, err := s.deps.Winners.Proposed(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	payouts := make([]fiber.Map, 0, len(proposed))
	for _, p := range proposed {
		payouts = append(payouts, fiber.Map{"address": p.Address, "amount": p.Amount.String()})
	}
	return c.JSON(fiber.Map{"payouts": payouts})
}
