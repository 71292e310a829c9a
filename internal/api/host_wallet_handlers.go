package api

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

type ClaimWinningsRequest struct {
	Address string `json:"address"`
	// PoolIDs defaults to every unclaimed pool of address
	PoolIDs []string `json:"poolIds,omitempty"`
}

// handleHostDeposit deposits the pool price from the host wallet
func (s *APIServer) handleHostDeposit(c *fiber.Ctx) error {
	if s.deps.HostWallet == nil {
		return unavailable(c)
	}
	result, err := s.deps.HostWallet.Deposit(c.UserContext(), c.Params("id"))
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
		return respondError(c, err)
	}

	body := fiber.Map{"pool": result.Pool, "amount": result.Amount}
	if result.Transaction != nil {
		body["transaction"] = result.Transaction.Record
	}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.JSON(body)
}

// handleHostRefund takes the host wallet's deposit back out of a pool
func (s *APIServer) handleHostRefund(c *fiber.Ctx) error {
	if s.deps.HostWallet == nil {
		return unavailable(c)
	}
	pool, tx, err := s.deps.HostWallet.SelfRefund(c.UserContext(), c.Params("id"))
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && pool != nil) {
		return respondError(c, err)
	}

	body := fiber.Map{"pool": pool}
	if tx != nil {
		body["transaction"] = tx.Record
	}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.JSON(body)
}

// handleClaimWinnings pays a winner out of one or more pools, gas paid by the host wallet
func (s *APIServer) handleClaimWinnings(c *fiber.Ctx) error {
	if s.deps.HostWallet == nil {
		return unavailable(c)
	}
	var req ClaimWinningsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !utils.IsValidEthereumAddress(req.Address) {
		return badRequest(c, "Invalid address")
	}

	result, err := s.deps.HostWallet.ClaimWinnings(c.UserContext(), common.HexToAddress(req.Address), req.PoolIDs)
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
		return respondError(c, err)
	}

	body := fiber.Map{"winner": result.Winner.Hex(), "poolIds": result.PoolIDs}
	if result.Transaction != nil {
		body["transaction"] = result.Transaction.Record
	}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.JSON(body)
}
