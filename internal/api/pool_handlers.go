package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

const maxPoolListLimit = 100

// handleListPools lists created pools, newest first. Drafts are only listed for admins asking for them.
func (s *APIServer) handleListPools(c *fiber.Ctx) error {
	filter := services.ListPoolsFilter{
		Status:      models.PoolStatus(c.Query("status")),
		HostAddress: strings.ToLower(c.Query("host")),
		Limit:       c.QueryInt("limit", 20),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest(c, "Invalid status")
	}
	if filter.Limit < 1 || filter.Limit > maxPoolListLimit {
		filter.Limit = maxPoolListLimit
	}

	key := fmt.Sprintf("%s%s:%s:%d", services.CacheKeyPools, filter.Status, filter.HostAddress, filter.Limit)
	if cached, ok := s.deps.Cache.Get(key); ok {
		return c.JSON(fiber.Map{"pools": cached})
	}

	pools, err := s.deps.Pools.ListPools(filter)
	if err != nil {
		return respondError(c, err)
	}
	s.deps.Cache.Set(key, pools)
	return c.JSON(fiber.Map{"pools": pools})
}

// handleGetPool returns a pool by draft id or on-chain id, with its contract state once created
func (s *APIServer) handleGetPool(c *fiber.Ctx) error {
	pool, err := s.deps.Pools.ResolvePool(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if s.deps.Reads == nil {
		return c.JSON(fiber.Map{"pool": pool})
	}

	detail, err := s.deps.Reads.Detail(c.UserContext(), pool)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"pool": detail})
}

// handleCreatePool validates the form, stores a draft and creates the pool on-chain
func (s *APIServer) handleCreatePool(c *fiber.Ctx) error {
	if s.deps.Creation == nil {
		return unavailable(c)
	}
	var form services.CreatePoolForm
	if err := c.BodyParser(&form); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.deps.Creation.Create(c.UserContext(), form)
	return s.respondCreation(c, result, err)
}

// handleRetryPool resubmits a draft whose creation failed or timed out
func (s *APIServer) handleRetryPool(c *fiber.Ctx) error {
	if s.deps.Creation == nil {
		return unavailable(c)
	}
	result, err := s.deps.Creation.Retry(c.UserContext(), c.Params("id"))
	return s.respondCreation(c, result, err)
}

// handleCancelPool deletes a draft that never made it on-chain
func (s *APIServer) handleCancelPool(c *fiber.Ctx) error {
	if s.deps.Creation == nil {
		return unavailable(c)
	}
	if err := s.deps.Creation.Cancel(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *APIServer) respondCreation(c *fiber.Ctx, result *services.CreationResult, err error) error {
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil && result.Pool != nil) {
		return respondError(c, err)
	}

	body := fiber.Map{
		"pool":      result.Pool,
		"onchainId": result.OnchainID,
		"redirect":  result.Redirect,
	}
	if result.Transaction != nil {
		body["transaction"] = result.Transaction.Record
	}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// handleAdvancePool moves a pool through enable_deposit, start, end or delete
func (s *APIServer) handleAdvancePool(c *fiber.Ctx) error {
	if s.deps.Lifecycle == nil {
		return unavailable(c)
	}
	action := services.LifecycleAction(c.Params("action"))
	if _, err := action.Target(); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown pool action"})
	}

	pool, err := s.deps.Lifecycle.Advance(c.UserContext(), c.Params("id"), action)
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && pool != nil) {
		return respondError(c, err)
	}
	body := fiber.Map{"pool": pool}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.JSON(body)
}

// handleSubmitWinners sends the proposed payouts to the contract
func (s *APIServer) handleSubmitWinners(c *fiber.Ctx) error {
	if s.deps.Winners == nil {
		return unavailable(c)
	}
	result, err := s.deps.Winners.SubmitWinners(c.UserContext(), c.Params("id"))
	if err != nil && !(errors.Is(err, services.ErrReconciliationGap) && result != nil) {
		return respondError(c, err)
	}

	winners := make([]fiber.Map, 0, len(result.Payouts))
	for _, p := range result.Payouts {
		winners = append(winners, fiber.Map{"address": p.Address, "amount": p.Amount.String()})
	}
	body := fiber.Map{"winners": winners}
	if result.Transaction != nil {
		body["transaction"] = result.Transaction.Record
	}
	if err != nil {
		body["warning"] = services.UserMessage(err)
	}
	return c.JSON(body)
}

// handleGetWinners returns the winners recorded on-chain with their claim state
func (s *APIServer) handleGetWinners(c *fiber.Ctx) error {
	if s.deps.Reads == nil {
		return unavailable(c)
	}
	pool, err := s.deps.Pools.ResolvePool(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	winners, err := s.deps.Reads.Winners(c.UserContext(), pool)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]fiber.Map, 0, len(winners))
	for _, w := range winners {
		out = append(out, fiber.Map{
			"address": strings.ToLower(w.Address.Hex()),
			"amount":  w.Amount.String(),
			"claimed": w.Claimed,
		})
	}
	return c.JSON(fiber.Map{"winners": out})
}

// handleClaimable lists pools where address has winnings
func (s *APIServer) handleClaimable(c *fiber.Ctx) error {
	if s.deps.Reads == nil {
		return unavailable(c)
	}
	address := c.Params("address")
	if !utils.IsValidEthereumAddress(address) {
		return badRequest(c, "Invalid address")
	}

	claimable, err := s.deps.Reads.Claimable(c.UserContext(), common.HexToAddress(address))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"pools": claimable})
}

// handleListIssues lists reconciliation issues, unresolved ones unless all=true
func (s *APIServer) handleListIssues(c *fiber.Ctx) error {
	all, _ := strconv.ParseBool(c.Query("all", "false"))
	issues, err := s.deps.Pools.ListIssues(!all)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"issues": issues})
}
