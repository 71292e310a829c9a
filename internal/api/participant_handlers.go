package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/api/middleware"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/services"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

type PoolRequest struct {
	PoolID string `json:"poolId"`
}

type ParticipantRequest struct {
	PoolID  string `json:"poolId"`
	Address string `json:"address"`
}

// handleJoinPool records the caller as a participant once their deposit is visible on-chain
func (s *APIServer) handleJoinPool(c *fiber.Ctx) error {
	return s.syncParticipation(c, true)
}

// handleUnjoinPool marks the caller refunded once the contract no longer lists them
func (s *APIServer) handleUnjoinPool(c *fiber.Ctx) error {
	return s.syncParticipation(c, false)
}

func (s *APIServer) syncParticipation(c *fiber.Ctx, joined bool) error {
	var body PoolRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if body.PoolID == "" {
		return badRequest(c, "poolId is required")
	}
	user := middleware.GetAuthenticatedUser(c)

	pool, err := s.deps.Pools.ResolvePool(body.PoolID)
	if err != nil {
		return respondError(c, err)
	}

	isParticipant, err := s.deps.Reads.IsParticipant(c.UserContext(), pool, common.HexToAddress(user.Address))
	if err != nil {
		return respondError(c, err)
	}
	if isParticipant != joined {
		if joined {
			return badRequest(c, "Deposit not found on-chain")
		}
		return badRequest(c, "Address is still a participant on-chain")
	}

	var participant *models.Participant
	if joined {
		participant, err = s.deps.Participants.Join(pool.ID, user.Address)
	} else {
		participant, err = s.deps.Participants.MarkRefunded(pool.ID, user.Address)
	}
	if err != nil {
		return respondError(c, err)
	}
	services.InvalidatePool(s.deps.Cache, pool.ID)

	return c.JSON(fiber.Map{"participant": participant})
}

// handleCheckIn marks a participant as present at the event
func (s *APIServer) handleCheckIn(c *fiber.Ctx) error {
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

	participant, err := s.deps.Participants.CheckIn(pool.ID, body.Address)
	if err != nil {
		return respondError(c, err)
	}
	services.InvalidatePool(s.deps.Cache, pool.ID)

	return c.JSON(fiber.Map{"participant": participant})
}

// handleListParticipants lists a pool's participants with their display data
func (s *APIServer) handleListParticipants(c *fiber.Ctx) error {
	pool, err := s.deps.Pools.ResolvePool(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	key := services.CacheKeyMembers + pool.ID
	if cached, ok := s.deps.Cache.Get(key); ok {
		return c.JSON(fiber.Map{"participants": cached})
	}

	participants, err := s.deps.Participants.ListParticipants(pool.ID)
	if err != nil {
		return respondError(c, err)
	}
	s.deps.Cache.Set(key, participants)
	return c.JSON(fiber.Map{"participants": participants})
}
