package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
)

// handleContractArtifact serves the ABI of the Pool or ERC20 contract, with the
// deployed address when one is configured
func (s *APIServer) handleContractArtifact(c *fiber.Ctx) error {
	name := c.Params("name")
	artifact, err := contracts.GetContractArtifact(name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Contract not found"})
	}

	body := fiber.Map{"name": artifact.Name, "abi": artifact.ABI}
	if address := s.deps.ContractAddresses[name]; address != "" {
		body["address"] = address
	}
	return c.JSON(body)
}
