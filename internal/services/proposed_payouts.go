package services

import (
	"math/big"
	"strings"
	"sync"
)

type ProposedPayout struct {
	Address string   `json:"address"`
	Amount  *big.Int `json:"amount"`
}

// ProposedPayouts holds payout pairs per pool until they are submitted on-chain.
// Insertion order is preserved so submitted arrays are stable.
type ProposedPayouts struct {
	mu    sync.RWMutex
	pools map[string][]ProposedPayout
}

func NewProposedPayouts() *ProposedPayouts {
	return &ProposedPayouts{pools: make(map[string][]ProposedPayout)}
}

// Put adds a payout or replaces the amount of an existing address.
func (p *ProposedPayouts) Put(poolID, address string, amount *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	address = strings.ToLower(address)
	entries := p.pools[poolID]
	for i := range entries {
		if entries[i].Address == address {
			entries[i].Amount = new(big.Int).Set(amount)
			return
		}
	}
	p.pools[poolID] = append(entries, ProposedPayout{Address: address, Amount: new(big.Int).Set(amount)})
}

func (p *ProposedPayouts) Remove(poolID, address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	address = strings.ToLower(address)
	entries := p.pools[poolID]
	for i := range entries {
		if entries[i].Address == address {
			p.pools[poolID] = append(entries[:i:i], entries[i+1:]...)
			if len(p.pools[poolID]) == 0 {
				delete(p.pools, poolID)
			}
			return true
		}
	}
	return false
}

// RemoveMatching removes address only while its amount is still amount.
func (p *ProposedPayouts) RemoveMatching(poolID, address string, amount *big.Int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	address = strings.ToLower(address)
	entries := p.pools[poolID]
	for i := range entries {
		if entries[i].Address == address && entries[i].Amount.Cmp(amount) == 0 {
			p.pools[poolID] = append(entries[:i:i], entries[i+1:]...)
			if len(p.pools[poolID]) == 0 {
				delete(p.pools, poolID)
			}
			return true
		}
	}
	return false
}

// List returns a copy of the proposed payouts for a pool.
func (p *ProposedPayouts) List(poolID string) []ProposedPayout {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := p.pools[poolID]
	out := make([]ProposedPayout, len(entries))
	for i, e := range entries {
		out[i] = ProposedPayout{Address: e.Address, Amount: new(big.Int).Set(e.Amount)}
	}
	return out
}

// Total sums the proposed amounts for a pool.
func (p *ProposedPayouts) Total(poolID string) *big.Int {
	total := new(big.Int)
	for _, e := range p.List(poolID) {
		total.Add(total, e.Amount)
	}
	return total
}

func (p *ProposedPayouts) Clear(poolID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pools, poolID)
}
