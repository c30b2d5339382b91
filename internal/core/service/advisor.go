package service

import (
	"context"
	"fmt"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

const DefaultRestockThreshold = 15

type Recommendation struct {
	Sku              int64  `json:"sku"`
	Name             string `json:"name"`
	Available        int    `json:"available"`
	Threshold        int    `json:"threshold"`
	RecentOperations int    `json:"recent_operations"`
	Message          string `json:"message"`
}

// Advisor flags articles whose available stock is below a threshold. It holds
// no state beyond the threshold.
type Advisor struct {
	threshold int
}

func NewAdvisor(threshold int) *Advisor {
	if threshold <= 0 {
		threshold = DefaultRestockThreshold
	}
	return &Advisor{threshold: threshold}
}

func (a *Advisor) Threshold() int {
	return a.threshold
}

func (a *Advisor) Analyze(articles []domain.Article, recent []domain.ChangeLogEntry) []Recommendation {
	movements := make(map[int64]int, len(articles))
	for _, e := range recent {
		movements[e.Operation.Sku]++
	}

	recs := []Recommendation{}
	for _, art := range articles {
		if art.Available() >= a.threshold {
			continue
		}
		recs = append(recs, Recommendation{
			Sku:              art.Sku,
			Name:             art.Name,
			Available:        art.Available(),
			Threshold:        a.threshold,
			RecentOperations: movements[art.Sku],
			Message: fmt.Sprintf("restock sku %d (%s): available %d, recent operations %d",
				art.Sku, art.Name, art.Available(), movements[art.Sku]),
		})
	}
	return recs
}

// Advise evaluates the current catalog against the most recent page of the
// change log.
func (s *InventoryService) Advise(ctx context.Context, advisor *Advisor) ([]Recommendation, error) {
	articles, err := s.LookupAll(ctx)
	if err != nil {
		return nil, err
	}

	from := s.log.LastPosition() - int64(oplogWindow)
	if from < 0 {
		from = 0
	}
	_, recent, err := s.log.Read(ctx, from, oplogWindow)
	if err != nil {
		return nil, err
	}

	return advisor.Analyze(articles, recent), nil
}

// ChangeLog exposes cursor reads to transports.
func (s *InventoryService) ChangeLog(ctx context.Context, from int64, pageSize int) (int64, []domain.ChangeLogEntry, error) {
	return s.log.Read(ctx, from, pageSize)
}
