package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/adapter/storage"
	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/oplog"
	"github.com/rl1809/inventory-sync/internal/core/service"
	"github.com/rl1809/inventory-sync/internal/core/store"
	"github.com/rl1809/inventory-sync/internal/port"
)

const (
	initialStock = 20
	totalStores  = 50
	deliveries   = 3 // each store sends its reservation this many times
	maxRetries   = 100
	articleName  = "stress-test-article"
)

type repository interface {
	port.ArticleRepository
	port.ChangeLogRepository
}

func main() {
	sqlitePath := flag.String("sqlite", "", "run against this SQLite file instead of memory")
	flag.Parse()

	ctx := context.Background()

	var repo repository = storage.NewMemoryAdapter()
	if *sqlitePath != "" {
		adapter, err := storage.OpenSQLite(ctx, *sqlitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer adapter.Close()
		repo = adapter
	}

	articles, err := store.New(ctx, repo, nil, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	opLog, err := oplog.Open(ctx, repo, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to open change log: %v", err)
	}
	svc := service.NewInventoryService(articles, opLog, zap.NewNop())

	art, err := svc.Create(ctx, fmt.Sprintf("%s-%s", articleName, uuid.NewString()[:8]), initialStock)
	if err != nil {
		log.Fatalf("failed to create article: %v", err)
	}
	logBefore := opLog.Len()

	var applied, duplicates, rejected, conflicts atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalStores; i++ {
		opID := uuid.New()
		storeID := fmt.Sprintf("store-%d", i)

		for d := 0; d < deliveries; d++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				version := art.Version
				for attempt := 0; attempt < maxRetries; attempt++ {
					res, err := svc.Reserve(ctx, service.ReserveRequest{
						Sku:             art.Sku,
						Amount:          1,
						ExpectedVersion: version,
						StoreID:         storeID,
						OperationID:     opID,
					})
					if errors.Is(err, domain.ErrInsufficientStock) {
						rejected.Add(1)
						return
					}
					if err != nil {
						log.Printf("%s: unexpected error: %v", storeID, err)
						return
					}

					switch res.Outcome {
					case domain.OutcomeApplied:
						applied.Add(1)
						return
					case domain.OutcomeDuplicate:
						duplicates.Add(1)
						return
					case domain.OutcomeVersionConflict:
						conflicts.Add(1)
						version = res.Article.Version
					}
				}
				log.Printf("%s: gave up after %d attempts", storeID, maxRetries)
			}()
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := svc.Lookup(ctx, art.Sku)
	if err != nil || final == nil {
		log.Fatalf("failed to read final article: %v", err)
	}
	recorded := opLog.Len() - logBefore

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Stores:             %d\n", totalStores)
	fmt.Printf("Deliveries/Store:   %d\n", deliveries)
	fmt.Printf("Applied:            %d\n", applied.Load())
	fmt.Printf("Duplicates:         %d\n", duplicates.Load())
	fmt.Printf("Insufficient Stock: %d\n", rejected.Load())
	fmt.Printf("Version Conflicts:  %d (retried)\n", conflicts.Load())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	if applied.Load() == initialStock {
		fmt.Printf("PASS: exactly %d reservations applied\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d applied, got %d\n", initialStock, applied.Load())
	}

	if final.Reserved == initialStock && final.Valid() {
		fmt.Printf("PASS: reserved %d of quantity %d\n", final.Reserved, final.Quantity)
	} else {
		fmt.Printf("FAIL: reserved %d of quantity %d\n", final.Reserved, final.Quantity)
	}

	if recorded == int(applied.Load()) {
		fmt.Printf("PASS: change log grew by %d entries\n", recorded)
	} else {
		fmt.Printf("FAIL: change log grew by %d entries, applied %d\n", recorded, applied.Load())
	}
}
