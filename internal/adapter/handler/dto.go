package handler

import (
	"github.com/google/uuid"

	"github.com/rl1809/inventory-sync/internal/core/domain"
)

// Request and response bodies shared by the HTTP and gRPC transports.

type CreateArticleRequest struct {
	Name            string `json:"name"`
	InitialQuantity int    `json:"initial_quantity"`
}

type AdjustArticleRequest struct {
	Sku             int64     `json:"sku"`
	Delta           int       `json:"delta"`
	Reason          string    `json:"reason"`
	ExpectedVersion int       `json:"expected_version"`
	OperationID     uuid.UUID `json:"operation_id"`
	StoreID         string    `json:"store_id"`
}

type ReserveArticleRequest struct {
	Sku             int64     `json:"sku"`
	Amount          int       `json:"amount"`
	ExpectedVersion int       `json:"expected_version"`
	OperationID     uuid.UUID `json:"operation_id"`
	StoreID         string    `json:"store_id"`
}

type BatchRequest struct {
	Operations []domain.Operation `json:"operations"`
}

type BatchResponse struct {
	domain.BatchSyncResult
	Error *ErrorResponse `json:"error,omitempty"`
}

type ChangesResponse struct {
	NextPosition int64                   `json:"next_position"`
	Entries      []domain.ChangeLogEntry `json:"entries"`
}

type ErrorResponse struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Current *domain.Article  `json:"current,omitempty"`
}

type GetArticleRequest struct {
	Sku int64 `json:"sku"`
}

type GetArticleResponse struct {
	Found   bool            `json:"found"`
	Article *domain.Article `json:"article,omitempty"`
}

type ListArticlesRequest struct{}

type ListArticlesResponse struct {
	Articles []domain.Article `json:"articles"`
}

type ReadChangesRequest struct {
	From     int64 `json:"from"`
	PageSize int   `json:"page_size"`
}
