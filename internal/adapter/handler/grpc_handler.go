package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/core/service"
)

const (
	grpcServiceName = "inventory.v1.InventoryService"

	// JSONCodecName is the content subtype clients must request, e.g. with
	// grpc.CallContentSubtype(JSONCodecName).
	JSONCodecName = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type InventoryServer interface {
	GetArticle(context.Context, *GetArticleRequest) (*GetArticleResponse, error)
	ListArticles(context.Context, *ListArticlesRequest) (*ListArticlesResponse, error)
	CreateArticle(context.Context, *CreateArticleRequest) (*domain.Article, error)
	Adjust(context.Context, *AdjustArticleRequest) (*domain.MutationResult, error)
	Reserve(context.Context, *ReserveArticleRequest) (*domain.MutationResult, error)
	SyncBatch(context.Context, *BatchRequest) (*BatchResponse, error)
	ReadChanges(context.Context, *ReadChangesRequest) (*ChangesResponse, error)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetArticle", InventoryServer.GetArticle),
		unary("ListArticles", InventoryServer.ListArticles),
		unary("CreateArticle", InventoryServer.CreateArticle),
		unary("Adjust", InventoryServer.Adjust),
		unary("Reserve", InventoryServer.Reserve),
		unary("SyncBatch", InventoryServer.SyncBatch),
		unary("ReadChanges", InventoryServer.ReadChanges),
	},
	Metadata: "inventory/v1/inventory.json",
}

func unary[Req, Resp any](method string, call func(InventoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + grpcServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			})
		},
	}
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

// UnaryLogger logs every unary call with its status code.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		logger.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

// UnaryTimeout bounds every unary call by d. Zero leaves calls unbounded.
func UnaryTimeout(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return next(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx, req)
	}
}

type GRPCHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewGRPCHandler(inventory *service.InventoryService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{inventory: inventory, logger: logger}
}

func (h *GRPCHandler) GetArticle(ctx context.Context, req *GetArticleRequest) (*GetArticleResponse, error) {
	article, err := h.inventory.Lookup(ctx, req.Sku)
	if err != nil {
		return nil, h.status(err)
	}
	return &GetArticleResponse{Found: article != nil, Article: article}, nil
}

func (h *GRPCHandler) ListArticles(ctx context.Context, _ *ListArticlesRequest) (*ListArticlesResponse, error) {
	articles, err := h.inventory.LookupAll(ctx)
	if err != nil {
		return nil, h.status(err)
	}
	return &ListArticlesResponse{Articles: articles}, nil
}

func (h *GRPCHandler) CreateArticle(ctx context.Context, req *CreateArticleRequest) (*domain.Article, error) {
	article, err := h.inventory.Create(ctx, req.Name, req.InitialQuantity)
	if err != nil {
		return nil, h.status(err)
	}
	return &article, nil
}

// Adjust returns version conflicts as a result with outcome version_conflict
// and the current article, not as a status error.
func (h *GRPCHandler) Adjust(ctx context.Context, req *AdjustArticleRequest) (*domain.MutationResult, error) {
	res, err := h.inventory.Adjust(ctx, service.AdjustRequest{
		Sku:             req.Sku,
		Delta:           req.Delta,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		OperationID:     req.OperationID,
	})
	if err != nil {
		return nil, h.status(err)
	}
	return &res, nil
}

func (h *GRPCHandler) Reserve(ctx context.Context, req *ReserveArticleRequest) (*domain.MutationResult, error) {
	res, err := h.inventory.Reserve(ctx, service.ReserveRequest{
		Sku:             req.Sku,
		Amount:          req.Amount,
		ExpectedVersion: req.ExpectedVersion,
		StoreID:         req.StoreID,
		OperationID:     req.OperationID,
	})
	if err != nil {
		return nil, h.status(err)
	}
	return &res, nil
}

// SyncBatch reports a business failure inside the response so the counts
// reach the caller.
func (h *GRPCHandler) SyncBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	result, err := h.inventory.ProcessBatch(ctx, req.Operations)
	if err != nil {
		if domain.KindOf(err) == "" {
			return nil, h.status(err)
		}
		_, body := errorResponse(err)
		return &BatchResponse{BatchSyncResult: result, Error: &body}, nil
	}
	return &BatchResponse{BatchSyncResult: result}, nil
}

func (h *GRPCHandler) ReadChanges(ctx context.Context, req *ReadChangesRequest) (*ChangesResponse, error) {
	next, entries, err := h.inventory.ChangeLog(ctx, req.From, req.PageSize)
	if err != nil {
		return nil, h.status(err)
	}
	return &ChangesResponse{NextPosition: next, Entries: entries}, nil
}

func (h *GRPCHandler) status(err error) error {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, "request timed out")
		}
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}

	switch derr.Kind {
	case domain.KindInvalidArgument:
		return status.Error(codes.InvalidArgument, derr.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, derr.Error())
	case domain.KindAlreadyExists, domain.KindDuplicateOperation:
		return status.Error(codes.AlreadyExists, derr.Error())
	case domain.KindVersionConflict:
		return status.Error(codes.Aborted, derr.Error())
	case domain.KindInsufficientStock, domain.KindInvalidState:
		return status.Error(codes.FailedPrecondition, derr.Error())
	default:
		return status.Error(codes.Unknown, derr.Error())
	}
}

// GRPCClient calls InventoryService over a connection using the JSON codec.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+grpcServiceName+"/"+method, in, out, grpc.CallContentSubtype(JSONCodecName))
}

func (c *GRPCClient) GetArticle(ctx context.Context, req *GetArticleRequest) (*GetArticleResponse, error) {
	out := new(GetArticleResponse)
	return out, c.invoke(ctx, "GetArticle", req, out)
}

func (c *GRPCClient) ListArticles(ctx context.Context, req *ListArticlesRequest) (*ListArticlesResponse, error) {
	out := new(ListArticlesResponse)
	return out, c.invoke(ctx, "ListArticles", req, out)
}

func (c *GRPCClient) CreateArticle(ctx context.Context, req *CreateArticleRequest) (*domain.Article, error) {
	out := new(domain.Article)
	return out, c.invoke(ctx, "CreateArticle", req, out)
}

func (c *GRPCClient) Adjust(ctx context.Context, req *AdjustArticleRequest) (*domain.MutationResult, error) {
	out := new(domain.MutationResult)
	return out, c.invoke(ctx, "Adjust", req, out)
}

func (c *GRPCClient) Reserve(ctx context.Context, req *ReserveArticleRequest) (*domain.MutationResult, error) {
	out := new(domain.MutationResult)
	return out, c.invoke(ctx, "Reserve", req, out)
}

func (c *GRPCClient) SyncBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	out := new(BatchResponse)
	return out, c.invoke(ctx, "SyncBatch", req, out)
}

func (c *GRPCClient) ReadChanges(ctx context.Context, req *ReadChangesRequest) (*ChangesResponse, error) {
	out := new(ChangesResponse)
	return out, c.invoke(ctx, "ReadChanges", req, out)
}
