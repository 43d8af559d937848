package handler

import (
	"context"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/core/service"
	"github.com/rl1809/retail-pos/internal/metrics"
)

const checkoutServiceName = "pos.v1.CheckoutService"

type GetInvoiceRequest struct {
	ID int64 `json:"id"`
}

type GetInvoiceResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Invoice *domain.Invoice `json:"invoice,omitempty"`
}

// CheckoutServer is the gRPC surface of the checkout flow.
type CheckoutServer interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	GetInvoice(ctx context.Context, req *GetInvoiceRequest) (*GetInvoiceResponse, error)
}

type GRPCHandler struct {
	checkout *service.CheckoutService
	invoices *service.InvoiceService
	metrics  *metrics.ServerMetrics
	logger   *slog.Logger
}

func NewGRPCHandler(checkout *service.CheckoutService, invoices *service.InvoiceService, m *metrics.ServerMetrics, logger *slog.Logger) *GRPCHandler {
	return &GRPCHandler{checkout: checkout, invoices: invoices, metrics: m, logger: logger}
}

// Register exposes h on s under pos.v1.CheckoutService.
func (h *GRPCHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&checkoutServiceDesc, h)
}

// Checkout reports business failures in the response body; only transport
// problems surface as gRPC errors.
func (h *GRPCHandler) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	receipt, err := h.checkout.Checkout(ctx, req.toCart())
	if h.metrics != nil {
		h.metrics.Checkouts.WithLabelValues(checkoutOutcome(err)).Inc()
	}
	if err != nil {
		code, message := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "grpc checkout failed", slog.Any("error", err))
		}
		return &CheckoutResponse{Success: false, Message: message}, nil
	}

	message := "checkout completed"
	if receipt.Replayed {
		message = "checkout already completed"
	}
	return &CheckoutResponse{
		Success:       true,
		Message:       message,
		InvoiceID:     receipt.InvoiceID,
		InvoiceNumber: receipt.InvoiceNumber,
		GrandTotal:    receipt.GrandTotal,
		Replayed:      receipt.Replayed,
	}, nil
}

func (h *GRPCHandler) GetInvoice(ctx context.Context, req *GetInvoiceRequest) (*GetInvoiceResponse, error) {
	invoice, err := h.invoices.GetInvoice(ctx, req.ID)
	if err != nil {
		code, message := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "grpc get invoice failed", slog.Int64("invoice_id", req.ID), slog.Any("error", err))
		}
		return &GetInvoiceResponse{Success: false, Message: message}, nil
	}
	return &GetInvoiceResponse{Success: true, Message: "ok", Invoice: invoice}, nil
}

var checkoutServiceDesc = grpc.ServiceDesc{
	ServiceName: checkoutServiceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Checkout", Handler: checkoutMethodHandler},
		{MethodName: "GetInvoice", Handler: getInvoiceMethodHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func checkoutMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).Checkout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + checkoutServiceName + "/Checkout"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).Checkout(ctx, req.(*CheckoutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getInvoiceMethodHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetInvoiceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).GetInvoice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + checkoutServiceName + "/GetInvoice"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CheckoutServer).GetInvoice(ctx, req.(*GetInvoiceRequest))
	}
	return interceptor(ctx, in, info, handler)
}
