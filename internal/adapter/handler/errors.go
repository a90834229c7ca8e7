package handler

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// errorMapping is checked in order; the first sentinel found in the chain
// decides the status. Validation comes first so an unknown cart item reads
// as bad input rather than a missing resource.
var errorMapping = []struct {
	target error
	status int
	code   codes.Code
}{
	{domain.ErrValidation, http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrAlreadyExists, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrInsufficientStock, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrNegativeStock, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrConflict, http.StatusConflict, codes.Aborted},
	{domain.ErrEmptyCart, http.StatusUnprocessableEntity, codes.FailedPrecondition},
	{domain.ErrPersistence, http.StatusServiceUnavailable, codes.Unavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, codes.DeadlineExceeded},
	{context.Canceled, http.StatusRequestTimeout, codes.Canceled},
}

func classify(err error) (int, codes.Code) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, codes.Internal
}

type errorResponse struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
	Stock     *stockDetails `json:"stock,omitempty"`
}

type stockDetails struct {
	ItemID    string `json:"item_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Code: "INTERNAL", Message: err.Error()}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
	}

	var stockErr *domain.StockError
	if errors.As(err, &stockErr) {
		resp.Stock = &stockDetails{
			ItemID:    stockErr.ItemID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
	}
	return resp
}
