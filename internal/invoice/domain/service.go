package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (InvoiceResult, error)
	// NextNumber returns the highest number issued under the configured
	// prefix plus one.
	NextNumber(context.Context) (int64, error)
}

var (
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidProject       = errors.New("invalid_project")
	ErrInvalidGrandTotal    = errors.New("invalid_grand_total")
	ErrNumberingUnavailable = errors.New("invoice_numbering_unavailable")
	ErrCreateFailed         = errors.New("invoice_create_failed")
)
