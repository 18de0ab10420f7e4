package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/orderbridge/internal/crm"
	"github.com/smallbiznis/orderbridge/internal/invoice/domain"
	"github.com/smallbiznis/orderbridge/internal/invoice/format"
	"go.uber.org/zap"
)

// lastNumber walks the invoice list from the newest page back to the first
// and returns the sequence of the first invoice printed in the configured
// layout, or 0 when none is. Any page failure aborts the walk.
func (s *Service) lastNumber(ctx context.Context, parser *format.Parser) (int64, error) {
	first, err := s.crm.ListInvoices(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("%w: list page 1: %w", domain.ErrNumberingUnavailable, err)
	}

	pages := pageCount(first)
	s.log.Debug("scanning invoice history",
		zap.Int("total", first.Total),
		zap.Int("limit", first.Limit),
		zap.Int("pages", pages),
	)

	for page := pages; page >= 1; page-- {
		current := first
		if page != 1 {
			current, err = s.crm.ListInvoices(ctx, page)
			if err != nil {
				return 0, fmt.Errorf("%w: list page %d: %w", domain.ErrNumberingUnavailable, page, err)
			}
		}
		for i := len(current.Items) - 1; i >= 0; i-- {
			if seq, ok := parser.Parse(current.Items[i].PrintedNumber); ok {
				return seq, nil
			}
		}
	}
	return 0, nil
}

func pageCount(first crm.InvoicePage) int {
	limit := first.Limit
	if limit <= 0 {
		limit = len(first.Items)
	}
	if limit <= 0 || first.Total <= 0 {
		return 1
	}
	return (first.Total + limit - 1) / limit
}
