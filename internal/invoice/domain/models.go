package domain

import "github.com/shopspring/decimal"

type CreateInvoiceRequest struct {
	ClientID   int64
	ProjectID  int64
	StatusID   int
	GrandTotal decimal.Decimal
	ClientName string
}

type InvoiceResult struct {
	InvoiceID     int64           `json:"invoiceId"`
	Number        int64           `json:"invoiceNumber"`
	PrintedNumber string          `json:"printedNumber"`
	ClientName    string          `json:"clientName"`
	Total         decimal.Decimal `json:"total"`
}
