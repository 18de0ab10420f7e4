package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Step names the order stage that was running when an order failed.
type Step string

const (
	StepValidate Step = "validate"
	StepClient   Step = "client"
	StepProject  Step = "project"
	StepTask     Step = "task"
)

// BillingAddress is the buyer's billing address as submitted at checkout.
type BillingAddress struct {
	Country string
	State   string
	City    string
	Zip     string
	Line1   string
	Line2   string
	Line3   string
}

type CreateOrderRequest struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Billing    BillingAddress
	GrandTotal decimal.Decimal
}

// OrderResult carries the CRM identifiers the caller needs to create the
// invoice for this order.
type OrderResult struct {
	OrderRef   snowflake.ID    `json:"orderRef"`
	ClientID   int64           `json:"clientId"`
	ProjectID  int64           `json:"projectId"`
	TaskID     int64           `json:"taskId"`
	ClientName string          `json:"clientName"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}
