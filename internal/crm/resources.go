package crm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PathAccountCreate = "module/crm/account/create"
	PathProjectCreate = "module/st/projects/create"
	PathTaskCreate    = "module/task/tasks/create"
	PathInvoiceCreate = "module/fin/invoice/create"
	PathInvoiceList   = "module/fin/invoice/list"

	dateLayout = "2006-01-02"
)

type Address struct {
	Country string
	State   string
	City    string
	Zip     string
	Line1   string
	Line2   string
	Line3   string
}

type Account struct {
	Type      int
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Billing   Address
}

func (a Account) values() url.Values {
	v := url.Values{}
	v.Set("type", strconv.Itoa(a.Type))
	v.Set("first_name", a.FirstName)
	v.Set("last_name", a.LastName)
	v.Set("email", a.Email)
	v.Set("phone", a.Phone)
	v.Set("billing_country", a.Billing.Country)
	v.Set("billing_state", a.Billing.State)
	v.Set("billing_city", a.Billing.City)
	v.Set("billing_zip", a.Billing.Zip)
	v.Set("billing_address_line_1", a.Billing.Line1)
	v.Set("billing_address_line_2", a.Billing.Line2)
	v.Set("billing_address_line_3", a.Billing.Line3)
	return v
}

type Project struct {
	Name              string
	ClientID          int64
	TypeID            int
	StageID           int
	ManagerID         int
	EstimatedRevenue  decimal.Decimal
	EstimatedExpenses decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	Description       string
}

func (p Project) values() url.Values {
	v := url.Values{}
	v.Set("name", p.Name)
	v.Set("client_id", formatID(p.ClientID))
	v.Set("customer_id", formatID(p.ClientID))
	v.Set("project_type_id", strconv.Itoa(p.TypeID))
	v.Set("stage_id", strconv.Itoa(p.StageID))
	v.Set("manager_id", strconv.Itoa(p.ManagerID))
	v.Set("estimated_revenue", p.EstimatedRevenue.String())
	v.Set("estimated_expenses", p.EstimatedExpenses.String())
	v.Set("startdate", p.StartDate.Format(dateLayout))
	v.Set("enddate", p.EndDate.Format(dateLayout))
	v.Set("description", p.Description)
	return v
}

type Task struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	ClientID    int64
	ProjectID   int64
}

func (t Task) values() url.Values {
	v := url.Values{}
	v.Set("name", t.Name)
	v.Set("description", t.Description)
	v.Set("plan_start_date", t.StartDate.Format(dateLayout))
	v.Set("deadline", t.EndDate.Format(dateLayout))
	v.Set("crm_account_id", formatID(t.ClientID))
	v.Set("model", "st_project")
	v.Set("model_id", formatID(t.ProjectID))
	return v
}

type Invoice struct {
	Number         int64
	PrintedNumber  string
	CustomerID     int64
	ProjectID      int64
	StatusID       int
	InvoiceDate    time.Time
	DueDate        time.Time
	CurrencyID     int
	TemplateID     int
	OrganizationID int
	SubTotal       decimal.Decimal
	TaxFreeTotal   decimal.Decimal
	Total          decimal.Decimal
	Description    string
}

func (i Invoice) values() url.Values {
	v := url.Values{}
	v.Set("invoice_number", strconv.FormatInt(i.Number, 10))
	v.Set("invoice_number_print", i.PrintedNumber)
	v.Set("customer_id", formatID(i.CustomerID))
	v.Set("project_id", formatID(i.ProjectID))
	v.Set("status", strconv.Itoa(i.StatusID))
	v.Set("invoice_date", i.InvoiceDate.Format(dateLayout))
	v.Set("due_date", i.DueDate.Format(dateLayout))
	v.Set("currency_id", strconv.Itoa(i.CurrencyID))
	v.Set("template_id", strconv.Itoa(i.TemplateID))
	v.Set("organization_id", strconv.Itoa(i.OrganizationID))
	v.Set("sub_total", i.SubTotal.StringFixed(2))
	v.Set("tax_free_total", i.TaxFreeTotal.StringFixed(2))
	v.Set("total", i.Total.StringFixed(2))
	if i.Description != "" {
		v.Set("description", i.Description)
	}
	return v
}

// API is the set of CRM calls the orchestrators depend on.
type API interface {
	CreateAccount(ctx context.Context, a Account) (int64, error)
	CreateProject(ctx context.Context, p Project) (int64, error)
	CreateTask(ctx context.Context, t Task) (int64, error)
	CreateInvoice(ctx context.Context, i Invoice) (int64, error)
	ListInvoices(ctx context.Context, page int) (InvoicePage, error)
}

var _ API = (*Client)(nil)

// InvoicePage is one page of the invoice list.
type InvoicePage struct {
	Total int
	Page  int
	Limit int
	Items []InvoiceItem
}

type InvoiceItem struct {
	ID            int64
	Number        int64
	PrintedNumber string
}

type invoicePagePayload struct {
	Total flexInt `json:"total"`
	Page  flexInt `json:"page"`
	Limit flexInt `json:"limit"`
	Items []struct {
		ID            flexInt `json:"id"`
		Number        flexInt `json:"invoice_number"`
		PrintedNumber string  `json:"invoice_number_print"`
	} `json:"items"`
}

func (c *Client) CreateAccount(ctx context.Context, a Account) (int64, error) {
	return c.create(ctx, "client", PathAccountCreate, a.values())
}

func (c *Client) CreateProject(ctx context.Context, p Project) (int64, error) {
	return c.create(ctx, "project", PathProjectCreate, p.values())
}

func (c *Client) CreateTask(ctx context.Context, t Task) (int64, error) {
	return c.create(ctx, "task", PathTaskCreate, t.values())
}

func (c *Client) CreateInvoice(ctx context.Context, i Invoice) (int64, error) {
	return c.create(ctx, "invoice", PathInvoiceCreate, i.values())
}

// ListInvoices fetches one page (1-based) of the invoice list.
func (c *Client) ListInvoices(ctx context.Context, page int) (InvoicePage, error) {
	if page < 1 {
		page = 1
	}
	fields := url.Values{}
	fields.Set("page", strconv.Itoa(page))

	env, err := c.Submit(ctx, PathInvoiceList, fields)
	if err != nil {
		return InvoicePage{}, err
	}
	if !env.OK() {
		return InvoicePage{}, &RejectedError{Resource: "invoice list", Body: env.Body()}
	}

	var payload invoicePagePayload
	if err := env.Decode(&payload); err != nil {
		return InvoicePage{}, fmt.Errorf("decode invoice list: %w", err)
	}

	out := InvoicePage{
		Total: int(payload.Total),
		Page:  int(payload.Page),
		Limit: int(payload.Limit),
		Items: make([]InvoiceItem, 0, len(payload.Items)),
	}
	if out.Page == 0 {
		out.Page = page
	}
	for _, item := range payload.Items {
		out.Items = append(out.Items, InvoiceItem{
			ID:            int64(item.ID),
			Number:        int64(item.Number),
			PrintedNumber: item.PrintedNumber,
		})
	}
	return out, nil
}

func (c *Client) create(ctx context.Context, resource, path string, fields url.Values) (int64, error) {
	env, err := c.Submit(ctx, path, fields)
	if err != nil {
		return 0, err
	}
	if !env.OK() {
		return 0, &RejectedError{Resource: resource, Body: env.Body()}
	}

	var created struct {
		ID flexInt `json:"id"`
	}
	if err := env.Decode(&created); err != nil || created.ID == 0 {
		return 0, &RejectedError{Resource: resource, Body: env.Body()}
	}
	return int64(created.ID), nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
