// Package crmtest provides an in-memory crm.API for orchestrator tests.
package crmtest

import (
	"context"
	"sync"

	"github.com/smallbiznis/orderbridge/internal/crm"
)

// Fake records every call and answers with the configured funcs. A nil
// func answers with the next sequential id.
type Fake struct {
	mu     sync.Mutex
	nextID int64

	Accounts []crm.Account
	Projects []crm.Project
	Tasks    []crm.Task
	Invoices []crm.Invoice
	Pages    []int

	AccountFunc func(crm.Account) (int64, error)
	ProjectFunc func(crm.Project) (int64, error)
	TaskFunc    func(crm.Task) (int64, error)
	InvoiceFunc func(crm.Invoice) (int64, error)
	ListFunc    func(page int) (crm.InvoicePage, error)
}

var _ crm.API = (*Fake)(nil)

func (f *Fake) CreateAccount(_ context.Context, a crm.Account) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts = append(f.Accounts, a)
	if f.AccountFunc != nil {
		return f.AccountFunc(a)
	}
	return f.id(), nil
}

func (f *Fake) CreateProject(_ context.Context, p crm.Project) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Projects = append(f.Projects, p)
	if f.ProjectFunc != nil {
		return f.ProjectFunc(p)
	}
	return f.id(), nil
}

func (f *Fake) CreateTask(_ context.Context, t crm.Task) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tasks = append(f.Tasks, t)
	if f.TaskFunc != nil {
		return f.TaskFunc(t)
	}
	return f.id(), nil
}

func (f *Fake) CreateInvoice(_ context.Context, i crm.Invoice) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Invoices = append(f.Invoices, i)
	if f.InvoiceFunc != nil {
		return f.InvoiceFunc(i)
	}
	return f.id(), nil
}

func (f *Fake) ListInvoices(_ context.Context, page int) (crm.InvoicePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages = append(f.Pages, page)
	if f.ListFunc != nil {
		return f.ListFunc(page)
	}
	return crm.InvoicePage{Page: page, Limit: 50}, nil
}

func (f *Fake) id() int64 {
	f.nextID++
	return f.nextID
}

// History serves a paginated invoice list built from printed numbers, in
// creation order.
func History(limit int, printed ...string) func(page int) (crm.InvoicePage, error) {
	return func(page int) (crm.InvoicePage, error) {
		out := crm.InvoicePage{Total: len(printed), Page: page, Limit: limit}
		start := (page - 1) * limit
		for i := start; i < start+limit && i < len(printed); i++ {
			out.Items = append(out.Items, crm.InvoiceItem{ID: int64(i + 1), PrintedNumber: printed[i]})
		}
		return out, nil
	}
}
