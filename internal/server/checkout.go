package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/orderbridge/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/orderbridge/internal/order/domain"
	paymentdomain "github.com/smallbiznis/orderbridge/internal/payment/domain"
)

const (
	msgOrderCreated   = "Client and Project created successfully in Flowlu."
	msgInvoiceCreated = "Invoice created successfully in Flowlu."
)

type createClientRequest struct {
	FirstName  string          `json:"first_name" form:"first_name"`
	LastName   string          `json:"last_name" form:"last_name"`
	Email      string          `json:"email" form:"email"`
	Phone      string          `json:"phone" form:"phone"`
	Country    string          `json:"billing_country" form:"billing_country"`
	State      string          `json:"billing_state" form:"billing_state"`
	City       string          `json:"billing_city" form:"billing_city"`
	Zip        string          `json:"billing_zip" form:"billing_zip"`
	Address1   string          `json:"billing_address_line_1" form:"billing_address_line_1"`
	Address2   string          `json:"billing_address_line_2" form:"billing_address_line_2"`
	Address3   string          `json:"billing_address_line_3" form:"billing_address_line_3"`
	GrandTotal decimal.Decimal `json:"grandTotal" form:"grandTotal"`
}

type createInvoiceRequest struct {
	ClientID   int64           `json:"clientId" form:"clientId"`
	ProjectID  int64           `json:"projectId" form:"projectId"`
	StatusID   int             `json:"statusId" form:"statusId"`
	GrandTotal decimal.Decimal `json:"grandTotal" form:"grandTotal"`
	ClientName string          `json:"clientName" form:"clientName"`
}

type processPaymentRequest struct {
	PaymentMethodID string          `json:"paymentMethodId" form:"paymentMethodId"`
	TotalPrice      decimal.Decimal `json:"totalPrice" form:"totalPrice"`
}

// CreateClient creates the CRM account, project and follow-up task for a
// checkout order.
func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	res, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Billing: orderdomain.BillingAddress{
			Country: req.Country,
			State:   req.State,
			City:    req.City,
			Zip:     req.Zip,
			Line1:   req.Address1,
			Line2:   req.Address2,
			Line3:   req.Address3,
		},
		GrandTotal: req.GrandTotal,
	})
	if err != nil {
		if !isValidationError(err) {
			err = withPublicMessage(http.StatusInternalServerError, msgOrderFailed, err)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    msgOrderCreated,
		"orderRef":   res.OrderRef.String(),
		"clientId":   res.ClientID,
		"projectId":  res.ProjectID,
		"clientName": res.ClientName,
		"grandTotal": res.GrandTotal,
	})
}

// CreateInvoice numbers and creates the invoice for an order created by
// CreateClient.
func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	res, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		ClientID:   req.ClientID,
		ProjectID:  req.ProjectID,
		StatusID:   req.StatusID,
		GrandTotal: req.GrandTotal,
		ClientName: strings.TrimSpace(req.ClientName),
	})
	if err != nil {
		if !isValidationError(err) {
			err = withPublicMessage(http.StatusInternalServerError, msgInvoiceFailed, err)
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       msgInvoiceCreated,
		"invoiceId":     res.InvoiceID,
		"invoiceNumber": res.Number,
		"printedNumber": res.PrintedNumber,
	})
}

// ProcessPayment confirms a card payment intent. Only intents that need
// customer authentication hand their client secret back.
func (s *Server) ProcessPayment(c *gin.Context) {
	var req processPaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	res, err := s.paymentSvc.Process(c.Request.Context(), paymentdomain.ProcessPaymentRequest{
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
		TotalPrice:      req.TotalPrice,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		if !isValidationError(err) && !errors.Is(err, paymentdomain.ErrPaymentFailed) {
			err = withPublicMessage(http.StatusInternalServerError, msgPaymentError, err)
		}
		AbortWithError(c, err)
		return
	}

	body := gin.H{"clientSecret": res.ClientSecret}
	if res.Status != paymentdomain.StatusRequiresAction {
		body["status"] = res.Status
	}
	c.JSON(http.StatusOK, body)
}
