package handler

import (
	"github.com/labstack/echo/v4"
)

// Handlers bundles every HTTP handler served under /api/v1
type Handlers struct {
	Calculator *CalculatorHandler
	Lender     *LenderHandler
	Customer   *CustomerHandler
	Loan       *LoanHandler
	Payment    *LoanPaymentHandler
	Invoice    *InvoiceHandler
	Document   *DocumentHandler
}

// RegisterRoutes sets up all API routes. auth guards every route except the
// calculator; extra middleware (rate limiting) applies to the protected group.
func RegisterRoutes(e *echo.Echo, h Handlers, auth echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) {
	// API version 1
	api := e.Group("/api/v1")

	// Public calculator
	api.POST("/calculator/estimate", h.Calculator.Estimate, extra...)

	protected := api.Group("", append([]echo.MiddlewareFunc{auth}, extra...)...)

	// Lender profile
	protected.GET("/lender", h.Lender.GetLender)
	protected.PUT("/lender", h.Lender.UpdateLender)
	protected.POST("/lender/logo", h.Lender.UploadLogo)
	protected.GET("/lender/logo", h.Lender.GetLogo)

	// Customers
	customers := protected.Group("/customers")
	customers.POST("", h.Customer.CreateCustomer)
	customers.GET("", h.Customer.GetCustomers)
	customers.GET("/:id", h.Customer.GetCustomer)
	customers.PUT("/:id", h.Customer.UpdateCustomer)
	customers.GET("/:id/loans", h.Customer.GetCustomerLoans)

	// Loans and their lifecycle
	loans := protected.Group("/loans")
	loans.POST("", h.Loan.CreateLoan)
	loans.GET("", h.Loan.GetLoans)
	loans.GET("/:id", h.Loan.GetLoan)
	loans.PUT("/:id", h.Loan.UpdateLoan)
	loans.POST("/:id/approve", h.Loan.ApproveLoan)
	loans.POST("/:id/cancel", h.Loan.CancelLoan)
	loans.POST("/:id/foreclose", h.Loan.ForecloseLoan)
	loans.PATCH("/:id/status", h.Loan.UpdateLoanStatus)
	loans.GET("/:id/invoices", h.Loan.GetLoanInvoices)

	// Payment ledger
	loans.POST("/:id/payments", h.Payment.RecordPayment)
	loans.GET("/:id/payments", h.Payment.GetPaymentsByLoanID)
	loans.GET("/:id/payments/:paymentId", h.Payment.GetPayment)
	loans.PUT("/:id/payments/:paymentId", h.Payment.UpdatePayment)
	loans.DELETE("/:id/payments/:paymentId", h.Payment.ReversePayment)

	// Documents
	loans.GET("/:id/documents", h.Document.GetDocuments)
	loans.POST("/:id/documents/:type", h.Document.GenerateDocument)
	loans.GET("/:id/payments/:paymentId/receipt", h.Document.GetReceipt)
	loans.GET("/:id/statement.csv", h.Document.GetStatementCSV)

	// Invoices
	invoices := protected.Group("/invoices")
	invoices.GET("", h.Invoice.GetInvoices)
	invoices.POST("/run", h.Invoice.RunInvoiceGeneration)
	invoices.GET("/:id", h.Invoice.GetInvoice)
	invoices.POST("/:id/issue", h.Invoice.IssueInvoice)
	invoices.POST("/:id/pay", h.Invoice.MarkInvoicePaid)
	invoices.POST("/:id/cancel", h.Invoice.CancelInvoice)
}
