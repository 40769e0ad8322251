// Package document renders loan paperwork as PDF files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

var ErrIncompleteData = errors.New("document data is incomplete")

const (
	pageWidth   = 190.0 // A4 width minus 10mm margins
	lineHeight  = 6.0
	fontFamily  = "Helvetica"
	contentType = "application/pdf"
)

var titles = map[domain.DocumentType]string{
	domain.DocumentAgreement:             "Loan Agreement",
	domain.DocumentStatement:             "Loan Statement",
	domain.DocumentReceipt:               "Payment Receipt",
	domain.DocumentNOC:                   "No Objection Certificate",
	domain.DocumentInvoice:               "Installment Invoice",
	domain.DocumentSettlementCertificate: "Settlement Certificate",
}

// Title returns the heading printed on a document of type t
func Title(t domain.DocumentType) string {
	if title, ok := titles[t]; ok {
		return title
	}
	return "Document"
}

// PDFRenderer implements domain.DocumentRenderer with gofpdf
type PDFRenderer struct{}

// NewPDFRenderer creates a new PDFRenderer
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// ContentType returns the MIME type of rendered documents
func (r *PDFRenderer) ContentType() string {
	return contentType
}

// Render lays out the document described by data
func (r *PDFRenderer) Render(data *domain.DocumentData) ([]byte, error) {
	if err := checkData(data); err != nil {
		return nil, err
	}

	p := newPage(data)
	p.header()

	switch data.Type {
	case domain.DocumentAgreement:
		p.agreement()
	case domain.DocumentStatement:
		p.statement()
	case domain.DocumentReceipt:
		p.receipt()
	case domain.DocumentNOC:
		p.noc()
	case domain.DocumentInvoice:
		p.invoice()
	case domain.DocumentSettlementCertificate:
		p.settlementCertificate()
	default:
		return nil, domain.ErrDocumentTypeInvalid
	}
	p.footer()

	var buf bytes.Buffer
	if err := p.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func checkData(data *domain.DocumentData) error {
	if data == nil || data.Lender == nil || data.Customer == nil || data.Loan == nil {
		return ErrIncompleteData
	}
	switch data.Type {
	case domain.DocumentReceipt:
		if data.Payment == nil {
			return fmt.Errorf("%w: receipt without payment", ErrIncompleteData)
		}
	case domain.DocumentInvoice:
		if data.Invoice == nil {
			return fmt.Errorf("%w: invoice document without invoice", ErrIncompleteData)
		}
	case domain.DocumentSettlementCertificate:
		if data.Loan.Settlement == nil {
			return fmt.Errorf("%w: loan has no settlement", ErrIncompleteData)
		}
	}
	return nil
}

// page wraps a gofpdf document with the layout helpers shared by every type
type page struct {
	pdf  *gofpdf.Fpdf
	tr   func(string) string
	data *domain.DocumentData
}

func newPage(data *domain.DocumentData) *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(Title(data.Type)+" "+data.DocumentNumber, true)
	pdf.SetAuthor(data.Lender.BusinessName, true)
	pdf.SetCreator("lendora", false)
	pdf.SetCreationDate(data.GeneratedAt)
	pdf.AddPage()

	return &page{
		pdf:  pdf,
		tr:   pdf.UnicodeTranslatorFromDescriptor(""),
		data: data,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func (p *page) text(style string, size float64, s string) {
	p.pdf.SetFont(fontFamily, style, size)
	p.pdf.MultiCell(pageWidth, lineHeight, p.tr(s), "", "L", false)
}

func (p *page) heading(s string) {
	p.pdf.Ln(3)
	p.text("B", 12, s)
	p.pdf.Ln(1)
}

// field prints a label/value pair on one line
func (p *page) field(label, value string) {
	p.pdf.SetFont(fontFamily, "B", 10)
	p.pdf.CellFormat(60, lineHeight, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.SetFont(fontFamily, "", 10)
	p.pdf.CellFormat(pageWidth-60, lineHeight, p.tr(value), "", 1, "L", false, 0, "")
}

// table prints a header row followed by rows; widths must cover every column
func (p *page) table(widths []float64, header []string, rows [][]string) {
	p.pdf.SetFont(fontFamily, "B", 9)
	p.pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		p.pdf.CellFormat(widths[i], 7, p.tr(h), "1", 0, "C", true, 0, "")
	}
	p.pdf.Ln(-1)

	p.pdf.SetFont(fontFamily, "", 9)
	for _, row := range rows {
		for i, cell := range row {
			align := "R"
			if i == 0 {
				align = "C"
			}
			p.pdf.CellFormat(widths[i], 6, p.tr(cell), "1", 0, align, false, 0, "")
		}
		p.pdf.Ln(-1)
	}
}

func (p *page) header() {
	lender := p.data.Lender
	p.text("B", 16, lender.BusinessName)

	var contact []string
	for _, s := range []*string{lender.Address, lender.Phone, lender.Email} {
		if s != nil && *s != "" {
			contact = append(contact, *s)
		}
	}
	if len(contact) > 0 {
		p.text("", 9, strings.Join(contact, " | "))
	}
	if lender.RegistrationNumber != nil {
		p.text("", 9, "Registration No. "+*lender.RegistrationNumber)
	}

	p.pdf.Ln(4)
	p.text("B", 14, Title(p.data.Type))
	p.field("Document No.", p.data.DocumentNumber)
	p.field("Date", util.FormatDate(p.data.GeneratedAt))
	p.field("Loan No.", p.data.Loan.LoanNumber)
	p.field("Borrower", p.data.Customer.Name)
}

func (p *page) footer() {
	p.pdf.Ln(8)
	p.text("I", 8, "This is a computer generated document issued by "+p.data.Lender.BusinessName+".")
}

func (p *page) loanTerms() {
	loan := p.data.Loan
	p.heading("Loan Terms")
	p.field("Principal", money(loan.Principal))
	p.field("Monthly Interest Rate", loan.MonthlyInterestRate.String()+"%")
	p.field("Interest Type", string(loan.InterestType))
	p.field("Tenure", fmt.Sprintf("%d months", loan.DurationMonths))
	p.field("Monthly EMI", money(loan.MonthlyEMI))
	p.field("Total Amount Payable", money(loan.TotalAmountPayable))
	p.field("Total Interest", money(loan.TotalInterestAmount))
	p.field("Start Date", util.FormatDate(loan.StartDate))
	p.field("End Date", util.FormatDate(loan.EndDate))
}

func (p *page) agreement() {
	customer := p.data.Customer
	p.heading("Parties")
	p.text("", 10, fmt.Sprintf("This agreement is made between %s (the Lender) and %s (the Borrower).",
		p.data.Lender.BusinessName, customer.Name))
	p.field("Borrower Phone", customer.Phone)
	p.field("Borrower Address", optional(customer.Address))
	p.field("Borrower ID", optional(customer.NationalID))
	if p.data.Loan.Purpose != nil {
		p.field("Purpose", *p.data.Loan.Purpose)
	}

	p.loanTerms()

	p.heading("Repayment Schedule")
	rows := make([][]string, 0, len(p.data.Loan.Schedule))
	for _, e := range p.data.Loan.Schedule {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Month),
			util.FormatDate(e.DueDate),
			money(e.EMI),
			money(e.Principal),
			money(e.Interest),
			money(e.Balance),
		})
	}
	p.table([]float64{15, 35, 35, 35, 35, 35}, []string{"#", "Due Date", "EMI", "Principal", "Interest", "Balance"}, rows)

	p.heading("Signatures")
	p.pdf.Ln(10)
	p.pdf.SetFont(fontFamily, "", 10)
	p.pdf.CellFormat(95, lineHeight, "______________________", "", 0, "L", false, 0, "")
	p.pdf.CellFormat(95, lineHeight, "______________________", "", 1, "L", false, 0, "")
	p.pdf.CellFormat(95, lineHeight, p.tr("Lender"), "", 0, "L", false, 0, "")
	p.pdf.CellFormat(95, lineHeight, p.tr("Borrower"), "", 1, "L", false, 0, "")
}

func (p *page) statement() {
	loan := p.data.Loan
	p.loanTerms()

	p.heading("Account Summary")
	p.field("Status", string(loan.Status))
	p.field("Payments Received", fmt.Sprintf("%d", loan.PaymentsReceived))
	p.field("Remaining Balance", money(loan.RemainingBalance))

	p.heading("Payment History")
	if len(p.data.Payments) == 0 {
		p.text("", 10, "No payments recorded.")
		return
	}
	rows := make([][]string, 0, len(p.data.Payments))
	for _, pay := range p.data.Payments {
		rows = append(rows, []string{
			fmt.Sprintf("%d", pay.PaymentNumber),
			util.FormatDate(pay.PaymentDate),
			money(pay.AmountPaid),
			money(pay.PrincipalPortion),
			money(pay.InterestPortion),
			money(pay.BalanceAfterPayment),
		})
	}
	p.table([]float64{15, 35, 35, 35, 35, 35}, []string{"#", "Date", "Amount", "Principal", "Interest", "Balance"}, rows)
}

func (p *page) receipt() {
	pay := p.data.Payment
	p.heading("Payment Details")
	p.field("Payment No.", fmt.Sprintf("%d", pay.PaymentNumber))
	p.field("Payment Date", util.FormatDate(pay.PaymentDate))
	p.field("Amount Received", money(pay.AmountPaid))
	p.field("Towards Principal", money(pay.PrincipalPortion))
	p.field("Towards Interest", money(pay.InterestPortion))
	p.field("Balance After Payment", money(pay.BalanceAfterPayment))
	p.field("Method", pay.PaymentMethod)
	p.field("Reference", optional(pay.ReferenceID))
	if pay.BankDetails != nil {
		p.field("Bank", pay.BankDetails.BankName)
		p.field("Transaction ID", pay.BankDetails.TransactionID)
	}
}

func (p *page) noc() {
	loan := p.data.Loan
	p.heading("To Whom It May Concern")
	p.text("", 10, fmt.Sprintf(
		"This is to certify that %s has repaid loan %s in full. No amount is outstanding "+
			"against this loan and %s has no objection to the closure of the account.",
		p.data.Customer.Name, loan.LoanNumber, p.data.Lender.BusinessName))
	p.pdf.Ln(2)
	p.field("Principal", money(loan.Principal))
	p.field("Loan Period", util.FormatDate(loan.StartDate)+" to "+util.FormatDate(loan.EndDate))
	p.field("Final Status", string(loan.Status))
}

func (p *page) invoice() {
	inv := p.data.Invoice
	p.heading("Invoice")
	p.field("Invoice No.", inv.InvoiceNumber)
	p.field("Period", fmt.Sprintf("%02d/%d", inv.PeriodMonth, inv.PeriodYear))
	p.field("Due Date", util.FormatDate(inv.DueDate))
	p.field("Status", string(inv.Status))

	p.heading("Amounts")
	p.table([]float64{64, 63, 63}, []string{"Amount Due", "Amount Paid", "Balance Due"}, [][]string{
		{money(inv.AmountDue), money(inv.AmountPaid), money(inv.BalanceDue)},
	})
	p.pdf.Ln(2)
	p.field("Outstanding on Loan", money(p.data.Loan.RemainingBalance))
}

func (p *page) settlementCertificate() {
	s := p.data.Loan.Settlement
	p.heading("Settlement")
	p.text("", 10, fmt.Sprintf(
		"Loan %s of %s was foreclosed and settled in full on %s.",
		p.data.Loan.LoanNumber, p.data.Customer.Name, util.FormatDate(s.Date)))
	p.pdf.Ln(2)
	p.field("Outstanding Before Settlement", money(s.Balance))
	p.field("Discount", money(s.Discount))
	p.field("Settlement Amount", money(s.Amount))
	p.field("Payment Method", s.PaymentMethod)
	if s.Notes != nil {
		p.field("Notes", *s.Notes)
	}
}
