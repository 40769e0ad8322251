package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
)

// MockTransactor runs the callback directly; mocks have no rollback.
type MockTransactor struct {
	Calls      int
	WithinTxFn func(ctx context.Context, fn func(ctx context.Context) error) error
}

// NewMockTransactor creates a new MockTransactor
func NewMockTransactor() *MockTransactor {
	return &MockTransactor{}
}

// WithinTx invokes fn with the given context
func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return fn(ctx)
}

func cloneLoan(l *domain.Loan) *domain.Loan {
	c := *l
	c.Schedule = append([]domain.ScheduleEntry(nil), l.Schedule...)
	if l.Settlement != nil {
		s := *l.Settlement
		c.Settlement = &s
	}
	return &c
}

// MockLoanRepository is a mock implementation of domain.LoanRepository.
// Loans are copied on the way in and out so services only change stored
// state through Create and Update.
type MockLoanRepository struct {
	Loans       map[int32]*domain.Loan
	NextID      int32
	LockedIDs   []int32
	CreateFn    func(ctx context.Context, loan *domain.Loan) (*domain.Loan, error)
	GetByIDFn   func(ctx context.Context, id int32) (*domain.Loan, error)
	ListFn      func(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error)
	InvoiceFn   func(ctx context.Context) ([]*domain.Loan, error)
	UpdateFn    func(ctx context.Context, loan *domain.Loan) (*domain.Loan, error)
	UpdateCalls int
	mu          sync.Mutex
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		Loans:  make(map[int32]*domain.Loan),
		NextID: 1,
	}
}

// Create creates a new loan
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan.ID = m.NextID
	m.NextID++
	loan.CreatedAt = time.Now()
	loan.UpdatedAt = loan.CreatedAt
	m.Loans[loan.ID] = cloneLoan(loan)
	return cloneLoan(loan), nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id int32) (*domain.Loan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return cloneLoan(loan), nil
}

// GetByIDForUpdate records the lock and delegates to GetByID
func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id int32) (*domain.Loan, error) {
	m.mu.Lock()
	m.LockedIDs = append(m.LockedIDs, id)
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

// List retrieves loans matching the filter ordered by ID
func (m *MockLoanRepository) List(ctx context.Context, filter domain.LoanFilter) ([]*domain.Loan, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Loan{}
	for _, l := range m.Loans {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && l.CustomerID != filter.CustomerID {
			continue
		}
		result = append(result, cloneLoan(l))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ListInvoiceable retrieves active loans with an outstanding balance
func (m *MockLoanRepository) ListInvoiceable(ctx context.Context) ([]*domain.Loan, error) {
	if m.InvoiceFn != nil {
		return m.InvoiceFn(ctx)
	}
	loans, _ := m.List(ctx, domain.LoanFilter{Status: domain.LoanStatusActive})
	result := []*domain.Loan{}
	for _, l := range loans {
		if l.RemainingBalance.IsPositive() {
			result = append(result, l)
		}
	}
	return result, nil
}

// Update replaces a stored loan
func (m *MockLoanRepository) Update(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if _, ok := m.Loans[loan.ID]; !ok {
		return nil, domain.ErrLoanNotFound
	}
	loan.UpdatedAt = time.Now()
	m.Loans[loan.ID] = cloneLoan(loan)
	return cloneLoan(loan), nil
}

// AddLoan adds a loan directly to the mock (for test setup)
func (m *MockLoanRepository) AddLoan(loan *domain.Loan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.ID == 0 {
		loan.ID = m.NextID
	}
	if loan.ID >= m.NextID {
		m.NextID = loan.ID + 1
	}
	m.Loans[loan.ID] = cloneLoan(loan)
}

// Stored returns the current stored copy of a loan
func (m *MockLoanRepository) Stored(id int32) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.Loans[id]; ok {
		return cloneLoan(l)
	}
	return nil
}

// MockLoanPaymentRepository is a mock implementation of domain.LoanPaymentRepository
type MockLoanPaymentRepository struct {
	Payments  map[int32]*domain.LoanPayment
	NextID    int32
	CreateFn  func(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error)
	GetByIDFn func(ctx context.Context, id int32) (*domain.LoanPayment, error)
	UpdateFn  func(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error)
	DeleteFn  func(ctx context.Context, id int32) error
	mu        sync.Mutex
}

// NewMockLoanPaymentRepository creates a new MockLoanPaymentRepository
func NewMockLoanPaymentRepository() *MockLoanPaymentRepository {
	return &MockLoanPaymentRepository{
		Payments: make(map[int32]*domain.LoanPayment),
		NextID:   1,
	}
}

// Create stores a new payment
func (m *MockLoanPaymentRepository) Create(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment.ID = m.NextID
	m.NextID++
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	payment.UpdatedAt = payment.CreatedAt
	stored := *payment
	m.Payments[payment.ID] = &stored
	return payment, nil
}

// GetByID retrieves a payment by ID
func (m *MockLoanPaymentRepository) GetByID(ctx context.Context, id int32) (*domain.LoanPayment, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[id]
	if !ok {
		return nil, domain.ErrLoanPaymentNotFound
	}
	c := *p
	return &c, nil
}

// GetByLoanID retrieves payments for a loan ordered by payment number
func (m *MockLoanPaymentRepository) GetByLoanID(ctx context.Context, loanID int32) ([]*domain.LoanPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.LoanPayment{}
	for _, p := range m.Payments {
		if p.LoanID == loanID {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PaymentNumber == result[j].PaymentNumber {
			return result[i].ID < result[j].ID
		}
		return result[i].PaymentNumber < result[j].PaymentNumber
	})
	return result, nil
}

// Update replaces a stored payment
func (m *MockLoanPaymentRepository) Update(ctx context.Context, payment *domain.LoanPayment) (*domain.LoanPayment, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Payments[payment.ID]; !ok {
		return nil, domain.ErrLoanPaymentNotFound
	}
	payment.UpdatedAt = time.Now()
	stored := *payment
	m.Payments[payment.ID] = &stored
	return payment, nil
}

// Delete removes a payment
func (m *MockLoanPaymentRepository) Delete(ctx context.Context, id int32) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Payments[id]; !ok {
		return domain.ErrLoanPaymentNotFound
	}
	delete(m.Payments, id)
	return nil
}

// AddPayment adds a payment directly to the mock (for test setup)
func (m *MockLoanPaymentRepository) AddPayment(payment *domain.LoanPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment.ID == 0 {
		payment.ID = m.NextID
	}
	if payment.ID >= m.NextID {
		m.NextID = payment.ID + 1
	}
	stored := *payment
	m.Payments[payment.ID] = &stored
}

// MockInvoiceRepository is a mock implementation of domain.InvoiceRepository
type MockInvoiceRepository struct {
	Invoices     map[int32]*domain.Invoice
	NextID       int32
	CreateFn     func(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, error)
	ExistsFn     func(ctx context.Context, loanID int32, month, year int32) (bool, error)
	MarkOverdueN int64
	mu           sync.Mutex
}

// NewMockInvoiceRepository creates a new MockInvoiceRepository
func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{
		Invoices: make(map[int32]*domain.Invoice),
		NextID:   1,
	}
}

// Create stores an invoice, rejecting duplicates per loan and period
func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, invoice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.Invoices {
		if inv.LoanID == invoice.LoanID && inv.PeriodMonth == invoice.PeriodMonth && inv.PeriodYear == invoice.PeriodYear {
			return nil, domain.ErrInvoiceExists
		}
	}
	invoice.ID = m.NextID
	m.NextID++
	invoice.CreatedAt = time.Now()
	invoice.UpdatedAt = invoice.CreatedAt
	stored := *invoice
	m.Invoices[invoice.ID] = &stored
	return invoice, nil
}

// GetByID retrieves an invoice by ID
func (m *MockInvoiceRepository) GetByID(ctx context.Context, id int32) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.Invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	c := *inv
	return &c, nil
}

// ExistsForPeriod reports whether an invoice exists for the loan and period
func (m *MockInvoiceRepository) ExistsForPeriod(ctx context.Context, loanID int32, month, year int32) (bool, error) {
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, loanID, month, year)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.Invoices {
		if inv.LoanID == loanID && inv.PeriodMonth == month && inv.PeriodYear == year {
			return true, nil
		}
	}
	return false, nil
}

// List retrieves invoices matching the filter ordered by ID
func (m *MockInvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*domain.Invoice{}
	for _, inv := range m.Invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.LoanID != 0 && inv.LoanID != filter.LoanID {
			continue
		}
		c := *inv
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateStatus replaces a stored invoice's status and amounts
func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, invoice *domain.Invoice) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Invoices[invoice.ID]; !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	invoice.UpdatedAt = time.Now()
	stored := *invoice
	m.Invoices[invoice.ID] = &stored
	return invoice, nil
}

// MarkOverdue flags open invoices due before asOf
func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.Invoices {
		if inv.DueDate.Before(asOf) && inv.CanTransitionTo(domain.InvoiceStatusOverdue) {
			inv.Status = domain.InvoiceStatusOverdue
			n++
		}
	}
	m.MarkOverdueN += n
	return n, nil
}

// AddInvoice adds an invoice directly to the mock (for test setup)
func (m *MockInvoiceRepository) AddInvoice(invoice *domain.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if invoice.ID == 0 {
		invoice.ID = m.NextID
	}
	if invoice.ID >= m.NextID {
		m.NextID = invoice.ID + 1
	}
	stored := *invoice
	m.Invoices[invoice.ID] = &stored
}

// Count returns the number of stored invoices
func (m *MockInvoiceRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Invoices)
}

// MockCustomerRepository is a mock implementation of domain.CustomerRepository
type MockCustomerRepository struct {
	Customers map[int32]*domain.Customer
	NextID    int32
	GetByIDFn func(ctx context.Context, id int32) (*domain.Customer, error)
}

// NewMockCustomerRepository creates a new MockCustomerRepository
func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		Customers: make(map[int32]*domain.Customer),
		NextID:    1,
	}
}

// Create stores a new customer
func (m *MockCustomerRepository) Create(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	customer.ID = m.NextID
	m.NextID++
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt
	stored := *customer
	m.Customers[customer.ID] = &stored
	return customer, nil
}

// GetByID retrieves a customer by ID
func (m *MockCustomerRepository) GetByID(ctx context.Context, id int32) (*domain.Customer, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	c, ok := m.Customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

// List returns customers whose name or phone contains search
func (m *MockCustomerRepository) List(ctx context.Context, search string) ([]*domain.Customer, error) {
	search = strings.ToLower(search)
	result := []*domain.Customer{}
	for _, c := range m.Customers {
		if search == "" || strings.Contains(strings.ToLower(c.Name), search) || strings.Contains(c.Phone, search) {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Update replaces a stored customer
func (m *MockCustomerRepository) Update(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	if _, ok := m.Customers[customer.ID]; !ok {
		return nil, domain.ErrCustomerNotFound
	}
	customer.UpdatedAt = time.Now()
	stored := *customer
	m.Customers[customer.ID] = &stored
	return customer, nil
}

// AddCustomer adds a customer directly to the mock (for test setup)
func (m *MockCustomerRepository) AddCustomer(customer *domain.Customer) {
	if customer.ID == 0 {
		customer.ID = m.NextID
	}
	if customer.ID >= m.NextID {
		m.NextID = customer.ID + 1
	}
	stored := *customer
	m.Customers[customer.ID] = &stored
}

// MockLenderRepository is a mock implementation of domain.LenderRepository
type MockLenderRepository struct {
	Lender        *domain.Lender
	GetCalls      int
	GetOrCreateFn func(ctx context.Context, defaults *domain.Lender) (*domain.Lender, error)
}

// NewMockLenderRepository creates a new MockLenderRepository
func NewMockLenderRepository() *MockLenderRepository {
	return &MockLenderRepository{}
}

// GetOrCreate returns the stored lender or stores the defaults
func (m *MockLenderRepository) GetOrCreate(ctx context.Context, defaults *domain.Lender) (*domain.Lender, error) {
	m.GetCalls++
	if m.GetOrCreateFn != nil {
		return m.GetOrCreateFn(ctx, defaults)
	}
	if m.Lender == nil {
		l := *defaults
		l.ID = 1
		l.CreatedAt = time.Now()
		l.UpdatedAt = l.CreatedAt
		m.Lender = &l
	}
	c := *m.Lender
	return &c, nil
}

// Update replaces the stored lender
func (m *MockLenderRepository) Update(ctx context.Context, lender *domain.Lender) (*domain.Lender, error) {
	lender.UpdatedAt = time.Now()
	c := *lender
	m.Lender = &c
	return lender, nil
}

// MockSequenceRepository is an in-memory domain.SequenceRepository
type MockSequenceRepository struct {
	Values map[string]int64
	NextFn func(ctx context.Context, name string, year int) (int64, error)
	mu     sync.Mutex
}

// NewMockSequenceRepository creates a new MockSequenceRepository
func NewMockSequenceRepository() *MockSequenceRepository {
	return &MockSequenceRepository{Values: make(map[string]int64)}
}

// Next increments and returns the counter for name and year
func (m *MockSequenceRepository) Next(ctx context.Context, name string, year int) (int64, error) {
	if m.NextFn != nil {
		return m.NextFn(ctx, name, year)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s-%d", name, year)
	m.Values[key]++
	return m.Values[key], nil
}

// MockDocumentRepository is a mock implementation of domain.DocumentRepository
type MockDocumentRepository struct {
	Documents []*domain.Document
	NextID    int32
}

// NewMockDocumentRepository creates a new MockDocumentRepository
func NewMockDocumentRepository() *MockDocumentRepository {
	return &MockDocumentRepository{NextID: 1}
}

// Create stores a document record
func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	doc.ID = m.NextID
	m.NextID++
	doc.CreatedAt = time.Now()
	m.Documents = append(m.Documents, doc)
	return doc, nil
}

// GetByLoanID lists documents generated for a loan
func (m *MockDocumentRepository) GetByLoanID(ctx context.Context, loanID int32) ([]*domain.Document, error) {
	result := []*domain.Document{}
	for _, d := range m.Documents {
		if d.LoanID == loanID {
			result = append(result, d)
		}
	}
	return result, nil
}

// MockDocumentStore keeps uploaded objects in memory
type MockDocumentStore struct {
	Objects  map[string][]byte
	UploadFn func(ctx context.Context, key string, data []byte, contentType string) error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{Objects: make(map[string][]byte)}
}

// Upload stores the object
func (m *MockDocumentStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if m.UploadFn != nil {
		return m.UploadFn(ctx, key, data, contentType)
	}
	m.Objects[key] = data
	return nil
}

// Download returns a stored object
func (m *MockDocumentStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.Objects[key]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "object not found")
	}
	return data, nil
}

// Delete removes a stored object
func (m *MockDocumentStore) Delete(ctx context.Context, key string) error {
	delete(m.Objects, key)
	return nil
}

// MockDocumentRenderer records what it was asked to render
type MockDocumentRenderer struct {
	Rendered []*domain.DocumentData
	RenderFn func(data *domain.DocumentData) ([]byte, error)
}

// Render returns a small fake document
func (m *MockDocumentRenderer) Render(data *domain.DocumentData) ([]byte, error) {
	m.Rendered = append(m.Rendered, data)
	if m.RenderFn != nil {
		return m.RenderFn(data)
	}
	return []byte("%PDF-" + string(data.Type) + "-" + data.DocumentNumber), nil
}

// ContentType returns the PDF media type
func (m *MockDocumentRenderer) ContentType() string {
	return "application/pdf"
}

// MockEventPublisher captures published events
type MockEventPublisher struct {
	Events []websocket.Event
	mu     sync.Mutex
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Types returns the types of all captured events in order
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.Type)
	}
	return types
}
