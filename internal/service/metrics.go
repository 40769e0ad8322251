package service

import "time"

// Metrics receives business counters from the services
type Metrics interface {
	RecordLoanCreated(interestType string)
	RecordLoanTransition(status string)
	RecordPayment(kind string)
	RecordPaymentReversed()
	RecordInvoiceRun(generated, skipped, failed int, elapsed time.Duration)
}

// NoOpMetrics discards everything
type NoOpMetrics struct{}

func (NoOpMetrics) RecordLoanCreated(string) {}
func (NoOpMetrics) RecordLoanTransition(string) {}
func (NoOpMetrics) RecordPayment(string) {}
func (NoOpMetrics) RecordPaymentReversed() {}
func (NoOpMetrics) RecordInvoiceRun(int, int, int, time.Duration) {}
