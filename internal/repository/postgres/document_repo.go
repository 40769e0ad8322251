package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, type, document_number, loan_id, storage_key, created_at`

// DocumentRepository implements domain.DocumentRepository using PostgreSQL
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Create records a generated document
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	query := `
		INSERT INTO documents (type, document_number, loan_id, storage_key)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + documentColumns

	row := conn(ctx, r.pool).QueryRow(ctx, query, string(doc.Type), doc.DocumentNumber, doc.LoanID, ptrToPgText(doc.StorageKey))
	created, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return created, nil
}

// GetByLoanID retrieves the documents of a loan, newest first
func (r *DocumentRepository) GetByLoanID(ctx context.Context, loanID int32) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE loan_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var (
		d          domain.Document
		docType    string
		storageKey pgtype.Text
	)
	if err := row.Scan(&d.ID, &docType, &d.DocumentNumber, &d.LoanID, &storageKey, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Type = domain.DocumentType(docType)
	d.StorageKey = pgTextToPtr(storageKey)
	return &d, nil
}
