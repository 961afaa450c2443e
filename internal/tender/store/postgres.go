// Package store provides read access to the tender ledger. The engine never
// writes tenders; ingestion is owned by the intake service.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tenderwatch/internal/tender/models"
)

const tenderColumns = `id, tender_number, title, contractor, contractor_id, amount, date, category, department, beneficiary_id, phone, address`

// PostgresStore reads tenders from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tender store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// All returns every tender, oldest first so downstream grouping sees a stable
// insertion order.
func (s *PostgresStore) All(ctx context.Context) ([]models.Tender, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenderColumns+` FROM tenders ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	defer rows.Close()
	return scanTenders(rows)
}

// ByDateRange returns tenders dated within [from, to], oldest first.
func (s *PostgresStore) ByDateRange(ctx context.Context, from, to time.Time) ([]models.Tender, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenderColumns+` FROM tenders WHERE date >= $1 AND date <= $2 ORDER BY date, id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list tenders by date range: %w", err)
	}
	defer rows.Close()
	return scanTenders(rows)
}

// ByCategory returns tenders in one category, oldest first.
func (s *PostgresStore) ByCategory(ctx context.Context, category string) ([]models.Tender, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenderColumns+` FROM tenders WHERE category = $1 ORDER BY date, id`,
		category)
	if err != nil {
		return nil, fmt.Errorf("list tenders by category: %w", err)
	}
	defer rows.Close()
	return scanTenders(rows)
}

func scanTenders(rows *sql.Rows) ([]models.Tender, error) {
	var tenders []models.Tender
	for rows.Next() {
		var (
			t            models.Tender
			contractorID sql.NullString
			category     sql.NullString
			department   sql.NullString
			beneficiary  sql.NullString
			phone        sql.NullString
			address      sql.NullString
		)
		if err := rows.Scan(
			&t.ID,
			&t.TenderNumber,
			&t.Title,
			&t.ContractorName,
			&contractorID,
			&t.Amount,
			&t.Date,
			&category,
			&department,
			&beneficiary,
			&phone,
			&address,
		); err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		t.ContractorID = nullable(contractorID)
		t.Category = nullable(category)
		t.Department = nullable(department)
		t.BeneficiaryID = nullable(beneficiary)
		t.Phone = nullable(phone)
		t.Address = nullable(address)
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenders: %w", err)
	}
	return tenders, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
