package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenderwatch/internal/fraud/models"
	"tenderwatch/pkg/platform/sentinel"
)

// Schema is the DDL for the result tables, applied by integration tests and
// local tooling.
//
//go:embed schema.sql
var Schema string

// DBTX is satisfied by *sql.DB and *sql.Tx so the same store serves both the
// transactional run phase and the independent augmentation writes.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists fraud results in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed result store over a database
// handle or an open transaction.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertFlag(ctx context.Context, flag models.FraudFlag) error {
	evidence, err := json.Marshal(flag.Evidence)
	if err != nil {
		return fmt.Errorf("marshal flag evidence: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fraud_flags (id, tender_id, rule, score, evidence, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		flag.ID, flag.TenderID, string(flag.Rule), flag.Score, evidence, string(flag.Status), flag.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fraud flag: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertCluster(ctx context.Context, cluster models.FraudCluster) error {
	nodes, err := json.Marshal(cluster.ClusterNodes)
	if err != nil {
		return fmt.Errorf("marshal cluster nodes: %w", err)
	}
	evidence, err := json.Marshal(cluster.Evidence)
	if err != nil {
		return fmt.Errorf("marshal cluster evidence: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fraud_clusters (id, cluster_nodes, suspiciousness_score, total_amount, edge_density, evidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cluster.ID, nodes, cluster.SuspiciousnessScore, cluster.TotalAmount, cluster.EdgeDensity, evidence, cluster.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert fraud cluster: %w", err)
	}
	return nil
}

// ListFlags returns every flag, newest first.
func (s *PostgresStore) ListFlags(ctx context.Context) ([]models.FraudFlag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tender_id, rule, score, evidence, status, reviewed_by, reviewed_at, created_at
		 FROM fraud_flags ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list fraud flags: %w", err)
	}
	defer rows.Close()

	var flags []models.FraudFlag
	for rows.Next() {
		flag, err := scanFlag(rows.Scan)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud flags: %w", err)
	}
	return flags, nil
}

// ListClusters returns every cluster, newest first.
func (s *PostgresStore) ListClusters(ctx context.Context) ([]models.FraudCluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cluster_nodes, suspiciousness_score, total_amount, edge_density, evidence, created_at
		 FROM fraud_clusters ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list fraud clusters: %w", err)
	}
	defer rows.Close()

	var clusters []models.FraudCluster
	for rows.Next() {
		var (
			c        models.FraudCluster
			nodes    []byte
			evidence []byte
		)
		if err := rows.Scan(&c.ID, &nodes, &c.SuspiciousnessScore, &c.TotalAmount, &c.EdgeDensity, &evidence, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fraud cluster: %w", err)
		}
		if err := json.Unmarshal(nodes, &c.ClusterNodes); err != nil {
			return nil, fmt.Errorf("decode cluster nodes: %w", err)
		}
		if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
			return nil, fmt.Errorf("decode cluster evidence: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud clusters: %w", err)
	}
	return clusters, nil
}

// UpdateFlagReview sets the review fields on one flag and returns the updated
// row. Unknown ids map to sentinel.ErrNotFound.
func (s *PostgresStore) UpdateFlagReview(ctx context.Context, flagID uuid.UUID, status models.Status, reviewedBy string, reviewedAt time.Time) (*models.FraudFlag, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE fraud_flags SET status = $1, reviewed_by = $2, reviewed_at = $3
		 WHERE id = $4
		 RETURNING id, tender_id, rule, score, evidence, status, reviewed_by, reviewed_at, created_at`,
		string(status), reviewedBy, reviewedAt, flagID)

	flag, err := scanFlag(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update fraud flag: %w", err)
	}
	return &flag, nil
}

func scanFlag(scan func(dest ...any) error) (models.FraudFlag, error) {
	var (
		flag       models.FraudFlag
		rule       string
		evidence   []byte
		status     string
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	if err := scan(&flag.ID, &flag.TenderID, &rule, &flag.Score, &evidence, &status, &reviewedBy, &reviewedAt, &flag.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FraudFlag{}, err
		}
		return models.FraudFlag{}, fmt.Errorf("scan fraud flag: %w", err)
	}
	flag.Rule = models.Rule(rule)
	flag.Status = models.Status(status)
	if reviewedBy.Valid {
		v := reviewedBy.String
		flag.ReviewedBy = &v
	}
	if reviewedAt.Valid {
		v := reviewedAt.Time
		flag.ReviewedAt = &v
	}
	decoded, err := models.DecodeFlagEvidence(flag.Rule, evidence)
	if err != nil {
		return models.FraudFlag{}, err
	}
	flag.Evidence = decoded
	return flag, nil
}
