// Package store persists fraud flags and clusters. Flags and clusters from
// the rule/heuristic phase are written through a run-scoped transaction;
// community clusters from the collaborator arrive later as independent
// inserts.
package store

import (
	"context"

	"tenderwatch/internal/fraud/models"
)

// TxStore is the write surface available inside a run transaction.
type TxStore interface {
	InsertFlag(ctx context.Context, flag models.FraudFlag) error
	InsertCluster(ctx context.Context, cluster models.FraudCluster) error
}

// TxRunner executes fn inside one atomic transaction. A non-nil error from fn
// rolls back everything fn wrote.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx TxStore) error) error
}
