// Package service orchestrates fraud detection runs and the review workflow.
// A run reads the tender ledger, evaluates the rule set and the local cluster
// heuristic, persists everything atomically, then asks the external graph
// service for community-detected clusters on a best-effort basis.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tenderwatch/internal/fraud/engine"
	"tenderwatch/internal/fraud/graphclient"
	"tenderwatch/internal/fraud/metrics"
	"tenderwatch/internal/fraud/models"
	"tenderwatch/internal/fraud/store"
	"tenderwatch/internal/platform/redis"
	tendermodels "tenderwatch/internal/tender/models"
	dErrors "tenderwatch/pkg/domain-errors"
	"tenderwatch/pkg/platform/audit"
	"tenderwatch/pkg/platform/audit/publisher"
	"tenderwatch/pkg/platform/sentinel"
	"tenderwatch/pkg/requestcontext"
)

// localClusterReason is the evidence reason stored with heuristic clusters.
const localClusterReason = "shared phone/address/beneficiary"

const (
	cacheKeyFlags    = "fraud:flags"
	cacheKeyClusters = "fraud:clusters"
	cacheTTL         = 60 * time.Second
)

// TenderStore is the read-only view of the tender ledger a run needs.
type TenderStore interface {
	All(ctx context.Context) ([]tendermodels.Tender, error)
	ByDateRange(ctx context.Context, from, to time.Time) ([]tendermodels.Tender, error)
}

// ResultsStore reads persisted detection results and applies reviews.
// InsertCluster is used outside the run transaction for collaborator clusters.
type ResultsStore interface {
	ListFlags(ctx context.Context) ([]models.FraudFlag, error)
	ListClusters(ctx context.Context) ([]models.FraudCluster, error)
	UpdateFlagReview(ctx context.Context, flagID uuid.UUID, status models.Status, reviewedBy string, reviewedAt time.Time) (*models.FraudFlag, error)
	InsertCluster(ctx context.Context, cluster models.FraudCluster) error
}

// GraphAnalyzer is the community-detection collaborator. May be nil when the
// service is not configured; every failure is treated as best-effort.
type GraphAnalyzer interface {
	AnalyzeGraph(ctx context.Context, req graphclient.Request) (*graphclient.Response, error)
}

// Config carries the tunable rule parameters.
type Config struct {
	RepeatWinnerThreshold  int
	PriceOutlierMultiplier float64
}

// Deps collects the service's collaborators. Graph, Cache, and Audit are
// optional; the service degrades gracefully without them.
type Deps struct {
	Tenders TenderStore
	Results ResultsStore
	Tx      store.TxRunner
	Graph   GraphAnalyzer
	Cache   *redis.Client
	Audit   *publisher.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Service struct {
	tenders TenderStore
	results ResultsStore
	tx      store.TxRunner
	graph   GraphAnalyzer
	cache   *redis.Client
	auditor *publisher.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		tenders: deps.Tenders,
		results: deps.Results,
		tx:      deps.Tx,
		graph:   deps.Graph,
		cache:   deps.Cache,
		auditor: deps.Audit,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		cfg:     cfg,
	}
}

// RunSummary reports what a detection run wrote. ClustersCreated counts only
// the heuristic clusters persisted inside the run transaction; collaborator
// communities land later and are excluded.
type RunSummary struct {
	ClustersCreated int
}

// RunDetection executes one full detection pass over the tender ledger.
// Rule flags and heuristic clusters commit atomically; if any insert fails the
// whole run rolls back. The collaborator call happens after commit and can
// never fail the run.
func (s *Service) RunDetection(ctx context.Context) (RunSummary, error) {
	started := time.Now()
	now := requestcontext.Now(ctx)

	s.emitAudit(ctx, audit.ActionDetectionRunStarted, "", nil)

	all, err := s.tenders.All(ctx)
	if err != nil {
		return s.failRun(ctx, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tender ledger"))
	}
	windowStart := now.AddDate(0, 0, -engine.RepeatWinnerWindowDays)
	windowed, err := s.tenders.ByDateRange(ctx, windowStart, now)
	if err != nil {
		return s.failRun(ctx, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read tender window"))
	}

	var findings []engine.Finding
	findings = append(findings, engine.EvaluateRepeatWinners(windowed, s.cfg.RepeatWinnerThreshold)...)
	findings = append(findings, engine.EvaluatePriceOutliers(all, s.cfg.PriceOutlierMultiplier)...)
	findings = append(findings, engine.EvaluateDuplicateBeneficiaries(all)...)

	graph := engine.BuildGraph(all)
	localClusters := graph.LocalClusters()

	err = s.tx.RunInTx(ctx, func(tx store.TxStore) error {
		for _, f := range findings {
			flag := models.FraudFlag{
				ID:        uuid.New(),
				TenderID:  f.TenderID,
				Rule:      f.Rule,
				Score:     f.Score,
				Evidence:  f.Evidence,
				Status:    models.StatusPending,
				CreatedAt: now,
			}
			if err := tx.InsertFlag(ctx, flag); err != nil {
				return fmt.Errorf("insert %s flag for tender %s: %w", f.Rule, f.TenderID, err)
			}
		}
		for _, c := range localClusters {
			cluster := models.FraudCluster{
				ID:                  uuid.New(),
				ClusterNodes:        c.Nodes,
				SuspiciousnessScore: c.Score,
				TotalAmount:         c.TotalAmount,
				EdgeDensity:         c.EdgeDensity,
				Evidence:            models.ClusterEvidence{Reason: localClusterReason},
				CreatedAt:           now,
			}
			if err := tx.InsertCluster(ctx, cluster); err != nil {
				return fmt.Errorf("insert cluster %v: %w", c.Nodes, err)
			}
		}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist detection results"))
	}

	ruleCounts := make(map[models.Rule]int)
	for _, f := range findings {
		ruleCounts[f.Rule]++
	}
	for rule, n := range ruleCounts {
		s.metrics.AddFlags(string(rule), n)
	}
	s.metrics.AddClusters(string(models.ClusterSourceLocal), len(localClusters))

	outcome := "ok"
	if !s.augmentWithCommunities(ctx, graph, now) {
		outcome = "degraded"
	}

	s.metrics.IncrementRunOutcome(outcome)
	s.metrics.ObserveRunLatency(time.Since(started))
	s.invalidateCache(ctx)
	s.emitAudit(ctx, audit.ActionDetectionRunCompleted, "", map[string]string{
		"flags_created":    fmt.Sprintf("%d", len(findings)),
		"clusters_created": fmt.Sprintf("%d", len(localClusters)),
		"outcome":          outcome,
	})

	s.logger.InfoContext(ctx, "detection run completed",
		"flags", len(findings),
		"clusters", len(localClusters),
		"tenders", len(all),
		"outcome", outcome,
		"duration", time.Since(started).String(),
	)

	return RunSummary{ClustersCreated: len(localClusters)}, nil
}

// augmentWithCommunities sends the contractor graph to the collaborator and
// persists any community of two or more members as an extra cluster. Every
// failure here, including partial insert failures, is logged and swallowed.
// Returns false when the collaborator was wanted but did not deliver.
func (s *Service) augmentWithCommunities(ctx context.Context, graph *engine.Graph, now time.Time) bool {
	if s.graph == nil {
		return true
	}
	edges := graph.Edges()
	if len(edges) == 0 {
		return true
	}

	req := graphclient.Request{
		Nodes: make([]graphclient.Node, 0, graph.Size()),
		Edges: make([]graphclient.Edge, 0, len(edges)),
	}
	for _, node := range graph.Nodes() {
		req.Nodes = append(req.Nodes, graphclient.Node{
			ID:    node.ContractorID,
			Type:  "contractor",
			Label: node.DisplayName,
		})
	}
	for _, e := range edges {
		req.Edges = append(req.Edges, graphclient.Edge{
			Source: e.Source,
			Target: e.Target,
			Type:   string(e.Type),
		})
	}

	callStart := time.Now()
	resp, err := s.graph.AnalyzeGraph(ctx, req)
	s.metrics.ObserveGraphCallLatency(time.Since(callStart))
	if err != nil {
		s.logger.WarnContext(ctx, "graph service unavailable, skipping community detection", "error", err)
		return false
	}

	persisted := 0
	for _, community := range resp.Communities {
		if len(community) < 2 {
			continue
		}
		cluster := models.FraudCluster{
			ID:                  uuid.New(),
			ClusterNodes:        community,
			SuspiciousnessScore: 0.8,
			TotalAmount:         0,
			EdgeDensity:         1.0,
			Evidence: models.ClusterEvidence{
				Reason: "graph community detection",
				Method: "greedy_modularity",
			},
			CreatedAt: now,
		}
		if err := s.results.InsertCluster(ctx, cluster); err != nil {
			s.logger.WarnContext(ctx, "failed to persist community cluster", "nodes", community, "error", err)
			continue
		}
		persisted++
	}
	s.metrics.AddClusters(string(models.ClusterSourceCommunity), persisted)

	if len(resp.SuspiciousNodes) > 0 {
		s.logger.InfoContext(ctx, "graph service reported suspicious nodes",
			"count", len(resp.SuspiciousNodes),
			"nodes", suspiciousSummary(resp.SuspiciousNodes),
		)
	}
	return true
}

func suspiciousSummary(nodes []graphclient.SuspiciousNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fmt.Sprintf("%s=%.3f", n.ID, n.Score))
	}
	return out
}

func (s *Service) failRun(ctx context.Context, err error) (RunSummary, error) {
	s.metrics.IncrementRunOutcome("error")
	s.emitAudit(ctx, audit.ActionDetectionRunFailed, "", map[string]string{
		"error": err.Error(),
	})
	return RunSummary{}, err
}

// ListFlags returns every flag, newest first, reading through the optional
// cache. Cache failures never fail the read.
func (s *Service) ListFlags(ctx context.Context) ([]models.FraudFlag, error) {
	if flags, ok := s.cachedFlags(ctx); ok {
		return flags, nil
	}
	flags, err := s.results.ListFlags(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list fraud flags")
	}
	s.storeCachedFlags(ctx, flags)
	return flags, nil
}

// ListClusters returns every cluster, newest first, reading through the
// optional cache.
func (s *Service) ListClusters(ctx context.Context) ([]models.FraudCluster, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKeyClusters).Bytes(); err == nil {
			var clusters []models.FraudCluster
			if err := json.Unmarshal(raw, &clusters); err == nil {
				return clusters, nil
			}
		}
	}
	clusters, err := s.results.ListClusters(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list fraud clusters")
	}
	if s.cache != nil {
		if raw, err := json.Marshal(clusters); err == nil {
			if err := s.cache.Set(ctx, cacheKeyClusters, raw, cacheTTL).Err(); err != nil {
				s.logger.DebugContext(ctx, "cluster cache write failed", "error", err)
			}
		}
	}
	return clusters, nil
}

// ReviewFlag records an admin verdict on a flag and returns the updated row.
// When reviewedBy is empty the authenticated user id is recorded instead.
func (s *Service) ReviewFlag(ctx context.Context, flagID uuid.UUID, status models.Status, reviewedBy string) (*models.FraudFlag, error) {
	if status == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "status is required")
	}
	if reviewedBy == "" {
		reviewedBy = requestcontext.UserID(ctx)
	}
	now := requestcontext.Now(ctx)

	updated, err := s.results.UpdateFlagReview(ctx, flagID, status, reviewedBy, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "fraud flag not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update fraud flag")
	}

	s.invalidateCache(ctx)
	s.emitAudit(ctx, audit.ActionFlagReviewed, flagID.String(), map[string]string{
		"status":      string(status),
		"reviewed_by": reviewedBy,
	})
	return updated, nil
}

// cachedFlag is the cache wire shape for a flag. Evidence round-trips as raw
// JSON because the in-memory representation is a typed union keyed by rule.
type cachedFlag struct {
	ID         uuid.UUID       `json:"id"`
	TenderID   uuid.UUID       `json:"tender_id"`
	Rule       models.Rule     `json:"rule"`
	Score      float64         `json:"score"`
	Evidence   json.RawMessage `json:"evidence"`
	Status     models.Status   `json:"status"`
	ReviewedBy *string         `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (s *Service) cachedFlags(ctx context.Context) ([]models.FraudFlag, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKeyFlags).Bytes()
	if err != nil {
		return nil, false
	}
	var cached []cachedFlag
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false
	}
	flags := make([]models.FraudFlag, 0, len(cached))
	for _, c := range cached {
		evidence, err := models.DecodeFlagEvidence(c.Rule, c.Evidence)
		if err != nil {
			return nil, false
		}
		flags = append(flags, models.FraudFlag{
			ID:         c.ID,
			TenderID:   c.TenderID,
			Rule:       c.Rule,
			Score:      c.Score,
			Evidence:   evidence,
			Status:     c.Status,
			ReviewedBy: c.ReviewedBy,
			ReviewedAt: c.ReviewedAt,
			CreatedAt:  c.CreatedAt,
		})
	}
	return flags, true
}

func (s *Service) storeCachedFlags(ctx context.Context, flags []models.FraudFlag) {
	if s.cache == nil {
		return
	}
	cached := make([]cachedFlag, 0, len(flags))
	for _, f := range flags {
		evidence, err := json.Marshal(f.Evidence)
		if err != nil {
			return
		}
		cached = append(cached, cachedFlag{
			ID:         f.ID,
			TenderID:   f.TenderID,
			Rule:       f.Rule,
			Score:      f.Score,
			Evidence:   evidence,
			Status:     f.Status,
			ReviewedBy: f.ReviewedBy,
			ReviewedAt: f.ReviewedAt,
			CreatedAt:  f.CreatedAt,
		})
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyFlags, raw, cacheTTL).Err(); err != nil {
		s.logger.DebugContext(ctx, "flag cache write failed", "error", err)
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyFlags, cacheKeyClusters).Err(); err != nil {
		s.logger.DebugContext(ctx, "cache invalidation failed", "error", err)
	}
}

func (s *Service) emitAudit(ctx context.Context, action audit.Action, subject string, detail map[string]string) {
	s.auditor.Emit(audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     requestcontext.UserID(ctx),
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
		Detail:    detail,
	})
}
