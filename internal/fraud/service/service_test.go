package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tenderwatch/internal/fraud/graphclient"
	"tenderwatch/internal/fraud/models"
	fraudstore "tenderwatch/internal/fraud/store"
	tendermodels "tenderwatch/internal/tender/models"
	tenderstore "tenderwatch/internal/tender/store"
	dErrors "tenderwatch/pkg/domain-errors"
	"tenderwatch/pkg/platform/audit"
	"tenderwatch/pkg/platform/audit/publisher"
	auditmemory "tenderwatch/pkg/platform/audit/sink/memory"
	"tenderwatch/pkg/requestcontext"
)

type graphStub struct {
	resp    *graphclient.Response
	err     error
	lastReq *graphclient.Request
}

func (g *graphStub) AnalyzeGraph(_ context.Context, req graphclient.Request) (*graphclient.Response, error) {
	g.lastReq = &req
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

// brokenTxStore fails the first flag insert, exercising the rollback path.
type brokenTxStore struct{}

func (brokenTxStore) InsertFlag(context.Context, models.FraudFlag) error {
	return errors.New("disk full")
}

func (brokenTxStore) InsertCluster(context.Context, models.FraudCluster) error {
	return errors.New("disk full")
}

type brokenTxRunner struct{}

func (brokenTxRunner) RunInTx(_ context.Context, fn func(tx fraudstore.TxStore) error) error {
	return fn(brokenTxStore{})
}

type ServiceSuite struct {
	suite.Suite
	tenders   *tenderstore.MemoryStore
	results   *fraudstore.MemoryStore
	auditSink *auditmemory.Sink
	service   *Service
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.tenders = tenderstore.NewMemory()
	s.results = fraudstore.NewMemory()
	s.auditSink = auditmemory.New()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.service = s.newService(nil)
}

func (s *ServiceSuite) newService(graph GraphAnalyzer) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(Deps{
		Tenders: s.tenders,
		Results: s.results,
		Tx:      s.results,
		Graph:   graph,
		Audit:   publisher.NewPublisher(s.auditSink, logger),
		Logger:  logger,
	}, Config{RepeatWinnerThreshold: 5, PriceOutlierMultiplier: 3})
}

func (s *ServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithUserID(ctx, "admin-1")
	return requestcontext.WithRole(ctx, "admin")
}

func strPtr(v string) *string { return &v }

func (s *ServiceSuite) tender(contractorID string, amount float64, daysAgo int) tendermodels.Tender {
	t := tendermodels.Tender{
		ID:             uuid.New(),
		TenderNumber:   "TN-" + uuid.NewString()[:8],
		Title:          "works",
		ContractorName: contractorID + " Ltd",
		Amount:         amount,
		Date:           s.now.AddDate(0, 0, -daysAgo),
	}
	if contractorID != "" {
		t.ContractorID = strPtr(contractorID)
	}
	return t
}

// seedMixedLedger seeds one example per detector:
//   - ACME wins 5 tenders inside the window and shares a phone with BETA
//   - one roads tender is priced far above its category
//   - two tenders pay the same beneficiary
//   - GAMMA is unrelated to everyone
func (s *ServiceSuite) seedMixedLedger() {
	for i := 0; i < 5; i++ {
		t := s.tender("ACME", 1000, 10+i)
		t.Phone = strPtr("555-0100")
		s.tenders.Seed(t)
	}
	beta := s.tender("BETA", 500, 20)
	beta.Phone = strPtr("555-0100")
	s.tenders.Seed(beta)
	gamma := s.tender("GAMMA", 300, 30)
	s.tenders.Seed(gamma)

	for i := 0; i < 11; i++ {
		t := s.tender("", 100, 40)
		t.Category = strPtr("roads")
		s.tenders.Seed(t)
	}
	outlier := s.tender("", 13300, 41)
	outlier.Category = strPtr("roads")
	s.tenders.Seed(outlier)

	for i := 0; i < 2; i++ {
		t := s.tender("", 200, 50)
		t.BeneficiaryID = strPtr("BEN-1")
		s.tenders.Seed(t)
	}
}

func (s *ServiceSuite) TestRunDetection() {
	s.Run("full run persists flags and local clusters", func() {
		s.SetupTest()
		s.seedMixedLedger()

		summary, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		s.Equal(2, summary.ClustersCreated)

		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)
		byRule := make(map[models.Rule][]models.FraudFlag)
		for _, f := range flags {
			s.Equal(models.StatusPending, f.Status)
			byRule[f.Rule] = append(byRule[f.Rule], f)
		}
		s.Len(byRule[models.RuleRepeatWinner], 5)
		s.Len(byRule[models.RulePriceOutlier], 1)
		s.Len(byRule[models.RuleDuplicateBeneficiary], 2)

		winner := byRule[models.RuleRepeatWinner][0]
		s.InDelta(math.Log10(6)/2, winner.Score, 1e-9)
		evidence, ok := winner.Evidence.(models.RepeatWinnerEvidence)
		s.Require().True(ok)
		s.Equal(5, evidence.Wins)
		s.Equal("ACME Ltd", evidence.ContractorName)

		clusters, err := s.results.ListClusters(context.Background())
		s.Require().NoError(err)
		s.Require().Len(clusters, 2)
		nodeSets := [][]string{clusters[0].ClusterNodes, clusters[1].ClusterNodes}
		s.Contains(nodeSets, []string{"ACME", "BETA"})
		s.Contains(nodeSets, []string{"GAMMA"})
		for _, c := range clusters {
			s.Equal("shared phone/address/beneficiary", c.Evidence.Reason)
			s.Empty(c.Evidence.Method)
		}
	})

	s.Run("re-running appends a second generation of rows", func() {
		s.SetupTest()
		s.seedMixedLedger()

		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		_, err = s.service.RunDetection(s.ctx())
		s.Require().NoError(err)

		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)
		s.Len(flags, 16)

		clusters, err := s.results.ListClusters(context.Background())
		s.Require().NoError(err)
		s.Len(clusters, 4)
	})

	s.Run("repeat winner window excludes old tenders", func() {
		s.SetupTest()
		for i := 0; i < 5; i++ {
			s.tenders.Seed(s.tender("OLD", 1000, 400+i))
		}

		summary, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		// OLD is still a graph node, so its singleton cluster persists.
		s.Equal(1, summary.ClustersCreated)

		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)
		s.Empty(flags)
	})

	s.Run("empty ledger yields no rows", func() {
		s.SetupTest()
		summary, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		s.Equal(0, summary.ClustersCreated)

		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)
		s.Empty(flags)
	})

	s.Run("insert failure rolls back and fails the run", func() {
		s.SetupTest()
		s.seedMixedLedger()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := NewService(Deps{
			Tenders: s.tenders,
			Results: s.results,
			Tx:      brokenTxRunner{},
			Audit:   publisher.NewPublisher(s.auditSink, logger),
			Logger:  logger,
		}, Config{RepeatWinnerThreshold: 5, PriceOutlierMultiplier: 3})

		_, err := svc.RunDetection(s.ctx())
		s.Require().Error(err)
		s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))

		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)
		s.Empty(flags)
	})

	s.Run("emits run audit events", func() {
		s.SetupTest()
		s.seedMixedLedger()

		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)

		var actions []audit.Action
		for _, e := range s.auditSink.Events() {
			actions = append(actions, e.Action)
			s.Equal("admin-1", e.Actor)
		}
		s.Contains(actions, audit.ActionDetectionRunStarted)
		s.Contains(actions, audit.ActionDetectionRunCompleted)
	})
}

func (s *ServiceSuite) TestCommunityAugmentation() {
	s.Run("collaborator communities persist with fixed scoring", func() {
		s.SetupTest()
		s.seedMixedLedger()
		stub := &graphStub{resp: &graphclient.Response{
			Communities: [][]string{{"ACME", "BETA", "GAMMA"}, {"LONER"}},
			SuspiciousNodes: []graphclient.SuspiciousNode{
				{ID: "ACME", Score: 0.91},
			},
		}}
		svc := s.newService(stub)

		summary, err := svc.RunDetection(s.ctx())
		s.Require().NoError(err)
		// Collaborator clusters are excluded from the run summary.
		s.Equal(2, summary.ClustersCreated)

		s.Require().NotNil(stub.lastReq)
		s.Len(stub.lastReq.Nodes, 3)
		s.Require().Len(stub.lastReq.Edges, 1)
		s.Equal("shared_phone", stub.lastReq.Edges[0].Type)

		clusters, err := s.results.ListClusters(context.Background())
		s.Require().NoError(err)
		s.Require().Len(clusters, 3)

		var community *models.FraudCluster
		for i := range clusters {
			if clusters[i].Evidence.Method != "" {
				community = &clusters[i]
			}
		}
		s.Require().NotNil(community, "expected one community cluster")
		s.Equal([]string{"ACME", "BETA", "GAMMA"}, community.ClusterNodes)
		s.InDelta(0.8, community.SuspiciousnessScore, 1e-9)
		s.Zero(community.TotalAmount)
		s.InDelta(1.0, community.EdgeDensity, 1e-9)
		s.Equal("graph community detection", community.Evidence.Reason)
		s.Equal("greedy_modularity", community.Evidence.Method)
	})

	s.Run("collaborator outage degrades but does not fail the run", func() {
		s.SetupTest()
		s.seedMixedLedger()
		stub := &graphStub{err: errors.New("connection refused")}
		svc := s.newService(stub)

		summary, err := svc.RunDetection(s.ctx())
		s.Require().NoError(err)
		s.Equal(2, summary.ClustersCreated)

		clusters, err := s.results.ListClusters(context.Background())
		s.Require().NoError(err)
		s.Len(clusters, 2)
	})

	s.Run("collaborator is skipped when the graph has no edges", func() {
		s.SetupTest()
		s.tenders.Seed(s.tender("SOLO", 100, 10))
		stub := &graphStub{err: errors.New("should not be called")}
		svc := s.newService(stub)

		_, err := svc.RunDetection(s.ctx())
		s.Require().NoError(err)
		s.Nil(stub.lastReq)
	})
}

func (s *ServiceSuite) TestListReads() {
	s.Run("lists flow through without a cache", func() {
		s.SetupTest()
		s.seedMixedLedger()
		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)

		flags, err := s.service.ListFlags(context.Background())
		s.Require().NoError(err)
		s.Len(flags, 8)

		clusters, err := s.service.ListClusters(context.Background())
		s.Require().NoError(err)
		s.Len(clusters, 2)
	})
}

func (s *ServiceSuite) TestReviewFlag() {
	s.Run("records verdict and returns updated row", func() {
		s.SetupTest()
		s.seedMixedLedger()
		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)

		updated, err := s.service.ReviewFlag(s.ctx(), flags[0].ID, models.StatusConfirmed, "auditor-7")
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, updated.Status)
		s.Require().NotNil(updated.ReviewedBy)
		s.Equal("auditor-7", *updated.ReviewedBy)
		s.Require().NotNil(updated.ReviewedAt)
		s.True(updated.ReviewedAt.Equal(s.now))
	})

	s.Run("defaults reviewer to the authenticated user", func() {
		s.SetupTest()
		s.seedMixedLedger()
		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)

		updated, err := s.service.ReviewFlag(s.ctx(), flags[0].ID, models.StatusDismissed, "")
		s.Require().NoError(err)
		s.Require().NotNil(updated.ReviewedBy)
		s.Equal("admin-1", *updated.ReviewedBy)
	})

	s.Run("missing status is a validation error", func() {
		s.SetupTest()
		_, err := s.service.ReviewFlag(s.ctx(), uuid.New(), "", "auditor-7")
		s.Require().Error(err)
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("unknown flag is not found", func() {
		s.SetupTest()
		_, err := s.service.ReviewFlag(s.ctx(), uuid.New(), models.StatusConfirmed, "auditor-7")
		s.Require().Error(err)
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	s.Run("emits review audit event", func() {
		s.SetupTest()
		s.seedMixedLedger()
		_, err := s.service.RunDetection(s.ctx())
		s.Require().NoError(err)
		flags, err := s.results.ListFlags(context.Background())
		s.Require().NoError(err)

		_, err = s.service.ReviewFlag(s.ctx(), flags[0].ID, models.StatusConfirmed, "auditor-7")
		s.Require().NoError(err)

		events := s.auditSink.Events()
		last := events[len(events)-1]
		s.Equal(audit.ActionFlagReviewed, last.Action)
		s.Equal(flags[0].ID.String(), last.Subject)
		s.Equal("confirmed", last.Detail["status"])
	})
}
