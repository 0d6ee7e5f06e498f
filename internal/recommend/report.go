// Package recommend loads the rule recommendation report and drills into
// the queries each rule matched.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/querydesk/internal/api"
	"github.com/leapstack-labs/querydesk/internal/appctx"
)

const (
	summaryWarning = "Failed to load summary data"
	reportFailure  = "Failed to load recommendations. Please try again later."
	notApplicable  = "NA"
)

// Backend is the subset of the API gateway the report needs.
type Backend interface {
	GetRecommendations(ctx context.Context, market, project string) (api.RecommendationsResponse, error)
	TotalSchemas(ctx context.Context, market string) (int, error)
	TotalQueryScanned(ctx context.Context, market string) (int, error)
	RuleDetails(ctx context.Context, req api.RuleRequest) (api.RulePage, error)
}

// Recommendation is one rule finding as shown in the report.
type Recommendation struct {
	RuleID               int
	RuleTitle            string
	Recommendation       string
	OptimizationCategory string
	ReferenceQuery       string
	ReferenceQueryID     string
	QueryCount           int
	QueryChange          string
	SchemaChange         string
	SampleQuery          string
	RecommendedQuery     string
}

// CanApply reports whether the apply action is offered.
func (r Recommendation) CanApply() bool {
	return r.QueryChange != "No"
}

// FromWire maps a backend item to a Recommendation.
func FromWire(item api.RecommendationItem) Recommendation {
	return Recommendation{
		RuleID:               int(item.RuleID),
		RuleTitle:            item.RuleTitle,
		Recommendation:       item.Recommendation,
		OptimizationCategory: item.OptimizationCategory,
		ReferenceQuery:       item.ReferenceQuery,
		ReferenceQueryID:     item.ReferenceQueryID.String(),
		QueryCount:           int(item.QueryCount),
		QueryChange:          changeLabel(item.QueryChangeRequired),
		SchemaChange:         yesNo(bool(item.SchemaChangeRequired)),
		SampleQuery:          orNA(item.SampleQuery),
		RecommendedQuery:     orNA(item.RecommendedQuery),
	}
}

func changeLabel(s string) string {
	switch s {
	case "YES":
		return "Yes"
	case "NO":
		return "No"
	default:
		return s
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notApplicable
	}
	return s
}

// Report is the recommendation list plus its summary counters.
type Report struct {
	ProjectID       string
	Items           []Recommendation
	SchemasAnalyzed int
	QueriesAnalyzed int

	// Warning is set when either counter failed to load.
	Warning string
}

// LoadReport fetches recommendations and both counters concurrently. A
// counter failure degrades to Warning; a recommendation failure fails the
// whole report. Items are unique per rule id, first occurrence wins.
func LoadReport(ctx context.Context, b Backend, app appctx.Context) (Report, error) {
	var (
		report  Report
		recs    api.RecommendationsResponse
		schemas int
		queries int
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		recs, err = b.GetRecommendations(ctx, app.Market, app.ProjectName)
		return err
	})

	var counterErr error
	g.Go(func() error {
		var counters errgroup.Group
		counters.Go(func() error {
			var err error
			schemas, err = b.TotalSchemas(ctx, app.Market)
			return err
		})
		counters.Go(func() error {
			var err error
			queries, err = b.TotalQueryScanned(ctx, app.Market)
			return err
		})
		counterErr = counters.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return report, err
		}
		return report, fmt.Errorf("load recommendations: %w", err)
	}
	if errors.Is(counterErr, api.ErrUnauthorized) {
		return report, counterErr
	}

	report.ProjectID = recs.ProjectID.String()
	report.Items = dedupe(recs.Data)
	if counterErr != nil {
		report.Warning = summaryWarning
	} else {
		report.SchemasAnalyzed = schemas
		report.QueriesAnalyzed = queries
	}
	return report, nil
}

// FailureMessage is the text shown when LoadReport fails.
func FailureMessage(err error) string {
	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Error()
	}
	return reportFailure
}

func dedupe(items []api.RecommendationItem) []Recommendation {
	seen := make(map[int]bool, len(items))
	out := make([]Recommendation, 0, len(items))
	for _, item := range items {
		id := int(item.RuleID)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, FromWire(item))
	}
	return out
}

// Find returns the recommendation for ruleID.
func (r Report) Find(ruleID int) (Recommendation, bool) {
	for _, item := range r.Items {
		if item.RuleID == ruleID {
			return item, true
		}
	}
	return Recommendation{}, false
}
