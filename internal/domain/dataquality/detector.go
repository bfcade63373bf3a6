package dataquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DetectorConfig holds the detection windows. Zero values fall back to the
// defaults below.
type DetectorConfig struct {
	// StaleInProgressAfter flags in-progress cases whose first milestone
	// is older than this.
	StaleInProgressAfter time.Duration
	// AbandonedAfter flags cases still scheduled this long past their
	// scheduled date.
	AbandonedAfter time.Duration
	// NoActivityAfter flags in-progress cases with no milestone recorded
	// for this long.
	NoActivityAfter time.Duration
	// IssueExpiry is how long a milestone-range issue stays open before
	// the sweep auto-expires it.
	IssueExpiry time.Duration
	// Concurrency bounds how many facilities are processed at once.
	Concurrency int
}

const (
	defaultStaleInProgressAfter = 24 * time.Hour
	defaultAbandonedAfter       = 48 * time.Hour
	defaultNoActivityAfter      = 4 * time.Hour
	defaultIssueExpiry          = 30 * 24 * time.Hour
)

// Detector runs the stale-case and milestone-validation sweep across all
// active facilities.
type Detector struct {
	store  DetectionStore
	issues IssueRepository
	types  TypeRepository
	cfg    DetectorConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewDetector(store DetectionStore, issues IssueRepository, types TypeRepository, cfg DetectorConfig, logger zerolog.Logger) *Detector {
	if cfg.StaleInProgressAfter <= 0 {
		cfg.StaleInProgressAfter = defaultStaleInProgressAfter
	}
	if cfg.AbandonedAfter <= 0 {
		cfg.AbandonedAfter = defaultAbandonedAfter
	}
	if cfg.NoActivityAfter <= 0 {
		cfg.NoActivityAfter = defaultNoActivityAfter
	}
	if cfg.IssueExpiry <= 0 {
		cfg.IssueExpiry = defaultIssueExpiry
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Detector{
		store:  store,
		issues: issues,
		types:  types,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run processes every active facility and returns the aggregated report.
// It fails outright only when the facility list cannot be loaded; anything
// that goes wrong inside a facility is recorded on that facility's result.
func (d *Detector) Run(ctx context.Context) (*DetectionReport, error) {
	facilities, err := d.store.ActiveFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}

	results := make([]DetectionResult, len(facilities))
	if d.cfg.Concurrency <= 1 || len(facilities) <= 1 {
		for i, f := range facilities {
			results[i] = d.processFacility(ctx, f)
		}
	} else {
		sem := make(chan struct{}, d.cfg.Concurrency)
		var wg sync.WaitGroup
		for i, f := range facilities {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, f FacilityRef) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = d.processFacility(ctx, f)
			}(i, f)
		}
		wg.Wait()
	}

	report := &DetectionReport{Success: true, Results: results}
	report.Summary.FacilitiesProcessed = len(results)
	for _, r := range results {
		report.Summary.TotalCasesChecked += r.CasesChecked
		report.Summary.TotalIssuesFound += r.IssuesFound
		report.Summary.TotalIssuesExpired += r.IssuesExpired
		report.Summary.TotalStaleCasesDetected += r.StaleCasesDetected
		report.Summary.TotalStaleCasesCreated += r.StaleCasesCreated
	}

	d.logger.Info().
		Int("facilities", report.Summary.FacilitiesProcessed).
		Int("cases_checked", report.Summary.TotalCasesChecked).
		Int("issues_found", report.Summary.TotalIssuesFound).
		Int("issues_expired", report.Summary.TotalIssuesExpired).
		Int("stale_detected", report.Summary.TotalStaleCasesDetected).
		Int("stale_created", report.Summary.TotalStaleCasesCreated).
		Msg("stale case detection finished")
	return report, nil
}

func (d *Detector) processFacility(ctx context.Context, f FacilityRef) DetectionResult {
	res := DetectionResult{FacilityID: f.ID, FacilityName: f.Name}
	log := d.logger.With().Str("facility", f.Name).Logger()

	d.expireIssues(ctx, f, &res, log)
	d.validateMilestones(ctx, f, &res, log)
	d.detectStale(ctx, f, &res, log)

	log.Info().
		Int("cases_checked", res.CasesChecked).
		Int("issues_found", res.IssuesFound).
		Int("issues_expired", res.IssuesExpired).
		Int("stale_detected", res.StaleCasesDetected).
		Int("stale_created", res.StaleCasesCreated).
		Int("errors", len(res.Errors)).
		Msg("facility processed")
	return res
}

func (d *Detector) expireIssues(ctx context.Context, f FacilityRef, res *DetectionResult, log zerolog.Logger) {
	expired, err := d.types.ResolutionTypeByName(ctx, ResolutionExpired)
	if err != nil {
		log.Info().Str("resolution_type", ResolutionExpired).Msg("resolution type not configured, skipping expiry sweep")
		return
	}
	n, err := d.issues.ExpireDue(ctx, f.ID, expired.ID, d.now())
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("expire issues: %v", err))
		return
	}
	res.IssuesExpired = n
}

// validateMilestones checks completed, not-yet-validated cases against the
// facility's expected milestone intervals. A gap between consecutive
// milestones outside [expected_min, expected_max] opens a
// milestone_out_of_range issue; cases with every gap in range are marked
// validated so the next run skips them.
func (d *Detector) validateMilestones(ctx context.Context, f FacilityRef, res *DetectionResult, log zerolog.Logger) {
	issueType, err := d.types.IssueTypeByName(ctx, IssueMilestoneOutOfRange)
	if err != nil {
		log.Info().Str("issue_type", IssueMilestoneOutOfRange).Msg("issue type not configured, skipping milestone validation")
		return
	}

	cases, err := d.store.UnvalidatedCompletedCases(ctx, f.ID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("load unvalidated cases: %v", err))
		return
	}

	now := d.now()
	var validated []uuid.UUID
	for _, uc := range cases {
		res.CasesChecked++
		clean := true
		for i := 1; i < len(uc.Milestones); i++ {
			prev, cur := uc.Milestones[i-1], uc.Milestones[i]
			if cur.ExpectedMin == nil && cur.ExpectedMax == nil {
				continue
			}
			gap := cur.RecordedAt.Sub(prev.RecordedAt).Minutes()
			if (cur.ExpectedMin != nil && gap < *cur.ExpectedMin) || (cur.ExpectedMax != nil && gap > *cur.ExpectedMax) {
				clean = false
				expires := now.Add(d.cfg.IssueExpiry)
				created, err := d.issues.Create(ctx, &MetricIssue{
					FacilityID:          f.ID,
					CaseID:              uc.CaseID,
					IssueTypeID:         issueType.ID,
					FacilityMilestoneID: &cur.FacilityMilestoneID,
					DetectedValue:       &gap,
					ExpectedMin:         cur.ExpectedMin,
					ExpectedMax:         cur.ExpectedMax,
					DetectedAt:          now,
					ExpiresAt:           &expires,
				})
				if err != nil {
					res.Errors = append(res.Errors, fmt.Sprintf("case %s: create issue: %v", uc.CaseNumber, err))
					continue
				}
				if created {
					res.IssuesFound++
				}
			}
		}
		if clean {
			validated = append(validated, uc.CaseID)
		}
	}

	if len(validated) > 0 {
		if err := d.store.MarkValidated(ctx, validated); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("mark cases validated: %v", err))
		}
	}
}

// detectStale applies the three staleness rules. A failed rule query reads
// as an empty result set so one bad rule does not sink the rest of the
// facility. Stale issues carry no expires_at: they stay open until someone
// resolves them or the case moves on.
func (d *Detector) detectStale(ctx context.Context, f FacilityRef, res *DetectionResult, log zerolog.Logger) {
	now := d.now()
	rules := []struct {
		issueType string
		query     func(context.Context, uuid.UUID, time.Time) ([]StaleCase, error)
		cutoff    time.Time
	}{
		{IssueStaleInProgress, d.store.StaleInProgressCases, now.Add(-d.cfg.StaleInProgressAfter)},
		{IssueAbandonedScheduled, d.store.AbandonedScheduledCases, now.Add(-d.cfg.AbandonedAfter)},
		{IssueNoActivity, d.store.InactiveCases, now.Add(-d.cfg.NoActivityAfter)},
	}

	for _, rule := range rules {
		issueType, err := d.types.IssueTypeByName(ctx, rule.issueType)
		if err != nil {
			log.Info().Str("issue_type", rule.issueType).Msg("issue type not configured, skipping rule")
			continue
		}

		stale, err := rule.query(ctx, f.ID, rule.cutoff)
		if err != nil {
			log.Error().Err(err).Str("issue_type", rule.issueType).Msg("stale case query failed")
			continue
		}

		res.StaleCasesDetected += len(stale)
		for _, sc := range stale {
			created, err := d.issues.Create(ctx, &MetricIssue{
				FacilityID:  f.ID,
				CaseID:      sc.CaseID,
				IssueTypeID: issueType.ID,
				DetectedAt:  now,
			})
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("case %s: create %s issue: %v", sc.CaseNumber, rule.issueType, err))
				continue
			}
			if !created {
				continue
			}
			res.StaleCasesCreated++
			if err := d.store.ClearValidated(ctx, sc.CaseID); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("case %s: clear validation: %v", sc.CaseNumber, err))
			}
		}
	}
}
