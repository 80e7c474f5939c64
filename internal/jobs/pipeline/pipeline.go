// Package pipeline implements C2: one batch iteration of the job — generate,
// dedupe, evaluate, filter, check availability, price, persist, report.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/domainscout/core/internal/domain"
	"github.com/domainscout/core/internal/jobs/availability"
	"github.com/domainscout/core/internal/jobs/evaluator"
	"github.com/domainscout/core/internal/jobs/generator"
	"github.com/domainscout/core/internal/jobs/pricing"
	"github.com/domainscout/core/internal/platform/config"
	"github.com/domainscout/core/internal/platform/logger"
	"github.com/domainscout/core/internal/platform/otelx"
	"github.com/domainscout/core/internal/repos"
)

// admissionThreshold is the availability-check admission score (spec.md
// §4.2 step 6), distinct from the termination threshold in GoodCount.
const (
	admissionThreshold = 0.4
	generateTargetN    = 50
	recentCheckedCap   = 50
	recentAvailCap     = 20
	topTakenTLDs       = 3
)

// Outcome summarizes one batch for the controller's re-arm decision
// (spec.md §4.2 step 11).
type Outcome struct {
	BatchNum      int
	ZeroWork      bool
	GoodCount     int
	CheckedCount  int
	AvailableCount int
}

// Pipeline wires together C3-C5 and the job's own store for a single job.
type Pipeline struct {
	log        *logger.Logger
	jobRepo    repos.JobRepo
	resultRepo repos.DomainResultRepo
	artifact   repos.ArtifactRepo

	generator generator.Generator
	evaluator evaluator.Evaluator
	checker   availability.Checker
	pricing   pricing.Lookup

	pricingCfg config.PricingConfig
}

func New(
	log *logger.Logger,
	jobRepo repos.JobRepo,
	resultRepo repos.DomainResultRepo,
	artifact repos.ArtifactRepo,
	gen generator.Generator,
	eval evaluator.Evaluator,
	checker availability.Checker,
	priceLookup pricing.Lookup,
	pricingCfg config.PricingConfig,
) *Pipeline {
	return &Pipeline{
		log:        log,
		jobRepo:    jobRepo,
		resultRepo: resultRepo,
		artifact:   artifact,
		generator:  gen,
		evaluator:  eval,
		checker:    checker,
		pricing:    priceLookup,
		pricingCfg: pricingCfg,
	}
}

// RunBatch executes steps 1-10 of spec.md §4.2. A returned error is Fatal:
// the caller (controller) must transition the job to failed.
func (p *Pipeline) RunBatch(ctx context.Context) (Outcome, error) {
	start := time.Now()

	// Step 1: advance counter.
	batchNum, err := p.jobRepo.IncrementBatchNum(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: increment batch_num: %w", err)
	}

	job, err := p.jobRepo.Get(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: load job: %w", err)
	}
	quiz, err := job.DecodeQuiz()
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: decode quiz: %w", err)
	}
	followupPtr, err := job.DecodeFollowup()
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: decode followup: %w", err)
	}
	var followup domain.FollowupResponses
	if followupPtr != nil {
		followup = *followupPtr
	}

	// Step 2: build context.
	genCtx, err := p.buildContext(ctx, quiz, followup, batchNum)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: build context: %w", err)
	}

	// Step 3: generate.
	genCtxSpan, genSpan := otelx.StartStage(ctx, "pipeline.generate")
	genResult, err := p.generator.Generate(genCtxSpan, genCtx)
	genSpan.End()
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: generate: %w", err)
	}
	if err := p.jobRepo.IncrementTokens(ctx, genResult.InputTokens, genResult.OutputTokens); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: record generator tokens: %w", err)
	}

	// Step 4: dedupe.
	checked, err := p.resultRepo.CheckedDomains(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: load checked domains: %w", err)
	}
	var fresh []string
	for _, d := range genResult.Domains {
		if !checked[d] {
			fresh = append(fresh, d)
		}
	}
	if len(fresh) == 0 {
		if err := p.writeBatchReport(ctx, batchNum, start, 0, 0, 0, 0, true); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: write zero-work report: %w", err)
		}
		return p.outcomeFor(ctx, batchNum, true)
	}

	// Step 5: evaluate.
	evalCtxSpan, evalSpan := otelx.StartStage(ctx, "pipeline.evaluate")
	evalResult, err := p.evaluator.Evaluate(evalCtxSpan, fresh, quiz.Vibe, quiz.BusinessName)
	evalSpan.End()
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: evaluate: %w", err)
	}
	if err := p.jobRepo.IncrementTokens(ctx, evalResult.InputTokens, evalResult.OutputTokens); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: record evaluator tokens: %w", err)
	}

	// Step 6: filter, persisting discards immediately.
	var survivors []evaluator.Evaluation
	for _, ev := range evalResult.Evaluations {
		if ev.WorthChecking && ev.Score >= admissionThreshold {
			survivors = append(survivors, ev)
			continue
		}
		if err := p.resultRepo.Upsert(ctx, discardedResult(batchNum, ev)); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: persist discard %s: %w", ev.Domain, err)
		}
	}

	if len(survivors) == 0 {
		if err := p.writeBatchReport(ctx, batchNum, start, len(fresh), 0, 0, len(fresh), false); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: write report: %w", err)
		}
		return p.outcomeFor(ctx, batchNum, false)
	}

	survivorDomains := make([]string, 0, len(survivors))
	for _, s := range survivors {
		survivorDomains = append(survivorDomains, s.Domain)
	}

	// Step 7: check availability.
	availRecords := availability.CheckAll(ctx, p.checker, survivorDomains)
	availByDomain := map[string]availability.Record{}
	var availableDomains []string
	for _, r := range availRecords {
		availByDomain[r.Domain] = r
		if r.Status == domain.AvailabilityAvailable {
			availableDomains = append(availableDomains, r.Domain)
		}
	}

	// Step 8: price.
	quotes := p.pricing.Bulk(ctx, availableDomains)

	// Step 9: persist.
	evalByDomain := map[string]evaluator.Evaluation{}
	for _, s := range survivors {
		evalByDomain[s.Domain] = s
	}
	for _, d := range survivorDomains {
		rec := availByDomain[d]
		ev := evalByDomain[d]
		row := resultFrom(batchNum, d, rec, ev, quotes[d], p.pricingCfg)
		if err := p.resultRepo.Upsert(ctx, row); err != nil {
			return Outcome{}, fmt.Errorf("pipeline: persist result %s: %w", d, err)
		}
	}

	// Step 10: report.
	if err := p.writeBatchReport(ctx, batchNum, start, len(fresh), len(survivors), len(availableDomains), len(fresh)-len(survivors), false); err != nil {
		return Outcome{}, fmt.Errorf("pipeline: write report: %w", err)
	}

	return p.outcomeFor(ctx, batchNum, false)
}

func (p *Pipeline) outcomeFor(ctx context.Context, batchNum int, zeroWork bool) (Outcome, error) {
	checked, available, err := p.resultRepo.CountByStatus(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: count status: %w", err)
	}
	good, err := p.resultRepo.GoodCount(ctx, 0.8)
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: good count: %w", err)
	}
	return Outcome{
		BatchNum:       batchNum,
		ZeroWork:       zeroWork,
		GoodCount:      good,
		CheckedCount:   checked,
		AvailableCount: available,
	}, nil
}

func (p *Pipeline) buildContext(ctx context.Context, quiz domain.QuizResponses, followup domain.FollowupResponses, batchNum int) (generator.Context, error) {
	gctx := generator.Context{
		BusinessName:   quiz.BusinessName,
		TLDPreferences: quiz.TLDPreferences,
		Vibe:           quiz.Vibe,
		DomainIdea:     quiz.DomainIdea,
		Keywords:       quiz.Keywords,
		BatchNum:       batchNum,
		TargetN:        generateTargetN,

		FollowupDirection: followup.Direction,
		FollowupLength:    followup.Length,
		FollowupKeywords:  followup.Keywords,
	}

	if batchNum < 2 {
		return gctx, nil
	}

	checkedRows, err := p.resultRepo.RecentChecked(ctx, recentCheckedCap)
	if err != nil {
		return gctx, err
	}
	availRows, err := p.resultRepo.RecentAvailable(ctx, recentAvailCap)
	if err != nil {
		return gctx, err
	}
	topTLDs, err := p.resultRepo.TakenTLDSummary(ctx, topTakenTLDs)
	if err != nil {
		return gctx, err
	}

	gctx.HasHistory = true
	for _, r := range checkedRows {
		gctx.RecentChecked = append(gctx.RecentChecked, r.Domain)
	}
	for _, r := range availRows {
		gctx.RecentAvailable = append(gctx.RecentAvailable, r.Domain)
	}
	gctx.TopTakenTLDs = topTLDs
	return gctx, nil
}

func discardedResult(batchNum int, ev evaluator.Evaluation) *domain.DomainResult {
	flags := append([]string{"discarded_low_score"}, ev.Flags...)
	return &domain.DomainResult{
		BatchNum: batchNum,
		Domain:   ev.Domain,
		TLD:      tldOf(ev.Domain),
		Status:   domain.AvailabilityUnknown,
		Score:    ev.Score,
		Flags:    datatypes.JSONSlice[string](flags),
	}
}

func resultFrom(batchNum int, d string, rec availability.Record, ev evaluator.Evaluation, quote pricing.Quote, pricingCfg config.PricingConfig) *domain.DomainResult {
	evalData := map[string]any{
		"pronounceable":  ev.Pronounceable,
		"memorable":      ev.Memorable,
		"brand_fit":      ev.BrandFit,
		"email_friendly": ev.EmailFriendly,
		"worth_checking": ev.WorthChecking,
		"note":           ev.Note,
		"heuristic":      ev.FromHeuristic,
		"registrar":      rec.Registrar,
		"category":       pricingCfg.Category(quote.PriceCents),
	}
	if quote.RenewalCents != nil {
		evalData["renewal_cents"] = *quote.RenewalCents
	}
	if rec.Expiration != nil {
		evalData["expiration"] = rec.Expiration.Format(time.RFC3339)
	}

	return &domain.DomainResult{
		BatchNum:       batchNum,
		Domain:         d,
		TLD:            tldOf(d),
		Status:         rec.Status,
		PriceCents:     quote.PriceCents,
		Score:          ev.Score,
		Flags:          datatypes.JSONSlice[string](ev.Flags),
		EvaluationData: datatypes.JSONMap(evalData),
	}
}

func tldOf(d string) string {
	idx := strings.LastIndexByte(d, '.')
	if idx < 0 {
		return ""
	}
	return d[idx+1:]
}

type batchReport struct {
	BatchNum        int    `json:"batch_num"`
	GeneratedCount  int    `json:"generated_count"`
	EvaluatedCount  int    `json:"evaluated_count"`
	AvailableCount  int    `json:"available_count"`
	DiscardedCount  int    `json:"discarded_count"`
	ZeroWork        bool   `json:"zero_work"`
	DurationMillis  int64  `json:"duration_millis"`
}

func (p *Pipeline) writeBatchReport(ctx context.Context, batchNum int, start time.Time, generated, evaluated, available, discarded int, zeroWork bool) error {
	report := batchReport{
		BatchNum:       batchNum,
		GeneratedCount: generated,
		EvaluatedCount: evaluated,
		AvailableCount: available,
		DiscardedCount: discarded,
		ZeroWork:       zeroWork,
		DurationMillis: time.Since(start).Milliseconds(),
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return p.artifact.Create(ctx, &domain.SearchArtifact{
		BatchNum:     batchNum,
		ArtifactType: domain.ArtifactBatchReport,
		Content:      string(raw),
	})
}
