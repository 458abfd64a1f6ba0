package harvest

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/telemetry"
)

// slotState tracks the per-(figure, slot) resolution machine:
// pending -> trying -> accepted | exhausted. Exhausted is internal
// only; it always resolves to accepted via the placeholder.
type slotState string

const (
	statePending   slotState = "pending"
	stateTrying    slotState = "trying"
	stateAccepted  slotState = "accepted"
	stateExhausted slotState = "exhausted"
)

// OrchestratorConfig tunes the fallback chain.
type OrchestratorConfig struct {
	// PerQueryLimit caps how many candidates one adapter call returns.
	PerQueryLimit int
	// RateLimitCooldown is applied to a source after a 429 on one of
	// its candidates.
	RateLimitCooldown time.Duration
}

// DefaultOrchestratorConfig returns sane chain settings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PerQueryLimit:     5,
		RateLimitCooldown: 30 * time.Second,
	}
}

// Orchestrator drives the fallback chain for one slot at a time:
// queries in generator order, sources in descending trust, candidates
// in adapter rank order. The first candidate passing validation and
// dedup wins; exhaustion substitutes the slot placeholder so every
// slot resolves.
type Orchestrator struct {
	sources   []Source
	validator Validator
	dedup     Deduper
	clock     Clock
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestrator builds an orchestrator. Sources are reordered by
// descending tier so callers can pass them in any order.
func NewOrchestrator(
	sources []Source,
	validator Validator,
	dedup Deduper,
	clock Clock,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Tier() > ordered[j].Tier()
	})
	if cfg.PerQueryLimit <= 0 {
		cfg.PerQueryLimit = DefaultOrchestratorConfig().PerQueryLimit
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = DefaultOrchestratorConfig().RateLimitCooldown
	}
	return &Orchestrator{
		sources:   ordered,
		validator: validator,
		dedup:     dedup,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// ResolveSlot runs the chain for one (figure, slot). It returns the
// accepted item, the re-encoded image bytes (nil for placeholders),
// and the outcome. The only error is context cancellation.
func (o *Orchestrator) ResolveSlot(ctx context.Context, fig Figure, slot Slot) (AcceptedItem, []byte, SlotOutcome, error) {
	state := statePending
	queries := Queries(fig.Name, fig.Category, slot)

	for qi, query := range queries {
		for _, src := range o.sources {
			if err := ctx.Err(); err != nil {
				return AcceptedItem{}, nil, SlotOutcome{}, err
			}
			state = stateTrying
			o.logger.Debug("trying source",
				zap.String("figure", fig.Name),
				zap.String("slot", string(slot)),
				zap.String("state", string(state)),
				zap.Int("query_index", qi),
				zap.String("source", src.Name()),
			)

			cands, err := src.Search(ctx, query, o.cfg.PerQueryLimit)
			if err != nil {
				// Adapters only error on cancellation.
				return AcceptedItem{}, nil, SlotOutcome{}, err
			}
			if len(cands) == 0 {
				telemetry.ObserveSearch(src.Name(), "empty")
				continue
			}
			telemetry.ObserveSearch(src.Name(), "hit")

			item, data, accepted := o.vetCandidates(ctx, src, cands)
			if ctx.Err() != nil {
				return AcceptedItem{}, nil, SlotOutcome{}, ctx.Err()
			}
			if accepted {
				state = stateAccepted
				outcome := SlotOutcome{Slot: slot, SourceName: src.Name(), Queries: qi + 1}
				telemetry.ObserveSlotResolved(string(slot), src.Name())
				o.logger.Info("slot accepted",
					zap.String("figure", fig.Name),
					zap.String("slot", string(slot)),
					zap.String("source", src.Name()),
					zap.String("url", item.URL),
					zap.Int("priority", item.Priority),
				)
				return item, data, outcome, nil
			}
		}
	}

	// Every (query x source) combination exhausted: materialize the
	// coverage guarantee with the slot placeholder.
	state = stateExhausted
	item := Placeholder(slot, fig.Name, o.clock.Now())
	outcome := SlotOutcome{Slot: slot, SourceName: FallbackSourceName, Fallback: true, Queries: len(queries)}
	telemetry.ObserveSlotResolved(string(slot), FallbackSourceName)
	o.logger.Info("slot exhausted, placeholder inserted",
		zap.String("figure", fig.Name),
		zap.String("slot", string(slot)),
		zap.String("state", string(state)),
	)
	return item, nil, outcome, nil
}

// vetCandidates walks one adapter's ranked candidates through dedup
// and validation, returning the first acceptance.
func (o *Orchestrator) vetCandidates(ctx context.Context, src Source, cands []Candidate) (AcceptedItem, []byte, bool) {
	for _, cand := range cands {
		if o.dedup.SeenURL(cand.URL) {
			// Frequent and expected; not worth a warning.
			telemetry.ObserveRejection("duplicate")
			continue
		}

		item, data, err := o.validator.Validate(ctx, cand)
		if err != nil {
			telemetry.ObserveRejection(RejectionReason(err))
			if errors.Is(err, ErrRateLimited) {
				src.Cooldown(o.cfg.RateLimitCooldown)
				o.logger.Warn("source cooling down after 429",
					zap.String("source", src.Name()),
					zap.Duration("cooldown", o.cfg.RateLimitCooldown),
				)
				// Let the chain move on; the source resumes later in
				// the same run once the cool-down elapses.
				return AcceptedItem{}, nil, false
			}
			if ctx.Err() != nil {
				return AcceptedItem{}, nil, false
			}
			o.logger.Debug("candidate rejected",
				zap.String("url", cand.URL),
				zap.String("reason", RejectionReason(err)),
				zap.Error(err),
			)
			continue
		}

		if o.dedup.SeenFingerprint(item.Fingerprint) {
			telemetry.ObserveRejection("duplicate")
			continue
		}
		return item, data, true
	}
	return AcceptedItem{}, nil, false
}
