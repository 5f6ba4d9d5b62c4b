/*
Package engine sequences one tax liability calculation.

PURPOSE:
  The Orchestrator is the only place that knows the order of things:
  aggregate, resolve reliefs, compute, reconcile, validate. Every component it
  calls is a pure function; the Orchestrator owns the run's IncomeProfile,
  ResolvedReliefs and trail, and hands back an immutable LiabilitySummary.

STAGES:
  Created → Aggregated → ReliefsResolved → Computed → Reconciled → Validated

  Any error moves the run to Failed. One Orchestrator, one run: a second Run
  call fails with ErrInvalidStageTransition whether the first succeeded or
  not. What-if variants are new Orchestrators (see
  RunBatch).

CROSS-STREAM SEQUENCING:
  The extended band schedule and cumulative taxable position computed by
  IncomeTax are passed to DividendTax, whose end position is passed to
  CapitalGainsTax. Reconciliation re-checks both hand-offs.

ERRORS:
  - InputError / RuleError: returned verbatim, run aborted
  - ConsistencyError: engine defect, run aborted, no partial summary
  - ValidationError: every failed bound listed
  - PolicyNotice: attached to the summary, never returned as error;
    warnings from validation.Warnings are appended once validation passes

SEE ALSO:
  - stage.go: Transition
  - reconcile.go: independent re-derivation of totals
  - batch.go: Calculate and RunBatch
*/
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/compute"
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
	"github.com/warp/tax-engine/validation"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	rules     *ruleset.RuleSet
	elections relief.Elections
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string

	stage   Stage
	trail   generic.Trail
	notices []generic.Notice
}

type Option func(*Orchestrator)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock fixes the ComputedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRunID overrides run id generation.
func WithRunID(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// New creates an Orchestrator for one run against one RuleSet.
func New(rules *ruleset.RuleSet, elections relief.Elections, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:     rules,
		elections: elections,
		logger:    zerolog.Nop(),
		now:       time.Now,
		newID:     uuid.NewString,
		stage:     StageCreated,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stage reports how far the run got.
func (o *Orchestrator) Stage() Stage { return o.stage }

// Run drives the pipeline to completion. It may be called once.
func (o *Orchestrator) Run(ctx context.Context, raw income.RawFigures) (*LiabilitySummary, error) {
	if o.stage != StageCreated {
		return nil, Transition(&o.stage, StageCreated, StageAggregated)
	}
	summary, err := o.run(ctx, raw)
	if err != nil {
		o.stage = StageFailed
		return nil, err
	}
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, raw income.RawFigures) (*LiabilitySummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := o.newID()
	log := o.logger.With().Str("run_id", runID).Str("tax_year", o.rules.Label).Logger()
	started := time.Now()

	// Aggregate
	profile, err := income.Aggregate(raw, o.rules)
	if err != nil {
		log.Warn().Err(err).Msg("aggregation rejected input")
		return nil, err
	}
	o.trail.Add("aggregate", profile.Steps...)
	o.notices = append(o.notices, profile.Notices...)
	if err := Transition(&o.stage, StageCreated, StageAggregated); err != nil {
		return nil, err
	}

	// Resolve reliefs
	reliefs := relief.Resolve(profile, o.rules, o.elections)
	o.trail.Add("reliefs", reliefs.Steps...)
	o.notices = append(o.notices, reliefs.Notices...)
	if err := Transition(&o.stage, StageAggregated, StageReliefsResolved); err != nil {
		return nil, err
	}

	// Compute
	c := o.compute(profile, reliefs)
	if err := Transition(&o.stage, StageReliefsResolved, StageComputed); err != nil {
		return nil, err
	}

	// Reconcile
	items := lineItems(c)
	total := generic.Sum(amounts(items)...)
	if err := reconcile(c, items, total); err != nil {
		log.Error().Err(err).Msg("reconciliation failed")
		return nil, err
	}
	if err := Transition(&o.stage, StageComputed, StageReconciled); err != nil {
		return nil, err
	}

	// Validate
	summary := o.summarize(runID, profile, reliefs, c, items, total)
	in := o.validationInput(profile, reliefs, c, items, summary)
	if err := validation.Validate(in); err != nil {
		log.Warn().Err(err).Msg("validation failed")
		return nil, err
	}
	summary.Notices = append(summary.Notices, validation.Warnings(in)...)
	if err := Transition(&o.stage, StageReconciled, StageValidated); err != nil {
		return nil, err
	}

	log.Info().
		Str("total_liability", summary.TotalLiability.String()).
		Int("notices", len(summary.Notices)).
		Dur("elapsed", time.Since(started)).
		Msg("liability calculated")
	return summary, nil
}

// =============================================================================
// COMPUTE STAGE
// =============================================================================

func (o *Orchestrator) compute(profile *income.IncomeProfile, reliefs *relief.ResolvedReliefs) computed {
	var c computed
	c.rental = compute.RentalProfit(reliefs, o.rules)
	c.incomeTax = compute.IncomeTax(profile, reliefs, o.rules)
	c.dividends = compute.DividendTax(c.incomeTax, o.rules)
	c.credit = compute.FinanceCostCredit(c.rental, c.incomeTax, c.dividends)
	c.ni = compute.NationalInsurance(profile, o.rules)
	c.cgt = compute.CapitalGainsTax(reliefs, c.incomeTax.Bands, c.dividends.Position, o.rules)

	it := c.incomeTax
	if it.AllowanceReduction.IsPositive() {
		o.notices = append(o.notices, generic.NewNotice(generic.NoticePersonalAllowanceTapered, generic.NoticeInfo,
			it.PersonalAllowance.Ptr(), "personal allowance reduced by %s to %s on adjusted net income of %s",
			it.AllowanceReduction, it.PersonalAllowance, it.AdjustedNetIncome))
	}
	if c.credit.UnusedCosts.IsPositive() {
		o.notices = append(o.notices, generic.NewNotice(generic.NoticeFinanceCostsCarried, generic.NoticeInfo,
			c.credit.UnusedCosts.Ptr(), "%s of finance costs earned no credit this year and carry forward", c.credit.UnusedCosts))
	}

	o.trail.Add("compute",
		generic.NewStep("total_income", it.TotalIncome, "",
			"non_dividend", it.NonDividendIncome, "dividends", it.Dividends),
		generic.NewStep("adjusted_net_income", it.AdjustedNetIncome, "total income - gross gift aid - relievable pension"),
		generic.NewStep("personal_allowance", it.PersonalAllowance, "",
			"standard", it.StandardAllowance, "reduction", it.AllowanceReduction),
		generic.NewStep("band_extension", it.BandExtension, "",
			"gift_aid", reliefs.GiftAid.BandExtension, "pension", reliefs.Pension.BandExtension),
		generic.NewStep("taxable_non_dividend_income", it.TaxableNonDividend, "",
			"allowance_used", it.AllowanceNonDividend),
		generic.NewStep("income_tax", it.Tax, bandNote(it.Main)),
		generic.NewStep("pension_allowance_charge", it.ChargeTax, bandNote(it.AllowanceCharge),
			"excess", reliefs.Pension.Excess),
		generic.NewStep("marginal_rate", generic.ZeroGBP(), it.MarginalBand, "rate", it.MarginalRate),
		generic.NewStep("dividend_tax", c.dividends.Tax, bandNote(c.dividends.Bands),
			"taxable", c.dividends.Taxable, "allowance_used", c.dividends.AllowanceUsed, "start", c.dividends.Start),
		generic.NewStep("rental_credit_entitlement", c.rental.CreditEntitlement, "",
			"finance_costs", c.rental.FinanceCosts, "profit", c.rental.Profit, "rate", c.rental.CreditRate),
		generic.NewStep("mortgage_interest_credit", c.credit.Credit, "applied after income tax",
			"income_limit", c.credit.IncomeLimit, "tax_limit", c.credit.TaxLimit),
		generic.NewStep("ni_class1", c.ni.Class1.Tax, bandNote(c.ni.Class1)),
		generic.NewStep("ni_class2", c.ni.Class2, "", "due", c.ni.Class2Due),
		generic.NewStep("ni_class4", c.ni.Class4.Tax, bandNote(c.ni.Class4)),
		generic.NewStep("capital_gains_tax", c.cgt.Tax, "", "start", c.cgt.Start,
			"business_asset_disposal", c.cgt.BusinessAssetDisposal.Tax,
			"other", c.cgt.Other.Tax, "residential", c.cgt.Residential.Tax),
	)
	return c
}

func bandNote(r generic.BandResult) string {
	note := ""
	for i, s := range r.Slices {
		if i > 0 {
			note += ", "
		}
		note += s.Band + " " + s.Amount.String() + " @ " + generic.Percent(s.Rate)
	}
	return note
}

// =============================================================================
// SUMMARY
// =============================================================================

func (o *Orchestrator) summarize(runID string, profile *income.IncomeProfile, reliefs *relief.ResolvedReliefs,
	c computed, items []LineItem, total generic.Amount) *LiabilitySummary {

	it := c.incomeTax
	s := &LiabilitySummary{
		RunID:      runID,
		TaxYear:    o.rules.Label,
		ComputedAt: o.now().UTC(),
		Elections:  o.elections.Map(),
		LineItems:  items,
		IncomeTax:  groupTotal(items, GroupIncomeTax),
		NationalInsurance: NationalInsurance{
			Class1: c.ni.Class1.Tax.RoundPenny(),
			Class2: c.ni.Class2.RoundPenny(),
			Class4: c.ni.Class4.Tax.RoundPenny(),
			Total:  groupTotal(items, GroupNationalInsurance),
		},
		CapitalGainsTax: groupTotal(items, GroupCapitalGains),
		TotalLiability:  total,
		TaxDeducted:     profile.TaxDeducted(),
		TotalIncome:     it.TotalIncome,
		TaxableIncome:   it.TaxableNonDividend.Add(c.dividends.Taxable),
		TaxableGains:    reliefs.CapitalLosses.Taxable.Total(),
		MarginalRate:    it.MarginalRate,
		MarginalBand:    it.MarginalBand,
		Reliefs: ReliefsClaimed{
			PersonalAllowance:       it.AllowanceNonDividend.Add(it.AllowanceDividend),
			GiftAidBandExtension:    reliefs.GiftAid.BandExtension,
			PensionBandExtension:    reliefs.Pension.BandExtension,
			PensionCarryForwardUsed: reliefs.Pension.CarryForwardUsed,
			PensionUsableAllowance:  reliefs.Pension.UsableAllowance,
			PensionExcess:           reliefs.Pension.Excess,
			PropertyMethod:          reliefs.Property.Method,
			PropertyDeduction:       reliefs.Property.Deduction,
			FinanceCostCredit:       c.credit.Credit.RoundPenny(),
			DividendAllowanceUsed:   c.dividends.AllowanceUsed,
			CapitalLossesUsed:       reliefs.CapitalLosses.CurrentLossesUsed.Add(reliefs.CapitalLosses.BroughtForwardUsed),
			AnnualExemptAmountUsed:  reliefs.CapitalLosses.ExemptAmountUsed,
			CapitalLossesCarried:    reliefs.CapitalLosses.CarriedForward,
		},
		Notices: o.notices,
	}
	s.BalanceDue = total.Sub(s.TaxDeducted)

	base := generic.Sum(it.TotalIncome, reliefs.CapitalLosses.Gains.Total(), reliefs.Pension.Excess)
	s.EffectiveRate = decimal.Zero
	if base.IsPositive() {
		s.EffectiveRate = total.Value.Div(base.Value).Round(6)
	}

	o.trail.Add("summary",
		generic.NewStep("total_liability", total, "sum of rounded line items"),
		generic.NewStep("balance_due", s.BalanceDue, "", "tax_deducted", s.TaxDeducted),
	)
	s.Trail = o.trail.Steps
	if s.Notices == nil {
		s.Notices = []generic.Notice{}
	}
	return s
}

func (o *Orchestrator) validationInput(profile *income.IncomeProfile, reliefs *relief.ResolvedReliefs, c computed,
	items []LineItem, s *LiabilitySummary) validation.Input {
	lines := make([]validation.Line, len(items))
	for i, li := range items {
		lines[i] = validation.Line{
			Code:      li.Code,
			Amount:    li.Amount,
			MayReduce: li.Code == LineMortgageInterestCredit,
		}
	}
	return validation.Input{
		Rules:         o.rules,
		Profile:       profile,
		Reliefs:       reliefs,
		IncomeTax:     c.incomeTax,
		Dividends:     c.dividends,
		Credit:        c.credit,
		Lines:         lines,
		Total:         s.TotalLiability,
		EffectiveRate: s.EffectiveRate,
	}
}
