package compute

import (
	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

type CGTResult struct {
	Start                 generic.Amount     `json:"start"`
	Taxable               relief.GainPools   `json:"taxable"`
	BusinessAssetDisposal generic.BandResult `json:"business_asset_disposal"`
	Other                 generic.BandResult `json:"other"`
	Residential           generic.BandResult `json:"residential"`
	Tax                   generic.Amount     `json:"tax"`
}

// CapitalGainsTax taxes gains as the top slice of income. Gains qualifying for
// business asset disposal relief go first at their flat rate but still use up
// the basic rate band; other gains follow, residential gains last.
func CapitalGainsTax(reliefs *relief.ResolvedReliefs, bands generic.BandSchedule, start generic.Amount, rules *ruleset.RuleSet) CGTResult {
	cg := rules.CapitalGains
	taxable := reliefs.CapitalLosses.Taxable
	r := CGTResult{Start: start, Taxable: taxable}

	flat := make(generic.RateTable, len(bands))
	for _, b := range bands {
		flat[b.Name] = cg.BusinessAssetDisposalRate
	}

	pos := start
	r.BusinessAssetDisposal = bands.StackedTax(pos, taxable.BusinessAssetDisposal, flat)
	pos = pos.Add(taxable.BusinessAssetDisposal)
	r.Other = bands.StackedTax(pos, taxable.Other, cg.Rates.Other)
	pos = pos.Add(taxable.Other)
	r.Residential = bands.StackedTax(pos, taxable.Residential, cg.Rates.Residential)

	r.Tax = generic.Sum(r.BusinessAssetDisposal.Tax, r.Other.Tax, r.Residential.Tax)
	return r
}
