package relief

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/generic"
	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/ruleset"
)

// ResolveGiftAid grosses up net donations at the basic rate. The extension is
// the relief already given at source: net / (1 - basic rate) - net. It only
// ever raises thresholds.
func ResolveGiftAid(p *income.IncomeProfile, rules *ruleset.RuleSet) GiftAidRelief {
	net := p.GiftAidNet.NonNegative()
	gross := grossUp(net, rules.GiftAid.BasicRate)
	return GiftAidRelief{
		Net:           net,
		Gross:         gross,
		BandExtension: gross.Sub(net).NonNegative(),
	}
}

func grossUp(net generic.Amount, basicRate decimal.Decimal) generic.Amount {
	return net.Div(decimal.NewFromInt(1).Sub(basicRate))
}
