/*
elections.go - Registry of recognized taxpayer elections

PURPOSE:
  An election is an explicit taxpayer choice that overrides an otherwise
  automatic resolver decision. Only enumerated keys and values are accepted;
  anything else fails with ErrUnknownElection before a run starts.

REGISTERED ELECTIONS:
  property_income        auto | allowance | expenses
  pension_carry_forward  on | off
  cgt_loss_allocation    residential_first | other_first

USAGE:
  el, err := relief.ParseElections(map[string]string{"property_income": "allowance"})

SEE ALSO:
  - property.go: consumes property_income
  - pension.go: consumes pension_carry_forward
  - capitalloss.go: consumes cgt_loss_allocation
*/
package relief

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warp/tax-engine/generic"
)

// =============================================================================
// ELECTION REGISTRY
// =============================================================================

const (
	ElectionPropertyIncome      = "property_income"
	ElectionPensionCarryForward = "pension_carry_forward"
	ElectionCGTLossAllocation   = "cgt_loss_allocation"
)

// ElectionOption describes one recognized election key.
type ElectionOption struct {
	Key         string   `json:"key"`
	Values      []string `json:"values"`
	Default     string   `json:"default"`
	Description string   `json:"description"`
}

var electionRegistry = map[string]ElectionOption{
	ElectionPropertyIncome: {
		Key:         ElectionPropertyIncome,
		Values:      []string{"auto", string(PropertyAllowance), string(PropertyExpenses)},
		Default:     "auto",
		Description: "Flat property allowance or itemized allowable expenses against rental receipts",
	},
	ElectionPensionCarryForward: {
		Key:         ElectionPensionCarryForward,
		Values:      []string{"on", "off"},
		Default:     "on",
		Description: "Use unused annual allowance from the three preceding tax years",
	},
	ElectionCGTLossAllocation: {
		Key:         ElectionCGTLossAllocation,
		Values:      []string{string(ResidentialFirst), string(OtherFirst)},
		Default:     string(ResidentialFirst),
		Description: "Which gains capital losses and the annual exempt amount are set against first",
	},
}

// ElectionOptions lists every recognized election, sorted by key.
func ElectionOptions() []ElectionOption {
	out := make([]ElectionOption, 0, len(electionRegistry))
	for _, opt := range electionRegistry {
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// =============================================================================
// PARSED ELECTIONS
// =============================================================================

type LossAllocation string

const (
	ResidentialFirst LossAllocation = "residential_first"
	OtherFirst       LossAllocation = "other_first"
)

// Elections is the typed form of the election map. The zero value is not
// meaningful; use DefaultElections or ParseElections.
type Elections struct {
	// PropertyIncome is empty for automatic selection.
	PropertyIncome      PropertyMethod
	PensionCarryForward bool
	CGTLossAllocation   LossAllocation
}

// DefaultElections is what a taxpayer gets when they elect nothing.
func DefaultElections() Elections {
	return Elections{
		PensionCarryForward: true,
		CGTLossAllocation:   ResidentialFirst,
	}
}

// ParseElections validates and applies an election map over the defaults.
// Keys and values are case-insensitive.
func ParseElections(raw map[string]string) (Elections, error) {
	el := DefaultElections()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		value := strings.ToLower(strings.TrimSpace(raw[k]))
		opt, ok := electionRegistry[key]
		if !ok {
			return Elections{}, generic.NewInputError(generic.ErrUnknownElection, k, "unrecognized election key")
		}
		if !contains(opt.Values, value) {
			return Elections{}, generic.NewInputError(generic.ErrUnknownElection, k,
				"value %q not one of %s", raw[k], strings.Join(opt.Values, "|"))
		}
		switch key {
		case ElectionPropertyIncome:
			if value == "auto" {
				el.PropertyIncome = ""
			} else {
				el.PropertyIncome = PropertyMethod(value)
			}
		case ElectionPensionCarryForward:
			el.PensionCarryForward = value == "on"
		case ElectionCGTLossAllocation:
			el.CGTLossAllocation = LossAllocation(value)
		}
	}
	return el, nil
}

// Map renders the elections back to their canonical string form.
func (e Elections) Map() map[string]string {
	property := "auto"
	if e.PropertyIncome != "" {
		property = string(e.PropertyIncome)
	}
	carry := "off"
	if e.PensionCarryForward {
		carry = "on"
	}
	allocation := e.CGTLossAllocation
	if allocation == "" {
		allocation = ResidentialFirst
	}
	return map[string]string{
		ElectionPropertyIncome:      property,
		ElectionPensionCarryForward: carry,
		ElectionCGTLossAllocation:   string(allocation),
	}
}

func (e Elections) String() string {
	m := e.Map()
	return fmt.Sprintf("%s=%s %s=%s %s=%s",
		ElectionPropertyIncome, m[ElectionPropertyIncome],
		ElectionPensionCarryForward, m[ElectionPensionCarryForward],
		ElectionCGTLossAllocation, m[ElectionCGTLossAllocation])
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
