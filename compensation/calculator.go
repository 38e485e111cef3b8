/*
calculator.go - Compensation calculation

PURPOSE:
  Computes the pay breakdown of one daily launch. Invoked when a worker
  submits and again when an approver edits and recalculates.

RULES:
  Multi-activity (warehouse helper), per entry:
    productivity = quantity / hours            (hours == 0 -> ErrDivisionByZero)
    tier         = ResolveTier(activity, productivity)
    gross        = quantity * tier.UnitValue
    final        = gross * 0.5                  (first application of the 50% rule)
    activitiesSubtotal += final

  Single activity (every other role): same as one multi-activity entry, and
  the breakdown also carries productivity, tier label and unit.

  Task count (equipment operator):
    taskValueTotal     = validTasks * 0.093
    activitiesSubtotal = taskValueTotal * 0.5

  KPIs: the first 2 submitted names are accepted, 3.00 each.

  total = kpiBonus + activitiesSubtotal * 0.5 + additionalInput
          (second application of the 50% rule)

  Gross activity value therefore reaches the total at 25%. Both halvings are
  part of the pay rules and must not be collapsed.

ERRORS:
  Any error aborts the calculation. No partial breakdown is returned.
*/
package compensation

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BREAKDOWN
// =============================================================================

// ActivityDetail is the valuation of one reported activity.
type ActivityDetail struct {
	ActivityName string          `json:"nome_atividade"`
	Quantity     decimal.Decimal `json:"quantidade_produzida"`
	Hours        decimal.Decimal `json:"tempo_horas"`
	Productivity decimal.Decimal `json:"produtividade"`
	TierReached  string          `json:"nivel_atingido"`
	UnitValue    decimal.Decimal `json:"valor_unitario"`
	GrossValue   decimal.Decimal `json:"valor_bruto"`
	FinalValue   decimal.Decimal `json:"valor_final"`
	Unit         string          `json:"unidade_medida"`
}

// Breakdown is the result of a calculation. It is never mutated after creation.
type Breakdown struct {
	ActivitiesSubtotal decimal.Decimal `json:"activities_subtotal"`
	KPIBonus           decimal.Decimal `json:"kpi_bonus"`
	TotalCompensation  decimal.Decimal `json:"total_compensation"`
	AchievedKPIs       []string        `json:"achieved_kpis"`

	// Multi-activity branch.
	ActivityDetails []ActivityDetail `json:"activity_details,omitempty"`

	// Task-count branch.
	ValidTaskCount *int             `json:"valid_task_count,omitempty"`
	TaskValueTotal *decimal.Decimal `json:"task_value_total,omitempty"`

	// Single-activity branch.
	ProductivityAchieved *decimal.Decimal `json:"productivity_achieved,omitempty"`
	TierReached          *string          `json:"tier_reached,omitempty"`
	Unit                 *string          `json:"unit,omitempty"`
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator computes breakdowns. It only reads reference data.
type Calculator struct {
	Resolver *Resolver
	Roles    RoleTable
}

// NewCalculator creates a calculator over the given reference data and role table.
func NewCalculator(data ReferenceData, roles RoleTable) *Calculator {
	return &Calculator{Resolver: NewResolver(data), Roles: roles}
}

// CalculatePayload validates a wire payload and calculates it.
func (c *Calculator) CalculatePayload(ctx context.Context, p Payload) (*Breakdown, error) {
	req, err := p.Request(c.Roles)
	if err != nil {
		return nil, err
	}
	return c.Calculate(ctx, req)
}

// Calculate computes the breakdown of a validated request.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Breakdown, error) {
	if req.Input == nil {
		return nil, &InvalidRoleRequestError{Role: req.Role, Branch: c.Roles.BranchFor(req.Role),
			Expected: "no activity or task input given"}
	}
	if want := c.Roles.BranchFor(req.Role); req.Input.Branch() != want {
		return nil, &InvalidRoleRequestError{Role: req.Role, Branch: want,
			Expected: "got " + string(req.Input.Branch()) + " input"}
	}

	b := &Breakdown{ActivitiesSubtotal: decimal.Zero}

	switch in := req.Input.(type) {
	case MultiActivity:
		details := make([]ActivityDetail, 0, len(in.Activities))
		for _, e := range in.Activities {
			d, err := c.valueActivity(ctx, e)
			if err != nil {
				return nil, err
			}
			details = append(details, d)
			b.ActivitiesSubtotal = b.ActivitiesSubtotal.Add(d.FinalValue)
		}
		b.ActivityDetails = details

	case SingleActivity:
		d, err := c.valueActivity(ctx, in.Activity)
		if err != nil {
			return nil, err
		}
		b.ActivitiesSubtotal = d.FinalValue
		b.ProductivityAchieved = &d.Productivity
		b.TierReached = &d.TierReached
		b.Unit = &d.Unit

	case TaskCount:
		count := in.ValidTasks
		total := decimal.NewFromInt(int64(count)).Mul(TaskRate)
		b.ValidTaskCount = &count
		b.TaskValueTotal = &total
		b.ActivitiesSubtotal = total.Mul(Half)

	default:
		return nil, &InvalidRoleRequestError{Role: req.Role, Branch: c.Roles.BranchFor(req.Role),
			Expected: "unsupported input"}
	}

	b.AchievedKPIs, b.KPIBonus = KPIBonus(req.KPIs)
	b.TotalCompensation = b.KPIBonus.
		Add(b.ActivitiesSubtotal.Mul(Half)).
		Add(req.Additional)

	return b, nil
}

func (c *Calculator) valueActivity(ctx context.Context, e ActivityEntry) (ActivityDetail, error) {
	if e.Hours.IsZero() {
		return ActivityDetail{}, &DivisionByZeroError{ActivityName: e.Name}
	}
	productivity := e.Quantity.Div(e.Hours)

	tier, err := c.Resolver.ResolveTier(ctx, e.Name, productivity)
	if err != nil {
		return ActivityDetail{}, err
	}

	gross := e.Quantity.Mul(tier.UnitValue)
	return ActivityDetail{
		ActivityName: e.Name,
		Quantity:     e.Quantity,
		Hours:        e.Hours,
		Productivity: productivity,
		TierReached:  tier.LevelLabel,
		UnitValue:    tier.UnitValue,
		GrossValue:   gross,
		FinalValue:   gross.Mul(Half),
		Unit:         tier.Unit,
	}, nil
}

// KPIBonus accepts at most MaxKPIsPerLaunch names, in submission order, and
// returns them with the bonus they are worth. Extra names are dropped.
func KPIBonus(names []string) ([]string, decimal.Decimal) {
	accepted := make([]string, 0, MaxKPIsPerLaunch)
	for _, n := range names {
		if len(accepted) == MaxKPIsPerLaunch {
			break
		}
		accepted = append(accepted, n)
	}
	return accepted, KPIBonusValue.Mul(decimal.NewFromInt(int64(len(accepted))))
}
