/*
Package compensation provides the variable-pay calculation engine.

PURPOSE:
  Turns a worker's daily self-reported production (or a pre-computed count of
  valid warehouse tasks) plus the KPIs they claim into a compensation
  breakdown. The same engine runs at submission time and again when an
  approver edits a launch.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActivityTier: productivity threshold -> unit value for a named activity
  - KPIDefinition: an indicator a worker may claim, scoped by role and shift
  - Branch / RoleTable: which calculation branch a role follows
  - Fixed pay rules (task rate, KPI bonus, KPI cap, the 50% rule)

DESIGN PRINCIPLES:
  1. Precision: all money and rates are decimal.Decimal
  2. Purity: the calculator only reads reference data, it never writes or logs
  3. Typed requests: loosely-shaped payloads are validated once at the boundary
     (payload.go) and become a closed set of request variants

SEE ALSO:
  - tier.go: TierResolver
  - calculator.go: Calculator
  - payload.go: wire payload and request variants
*/
package compensation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/textfold"
)

// =============================================================================
// PAY RULES
// =============================================================================

var (
	// TaskRate is the value of one valid warehouse task.
	TaskRate = decimal.RequireFromString("0.093")

	// KPIBonusValue is paid for each accepted KPI.
	KPIBonusValue = decimal.RequireFromString("3.00")

	// Half is the 50% rule factor. It is applied per activity and again when
	// the subtotal contributes to the total.
	Half = decimal.RequireFromString("0.5")
)

// MaxKPIsPerLaunch caps how many submitted KPIs are paid.
const MaxKPIsPerLaunch = 2

// AnyShift is the wildcard shift on KPI definitions.
const AnyShift = "Geral"

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ActivityTier is one productivity level of an activity.
// Tiers of the same activity are totally ordered by MinimumProductivity.
type ActivityTier struct {
	ActivityName        string          `json:"nome_atividade"`
	LevelLabel          string          `json:"nivel"`
	UnitValue           decimal.Decimal `json:"valor"`
	MinimumProductivity decimal.Decimal `json:"produtividade_minima"`
	Unit                string          `json:"unidade_medida"`
}

// KPIDefinition is an indicator a worker can claim on a launch.
type KPIDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"nome_kpi"`
	TargetValue decimal.Decimal `json:"valor_meta_kpi"`
	BonusWeight decimal.Decimal `json:"peso_kpi"`
	Shift       string          `json:"turno_kpi"`
	Role        string          `json:"funcao_kpi"`
	Active      bool            `json:"status_ativo"`
}

// ReferenceData is the read-only view of the admin-owned tables.
type ReferenceData interface {
	// TiersFor returns every tier of an activity, in any order.
	// An unknown activity yields an empty slice, not an error.
	TiersFor(ctx context.Context, activityName string) ([]ActivityTier, error)

	// KPIs returns every KPI definition, active or not.
	KPIs(ctx context.Context) ([]KPIDefinition, error)
}

// =============================================================================
// ROLES
// =============================================================================

// Branch selects the calculation rule applied to a role.
type Branch string

const (
	BranchSingleActivity Branch = "single_activity"
	BranchMultiActivity  Branch = "multi_activity"
	BranchTaskCount      Branch = "task_count"
)

// Default role names shipped with the standard catalog.
const (
	RoleWarehouseHelper   = "Ajudante de Armazém"
	RoleEquipmentOperator = "Operador de Empilhadeira"
)

// RoleTable maps role names to their branch. Roles that are not listed use
// BranchSingleActivity. Lookups ignore case, accents and surrounding spaces.
type RoleTable struct {
	branches map[string]Branch
}

// NewRoleTable builds a table from role name -> branch.
func NewRoleTable(entries map[string]Branch) RoleTable {
	rt := RoleTable{branches: make(map[string]Branch, len(entries))}
	for role, b := range entries {
		rt.branches[textfold.Key(role)] = b
	}
	return rt
}

// DefaultRoleTable returns the branches of the standard catalog.
func DefaultRoleTable() RoleTable {
	return NewRoleTable(map[string]Branch{
		RoleWarehouseHelper:   BranchMultiActivity,
		RoleEquipmentOperator: BranchTaskCount,
	})
}

// BranchFor returns the branch a role follows.
func (rt RoleTable) BranchFor(role string) Branch {
	if b, ok := rt.branches[textfold.Key(role)]; ok {
		return b
	}
	return BranchSingleActivity
}

// Roles returns the explicitly mapped roles (folded form).
func (rt RoleTable) Roles() map[string]Branch {
	out := make(map[string]Branch, len(rt.branches))
	for k, v := range rt.branches {
		out[k] = v
	}
	return out
}
