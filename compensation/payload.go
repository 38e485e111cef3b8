/*
payload.go - Wire payload and typed calculation requests

PURPOSE:
  Calculation inputs arrive (and are persisted on launches) in a loosely
  shaped JSON document whose keys follow the external contract:

    {
      "role": "Ajudante de Armazém",
      "shift": "Manhã",
      "nome_atividade": "Separação",          // single-activity roles
      "quantidade_produzida": 100,
      "tempo_horas": 8,
      "multiple_activities": [ {...}, ... ],  // multi-activity roles
      "valid_tasks_count": 240,               // task-count roles
      "kpis_atingidos": ["Pontualidade"],
      "input_adicional": 0
    }

  Payload.Request validates the document once, against the branch of the
  role, and returns a Request whose Input is exactly one of SingleActivity,
  MultiActivity or TaskCount. The calculator only ever sees a Request.

KEY PRESENCE:
  Optional members are pointers with omitempty. A key that was absent stays
  absent after a store round trip, and a key that was present (even as an
  empty list) stays present. Decimals serialize as JSON strings.
*/
package compensation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WIRE PAYLOAD
// =============================================================================

// ActivityInput is one entry of multiple_activities.
type ActivityInput struct {
	ActivityName string           `json:"nome_atividade"`
	Quantity     *decimal.Decimal `json:"quantidade_produzida,omitempty"`
	Hours        *decimal.Decimal `json:"tempo_horas,omitempty"`
}

// Payload is the calculation input as exchanged with clients and stored on launches.
type Payload struct {
	Role               string           `json:"role"`
	Shift              string           `json:"shift"`
	ActivityName       *string          `json:"nome_atividade,omitempty"`
	Quantity           *decimal.Decimal `json:"quantidade_produzida,omitempty"`
	Hours              *decimal.Decimal `json:"tempo_horas,omitempty"`
	MultipleActivities *[]ActivityInput `json:"multiple_activities,omitempty"`
	ValidTasksCount    *int             `json:"valid_tasks_count,omitempty"`
	KPIs               *[]string        `json:"kpis_atingidos,omitempty"`
	AdditionalInput    *decimal.Decimal `json:"input_adicional,omitempty"`
}

// KPINames returns the submitted KPI names, or nil.
func (p Payload) KPINames() []string {
	if p.KPIs == nil {
		return nil
	}
	return *p.KPIs
}

// Activities returns the multiple_activities entries, or nil.
func (p Payload) Activities() []ActivityInput {
	if p.MultipleActivities == nil {
		return nil
	}
	return *p.MultipleActivities
}

// =============================================================================
// TYPED REQUEST
// =============================================================================

// Input is the branch-specific part of a Request. The set of implementations
// is closed: SingleActivity, MultiActivity and TaskCount.
type Input interface {
	Branch() Branch
	isInput()
}

// ActivityEntry is a validated production line.
// Hours may be zero; the calculator rejects that with ErrDivisionByZero.
type ActivityEntry struct {
	Name     string
	Quantity decimal.Decimal
	Hours    decimal.Decimal
}

// SingleActivity is the input of roles that report one activity.
type SingleActivity struct {
	Activity ActivityEntry
}

// MultiActivity is the input of roles that report several activities.
type MultiActivity struct {
	Activities []ActivityEntry
}

// TaskCount is the input of roles paid per valid task from the WMS log.
type TaskCount struct {
	ValidTasks int
}

func (SingleActivity) Branch() Branch { return BranchSingleActivity }
func (MultiActivity) Branch() Branch  { return BranchMultiActivity }
func (TaskCount) Branch() Branch      { return BranchTaskCount }

func (SingleActivity) isInput() {}
func (MultiActivity) isInput()  {}
func (TaskCount) isInput()      {}

// Request is a validated calculation request.
type Request struct {
	Role       string
	Shift      string
	Input      Input
	KPIs       []string
	Additional decimal.Decimal
}

// Request validates the payload against the branch of its role.
func (p Payload) Request(roles RoleTable) (Request, error) {
	role := strings.TrimSpace(p.Role)
	if role == "" {
		return Request{}, &InputError{Field: "role", Message: "is required"}
	}

	req := Request{
		Role:       role,
		Shift:      strings.TrimSpace(p.Shift),
		Additional: decimal.Zero,
	}
	if p.AdditionalInput != nil {
		req.Additional = *p.AdditionalInput
	}
	for _, k := range p.KPINames() {
		if k = strings.TrimSpace(k); k != "" {
			req.KPIs = append(req.KPIs, k)
		}
	}

	branch := roles.BranchFor(role)
	switch branch {
	case BranchMultiActivity:
		items := p.Activities()
		if len(items) == 0 {
			return Request{}, &InvalidRoleRequestError{Role: role, Branch: branch,
				Expected: "multiple_activities must list at least one activity"}
		}
		entries := make([]ActivityEntry, 0, len(items))
		for _, it := range items {
			e, err := activityEntry("multiple_activities", &it.ActivityName, it.Quantity, it.Hours)
			if err != nil {
				return Request{}, err
			}
			entries = append(entries, e)
		}
		req.Input = MultiActivity{Activities: entries}

	case BranchTaskCount:
		if p.ValidTasksCount == nil {
			return Request{}, &InvalidRoleRequestError{Role: role, Branch: branch,
				Expected: "valid_tasks_count is required"}
		}
		if *p.ValidTasksCount < 0 {
			return Request{}, &InputError{Field: "valid_tasks_count", Message: "must not be negative"}
		}
		req.Input = TaskCount{ValidTasks: *p.ValidTasksCount}

	default:
		if p.ActivityName == nil || strings.TrimSpace(*p.ActivityName) == "" || p.Quantity == nil {
			return Request{}, &InvalidRoleRequestError{Role: role, Branch: branch,
				Expected: "nome_atividade and quantidade_produzida are required"}
		}
		e, err := activityEntry("", p.ActivityName, p.Quantity, p.Hours)
		if err != nil {
			return Request{}, err
		}
		req.Input = SingleActivity{Activity: e}
	}

	return req, nil
}

func activityEntry(prefix string, name *string, qty, hours *decimal.Decimal) (ActivityEntry, error) {
	field := func(f string) string {
		if prefix == "" {
			return f
		}
		return prefix + "." + f
	}

	if name == nil || strings.TrimSpace(*name) == "" {
		return ActivityEntry{}, &InputError{Field: field("nome_atividade"), Message: "is required"}
	}
	if qty == nil {
		return ActivityEntry{}, &InputError{Field: field("quantidade_produzida"), Message: "is required"}
	}
	if qty.IsNegative() {
		return ActivityEntry{}, &InputError{Field: field("quantidade_produzida"), Message: "must not be negative"}
	}
	e := ActivityEntry{Name: strings.TrimSpace(*name), Quantity: *qty, Hours: decimal.Zero}
	if hours != nil {
		if hours.IsNegative() {
			return ActivityEntry{}, &InputError{Field: field("tempo_horas"), Message: "must not be negative"}
		}
		e.Hours = *hours
	}
	return e, nil
}
