/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Calculation:
    compensation.Payload (request body as-is), BreakdownDTO

  Launches:
    SubmitLaunchRequest, ValidateLaunchRequest, LaunchDTO, ApprovalEventDTO,
    DailyLimitDTO

  Reference data:
    KPIDTO, ActivityTierDTO

  Task logs:
    TaskCountDTO

MONEY:
  Decimals are converted to float64 only here, at the presentation edge.
  The stored calculation_input document is echoed unchanged.

SEE ALSO:
  - handlers.go: Uses these types
  - compensation/payload.go: Payload wire format
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/incentive-engine/compensation"
	"github.com/warp/incentive-engine/launch"
	"github.com/warp/incentive-engine/tasklog"
)

// =============================================================================
// CALCULATION
// =============================================================================

// ActivityDetailDTO is one valued activity.
type ActivityDetailDTO struct {
	ActivityName string  `json:"nome_atividade"`
	Quantity     float64 `json:"quantidade_produzida"`
	Hours        float64 `json:"tempo_horas"`
	Productivity float64 `json:"produtividade"`
	TierReached  string  `json:"nivel_atingido"`
	UnitValue    float64 `json:"valor_unitario"`
	GrossValue   float64 `json:"valor_bruto"`
	FinalValue   float64 `json:"valor_final"`
	Unit         string  `json:"unidade_medida"`
}

// BreakdownDTO is a compensation breakdown. Branch-specific members are
// present only for the branch that produced them.
type BreakdownDTO struct {
	ActivitiesSubtotal   float64             `json:"activities_subtotal"`
	KPIBonus             float64             `json:"kpi_bonus"`
	TotalCompensation    float64             `json:"total_compensation"`
	AchievedKPIs         []string            `json:"achieved_kpis"`
	ActivityDetails      []ActivityDetailDTO `json:"activity_details,omitempty"`
	ValidTaskCount       *int                `json:"valid_task_count,omitempty"`
	TaskValueTotal       *float64            `json:"task_value_total,omitempty"`
	ProductivityAchieved *float64            `json:"productivity_achieved,omitempty"`
	TierReached          *string             `json:"tier_reached,omitempty"`
	Unit                 *string             `json:"unit,omitempty"`
}

// =============================================================================
// LAUNCHES
// =============================================================================

// SubmitLaunchRequest creates a launch.
type SubmitLaunchRequest struct {
	WorkerID         string               `json:"worker_id"`
	Date             string               `json:"date"`
	CalculationInput compensation.Payload `json:"calculation_input"`
}

// ValidateLaunchRequest is a reviewer decision.
type ValidateLaunchRequest struct {
	Action        string                `json:"action"` // approve | reject | editar
	ActorID       string                `json:"actor_id,omitempty"`
	Observations  *string               `json:"observations,omitempty"`
	EditedPayload *compensation.Payload `json:"dados_editados,omitempty"`
}

// LaunchDTO represents a launch in API responses.
type LaunchDTO struct {
	ID                 string               `json:"id"`
	WorkerID           string               `json:"worker_id"`
	Date               string               `json:"date"`
	Role               string               `json:"role"`
	Shift              string               `json:"shift"`
	Status             string               `json:"status"`
	CalculationInput   compensation.Payload `json:"calculation_input"`
	CalculationResult  BreakdownDTO         `json:"calculation_result"`
	ActivitiesSubtotal float64              `json:"activities_subtotal"`
	KPIBonus           float64              `json:"kpi_bonus"`
	TotalCompensation  float64              `json:"total_compensation"`
	ReviewedBy         *string              `json:"reviewed_by,omitempty"`
	ReviewedAt         *string              `json:"reviewed_at,omitempty"`
	EditedBy           *string              `json:"edited_by,omitempty"`
	EditedAt           *string              `json:"edited_at,omitempty"`
	Observations       *string              `json:"observations,omitempty"`
	CreatedAt          string               `json:"created_at"`
	UpdatedAt          string               `json:"updated_at"`
	Events             []ApprovalEventDTO   `json:"events,omitempty"`
}

// ApprovalEventDTO is one audit trail entry.
type ApprovalEventDTO struct {
	ID           string  `json:"id"`
	Action       string  `json:"action"`
	ActorID      string  `json:"actor_id"`
	Timestamp    string  `json:"timestamp"`
	Observations *string `json:"observations,omitempty"`
}

// DailyLimitDTO answers the daily-limit probe.
type DailyLimitDTO struct {
	LimitReached     bool   `json:"limitReached"`
	CanLaunch        bool   `json:"canLaunch"`
	ExistingLaunchID string `json:"existing_launch_id,omitempty"`
	ExistingStatus   string `json:"existing_status,omitempty"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// KPIDTO represents a KPI definition.
type KPIDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"nome_kpi"`
	TargetValue float64 `json:"valor_meta_kpi"`
	BonusWeight float64 `json:"peso_kpi"`
	Shift       string  `json:"turno_kpi"`
	Role        string  `json:"funcao_kpi"`
	Active      bool    `json:"status_ativo"`
}

// ActivityTierDTO represents one tier of an activity.
type ActivityTierDTO struct {
	ActivityName        string  `json:"nome_atividade"`
	LevelLabel          string  `json:"nivel"`
	UnitValue           float64 `json:"valor"`
	MinimumProductivity float64 `json:"produtividade_minima"`
	Unit                string  `json:"unidade_medida"`
}

// =============================================================================
// TASK LOGS
// =============================================================================

// TaskTypeCountDTO is the valid count of one task type.
type TaskTypeCountDTO struct {
	Type          string  `json:"tipo"`
	Count         int     `json:"quantidade"`
	TargetSeconds float64 `json:"meta_segundos"`
}

// TaskCountDTO is the result of a task log import.
type TaskCountDTO struct {
	Operator    string             `json:"operator"`
	Status      string             `json:"status"`
	Messages    []string           `json:"messages"`
	Records     int                `json:"records"`
	Matched     int                `json:"matched"`
	SkippedRows int                `json:"skipped_rows"`
	ValidTasks  int                `json:"valid_tasks_count"`
	PerType     []TaskTypeCountDTO `json:"per_type"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Details  any    `json:"details,omitempty"`
	Guidance string `json:"guidance,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toFloatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := toFloat(*d)
	return &f
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toBreakdownDTO(b compensation.Breakdown) BreakdownDTO {
	dto := BreakdownDTO{
		ActivitiesSubtotal:   toFloat(b.ActivitiesSubtotal),
		KPIBonus:             toFloat(b.KPIBonus),
		TotalCompensation:    toFloat(b.TotalCompensation),
		AchievedKPIs:         b.AchievedKPIs,
		ValidTaskCount:       b.ValidTaskCount,
		TaskValueTotal:       toFloatPtr(b.TaskValueTotal),
		ProductivityAchieved: toFloatPtr(b.ProductivityAchieved),
		TierReached:          b.TierReached,
		Unit:                 b.Unit,
	}
	if dto.AchievedKPIs == nil {
		dto.AchievedKPIs = []string{}
	}
	for _, d := range b.ActivityDetails {
		dto.ActivityDetails = append(dto.ActivityDetails, ActivityDetailDTO{
			ActivityName: d.ActivityName,
			Quantity:     toFloat(d.Quantity),
			Hours:        toFloat(d.Hours),
			Productivity: toFloat(d.Productivity),
			TierReached:  d.TierReached,
			UnitValue:    toFloat(d.UnitValue),
			GrossValue:   toFloat(d.GrossValue),
			FinalValue:   toFloat(d.FinalValue),
			Unit:         d.Unit,
		})
	}
	return dto
}

func toLaunchDTO(l launch.Launch) LaunchDTO {
	return LaunchDTO{
		ID:                 l.ID,
		WorkerID:           l.WorkerID,
		Date:               l.Date,
		Role:               l.Role,
		Shift:              l.Shift,
		Status:             string(l.Status),
		CalculationInput:   l.Input,
		CalculationResult:  toBreakdownDTO(l.Result),
		ActivitiesSubtotal: toFloat(l.ActivitiesSubtotal),
		KPIBonus:           toFloat(l.KPIBonus),
		TotalCompensation:  toFloat(l.TotalCompensation),
		ReviewedBy:         l.ReviewedBy,
		ReviewedAt:         formatTimePtr(l.ReviewedAt),
		EditedBy:           l.EditedBy,
		EditedAt:           formatTimePtr(l.EditedAt),
		Observations:       l.Observations,
		CreatedAt:          formatTime(l.CreatedAt),
		UpdatedAt:          formatTime(l.UpdatedAt),
	}
}

func toEventDTOs(events []launch.ApprovalEvent) []ApprovalEventDTO {
	dtos := make([]ApprovalEventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, ApprovalEventDTO{
			ID:           ev.ID,
			Action:       string(ev.Action),
			ActorID:      ev.ActorID,
			Timestamp:    formatTime(ev.Timestamp),
			Observations: ev.Observations,
		})
	}
	return dtos
}

func toKPIDTO(k compensation.KPIDefinition) KPIDTO {
	return KPIDTO{
		ID:          k.ID,
		Name:        k.Name,
		TargetValue: toFloat(k.TargetValue),
		BonusWeight: toFloat(k.BonusWeight),
		Shift:       k.Shift,
		Role:        k.Role,
		Active:      k.Active,
	}
}

func toTierDTO(t compensation.ActivityTier) ActivityTierDTO {
	return ActivityTierDTO{
		ActivityName:        t.ActivityName,
		LevelLabel:          t.LevelLabel,
		UnitValue:           toFloat(t.UnitValue),
		MinimumProductivity: toFloat(t.MinimumProductivity),
		Unit:                t.Unit,
	}
}

func toTaskCountDTO(operator string, res tasklog.ParseResult, sum tasklog.Summary) TaskCountDTO {
	dto := TaskCountDTO{
		Operator:    operator,
		Status:      string(res.Status),
		Messages:    res.Messages,
		Records:     len(res.Records),
		Matched:     sum.Matched,
		SkippedRows: res.SkippedRows,
		ValidTasks:  sum.Total,
		PerType:     make([]TaskTypeCountDTO, 0, len(sum.PerType)),
	}
	if dto.Messages == nil {
		dto.Messages = []string{}
	}
	for _, tc := range sum.PerType {
		dto.PerType = append(dto.PerType, TaskTypeCountDTO{
			Type:          tc.Type,
			Count:         tc.Count,
			TargetSeconds: tc.Target.Seconds(),
		})
	}
	return dto
}
