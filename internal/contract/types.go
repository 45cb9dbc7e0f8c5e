// Package contract holds the JSON shapes exchanged between the HTTP server
// and the remote client, with conversions to and from the domain.
package contract

import (
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
)

type StagePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type TransitionPolicy struct {
	Mode    string      `json:"mode"`
	Allowed []StagePair `json:"allowed,omitempty"`
}

type Stage struct {
	ID                  string    `json:"id"`
	PipelineID          string    `json:"pipeline_id"`
	Name                string    `json:"name"`
	Color               string    `json:"color,omitempty"`
	OrderIndex          int       `json:"order_index"`
	ProbabilityPercent  *int      `json:"probability_percent"`
	IsWon               bool      `json:"is_won"`
	IsLost              bool      `json:"is_lost"`
	StagnationAlertDays *int      `json:"stagnation_alert_days"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Pipeline struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Color       string           `json:"color,omitempty"`
	Transitions TransitionPolicy `json:"transitions"`
	Stages      []Stage          `json:"stages,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type FieldDefinition struct {
	ID              string        `json:"id"`
	PipelineID      string        `json:"pipeline_id"`
	Name            string        `json:"name"`
	Label           string        `json:"label"`
	Type            string        `json:"type"`
	Required        bool          `json:"required"`
	Options         []FieldOption `json:"options,omitempty"`
	Group           string        `json:"group,omitempty"`
	Width           string        `json:"width,omitempty"`
	Order           int           `json:"order"`
	VisibleInKanban bool          `json:"visible_in_kanban"`
}

type Opportunity struct {
	ID                string              `json:"id"`
	PipelineID        string              `json:"pipeline_id"`
	StageID           string              `json:"stage_id"`
	Name              string              `json:"name"`
	Value             *decimal.Decimal    `json:"value"`
	WeightedValue     *decimal.Decimal    `json:"weighted_value"`
	ExpectedCloseDate *time.Time          `json:"expected_close_date"`
	Notes             string              `json:"notes,omitempty"`
	CustomFields      domain.CustomFields `json:"custom_fields"`
	LineItems         []domain.LineItem   `json:"line_items,omitempty"`
	EnteredStageAt    time.Time           `json:"entered_stage_at"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Version           int64               `json:"version"`
}

type OpportunityPage struct {
	Items      []Opportunity   `json:"items"`
	TotalCount int             `json:"total_count"`
	TotalValue decimal.Decimal `json:"total_value"`
	NextOffset int             `json:"next_offset"`
}

// OpportunityPayload is the body of POST and PATCH /v1/opportunities.
// Absent keys leave stored fields unchanged on PATCH.
type OpportunityPayload struct {
	PipelineID         string              `json:"pipeline_id,omitempty"`
	StageID            *string             `json:"stage_id,omitempty"`
	Name               *string             `json:"name,omitempty"`
	Value              *decimal.Decimal    `json:"value,omitempty"`
	ClearValue         bool                `json:"clear_value,omitempty"`
	ExpectedCloseDate  *time.Time          `json:"expected_close_date,omitempty"`
	ClearExpectedClose bool                `json:"clear_expected_close,omitempty"`
	Notes              *string             `json:"notes,omitempty"`
	CustomFields       domain.CustomFields `json:"custom_fields,omitempty"`
	LineItems          []domain.LineItem   `json:"line_items,omitempty"`
	ExpectedVersion    int64               `json:"expected_version,omitempty"`
}

type MoveRequest struct {
	StageID string `json:"stage_id"`
}

type StageSummary struct {
	StageID       string          `json:"stage_id"`
	Name          string          `json:"name"`
	OrderIndex    int             `json:"order_index"`
	IsWon         bool            `json:"is_won"`
	IsLost        bool            `json:"is_lost"`
	Count         int             `json:"count"`
	TotalValue    decimal.Decimal `json:"total_value"`
	WeightedTotal decimal.Decimal `json:"weighted_total"`
}

type StageTransition struct {
	ID             string    `json:"id"`
	OpportunityID  string    `json:"opportunity_id"`
	FromStageID    string    `json:"from_stage_id,omitempty"`
	ToStageID      string    `json:"to_stage_id"`
	EnteredFromAt  time.Time `json:"entered_from_at"`
	TransitionedAt time.Time `json:"transitioned_at"`
}

// Error codes carried in Error.Code.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_FAILED"
	CodeVersionConflict      = "VERSION_CONFLICT"
	CodeTransitionNotAllowed = "TRANSITION_NOT_ALLOWED"
	CodeStageNotInPipeline   = "STAGE_NOT_IN_PIPELINE"
	CodeBadRequest           = "BAD_REQUEST"
	CodeInternal             = "INTERNAL_ERROR"
)

type FieldError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Error struct {
	Code    string                `json:"code"`
	Message string                `json:"error"`
	Fields  map[string]FieldError `json:"fields,omitempty"`
}
