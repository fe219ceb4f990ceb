/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Board and incentive
  rows are returned as stored; the wrappers here add ranking and the
  "not yet computed" state.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry validator tags, checked in the handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - model/rows.go: Stored row types
*/
package api

import (
	"errors"

	"github.com/warp/incentive-engine/leaderboard"
	"github.com/warp/incentive-engine/model"
	"github.com/warp/incentive-engine/schedule"
)

// =============================================================================
// LEADERBOARD
// =============================================================================

// RankedRowDTO is a public row with its position on the board.
type RankedRowDTO struct {
	Rank int `json:"rank"`
	model.PublicLeaderboardRow
}

// LeaderboardResponse is one month's public board, highest total first.
type LeaderboardResponse struct {
	Month model.Month    `json:"period_month"`
	Count int            `json:"count"`
	Rows  []RankedRowDTO `json:"rows"`
}

// PublicRowResponse is a single employee's board row. Computed is false
// when the month has not been computed for that employee.
type PublicRowResponse struct {
	Computed bool                        `json:"computed"`
	RMName   string                      `json:"rm_name"`
	Month    model.Month                 `json:"period_month"`
	Row      *model.PublicLeaderboardRow `json:"row,omitempty"`
}

// =============================================================================
// INCENTIVES
// =============================================================================

// IncentivesResponse is one month's incentive rows with stream totals.
type IncentivesResponse struct {
	Month          model.Month               `json:"period_month"`
	Count          int                       `json:"count"`
	TotalIncentive float64                   `json:"total_incentive"`
	InsRupees      float64                   `json:"ins_rupees_total"`
	MFRupees       float64                   `json:"mf_rupees"`
	Rows           []model.RupeeIncentiveRow `json:"rows"`
}

// IncentiveRowResponse is a single employee's incentive row. Computed is
// false when the month has not been computed for that employee.
type IncentiveRowResponse struct {
	Computed bool                     `json:"computed"`
	RMName   string                   `json:"rm_name"`
	Month    model.Month              `json:"period_month"`
	Row      *model.RupeeIncentiveRow `json:"row,omitempty"`
}

// =============================================================================
// RUNS
// =============================================================================

// Run modes accepted by TriggerRun.
const (
	RunModeConfigured = "configured"
)

// RunRequest triggers a pipeline run. An empty month uses the anchor month;
// an empty mode uses the configured range.
type RunRequest struct {
	Month  string `json:"month" validate:"omitempty,datetime=2006-01"`
	Mode   string `json:"mode" validate:"omitempty,oneof=configured single twomonths fy"`
	FullFY bool   `json:"full_fy"`
}

// RunResponse reports a finished run.
type RunResponse struct {
	Anchor  model.Month               `json:"anchor"`
	Status  string                    `json:"status"`
	Months  []leaderboard.MonthResult `json:"months"`
	RunIDs  []string                  `json:"run_ids"`
	Failed  []model.Month             `json:"failed,omitempty"`
	Details string                    `json:"details,omitempty"`
}

func newRunResponse(anchor model.Month, sum schedule.Summary, err error) RunResponse {
	resp := RunResponse{
		Anchor: anchor,
		Status: model.RunCompleted,
		Months: sum.Months,
		RunIDs: sum.RunIDs,
		Failed: sum.Failed,
	}
	if resp.Months == nil {
		resp.Months = []leaderboard.MonthResult{}
	}
	if resp.RunIDs == nil {
		resp.RunIDs = []string{}
	}
	switch {
	case err == nil:
	case errors.Is(err, model.ErrPartialWrite) && !model.IsFatal(err):
		resp.Status = model.RunPartial
		resp.Details = err.Error()
	default:
		resp.Status = model.RunFailed
		resp.Details = err.Error()
	}
	return resp
}

// =============================================================================
// CONFIG
// =============================================================================

// ConfigDomainDTO lists a scoring document.
type ConfigDomainDTO struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Month       string `json:"month"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
	Month      string `json:"month" validate:"omitempty,datetime=2006-01"`
	Run        bool   `json:"run"`
}

// LoadScenarioResponse reports what a scenario seeded.
type LoadScenarioResponse struct {
	Scenario  ScenarioDTO  `json:"scenario"`
	Month     model.Month  `json:"period_month"`
	Employees int          `json:"employees"`
	Records   int          `json:"records"`
	Run       *RunResponse `json:"run,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
