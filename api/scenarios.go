/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the source tables with
	realistic data for one month, so the leaderboard pipeline can be
	exercised end-to-end without upstream systems.

AVAILABLE SCENARIOS:

	single-rm:        One RM with SIP and lumpsum points only
	mixed-team:       Every bucket, both leaders, an inactive RM inside the
	                  payout window and a ghost directory entry
	inactive-window:  RMs on both sides of the inactive payout window

HOW SCENARIOS WORK:
 1. Reset source, output and run data (configuration is kept)
 2. Seed the directory
 3. Seed MF, lumpsum, insurance, referral and leader-bonus rows
 4. Optionally run the pipeline for the scenario month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mixed-team", "month": "2025-11", "run": true}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/warp/incentive-engine/model"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// DefaultScenarioMonth is used when a load request names no month.
const DefaultScenarioMonth = "2025-11"

var scenarios = []ScenarioDTO{
	{
		ID:          "single-rm",
		Name:        "Single RM",
		Description: "One active RM with 500 SIP and 300 lumpsum points",
		Month:       DefaultScenarioMonth,
	},
	{
		ID:          "mixed-team",
		Name:        "Mixed Team",
		Description: "MF, lumpsum, insurance and referrals with both leaders and an inactive RM",
		Month:       DefaultScenarioMonth,
	},
	{
		ID:          "inactive-window",
		Name:        "Inactive Window",
		Description: "Inactive RMs just inside and just outside the payout window",
		Month:       DefaultScenarioMonth,
	},
}

var scenarioLoaders = map[string]func(*seeder){
	"single-rm":       loadSingleRMScenario,
	"mixed-team":      loadMixedTeamScenario,
	"inactive-window": loadInactiveWindowScenario,
}

func findScenario(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s)
}

// LoadScenario resets the data and seeds a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	scenario, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	monthKey := req.Month
	if monthKey == "" {
		monthKey = scenario.Month
	}
	m, err := model.ParseMonth(monthKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	ctx := context.WithoutCancel(r.Context())

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")

	s := &seeder{ctx: ctx, store: h.Store, month: m}
	scenarioLoaders[scenario.ID](s)
	if s.err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", s.err)
		return
	}
	h.setCurrentScenario(scenario.ID)
	h.logger.Info("scenario loaded", "scenario", scenario.ID, "month", m.String(),
		"employees", s.employees, "records", s.records)

	resp := LoadScenarioResponse{Scenario: scenario, Month: m, Employees: s.employees, Records: s.records}
	if req.Run && h.Runner != nil {
		sum, err := h.Runner.Run(ctx, m, false)
		run := newRunResponse(m, sum, err)
		resp.Run = &run
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetDatabase clears source, output and run data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SEEDING
// =============================================================================

// seeder writes source rows for one month and stops at the first error.
type seeder struct {
	ctx   context.Context
	store model.SourceWriter
	month model.Month

	employees int
	records   int
	err       error
}

func (s *seeder) employee(id, code, name, status string, inactiveSince *time.Time) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveEmployee(s.ctx, model.Employee{
		ID: id, Code: code, FullName: name, Status: status, InactiveSince: inactiveSince,
		Email: fmt.Sprintf("%s@example.com", id),
	})
	s.employees++
}

func (s *seeder) mf(employeeID string, sip, lump, aum float64) {
	if s.err != nil {
		return
	}
	updated := s.at(2)
	s.err = s.store.SaveMFScore(s.ctx, model.MFScore{
		ID: uuid.NewString(), EmployeeID: employeeID, Month: s.month,
		SIPPoints: sip, LumpsumPoints: lump,
		GrossSIP: sip * 20, NetSIP: sip * 18, CancelSIP: sip * 2,
		AUMStart: aum, UpdatedAt: &updated,
	})
	s.records++
}

func (s *seeder) lumpsum(employeeID string, purchase, redemption, aum float64) {
	if s.err != nil {
		return
	}
	updated := s.at(4)
	s.err = s.store.SaveLumpsum(s.ctx, model.LumpsumRecord{
		ID: uuid.NewString(), EmployeeID: employeeID, Month: s.month,
		TotalPurchase: purchase, Redemption: redemption,
		SwitchIn100: purchase / 10, COBIn50: purchase / 20,
		AUMStart: aum, UpdatedAt: &updated,
	})
	s.records++
}

func (s *seeder) policy(employeeID string, day int, points, premium, fresh float64, class, status string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveInsurancePolicy(s.ctx, model.InsurancePolicy{
		PolicyNumber: "POL-" + uuid.NewString()[:8], EmployeeID: employeeID,
		ConversionDate: s.at(day), PointsPolicy: points,
		ThisYearPremium: premium, FreshPremiumEligible: fresh, LastYearPremium: premium - fresh,
		PolicyClassification: class, PolicyStatus: status,
	})
	s.records++
}

func (s *seeder) referral(employeeID string, points float64, legacy bool) {
	if s.err != nil {
		return
	}
	r := model.ReferralScore{ID: uuid.NewString(), EmployeeID: employeeID, Month: s.month, Points: points}
	if legacy {
		s.err = s.store.SaveLegacyReferral(s.ctx, r)
	} else {
		s.err = s.store.SaveReferral(s.ctx, r)
	}
	s.records++
}

func (s *seeder) leaderBonus(rmName string, bucket model.LeaderBucket, points float64) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveLeaderBonus(s.ctx, model.LeaderBonus{RMName: rmName, Month: s.month, Bucket: bucket, BonusPoints: points})
	s.records++
}

// at returns noon UTC on the given day of the scenario month.
func (s *seeder) at(day int) time.Time {
	return s.month.Start().AddDate(0, 0, day-1).Add(12 * time.Hour)
}

func (s *seeder) monthsAgo(n int) *time.Time {
	t := s.month.AddMonths(-n).Start()
	return &t
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSingleRMScenario(s *seeder) {
	s.employee("emp-001", "WM-001", "Asha Rao", "active", nil)
	s.mf("emp-001", 500, 300, 2500000)
}

func loadMixedTeamScenario(s *seeder) {
	s.employee("emp-101", "WM-101", "Asha Rao", "active", nil)
	s.employee("emp-102", "WM-102", "Ravi Kumar", "active", nil)
	s.employee("emp-103", "WM-103", "Sumit Chaudhary", "active", nil)
	s.employee("emp-104", "WM-104", "Sagar Maini", "active", nil)
	s.employee("emp-105", "WM-105", "Zoya Khan", "inactive", s.monthsAgo(2))
	s.employee("emp-106", "", "Ghost Mapping", "inactive", s.monthsAgo(1))

	s.mf("emp-101", 9000, 2500, 1200000)
	s.mf("emp-102", 300, 0, 50000)
	s.mf("emp-103", 1200, 400, 300000)
	s.mf("emp-104", 14000, 6000, 4000000)
	s.mf("emp-106", 800, 0, 10000)
	s.lumpsum("emp-101", 50000, 5000, 400000)
	s.lumpsum("emp-104", 250000, 20000, 1500000)

	s.policy("emp-102", 3, 1200, 80000, 80000, "Fresh", "Active")
	s.policy("emp-102", 9, 150, 30000, 0, "Renewal", "Active")
	s.policy("emp-103", 5, 1800, 120000, 100000, "Fresh", "Active")
	s.policy("emp-103", 12, 200, 40000, 0, "Renewal", "Lapsed")
	s.policy("emp-105", 6, 2600, 100000, 100000, "Fresh", "Active")

	s.referral("emp-101", 150, false)
	s.referral("emp-102", 40.6, true)

	s.leaderBonus("Sumit Chaudhary", model.LeaderBucketInsurance, 500)
	s.leaderBonus("Sagar Maini", model.LeaderBucketInvestment, 3000)
}

func loadInactiveWindowScenario(s *seeder) {
	s.employee("emp-201", "WM-201", "Inside Window", "inactive", s.monthsAgo(5))
	s.employee("emp-202", "WM-202", "Outside Window", "inactive", s.monthsAgo(6))
	s.employee("emp-203", "WM-203", "No Date", "inactive", nil)

	for _, id := range []string{"emp-201", "emp-202", "emp-203"} {
		s.mf(id, 2500, 0, 1000000)
		s.policy(id, 10, 1000, 50000, 50000, "Fresh", "Active")
	}
}
