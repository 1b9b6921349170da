package overallocation

import (
	"net/http"
	"net/url"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/rest"
	"github.com/benchtrack/benchtrack/pkg/allocation"
	"github.com/shopspring/decimal"
)

type ProjectHoursDTO struct {
	ProjectId        int             `json:"projectId"`
	ProjectName      string          `json:"projectName"`
	ProjectStatus    string          `json:"projectStatus"`
	BillableHours    decimal.Decimal `json:"billableHours"`
	NonBillableHours decimal.Decimal `json:"nonBillableHours"`
	LeaveHours       decimal.Decimal `json:"leaveHours"`
	TotalHours       decimal.Decimal `json:"totalHours"`
}

type CheckResultDTO struct {
	CurrentTotal        decimal.Decimal   `json:"currentTotal"`
	NewTotal            decimal.Decimal   `json:"newTotal"`
	IsOverallocated     bool              `json:"isOverallocated"`
	OverBy              decimal.Decimal   `json:"overBy"`
	Limit               decimal.Decimal   `json:"limit"`
	CurrentProjectHours decimal.Decimal   `json:"currentProjectHours"`
	NewProjectHours     decimal.Decimal   `json:"newProjectHours"`
	Allocations         []ProjectHoursDTO `json:"allocations"`
}

type BreakdownDTO struct {
	UserId           int               `json:"userId"`
	Name             string            `json:"name"`
	Year             int               `json:"year"`
	Week             int               `json:"week"`
	BillableHours    decimal.Decimal   `json:"billableHours"`
	NonBillableHours decimal.Decimal   `json:"nonBillableHours"`
	LeaveHours       decimal.Decimal   `json:"leaveHours"`
	TotalHours       decimal.Decimal   `json:"totalHours"`
	IsOverallocated  bool              `json:"isOverallocated"`
	OverBy           decimal.Decimal   `json:"overBy"`
	Limit            decimal.Decimal   `json:"limit"`
	Projects         []ProjectHoursDTO `json:"projects"`
}

type Handler struct {
	checker Checker
}

func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// Check godoc
// @Summary Check whether proposed hours would overallocate a user
// @Description Advisory only; saving is never blocked by the result.
// @Tags Allocation
// @Produce json
// @Param userId query int true "User ID"
// @Param week query int true "Corporate week"
// @Param year query int true "Corporate year"
// @Param currentProjectId query int true "Project being edited"
// @Param newBillable query number false "Proposed billable hours"
// @Param newNonBillable query number false "Proposed non-billable hours"
// @Param newLeave query number false "Proposed leave hours"
// @Success 200 {object} CheckResultDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid parameters"
// @Router /api/allocation/check-overallocation [get]
// @Security SessionId
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	in, err := checkInputFromQuery(query)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	result, err := h.checker.Check(r.Context(), in)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, CheckResultDTO{
		CurrentTotal:        result.CurrentTotal,
		NewTotal:            result.NewTotal,
		IsOverallocated:     result.IsOverallocated,
		OverBy:              result.OverBy,
		Limit:               result.Limit,
		CurrentProjectHours: result.CurrentProjectHours,
		NewProjectHours:     result.NewProjectHours,
		Allocations:         projectsToDTO(result.Projects),
	})
}

// Breakdown godoc
// @Summary Get a user's hours per project for a week
// @Tags Allocation
// @Produce json
// @Param userId query int true "User ID"
// @Param week query int true "Corporate week"
// @Param year query int true "Corporate year"
// @Success 200 {object} BreakdownDTO
// @Failure 404 {object} rest.ErrorResponse "User not found"
// @Router /api/allocation/user-week-breakdown [get]
// @Security SessionId
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userId, err := rest.IntParam(query.Get("userId"), "userId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	week, err := rest.IntParam(query.Get("week"), "week")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	year, err := rest.IntParam(query.Get("year"), "year")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	b, err := h.checker.UserWeekBreakdown(r.Context(), userId, week, year)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BreakdownDTO{
		UserId:           b.UserId,
		Name:             b.Name,
		Year:             b.Year,
		Week:             b.Week,
		BillableHours:    b.Totals.Billable,
		NonBillableHours: b.Totals.NonBillable,
		LeaveHours:       b.Totals.Leave,
		TotalHours:       b.Totals.Total(),
		IsOverallocated:  b.IsOverallocated,
		OverBy:           b.OverBy,
		Limit:            b.Limit,
		Projects:         projectsToDTO(b.Projects),
	})
}

func checkInputFromQuery(query url.Values) (CheckInput, error) {
	var in CheckInput
	var err error
	if in.UserId, err = rest.IntParam(query.Get("userId"), "userId"); err != nil {
		return CheckInput{}, err
	}
	if in.Week, err = rest.IntParam(query.Get("week"), "week"); err != nil {
		return CheckInput{}, err
	}
	if in.Year, err = rest.IntParam(query.Get("year"), "year"); err != nil {
		return CheckInput{}, err
	}
	if in.CurrentProjectId, err = rest.IntParam(query.Get("currentProjectId"), "currentProjectId"); err != nil {
		return CheckInput{}, err
	}
	var proposed allocation.Hours
	if proposed.Billable, err = hoursParam(query.Get("newBillable"), "newBillable"); err != nil {
		return CheckInput{}, err
	}
	if proposed.NonBillable, err = hoursParam(query.Get("newNonBillable"), "newNonBillable"); err != nil {
		return CheckInput{}, err
	}
	if proposed.Leave, err = hoursParam(query.Get("newLeave"), "newLeave"); err != nil {
		return CheckInput{}, err
	}
	in.Proposed = proposed
	return in, nil
}

func hoursParam(value string, name string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperr.Validation("parameter %s must be a number", name)
	}
	return parsed, nil
}

func projectsToDTO(projects []ProjectHours) []ProjectHoursDTO {
	dtos := make([]ProjectHoursDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, ProjectHoursDTO{
			ProjectId:        p.ProjectId,
			ProjectName:      p.Name,
			ProjectStatus:    p.Status.Label(),
			BillableHours:    p.Billable,
			NonBillableHours: p.NonBillable,
			LeaveHours:       p.Leave,
			TotalHours:       p.Total(),
		})
	}
	return dtos
}
