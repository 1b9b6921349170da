package allocation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/rest"
	"github.com/benchtrack/benchtrack/pkg/corporate_week"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type RecordDTO struct {
	Id               int             `json:"id"`
	UserId           int             `json:"userId"`
	ProjectId        int             `json:"projectId"`
	Year             int             `json:"year"`
	Week             int             `json:"week"`
	WeekStart        string          `json:"weekStart"`
	BillableHours    decimal.Decimal `json:"billableHours"`
	NonBillableHours decimal.Decimal `json:"nonBillableHours"`
	LeaveHours       decimal.Decimal `json:"leaveHours"`
	TotalHours       decimal.Decimal `json:"totalHours"`
	UpdatedBy        string          `json:"updatedBy"`
}

type HoursDTO struct {
	BillableHours    decimal.Decimal `json:"billableHours"`
	NonBillableHours decimal.Decimal `json:"nonBillableHours"`
	LeaveHours       decimal.Decimal `json:"leaveHours"`
}

type UpsertDTO struct {
	UserId    int    `json:"userId"`
	Year      int    `json:"year"`
	Week      int    `json:"week"`
	WeekStart string `json:"weekStart,omitempty"`
	HoursDTO
}

type EditableViewDTO struct {
	Weeks       []corporate_week.EditableWeekDTO `json:"weeks"`
	Allocations []RecordDTO                      `json:"allocations"`
}

type RemarkDTO struct {
	UserId int    `json:"userId"`
	Week   int    `json:"week"`
	Remark string `json:"remark"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetAllocations godoc
// @Summary Get a user's allocations on a project
// @Tags Allocation
// @Produce json
// @Param projectId path int true "Project ID"
// @Param userId query int true "User ID"
// @Param year query int true "Corporate year"
// @Param weeks query string false "Comma separated corporate week numbers"
// @Success 200 {array} RecordDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid parameters"
// @Failure 403 {object} rest.ErrorResponse "Not a project member"
// @Router /api/projects/{projectId}/allocations [get]
// @Security SessionId
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	projectId, err := rest.IntParam(mux.Vars(r)["projectId"], "projectId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	query := r.URL.Query()
	userId, err := rest.IntParam(query.Get("userId"), "userId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	year, weeks, err := yearAndWeeks(r)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	records, err := h.service.Get(r.Context(), userId, projectId, year, weeks)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, recordsToDTO(records))
}

// GetProjectWeeks godoc
// @Summary Get all allocations of a project for the given weeks
// @Tags Allocation
// @Produce json
// @Param projectId path int true "Project ID"
// @Param year query int true "Corporate year"
// @Param weeks query string false "Comma separated corporate week numbers"
// @Success 200 {array} RecordDTO
// @Router /api/projects/{projectId}/weekly-allocations [get]
// @Security SessionId
func (h *Handler) GetProjectWeeks(w http.ResponseWriter, r *http.Request) {
	projectId, err := rest.IntParam(mux.Vars(r)["projectId"], "projectId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	year, weeks, err := yearAndWeeks(r)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	records, err := h.service.ListProjectWeeks(r.Context(), projectId, year, weeks)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, recordsToDTO(records))
}

// GetEditable godoc
// @Summary Get the editable weeks and the project's allocations in them
// @Tags Allocation
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {object} EditableViewDTO
// @Router /api/projects/{projectId}/editable-allocations [get]
// @Security SessionId
func (h *Handler) GetEditable(w http.ResponseWriter, r *http.Request) {
	projectId, err := rest.IntParam(mux.Vars(r)["projectId"], "projectId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	view, err := h.service.EditableAllocations(r.Context(), projectId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	weeks := make([]corporate_week.EditableWeekDTO, 0, len(view.Weeks))
	for _, week := range view.Weeks {
		weeks = append(weeks, corporate_week.EditableWeekToDTO(week))
	}
	rest.WriteJSON(w, http.StatusOK, EditableViewDTO{Weeks: weeks, Allocations: recordsToDTO(view.Records)})
}

// Upsert godoc
// @Summary Create or replace a weekly allocation
// @Tags Allocation
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param allocation body UpsertDTO true "Allocation"
// @Success 200 {object} RecordDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid input"
// @Failure 403 {object} rest.ErrorResponse "Not a project member"
// @Failure 404 {object} rest.ErrorResponse "User or project not found"
// @Failure 409 {object} rest.ErrorResponse "Week is outside the edit window"
// @Router /api/projects/{projectId}/allocations [put]
// @Security SessionId
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	projectId, err := rest.IntParam(mux.Vars(r)["projectId"], "projectId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var dto UpsertDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	var weekStart time.Time
	if dto.WeekStart != "" {
		weekStart, err = time.Parse(time.DateOnly, dto.WeekStart)
		if err != nil {
			rest.WriteBadRequest(w, "Incorrect date format", "weekStart must be in YYYY-MM-DD format")
			return
		}
	}

	saved, err := h.service.Upsert(r.Context(), UpsertInput{
		UserId:    dto.UserId,
		ProjectId: projectId,
		Year:      dto.Year,
		Week:      dto.Week,
		WeekStart: weekStart,
		Hours:     dto.HoursDTO.toHours(),
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, RecordToDTO(saved))
}

// UpdateById godoc
// @Summary Replace the hours of an existing allocation
// @Tags Allocation
// @Accept json
// @Produce json
// @Param allocationId path int true "Allocation ID"
// @Param hours body HoursDTO true "Hours"
// @Success 200 {object} RecordDTO
// @Failure 404 {object} rest.ErrorResponse "Allocation not found"
// @Failure 409 {object} rest.ErrorResponse "Week is outside the edit window"
// @Router /api/allocations/{allocationId} [put]
// @Security SessionId
func (h *Handler) UpdateById(w http.ResponseWriter, r *http.Request) {
	id, err := rest.IntParam(mux.Vars(r)["allocationId"], "allocationId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var dto HoursDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	saved, err := h.service.UpdateById(r.Context(), id, dto.toHours())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, RecordToDTO(saved))
}

// CopyLastWeek godoc
// @Summary Copy last week's hours into the current week
// @Tags Allocation
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param body body object{userId=int} true "User to copy"
// @Success 200 {object} RecordDTO
// @Failure 400 {object} rest.ErrorResponse "Missing userId"
// @Failure 404 {object} rest.ErrorResponse "Nothing to copy"
// @Router /api/projects/{projectId}/copy-last-week [post]
// @Security SessionId
func (h *Handler) CopyLastWeek(w http.ResponseWriter, r *http.Request) {
	projectId, err := rest.IntParam(mux.Vars(r)["projectId"], "projectId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var body struct {
		UserId int `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	if body.UserId <= 0 {
		rest.WriteError(w, apperr.Validation("userId is required"))
		return
	}
	saved, err := h.service.CopyForward(r.Context(), body.UserId, projectId)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, RecordToDTO(saved))
}

// UpsertRemark godoc
// @Summary Set the non-billable remark of a user for a week
// @Tags Allocation
// @Accept json
// @Produce json
// @Param userId path int true "User ID"
// @Param week path int true "Corporate week number"
// @Param body body object{remark=string} true "Remark"
// @Success 200 {object} RemarkDTO
// @Failure 403 {object} rest.ErrorResponse "Admin only"
// @Router /api/weekly-remark/{userId}/{week} [put]
// @Security SessionId
func (h *Handler) UpsertRemark(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userId, err := rest.IntParam(vars["userId"], "userId")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	week, err := rest.IntParam(vars["week"], "week")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	var body struct {
		Remark string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rest.WriteBadRequest(w, "Invalid request body format", err.Error())
		return
	}
	saved, err := h.service.UpsertRemark(r.Context(), userId, week, body.Remark)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, RemarkDTO{UserId: saved.UserId, Week: saved.Week, Remark: saved.Remark})
}

func yearAndWeeks(r *http.Request) (int, []int, error) {
	query := r.URL.Query()
	year, err := rest.IntParam(query.Get("year"), "year")
	if err != nil {
		return 0, nil, err
	}
	weeks, err := rest.IntListParam(query.Get("weeks"), "weeks")
	if err != nil {
		return 0, nil, err
	}
	return year, weeks, nil
}

func (dto HoursDTO) toHours() Hours {
	return Hours{Billable: dto.BillableHours, NonBillable: dto.NonBillableHours, Leave: dto.LeaveHours}
}

func RecordToDTO(rec Record) RecordDTO {
	return RecordDTO{
		Id:               rec.Id,
		UserId:           rec.UserId,
		ProjectId:        rec.ProjectId,
		Year:             rec.Year,
		Week:             rec.Week,
		WeekStart:        rec.WeekStart.Format(time.DateOnly),
		BillableHours:    rec.Billable,
		NonBillableHours: rec.NonBillable,
		LeaveHours:       rec.Leave,
		TotalHours:       rec.Total(),
		UpdatedBy:        rec.UpdatedBy,
	}
}

func recordsToDTO(records []Record) []RecordDTO {
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, RecordToDTO(rec))
	}
	return dtos
}
