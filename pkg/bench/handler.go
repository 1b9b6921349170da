package bench

import (
	"net/http"
	"time"

	"github.com/benchtrack/benchtrack/internal/rest"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type SummaryDTO struct {
	RequestedYear  int  `json:"requestedYear"`
	RequestedWeek  int  `json:"requestedWeek"`
	ActualYear     int  `json:"actualYear"`
	ActualWeek     int  `json:"actualWeek"`
	IsFallback     bool `json:"isFallback"`
	FullyBenched   int  `json:"fullyBenched"`
	PartialBenched int  `json:"partialBenched"`
	NonBillable    int  `json:"nonBillable"`
	OverUtilised   int  `json:"overUtilised"`
}

type RowDTO struct {
	UserId            int             `json:"userId"`
	Name              string          `json:"name"`
	YearsOfExperience string          `json:"yearsOfExperience"`
	Skills            string          `json:"skills"`
	BillableHours     decimal.Decimal `json:"billableHours"`
	NonBillableHours  decimal.Decimal `json:"nonBillableHours"`
	LeaveHours        decimal.Decimal `json:"leaveHours"`
	TotalHours        decimal.Decimal `json:"totalHours"`
	OnBenchSince      string          `json:"onBenchSince,omitempty"`
}

type NonBillableRowDTO struct {
	RowDTO
	ProjectId               int             `json:"projectId"`
	ProjectName             string          `json:"projectName"`
	ProjectNonBillableHours decimal.Decimal `json:"projectNonBillableHours"`
	Remark                  string          `json:"remark,omitempty"`
}

type ReportDTO struct {
	SummaryDTO
	FullyBenchedUsers   []RowDTO            `json:"fullyBenchedUsers"`
	PartialBenchedUsers []RowDTO            `json:"partialBenchedUsers"`
	NonBillableUsers    []NonBillableRowDTO `json:"nonBillableUsers"`
	OverUtilisedUsers   []RowDTO            `json:"overUtilisedUsers"`
}

type Handler struct {
	service     Service
	csvRenderer ReportRenderer
}

func NewHandler(service Service, csvRenderer ReportRenderer) *Handler {
	return &Handler{service: service, csvRenderer: csvRenderer}
}

// GetSummary godoc
// @Summary Count users per bench category
// @Description Falls back to the most recent week with data when the requested week has none.
// @Tags Bench
// @Produce json
// @Param year query int true "Corporate year"
// @Param week query int true "Corporate week"
// @Success 200 {object} SummaryDTO
// @Failure 403 {object} rest.ErrorResponse "Admin only"
// @Router /api/bench/summary [get]
// @Security SessionId
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	year, week, err := yearWeek(r)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), year, week)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, summaryToDTO(summary))
}

// GetReport godoc
// @Summary Get the users in each bench category
// @Description Responds with CSV when the Accept header is text/csv.
// @Tags Bench
// @Produce json
// @Produce text/csv
// @Param year query int true "Corporate year"
// @Param week query int true "Corporate week"
// @Success 200 {object} ReportDTO
// @Failure 403 {object} rest.ErrorResponse "Admin only"
// @Router /api/bench/report [get]
// @Security SessionId
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	year, week, err := yearWeek(r)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	report, err := h.service.Report(r.Context(), year, week)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	if r.Header.Get("Accept") == "text/csv" {
		csv, err := h.csvRenderer.RenderReport(report)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=\"bench-report.csv\"")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			log.Errorf("failed to write csv report: %v", err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, reportToDTO(report))
}

func yearWeek(r *http.Request) (int, int, error) {
	query := r.URL.Query()
	year, err := rest.IntParam(query.Get("year"), "year")
	if err != nil {
		return 0, 0, err
	}
	week, err := rest.IntParam(query.Get("week"), "week")
	if err != nil {
		return 0, 0, err
	}
	return year, week, nil
}

func summaryToDTO(s Summary) SummaryDTO {
	return SummaryDTO{
		RequestedYear:  s.RequestedYear,
		RequestedWeek:  s.RequestedWeek,
		ActualYear:     s.ActualYear,
		ActualWeek:     s.ActualWeek,
		IsFallback:     s.IsFallback(),
		FullyBenched:   s.FullyBenched,
		PartialBenched: s.PartialBenched,
		NonBillable:    s.NonBillable,
		OverUtilised:   s.OverUtilised,
	}
}

func reportToDTO(report Report) ReportDTO {
	nonBillable := make([]NonBillableRowDTO, 0, len(report.NonBillable))
	for _, row := range report.NonBillable {
		nonBillable = append(nonBillable, NonBillableRowDTO{
			RowDTO:                  rowToDTO(row.Row),
			ProjectId:               row.ProjectId,
			ProjectName:             row.ProjectName,
			ProjectNonBillableHours: row.ProjectHours.NonBillable,
			Remark:                  row.Remark,
		})
	}
	return ReportDTO{
		SummaryDTO:          summaryToDTO(report.Summary()),
		FullyBenchedUsers:   rowsToDTO(report.FullyBenched),
		PartialBenchedUsers: rowsToDTO(report.PartialBenched),
		NonBillableUsers:    nonBillable,
		OverUtilisedUsers:   rowsToDTO(report.OverUtilised),
	}
}

func rowToDTO(row Row) RowDTO {
	dto := RowDTO{
		UserId:            row.UserId,
		Name:              row.Name,
		YearsOfExperience: row.Tenure.StringFixed(1),
		Skills:            row.Skills,
		BillableHours:     row.Billable,
		NonBillableHours:  row.NonBillable,
		LeaveHours:        row.Leave,
		TotalHours:        row.Total(),
	}
	if !row.OnBenchSince.IsZero() {
		dto.OnBenchSince = row.OnBenchSince.Format(time.DateOnly)
	}
	return dto
}

func rowsToDTO(rows []Row) []RowDTO {
	dtos := make([]RowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, rowToDTO(row))
	}
	return dtos
}
