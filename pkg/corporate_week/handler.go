package corporate_week

import (
	"net/http"
	"time"

	"github.com/benchtrack/benchtrack/internal/rest"
	"github.com/benchtrack/benchtrack/internal/utils"
)

type WeekDTO struct {
	Year        int    `json:"year"`
	Week        int    `json:"week"`
	Monday      string `json:"monday"`
	Friday      string `json:"friday"`
	DisplayText string `json:"displayText"`
}

type EditableWeekDTO struct {
	WeekDTO
	IsCurrentWeek bool `json:"isCurrentWeek"`
}

type Handler struct {
	clock          utils.Clock
	editWindowDays int
}

func NewHandler(clock utils.Clock, editWindowDays int) *Handler {
	if editWindowDays <= 0 {
		editWindowDays = DefaultEditWindowDays
	}
	return &Handler{clock: clock, editWindowDays: editWindowDays}
}

// CurrentWeek godoc
// @Summary Get the current corporate week
// @Tags Calendar
// @Produce json
// @Success 200 {object} WeekDTO
// @Router /api/calendar/current-week [get]
func (h *Handler) CurrentWeek(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, WeekToDTO(CurrentWeekInfo(h.clock)))
}

// Week godoc
// @Summary Get a corporate week
// @Description Either year and week (corporate numbering) or isoWeek (e.g. 2025-W03) must be given.
// An ISO week is resolved to the corporate week containing its Monday.
// @Tags Calendar
// @Produce json
// @Param year query int false "Corporate year"
// @Param week query int false "Corporate week number"
// @Param isoWeek query string false "ISO week, YYYY-Www"
// @Success 200 {object} WeekDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid week"
// @Router /api/calendar/week [get]
func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if isoWeek := query.Get("isoWeek"); isoWeek != "" {
		year, week, err := ParseISOWeek(isoWeek)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		monday, err := ISOWeekStart(year, week)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		rest.WriteJSON(w, http.StatusOK, WeekToDTO(WeekOf(monday)))
		return
	}

	year, err := rest.IntParam(query.Get("year"), "year")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	week, err := rest.IntParam(query.Get("week"), "week")
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	if err := Validate(year, week); err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, WeekToDTO(WeekInfoFor(week, year)))
}

// EditableWeeks godoc
// @Summary List the weeks that can still be edited
// @Tags Calendar
// @Produce json
// @Success 200 {array} EditableWeekDTO
// @Router /api/calendar/editable-weeks [get]
func (h *Handler) EditableWeeks(w http.ResponseWriter, r *http.Request) {
	weeks := EditableWeeks(h.clock.Now(), h.editWindowDays)
	dtos := make([]EditableWeekDTO, 0, len(weeks))
	for _, week := range weeks {
		dtos = append(dtos, EditableWeekToDTO(week))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func WeekToDTO(week CorporateWeek) WeekDTO {
	return WeekDTO{
		Year:        week.Year,
		Week:        week.Week,
		Monday:      week.Monday.Format(time.DateOnly),
		Friday:      week.Friday.Format(time.DateOnly),
		DisplayText: week.DisplayText(),
	}
}

func EditableWeekToDTO(week EditableWeek) EditableWeekDTO {
	return EditableWeekDTO{WeekDTO: WeekToDTO(week.CorporateWeek), IsCurrentWeek: week.IsCurrentWeek}
}
