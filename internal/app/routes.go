package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Corporate calendar
	r.HandleFunc("/api/calendar/current-week", deps.CalendarHandler.CurrentWeek).Methods("GET")
	r.HandleFunc("/api/calendar/week", deps.CalendarHandler.Week).Methods("GET")
	r.HandleFunc("/api/calendar/editable-weeks", deps.CalendarHandler.EditableWeeks).Methods("GET")

	// Allocations
	r.HandleFunc("/api/projects/{projectId}/allocations", deps.AllocationHandler.GetAllocations).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/allocations", deps.AllocationHandler.Upsert).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}/weekly-allocations", deps.AllocationHandler.GetProjectWeeks).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/editable-allocations", deps.AllocationHandler.GetEditable).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/copy-last-week", deps.AllocationHandler.CopyLastWeek).Methods("POST")
	r.HandleFunc("/api/allocations/{allocationId}", deps.AllocationHandler.UpdateById).Methods("PUT")
	r.HandleFunc("/api/weekly-remark/{userId}/{week}", deps.AllocationHandler.UpsertRemark).Methods("PUT")

	// Overallocation
	r.HandleFunc("/api/allocation/check-overallocation", deps.CheckerHandler.Check).Methods("GET")
	r.HandleFunc("/api/allocation/user-week-breakdown", deps.CheckerHandler.Breakdown).Methods("GET")

	// Bench
	r.HandleFunc("/api/bench/summary", deps.BenchHandler.GetSummary).Methods("GET")
	r.HandleFunc("/api/bench/report", deps.BenchHandler.GetReport).Methods("GET")

	// Users and sessions
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/session", deps.SessionHandler.Login).Methods("POST")
	r.HandleFunc("/api/session/logout", deps.SessionHandler.Logout).Methods("POST")

	r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
}
