package project

type Status int

const (
	StatusActive    Status = 1
	StatusOnHold    Status = 2
	StatusCompleted Status = 3
	StatusArchived  Status = 5
	StatusClosed    Status = 9
)

func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusOnHold:
		return "On Hold"
	case StatusCompleted:
		return "Completed"
	case StatusArchived:
		return "Archived"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

type Project struct {
	Id     int
	Name   string
	Status Status
}
