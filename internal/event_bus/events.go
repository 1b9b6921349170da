package event_bus

import "github.com/shopspring/decimal"

const (
	AllocationSavedType   EventType = "allocation.saved"
	WeeklyRemarkSavedType EventType = "weekly_remark.saved"
)

type AllocationSource string

const (
	SourceUpsert      AllocationSource = "upsert"
	SourceUpdateById  AllocationSource = "update"
	SourceCopyForward AllocationSource = "copy_forward"
)

type AllocationSaved struct {
	AllocationId int
	UserId       int
	ProjectId    int
	Year         int
	Week         int
	TotalHours   decimal.Decimal
	Created      bool
	Source       AllocationSource
	UpdatedBy    string
}

type WeeklyRemarkSaved struct {
	UserId int
	Week   int
}
