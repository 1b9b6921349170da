package bench

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ReportRenderer interface {
	RenderReport(report Report) (string, error)
}

type CsvReportRendererImpl struct{}

func NewCsvReportRenderer() *CsvReportRendererImpl {
	return &CsvReportRendererImpl{}
}

var csvHeader = []string{
	"Category", "User ID", "Name", "Experience (years)", "Skills",
	"Billable", "Non-billable", "Leave", "Total", "Project", "Project non-billable", "Remark", "On bench since",
}

// RenderReport writes one line per row of every category, preceded by the week the data
// comes from.
func (t *CsvReportRendererImpl) RenderReport(report Report) (string, error) {
	data := [][]string{
		{"Requested week", fmt.Sprintf("%d/%d", report.RequestedWeek, report.RequestedYear)},
		{"Reported week", fmt.Sprintf("%d/%d", report.ActualWeek, report.ActualYear)},
		csvHeader,
	}
	for _, row := range report.FullyBenched {
		data = append(data, rowToCsv("Fully benched", row, "", "", ""))
	}
	for _, row := range report.PartialBenched {
		data = append(data, rowToCsv("Partially benched", row, "", "", ""))
	}
	for _, row := range report.NonBillable {
		data = append(data, rowToCsv("Non-billable", row.Row, row.ProjectName, hoursToString(row.ProjectHours.NonBillable), row.Remark))
	}
	for _, row := range report.OverUtilised {
		data = append(data, rowToCsv("Over-utilised", row, "", "", ""))
	}

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	return b.String(), nil
}

func rowToCsv(category string, row Row, project string, projectNonBillable string, remark string) []string {
	return []string{
		category,
		strconv.Itoa(row.UserId),
		row.Name,
		row.Tenure.StringFixed(1),
		row.Skills,
		hoursToString(row.Billable),
		hoursToString(row.NonBillable),
		hoursToString(row.Leave),
		hoursToString(row.Total()),
		project,
		projectNonBillable,
		remark,
		dateToString(row.OnBenchSince),
	}
}

func dateToString(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	return date.Format(time.DateOnly)
}

func hoursToString(hours decimal.Decimal) string {
	return hours.StringFixed(2)
}
