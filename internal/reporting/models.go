package reporting

import (
	"time"

	"barberline/internal/calls"
)

const (
	DefaultDays = 30
	MaxDays     = 365

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AnalyticsRequest asks for call statistics for one shop over the trailing Days.
type AnalyticsRequest struct {
	ShopID string
	Days   int
	// Location buckets calls into the shop's local days and hours.
	Location *time.Location
}

type Analytics struct {
	TotalCalls int `json:"totalCalls"`
	Booked     int `json:"booked"`
	// ConversionRate is booked/total as a percentage with two decimals.
	ConversionRate float64 `json:"conversionRate"`
	// AvgDuration is in seconds, over calls with a known duration.
	AvgDuration int `json:"avgDuration"`

	ByOutcome map[calls.Outcome]int `json:"byOutcome"`
	ByDate    []DateBucket          `json:"byDate"`
	ByHour    []HourBucket          `json:"byHour"`
}

type DateBucket struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	Booked int    `json:"booked"`
}

type HourBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// CallPage is one page of a shop's call history, newest first.
type CallPage struct {
	Calls []calls.CallLog `json:"calls"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
