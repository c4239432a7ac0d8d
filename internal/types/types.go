package types

import "time"

type LimitReq struct {
	Limit int `form:"limit,optional"`
}

type HistoryReq struct {
	Coin  string `path:"coin"`
	Limit int    `form:"limit,optional"`
}

// ListResp wraps every list endpoint's rows.
type ListResp struct {
	Count int `json:"count"`
	Items any `json:"items"`
}

type FreshnessResp struct {
	ExtractedAt     *time.Time `json:"extracted_at"`
	AgeSeconds      float64    `json:"age_seconds"`
	IntervalSeconds float64    `json:"interval_seconds"`
	Stale           bool       `json:"stale"`
}

type ErrorResp struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
