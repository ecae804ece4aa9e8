package model

import "time"

// MediaURL is the path prefix uploaded files are served from.
const MediaURL = "/media/"

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type Dashboard struct {
	TotalBooks   int `json:"totalBooks"`
	TotalMembers int `json:"totalMembers"`
	TotalLoans   int `json:"totalLoans"`
	TotalFines   int `json:"totalFines"`
	UnpaidFines  int `json:"unpaidFines"`
}

// Today truncates t to its calendar date, expressed as UTC midnight
// so that date arithmetic is free of DST shifts.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from -> to, negative when to is earlier.
func DaysBetween(from, to time.Time) int {
	return int(Today(to).Sub(Today(from)).Hours() / 24)
}
