package models

import "time"

// QuotaCounter tracks one account's usage of the AI assist feature for
// a single UTC day. ResetDate is the day the counter belongs to; a row
// whose ResetDate is in the past counts as zero used.
type QuotaCounter struct {
	AccountID string    `db:"account_id"`
	Used      int       `db:"used"`
	ResetDate time.Time `db:"reset_date"`
}

// UsedOn returns the effective usage for the given UTC day. A counter
// left over from an earlier day has not been touched today and reads
// as zero regardless of its stored value.
func (q *QuotaCounter) UsedOn(day time.Time) int {
	if q.ResetDate.Before(UTCDay(day)) {
		return 0
	}
	return q.Used
}

// UTCDay truncates a timestamp to its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
