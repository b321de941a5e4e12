// Package dailytrigger detects the date boundary between the newest prior
// journal entry and the current commit's journal file, and reports
// calendar-boundary flags for future period summaries.
package dailytrigger

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DailyJournalDir is where per-commit journal files live, matching the
// renderer's journal/daily convention.
const DailyJournalDir = "journal/daily"

// DailySummaryDir is where daily summary files live.
const DailySummaryDir = "journal/summaries/daily"

var dailyFileRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-journal\.md$`)

// Detect examines journalDir (the directory holding per-commit journal
// files) for the newest-dated file strictly earlier than currentDate, and
// returns its date when no summary file for it exists yet in summaryDir.
// Corrupted or unreadable journal files still count by filename alone.
func Detect(journalDir, summaryDir, currentDate string) (string, bool) {
	entries, err := os.ReadDir(journalDir)
	if err != nil {
		return "", false
	}

	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := dailyFileRe.FindStringSubmatch(e.Name())
		if m == nil || m[1] >= currentDate {
			continue
		}
		dates = append(dates, m[1])
	}
	if len(dates) == 0 {
		return "", false
	}

	sort.Strings(dates)
	newest := dates[len(dates)-1]

	if newest >= currentDate {
		return "", false
	}

	if summaryExists(summaryDir, newest) {
		return "", false
	}

	return newest, true
}

func summaryExists(summaryDir, date string) bool {
	path := filepath.Join(summaryDir, date+"-daily.md")
	_, err := os.Stat(path)
	return err == nil
}

// PeriodFlags reports which calendar boundaries a date sits on.
type PeriodFlags struct {
	Weekly    bool
	Monthly   bool
	Quarterly bool
	Yearly    bool
}

// PeriodTriggers returns the calendar-boundary flags for today, given as an
// RFC 3339 date string (YYYY-MM-DD). An invalid date returns all-false.
func PeriodTriggers(today string) PeriodFlags {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(today))
	if err != nil {
		return PeriodFlags{}
	}

	return PeriodFlags{
		Weekly:    t.Weekday() == time.Monday,
		Monthly:   t.Day() == 1,
		Quarterly: t.Day() == 1 && isQuarterStartMonth(t.Month()),
		Yearly:    t.Day() == 1 && t.Month() == time.January,
	}
}

func isQuarterStartMonth(m time.Month) bool {
	switch m {
	case time.January, time.April, time.July, time.October:
		return true
	default:
		return false
	}
}
