package projections

import (
	"context"
	"fmt"
	"time"

	"studio/internal/adapters/storage/activitylog"
	"studio/internal/application/listutil"
	domainActivity "studio/internal/domain/activitylog"
)

// ActivityLogSpec is the query parameters the activity log understands.
// The only ordering is by time, newest first unless dir=asc.
var ActivityLogSpec = listutil.ListSpec{
	SortKeys:    []string{"timestamp"},
	DefaultSort: listutil.SortParams{Sort: "timestamp", Desc: true},
	FilterKeys:  []string{"day", "housekeeping"},
}

// GetActivityLogQuery carries the activity log filters.
type GetActivityLogQuery struct {
	Search string
	Day    time.Time // zero for every day
	// ShowHousekeeping includes the repeating "CRON: ... nothing to ..." entries.
	ShowHousekeeping bool
	Oldest           bool
	Page             listutil.PageParams
}

// ActivityLogRow is one entry as shown to admins.
type ActivityLogRow struct {
	Timestamp string
	Log       string
	Cron      bool
}

// GetActivityLogResult carries a page of entries, newest first.
type GetActivityLogResult struct {
	Entries  []ActivityLogRow
	PageInfo listutil.PageInfo
}

// QueryGetActivityLog pages through the activity log.
func QueryGetActivityLog(ctx context.Context, query GetActivityLogQuery, store ActivityLogStore) (GetActivityLogResult, error) {
	filter := activitylog.ListFilter{
		Search:           query.Search,
		Day:              query.Day,
		HideHousekeeping: !query.ShowHousekeeping,
		Oldest:           query.Oldest,
	}
	total, err := store.Count(ctx, filter)
	if err != nil {
		return GetActivityLogResult{}, fmt.Errorf("count activity log: %w", err)
	}
	page := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	entries, err := store.List(ctx, filter)
	if err != nil {
		return GetActivityLogResult{}, fmt.Errorf("list activity log: %w", err)
	}
	res := GetActivityLogResult{PageInfo: page}
	for _, e := range entries {
		res.Entries = append(res.Entries, toActivityRow(e))
	}
	return res, nil
}

func toActivityRow(e domainActivity.Entry) ActivityLogRow {
	return ActivityLogRow{Timestamp: e.DisplayTimestamp(), Log: e.Log, Cron: e.IsCron()}
}
