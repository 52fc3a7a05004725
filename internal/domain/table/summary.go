package table

import "fmt"

// Summary is the footer line under a table. It is derived from State and
// holds nothing of its own.
type Summary struct {
	DisplayRange       string `json:"display_range"`
	SelectedCount      int    `json:"selected_count"`
	TotalPages         int    `json:"total_pages"`
	TotalCount         int    `json:"total_count"`
	BulkActionsEnabled bool   `json:"bulk_actions_enabled"`
}

// Summarize computes the summary for s.
func Summarize(s State) Summary {
	return Summary{
		DisplayRange:       DisplayRange(s.PageNumber, s.PageSize, s.TotalCount),
		SelectedCount:      s.Selection.Len(),
		TotalPages:         s.TotalPages,
		TotalCount:         s.TotalCount,
		BulkActionsEnabled: s.Status == StatusReadyPopulated && s.Selection.Len() > 0,
	}
}

// DisplayRange formats "<start+1>-<min(end,total)> of <total>", or "0-0 of 0"
// for an empty dataset.
func DisplayRange(page, pageSize, total int) string {
	if total <= 0 {
		return "0-0 of 0"
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	return fmt.Sprintf("%d-%d of %d", start+1, end, total)
}
