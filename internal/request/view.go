package request

import (
	"sort"
	"strings"

	"agency/internal/status"
)

// SortByPriority returns a copy ordered by priority (highest first), then most
// recently updated. The sort is stable, so full ties keep input order.
func SortByPriority(views []View) []View {
	out := append([]View(nil), views...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// FilterByStatus keeps views whose admin status is one of statuses. No
// statuses means no filter.
func FilterByStatus(views []View, statuses ...status.Admin) []View {
	if len(statuses) == 0 {
		return append([]View(nil), views...)
	}
	want := make(map[status.Admin]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := []View{}
	for _, v := range views {
		if want[v.Status] {
			out = append(out, v)
		}
	}
	return out
}

// SearchByText matches a case-insensitive substring against title, brief,
// service, client name and email.
func SearchByText(views []View, text string) []View {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return append([]View(nil), views...)
	}
	out := []View{}
	for _, v := range views {
		hay := strings.ToLower(strings.Join([]string{v.ProjectTitle, v.Brief, v.ServiceKey, v.ClientName, v.ClientEmail}, "\n"))
		if strings.Contains(hay, needle) {
			out = append(out, v)
		}
	}
	return out
}

type Column struct {
	Status status.Admin `json:"status"`
	Label  status.Client `json:"clientLabel"`
	Items  []View        `json:"items"`
}

// GroupByStatus builds one column per admin status in board order; every
// column is present even when empty.
func GroupByStatus(views []View) []Column {
	all := status.All()
	idx := make(map[status.Admin]int, len(all))
	cols := make([]Column, len(all))
	for i, s := range all {
		idx[s] = i
		cols[i] = Column{Status: s, Label: status.ToClient(s), Items: []View{}}
	}
	for _, v := range views {
		if i, ok := idx[v.Status]; ok {
			cols[i].Items = append(cols[i].Items, v)
		}
	}
	return cols
}
