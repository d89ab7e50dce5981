package kanban

import (
	"strings"

	"dispatch-console/internal/normalize"
	"dispatch-console/internal/teams"
)

// UncategorizedName labels the synthetic column of leads without a category.
const UncategorizedName = "uncategorized"

// BoardFilter narrows the cards shown in every column. Empty fields impose no
// constraint; set fields combine with AND.
type BoardFilter struct {
	Search string `form:"search" json:"search,omitempty"`
	Status string `form:"status" json:"status,omitempty"`
	Team   string `form:"team" json:"team,omitempty"`
}

// Match reports whether tl passes every active filter.
func (f BoardFilter) Match(tl teams.TeamLead) bool {
	if f.Status != "" && tl.Status != f.Status {
		return false
	}
	if f.Team != "" && !strings.EqualFold(strings.TrimSpace(tl.TeamName), strings.TrimSpace(f.Team)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{
			tl.TeamName, tl.LeaderFirstName, tl.LeaderLastName,
			tl.LeaderFirstName + " " + tl.LeaderLastName,
		}, "\n"))
		if strings.Contains(hay, q) {
			return true
		}
		// Phone numbers match in national or international form.
		if d := digits(q); len(d) >= 3 && tl.Phone != "" {
			return strings.Contains(digits(normalize.ToDialable(tl.Phone)), d) ||
				strings.Contains(digits(normalize.ToDisplayFormat(tl.Phone)), d)
		}
		return false
	}
	return true
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Card is a team lead as shown on the board.
type Card struct {
	teams.TeamLead
	PhoneDisplay string `json:"phone_display"`
	Pending      bool   `json:"pending"`
	Error        string `json:"error,omitempty"`
}

// Column groups the cards of one category. The uncategorized column has a nil
// CategoryID.
type Column struct {
	CategoryID *int64 `json:"category_id"`
	Name       string `json:"name"`
	// Draft is the rename buffer when it differs from Name.
	Draft    string `json:"draft,omitempty"`
	Position int    `json:"position"`
	Cards    []Card `json:"cards"`
}

// buildColumns orders categories by position and appends the uncategorized
// column when at least one lead, before filtering, has no valid category.
// Leads pointing at a category that no longer exists count as uncategorized.
func buildColumns(cats []teams.Category, leads []teams.TeamLead, f BoardFilter, card func(teams.TeamLead) Card) []Column {
	teams.SortCategories(cats)

	index := make(map[int64]int, len(cats))
	cols := make([]Column, 0, len(cats)+1)
	for i, c := range cats {
		index[c.ID] = i
		cols = append(cols, Column{CategoryID: teams.ID(c.ID), Name: c.Name, Position: c.Position, Cards: []Card{}})
	}

	var loose []teams.TeamLead
	for _, tl := range leads {
		i, ok := -1, false
		if tl.CategoryID != nil {
			i, ok = index[*tl.CategoryID]
		}
		if !ok {
			loose = append(loose, tl)
			continue
		}
		if f.Match(tl) {
			cols[i].Cards = append(cols[i].Cards, card(tl))
		}
	}

	if len(loose) > 0 {
		col := Column{Name: UncategorizedName, Cards: []Card{}}
		if n := len(cols); n > 0 {
			col.Position = cols[n-1].Position + 1
		}
		for _, tl := range loose {
			if f.Match(tl) {
				col.Cards = append(col.Cards, card(tl))
			}
		}
		cols = append(cols, col)
	}
	return cols
}
