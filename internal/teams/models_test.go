package teams

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortCategories_PositionThenID(t *testing.T) {
	cats := []Category{
		{ID: 3, Name: "C", Position: 5},
		{ID: 2, Name: "B", Position: 1},
		{ID: 1, Name: "A", Position: 5},
		{ID: 9, Name: "Z", Position: -1},
	}
	SortCategories(cats)
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Z", "B", "A", "C"}, names)
}

func TestTeamLead_InCategory(t *testing.T) {
	uncategorized := TeamLead{ID: 1}
	inTwo := TeamLead{ID: 2, CategoryID: ID(2)}

	assert.True(t, uncategorized.InCategory(nil))
	assert.False(t, uncategorized.InCategory(ID(2)))
	assert.True(t, inTwo.InCategory(ID(2)))
	assert.False(t, inTwo.InCategory(ID(3)))
	assert.False(t, inTwo.InCategory(nil))
}

func TestTeamLead_InterventionElapsed(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	tl := TeamLead{Status: StatusIntervention, InterventionStartedAt: &start}

	assert.Equal(t, 90*time.Minute, tl.InterventionElapsed(start.Add(90*time.Minute)))
	assert.Zero(t, tl.InterventionElapsed(start.Add(-time.Minute)))

	tl.Status = StatusAvailable
	assert.Zero(t, tl.InterventionElapsed(start.Add(time.Hour)))
}
