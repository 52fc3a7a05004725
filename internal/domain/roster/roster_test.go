package roster

import (
	"testing"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("credits")
	assert.NoError(t, err)
	assert.Equal(t, KindCredits, k)

	_, err = ParseKind("grades")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestToDataset(t *testing.T) {
	contact := time.Date(2024, 9, 3, 14, 0, 0, 0, time.UTC)
	ds := ToDataset([]Student{
		{ID: "s1", FirstName: "Ada", Active: true, LastContact: &contact},
		{ID: "s2", FirstName: "Bo", Active: false},
	})

	assert.Len(t, ds, 2)
	assert.Equal(t, "2024-09-03T14:00:00Z", ds[0]["last_contact"])
	assert.NotContains(t, ds[1], "last_contact")

	selectable := table.BoolField("selectable")
	assert.True(t, selectable(ds[0]))
	assert.False(t, selectable(ds[1]))
	assert.Equal(t, table.RowID("s2"), table.FieldID("id")(ds[1]))
}

func TestHousingRow(t *testing.T) {
	row := Housing{ID: "h1", Building: "Oak", MoveIn: time.Date(2024, 8, 20, 9, 0, 0, 0, time.UTC)}.ToRow()
	assert.Equal(t, "2024-08-20", row["move_in"])
	assert.Equal(t, false, row["selectable"])
}
