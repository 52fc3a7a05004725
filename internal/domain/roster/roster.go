// Package roster defines the records behind the dashboard's list views:
// student rosters, credits completed, and housing records. Each record knows
// how to flatten itself into a table row.
package roster

import (
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
)

// Kind names a list view backed by a roster table.
type Kind string

const (
	KindStudents Kind = "students"
	KindCredits  Kind = "credits"
	KindHousing  Kind = "housing"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStudents, KindCredits, KindHousing:
		return true
	}
	return false
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", shared.NewDomainError("roster", "ParseKind", shared.ErrInvalidInput, "unknown roster kind "+s)
	}
	return k, nil
}

// Record is anything that can be shown as a table row.
type Record interface {
	ToRow() table.Row
}

// Student is one advisee on an advisor's roster.
type Student struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Major       string
	ClassYear   int
	GPA         float64
	Advisor     string
	Active      bool
	LastContact *time.Time
}

// ToRow flattens the student. Inactive students are not selectable for bulk actions.
func (s Student) ToRow() table.Row {
	row := table.Row{
		"id":         s.ID,
		"first_name": s.FirstName,
		"last_name":  s.LastName,
		"email":      s.Email,
		"major":      s.Major,
		"class_year": s.ClassYear,
		"gpa":        s.GPA,
		"advisor":    s.Advisor,
		"selectable": s.Active,
	}
	if s.LastContact != nil {
		row["last_contact"] = s.LastContact.UTC().Format(time.RFC3339)
	}
	return row
}

// Credit is one completed course on a student's record.
type Credit struct {
	ID        string
	StudentID string
	Course    string
	Title     string
	Term      string
	Credits   float64
	Grade     string
}

// ToRow flattens the credit record.
func (c Credit) ToRow() table.Row {
	return table.Row{
		"id":         c.ID,
		"student_id": c.StudentID,
		"course":     c.Course,
		"title":      c.Title,
		"term":       c.Term,
		"credits":    c.Credits,
		"grade":      c.Grade,
	}
}

// Housing is a student's housing assignment.
type Housing struct {
	ID        string
	StudentID string
	Building  string
	Room      string
	Term      string
	MoveIn    time.Time
	Confirmed bool
}

// ToRow flattens the housing record. Only confirmed assignments are selectable.
func (h Housing) ToRow() table.Row {
	return table.Row{
		"id":         h.ID,
		"student_id": h.StudentID,
		"building":   h.Building,
		"room":       h.Room,
		"term":       h.Term,
		"move_in":    h.MoveIn.UTC().Format("2006-01-02"),
		"selectable": h.Confirmed,
	}
}

// ToDataset flattens records into a dataset, keeping their order.
func ToDataset[R Record](records []R) table.Dataset {
	ds := make(table.Dataset, len(records))
	for i, r := range records {
		ds[i] = r.ToRow()
	}
	return ds
}
