package canonical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veristamp/pkg/domain"
)

func sampleData() Data {
	return Data{
		DocumentType: domain.DocumentTypeTOR,
		StudentID:    "2021-00001",
		StudentName:  "Juan Dela Cruz",
		Program:      "BS Computer Science",
		Institution:  "State University",
		DateIssued:   time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
		Courses: []Course{
			{Code: "CS101", Name: "Intro to Computing", Units: 3, Grade: "1.25"},
			{Code: "MATH27", Name: "Analytic Geometry", Units: 5.5, Grade: "2.00"},
		},
	}
}

func TestEncodeShape(t *testing.T) {
	got := Encode(sampleData())

	want := "DOCUMENT_TYPE:TOR\n" +
		"STUDENT_ID:2021-00001\n" +
		"STUDENT_NAME:Juan Dela Cruz\n" +
		"PROGRAM:BS Computer Science\n" +
		"INSTITUTION:State University\n" +
		"DATE_ISSUED:2026-01-15\n" +
		"COURSES:\n" +
		"1. CS101 - Intro to Computing (3 units) - Grade: 1.25\n" +
		"2. MATH27 - Analytic Geometry (5.5 units) - Grade: 2.00"

	assert.Equal(t, want, got)
}

func TestEncodeDeterminism(t *testing.T) {
	d := sampleData()
	first := Encode(d)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Encode(d))
	}
}

func TestEncodeDateNormalization(t *testing.T) {
	manila := time.FixedZone("PST", 8*3600)
	a := sampleData()
	a.DateIssued = time.Date(2026, 1, 15, 10, 0, 0, 0, manila)
	b := sampleData()
	b.DateIssued = time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, Encode(b), Encode(a), "same instant in different zones must encode identically")
}

func TestEncodeEmptyCoursesOmitsBlock(t *testing.T) {
	d := sampleData()
	d.Courses = nil
	withNil := Encode(d)
	d.Courses = []Course{}
	withEmpty := Encode(d)

	assert.Equal(t, withNil, withEmpty, "nil and empty course lists must not diverge")
	assert.NotContains(t, withNil, "COURSES:")
	assert.Equal(t, "DATE_ISSUED:2026-01-15", withNil[len(withNil)-len("DATE_ISSUED:2026-01-15"):])
}
