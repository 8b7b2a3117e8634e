// Package canonical produces the deterministic textual encoding of a
// document's issuance data. The encoding, not the rendered file bytes, is
// what gets hashed into the document's primary identifier, so a Word-template
// render and a PDF render of the same issuance verify as the same document.
package canonical

import (
	"strconv"
	"strings"
	"time"

	"veristamp/pkg/domain"
)

// Course is one course/grade line item. Items are encoded in input order.
type Course struct {
	Code  string
	Name  string
	Units float64
	Grade string
}

// Data holds the structured fields used at issuance.
type Data struct {
	DocumentType domain.DocumentType
	StudentID    string
	StudentName  string
	Program      string
	Institution  string
	DateIssued   time.Time
	Courses      []Course
}

// Encode returns the canonical line-oriented form of the issuance data.
// The exact same input always produces byte-identical output: fields appear
// in fixed order, dates are normalized to UTC ISO-8601 dates, and an empty
// course list omits the COURSES block entirely rather than emitting an empty
// header (so "no courses" and "courses key present but empty" cannot diverge).
func Encode(d Data) string {
	var b strings.Builder

	writeField(&b, "DOCUMENT_TYPE", d.DocumentType.String())
	writeField(&b, "STUDENT_ID", d.StudentID)
	writeField(&b, "STUDENT_NAME", d.StudentName)
	writeField(&b, "PROGRAM", d.Program)
	writeField(&b, "INSTITUTION", d.Institution)
	writeField(&b, "DATE_ISSUED", d.DateIssued.UTC().Format(time.DateOnly))

	if len(d.Courses) > 0 {
		b.WriteString("COURSES:")
		for i, c := range d.Courses {
			b.WriteByte('\n')
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(c.Code)
			b.WriteString(" - ")
			b.WriteString(c.Name)
			b.WriteString(" (")
			b.WriteString(strconv.FormatFloat(c.Units, 'f', -1, 64))
			b.WriteString(" units) - Grade: ")
			b.WriteString(c.Grade)
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('\n')
}
