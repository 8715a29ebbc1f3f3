// Package tracker keeps study subjects and their labs, with per-lab status
// and comment edited in place.
package tracker

import (
	"fmt"
	"strings"

	"github.com/aretw0/loft/pkg/core"
)

// Table names.
const (
	SubjectsTable = "subjects"
	LabsTable     = "labs"
)

// Status is the progress of a lab.
type Status string

const (
	StatusNotStarted Status = "Not started"
	StatusInProgress Status = "In progress"
	StatusPostponed  Status = "Postponed"
	StatusDone       Status = "Done"
)

// Statuses lists the accepted statuses in workflow order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusPostponed, StatusDone}

// ErrInvalidStatus is returned for a status outside Statuses.
var ErrInvalidStatus = fmt.Errorf("%w: unknown lab status", core.ErrInvalidRecord)

// ParseStatus matches s against the known statuses, ignoring case and
// surrounding space.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Subject is a course that owns labs.
type Subject struct {
	ID    string `json:"-" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Lab is one assignment of a subject.
type Lab struct {
	ID          string `json:"-" yaml:"id"`
	SubjectID   string `json:"-" yaml:"-"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Status      Status `json:"status" yaml:"status"`
	Comment     string `json:"comment" yaml:"comment"`
}

// Details is a subject together with its labs.
type Details struct {
	Subject Subject `json:"subject"`
	Labs    []Lab   `json:"labs"`
}

// Schemas returns the table schemas used by the tracker.
func Schemas() []core.Schema {
	return []core.Schema{
		{Table: SubjectsTable, Required: []string{"title"}},
		{Table: LabsTable, Parent: SubjectsTable, Required: []string{"title", "status"}},
	}
}

// LabsPattern is the watch pattern matching the labs of one subject.
func LabsPattern(subjectID string) string {
	return LabsTable + "/" + subjectID + "/*"
}
