package server

import (
	"github.com/aretw0/loft/pkg/tracker"
)

// Tracker types keep their ids out of the stored fields; the API puts them back.

type subjectJSON struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type labJSON struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Comment     string `json:"comment"`
}

type detailsJSON struct {
	Subject subjectJSON `json:"subject"`
	Labs    []labJSON   `json:"labs"`
}

func subjectOut(s tracker.Subject) subjectJSON {
	return subjectJSON{ID: s.ID, Title: s.Title}
}

func subjectsOut(in []tracker.Subject) []subjectJSON {
	out := make([]subjectJSON, 0, len(in))
	for _, s := range in {
		out = append(out, subjectOut(s))
	}
	return out
}

func labOut(l tracker.Lab) labJSON {
	return labJSON{
		ID:          l.ID,
		SubjectID:   l.SubjectID,
		Title:       l.Title,
		Description: l.Description,
		Status:      string(l.Status),
		Comment:     l.Comment,
	}
}

func detailsOut(d tracker.Details) detailsJSON {
	out := detailsJSON{Subject: subjectOut(d.Subject), Labs: make([]labJSON, 0, len(d.Labs))}
	for _, l := range d.Labs {
		out.Labs = append(out.Labs, labOut(l))
	}
	return out
}
