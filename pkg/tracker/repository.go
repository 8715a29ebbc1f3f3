package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/typed"
)

// Repository is the tracker façade over the record store.
type Repository struct {
	subjects *typed.Table[Subject]
	labs     *typed.Table[Lab]
	logger   *slog.Logger
}

// NewRepository creates a repository over backend, usually a *core.Service
// configured with Schemas.
func NewRepository(backend typed.Backend, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repository{
		subjects: typed.NewTable[Subject](backend, SubjectsTable),
		labs:     typed.NewTable[Lab](backend, LabsTable),
		logger:   logger,
	}
}

// Seed writes seed when no subject is stored yet and reports whether it did.
func (r *Repository) Seed(ctx context.Context, seed Seed) (bool, error) {
	existing, err := r.subjects.All(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		r.logger.Debug("seed skipped", "subjects", len(existing))
		return false, nil
	}

	labs := 0
	for _, s := range seed.Subjects {
		if err := r.AddSubject(ctx, s.Subject); err != nil {
			return false, fmt.Errorf("seed subject %s: %w", s.ID, err)
		}
		for _, l := range s.Labs {
			l.SubjectID = s.ID
			if err := r.AddLab(ctx, l); err != nil {
				return false, fmt.Errorf("seed lab %s: %w", l.ID, err)
			}
			labs++
		}
	}
	r.logger.Info("seeded tracker", "subjects", len(seed.Subjects), "labs", labs)
	return true, nil
}

// AddSubject inserts or replaces a subject.
func (r *Repository) AddSubject(ctx context.Context, s Subject) error {
	return r.subjects.Save(ctx, &typed.Model[Subject]{ID: s.ID, Data: s})
}

// AddLab inserts or replaces a lab. An empty status becomes Not started.
func (r *Repository) AddLab(ctx context.Context, l Lab) error {
	if l.Status == "" {
		l.Status = StatusNotStarted
	}
	st, err := ParseStatus(string(l.Status))
	if err != nil {
		return err
	}
	l.Status = st
	return r.labs.Save(ctx, &typed.Model[Lab]{ID: l.ID, ParentID: l.SubjectID, Data: l})
}

// CreateSubject stores a new subject under a generated id and returns it.
func (r *Repository) CreateSubject(ctx context.Context, title string) (Subject, error) {
	s := Subject{ID: uuid.NewString(), Title: title}
	if err := r.AddSubject(ctx, s); err != nil {
		return Subject{}, err
	}
	return s, nil
}

// CreateLab stores a new lab of subjectID under a generated id and returns
// it. The subject must exist.
func (r *Repository) CreateLab(ctx context.Context, subjectID, title, description string) (Lab, error) {
	ok, err := r.subjects.Exists(ctx, subjectID)
	if err != nil {
		return Lab{}, err
	}
	if !ok {
		return Lab{}, fmt.Errorf("subject %s: %w", subjectID, core.ErrNotFound)
	}
	l := Lab{ID: uuid.NewString(), SubjectID: subjectID, Title: title, Description: description, Status: StatusNotStarted}
	if err := r.AddLab(ctx, l); err != nil {
		return Lab{}, err
	}
	return l, nil
}

// Subjects lists every subject in storage order.
func (r *Repository) Subjects(ctx context.Context) ([]Subject, error) {
	models, err := r.subjects.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Subject, 0, len(models))
	for _, m := range models {
		out = append(out, subjectOf(m))
	}
	return out, nil
}

// Subject returns one subject.
func (r *Repository) Subject(ctx context.Context, id string) (Subject, bool, error) {
	m, ok, err := r.subjects.Get(ctx, id)
	if err != nil || !ok {
		return Subject{}, ok, err
	}
	return subjectOf(m), true, nil
}

// Labs lists the labs of a subject. A subject without labs, or an unknown
// subject, yields an empty list.
func (r *Repository) Labs(ctx context.Context, subjectID string) ([]Lab, error) {
	models, err := r.labs.ByParent(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]Lab, 0, len(models))
	for _, m := range models {
		out = append(out, labOf(m))
	}
	return out, nil
}

// Lab returns one lab.
func (r *Repository) Lab(ctx context.Context, id string) (Lab, bool, error) {
	m, ok, err := r.labs.Get(ctx, id)
	if err != nil || !ok {
		return Lab{}, ok, err
	}
	return labOf(m), true, nil
}

// Details returns a subject with its labs.
func (r *Repository) Details(ctx context.Context, subjectID string) (Details, error) {
	s, ok, err := r.Subject(ctx, subjectID)
	if err != nil {
		return Details{}, err
	}
	if !ok {
		return Details{}, fmt.Errorf("subject %s: %w", subjectID, core.ErrNotFound)
	}
	labs, err := r.Labs(ctx, subjectID)
	if err != nil {
		return Details{}, err
	}
	return Details{Subject: s, Labs: labs}, nil
}

// UpdateStatus changes only the status of a lab.
// Returns core.ErrNotFound for an unknown lab and ErrInvalidStatus for an
// unknown status.
func (r *Repository) UpdateStatus(ctx context.Context, labID string, status Status) error {
	st, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	return r.labs.Update(ctx, labID, "status", string(st))
}

// UpdateComment changes only the comment of a lab.
// Returns core.ErrNotFound for an unknown lab.
func (r *Repository) UpdateComment(ctx context.Context, labID, comment string) error {
	return r.labs.Update(ctx, labID, "comment", comment)
}

// SubjectsView builds a projector over the subject list.
func (r *Repository) SubjectsView(opts ...projector.Option) *projector.Projector[[]Subject] {
	return projector.New[[]Subject](r.Subjects, append([]projector.Option{projector.WithName("subjects")}, opts...)...)
}

// DetailsView builds a projector over one subject and its labs.
func (r *Repository) DetailsView(subjectID string, opts ...projector.Option) *projector.Projector[Details] {
	load := func(ctx context.Context) (Details, error) {
		return r.Details(ctx, subjectID)
	}
	return projector.New[Details](load, append([]projector.Option{projector.WithName("subject-" + subjectID)}, opts...)...)
}

func subjectOf(m *typed.Model[Subject]) Subject {
	s := m.Data
	s.ID = m.ID
	return s
}

func labOf(m *typed.Model[Lab]) Lab {
	l := m.Data
	l.ID = m.ID
	l.SubjectID = m.ParentID
	return l
}
