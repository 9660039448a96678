// Package course wraps the course endpoints with slice-style status and
// turns stored and previewed HTML into outlines.
package course

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"coursegen/internal/gateway"
	"coursegen/internal/outline"
)

// Backend is the subset of the gateway client used by the service
type Backend interface {
	CreateCourse(ctx context.Context, rec gateway.CourseRecord) (json.RawMessage, error)
	CourseDetail(ctx context.Context, key gateway.CourseKey) (gateway.CourseRecord, bool, error)
	ListCourses(ctx context.Context, userID int64) ([]gateway.CourseRecord, error)
	DocumentPreview(ctx context.Context, req gateway.PreviewRequest) (string, error)
	Prompts(ctx context.Context, req gateway.PromptRequest) ([]gateway.Prompt, error)
	SlugDetail(ctx context.Context, slug string) (json.RawMessage, error)
}

// Status is the loading/error/success triple of the last operation
type Status struct {
	Loading bool
	Error   string
	Success bool
}

// Preview is a document preview and every parse of it
type Preview struct {
	HTML     string                 `json:"html"`
	Course   outline.CourseOutline  `json:"course"`
	Chapters outline.ChapterOutline `json:"chapters"`
	Listing  outline.Listing        `json:"listing"`
}

// RecordOutline is a stored course with each stage parsed
type RecordOutline struct {
	Program  outline.CourseOutline  `json:"program"`
	Courses  outline.CourseOutline  `json:"courses"`
	Chapters outline.ChapterOutline `json:"chapters"`
	Slides   outline.Listing        `json:"slides"`
	Quiz     outline.Listing        `json:"quiz"`
}

// Option configures a Service
type Option func(*Service)

// WithDescriptionLeads overrides the lead-in words of description lists.
func WithDescriptionLeads(leads ...string) Option {
	return func(s *Service) {
		s.leads = leads
	}
}

// Service runs course operations and tracks their status
type Service struct {
	backend Backend
	leads   []string

	mu     sync.RWMutex
	status Status
}

// NewService creates a Service over backend.
func NewService(backend Backend, opts ...Option) *Service {
	s := &Service{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the status of the most recent operation.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) setStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func track[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	s.setStatus(Status{Loading: true})
	out, err := fn()
	if err != nil {
		s.setStatus(Status{Error: err.Error()})
		pslog.Ctx(ctx).Warn("course.failed", "op", op, "err", err)
		return out, err
	}
	s.setStatus(Status{Success: true})
	pslog.Ctx(ctx).Debug("course.done", "op", op)
	return out, nil
}

// Create stores rec on the backend.
func (s *Service) Create(ctx context.Context, rec gateway.CourseRecord) (json.RawMessage, error) {
	return track(ctx, s, "create", func() (json.RawMessage, error) {
		return s.backend.CreateCourse(ctx, rec)
	})
}

// Detail fetches the stored record for key. It reports false when the
// backend has none.
func (s *Service) Detail(ctx context.Context, key gateway.CourseKey) (gateway.CourseRecord, bool, error) {
	type result struct {
		rec gateway.CourseRecord
		ok  bool
	}
	res, err := track(ctx, s, "detail", func() (result, error) {
		rec, ok, err := s.backend.CourseDetail(ctx, key)
		return result{rec, ok}, err
	})
	return res.rec, res.ok, err
}

// List returns every course of userID.
func (s *Service) List(ctx context.Context, userID int64) ([]gateway.CourseRecord, error) {
	return track(ctx, s, "list", func() ([]gateway.CourseRecord, error) {
		return s.backend.ListCourses(ctx, userID)
	})
}

// Prompts returns the stored prompt templates for req.
func (s *Service) Prompts(ctx context.Context, req gateway.PromptRequest) ([]gateway.Prompt, error) {
	return track(ctx, s, "prompts", func() ([]gateway.Prompt, error) {
		return s.backend.Prompts(ctx, req)
	})
}

// Slug normalises raw and resolves it on the backend.
func (s *Service) Slug(ctx context.Context, raw string) (string, json.RawMessage, error) {
	slug := NormalizeSlug(raw)
	detail, err := track(ctx, s, "slug", func() (json.RawMessage, error) {
		return s.backend.SlugDetail(ctx, slug)
	})
	return slug, detail, err
}

// Preview fetches the document preview of a course and parses it every
// way the outline package knows.
func (s *Service) Preview(ctx context.Context, req gateway.PreviewRequest) (Preview, error) {
	return track(ctx, s, "preview", func() (Preview, error) {
		html, err := s.backend.DocumentPreview(ctx, req)
		if err != nil {
			return Preview{}, err
		}
		return Preview{
			HTML:     html,
			Course:   outline.ParseCourse(html, s.leads...),
			Chapters: outline.ParseChapters(html),
			Listing:  outline.ParseListing(html),
		}, nil
	})
}

// Outline parses each stage of a stored record.
func (s *Service) Outline(rec gateway.CourseRecord) RecordOutline {
	return RecordOutline{
		Program:  outline.ParseCourse(rec.ProgramDetail, s.leads...),
		Courses:  outline.ParseCourse(rec.CourseDetail, s.leads...),
		Chapters: outline.ParseChapters(rec.ChapterDetail),
		Slides:   outline.ParseListing(rec.PPTDetail),
		Quiz:     outline.ParseListing(rec.QuizDetail),
	}
}

// NormalizeSlug joins the whitespace-separated words of raw with "-" and
// lower-cases the result.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), "-"))
}
