package course

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"coursegen/internal/gateway"
)

type fakeBackend struct {
	records []gateway.CourseRecord
	preview string
	slug    string
	err     error
}

func (f *fakeBackend) CreateCourse(_ context.Context, rec gateway.CourseRecord) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.records = append(f.records, rec)
	return json.RawMessage(`{"slugid":"` + rec.SlugID + `"}`), nil
}

func (f *fakeBackend) CourseDetail(_ context.Context, key gateway.CourseKey) (gateway.CourseRecord, bool, error) {
	for _, rec := range f.records {
		if rec.SlugID == key.SlugID && rec.UserID == key.UserID {
			return rec, true, nil
		}
	}
	return gateway.CourseRecord{}, false, f.err
}

func (f *fakeBackend) ListCourses(context.Context, int64) ([]gateway.CourseRecord, error) {
	return f.records, f.err
}

func (f *fakeBackend) DocumentPreview(context.Context, gateway.PreviewRequest) (string, error) {
	return f.preview, f.err
}

func (f *fakeBackend) Prompts(_ context.Context, req gateway.PromptRequest) ([]gateway.Prompt, error) {
	return []gateway.Prompt{{ID: 1, OutlineType: req.OutlineType}}, f.err
}

func (f *fakeBackend) SlugDetail(_ context.Context, slug string) (json.RawMessage, error) {
	f.slug = slug
	return json.RawMessage(`{}`), f.err
}

func TestStatusTracksOperations(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend)
	ctx := context.Background()

	_, err := svc.Create(ctx, gateway.CourseRecord{UserID: "1", SlugID: "ran"})
	require.NoError(t, err)
	require.Equal(t, Status{Success: true}, svc.Status())

	rec, ok, err := svc.Detail(ctx, gateway.CourseKey{UserID: "1", SlugID: "ran"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ran", rec.SlugID)

	backend.err = errors.New("backend down")
	_, err = svc.List(ctx, 1)
	require.Error(t, err)
	require.Equal(t, Status{Error: "backend down"}, svc.Status())
}

func TestSlugNormalised(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewService(backend)

	slug, _, err := svc.Slug(context.Background(), "  Next Gen\tRAN  Security ")
	require.NoError(t, err)
	require.Equal(t, "next-gen-ran-security", slug)
	require.Equal(t, slug, backend.slug)
}

func TestPreviewRunsEveryParser(t *testing.T) {
	backend := &fakeBackend{preview: `<p>Plan</p><ol><li><b>Core</b><ol><li>One</li><li>Two</li></ol></li></ol><p>Enjoy</p>`}
	svc := NewService(backend)

	preview, err := svc.Preview(context.Background(), gateway.PreviewRequest{UserID: 1, SlugID: "plan"})
	require.NoError(t, err)
	require.Equal(t, "Plan", preview.Course.Heading)
	require.Len(t, preview.Course.Groups, 1)
	require.Len(t, preview.Course.Groups[0].Courses, 2)
	require.Len(t, preview.Chapters.Courses, 1)
	require.Equal(t, "Core", preview.Chapters.Courses[0].Title)
	require.Equal(t, []string{"Enjoy"}, preview.Listing.Commentary)
}

func TestOutlineParsesEachStage(t *testing.T) {
	svc := NewService(&fakeBackend{}, WithDescriptionLeads("Modules"))
	out := svc.Outline(gateway.CourseRecord{
		ProgramDetail: `<p><b>Core Modules</b></p><ol><li>Routing: packets</li></ol>`,
		ChapterDetail: `<p>Routing</p><ol><li>Tables</li></ol>`,
		QuizDetail:    `<p>Quiz</p><ol><li>"Q1"</li></ol>`,
	})
	require.Equal(t, "packets", out.Program.Groups[0].Courses[0].Description)
	require.Empty(t, out.Courses.Groups)
	require.Equal(t, "Routing", out.Chapters.Courses[0].Title)
	require.Equal(t, "Q1", out.Quiz.Items[0].Title)
	require.Empty(t, out.Slides.Items)
}
