package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pkt.systems/pslog"

	"coursegen/internal/chat"
	"coursegen/internal/feedback"
	"coursegen/internal/gateway"
	"coursegen/internal/outline"
)

type fakeBackend struct {
	mu       sync.Mutex
	users    []gateway.UserRequest
	statuses []int
	requests []gateway.GenerateRequest
	courses  []gateway.CourseRecord
}

func (b *fakeBackend) generated() []gateway.GenerateRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]gateway.GenerateRequest(nil), b.requests...)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{}
	decode := func(r *http.Request, v any) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(v))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/user/create", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.UserRequest
		decode(r, &req)
		b.mu.Lock()
		b.users = append(b.users, req)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":true}`)
	})
	mux.HandleFunc("/user/update/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		var body struct {
			Status int `json:"status"`
		}
		decode(r, &body)
		b.mu.Lock()
		b.statuses = append(b.statuses, body.Status)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":true}`)
	})
	mux.HandleFunc("/gpt/prompts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":1,"outlinetype":"program","systemPrompt":"sys","defaultPrompt":"def"}]}`)
	})
	mux.HandleFunc("/llama/chat", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok", r.Header.Get(gateway.AccessTokenHeader))
		var req gateway.GenerateRequest
		decode(r, &req)
		b.mu.Lock()
		b.requests = append(b.requests, req)
		b.mu.Unlock()
		w.Header().Set(gateway.ChatIDHeader, "chat-1")
		_, _ = io.WriteString(w, "<ol><li>Intro</li>")
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "<li>Basics</li></ol>")
	})
	mux.HandleFunc("/course/create", func(w http.ResponseWriter, r *http.Request) {
		var rec gateway.CourseRecord
		decode(r, &rec)
		b.mu.Lock()
		b.courses = append(b.courses, rec)
		b.mu.Unlock()
		_, _ = io.WriteString(w, `{"data":{"id":9}}`)
	})
	mux.HandleFunc("/course/detail", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"slugid":"5g-core","chapterdetail":"<p>Chapters</p><p>Core</p><ol><li>Setup</li><li>Routing</li></ol>"}]}`)
	})
	mux.HandleFunc("/user/userlogs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":1,"userquery":"earlier question","modelresponse":"earlier answer","actiontype":"titledata"}]}`)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<title>Spectrum</title><p>Bands and carriers</p>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func writeTestConfig(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "api_url: " + apiURL + "\n" +
		"access_token: tok\n" +
		"store:\n  backend: file\n  path: " + filepath.Join(dir, "state.json") + "\n" +
		"ui:\n  render_markdown: false\n  show_spinner: false\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	logger := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	err := root.ExecuteContext(pslog.ContextWithLogger(context.Background(), logger))
	return out.String(), err
}

func login(t *testing.T, cfg string) {
	t.Helper()
	out, err := runCLI(t, "", "login", "-c", cfg, "--id", "42", "--name", "Ada", "--email", "ada@example.com", "--org", "3")
	require.NoError(t, err)
	require.Contains(t, out, "signed in as Ada <ada@example.com>")
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"chat", "generate", "stop", "logs", "preview", "parse", "course", "feedback", "login", "logout", "config"} {
		require.Contains(t, names, want)
	}
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestParseCommandJSON(t *testing.T) {
	src := `<ol><li><b>Foundations</b><ol><li>Intro</li><li>Spectrum</li></ol></li></ol>`
	out, err := runCLI(t, src, "parse", "--as", "course", "--json")
	require.NoError(t, err)

	var got outline.CourseOutline
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Groups, 1)
	require.Equal(t, "Foundations", got.Groups[0].Title)
	require.Equal(t, []outline.Course{{ID: 1, Title: "Intro"}, {ID: 2, Title: "Spectrum"}}, got.Groups[0].Courses)
}

func TestParseCommandListingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.html")
	require.NoError(t, os.WriteFile(path, []byte(`<p>Quiz</p><ol><li>Q1</li><li>Q2</li></ol><p>Good luck</p>`), 0o600))

	out, err := runCLI(t, "", "parse", path, "--as", "quiz", "--plain")
	require.NoError(t, err)
	require.Contains(t, out, "# Quiz")
	require.Contains(t, out, "1. Q1")
	require.Contains(t, out, "> Good luck")

	_, err = runCLI(t, "", "parse", path, "--as", "video")
	require.ErrorContains(t, err, "unknown outline")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	out, err := runCLI(t, "", "config", "init", "-c", path)
	require.NoError(t, err)
	require.Contains(t, out, path)
	require.FileExists(t, path)

	_, err = runCLI(t, "", "config", "init", "-c", path)
	require.ErrorContains(t, err, "already exists")
	_, err = runCLI(t, "", "config", "init", "-c", path, "--force")
	require.NoError(t, err)

	out, err = runCLI(t, "", "config", "show", "-c", path)
	require.NoError(t, err)
	require.Contains(t, out, "api_url: http://localhost:8000")
}

func TestFeedbackValidatesBeforeLoadingConfig(t *testing.T) {
	_, err := runCLI(t, "", "feedback", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, feedback.ErrRatingRequired)
}

func TestCommandsRequireSignIn(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	_, err := runCLI(t, "", "generate", "-c", cfg, "hello")
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestLoginGenerateLogout(t *testing.T) {
	backend, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	login(t, cfg)

	notes := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(notes, []byte("RAN notes"), 0o600))

	out, err := runCLI(t, "", "generate", "-c", cfg, "--tab", "course", "--slug", "5g-core",
		"--source-url", srv.URL+"/page", "--show", "Design a 5G course @"+notes)
	require.NoError(t, err)
	require.Contains(t, out, "<ol><li>Intro</li><li>Basics</li></ol>")
	require.Contains(t, out, "Intro")

	reqs := backend.generated()
	require.Len(t, reqs, 1)
	req := reqs[0]
	require.Equal(t, "Design a 5G course", req.UserQuery)
	require.Equal(t, "42", req.UserID)
	require.Equal(t, "5g-core", req.SlugID)
	require.Equal(t, "sys", req.SystemPrompt)
	require.Equal(t, "def", req.DefaultPrompt)
	require.Equal(t, "titledata", req.ActionType)
	require.Equal(t, "false", req.QueryType)
	require.Contains(t, req.ExtractedText, "# notes.md\nRAN notes")
	require.Contains(t, req.ExtractedText, "# Spectrum\nSource: "+srv.URL+"/page")

	out, err = runCLI(t, "", "logout", "-c", cfg)
	require.NoError(t, err)
	require.Contains(t, out, "signed out")

	backend.mu.Lock()
	require.Len(t, backend.users, 1)
	require.Equal(t, 1, backend.users[0].Status)
	require.Equal(t, int64(42), backend.users[0].UserID)
	require.Equal(t, []int{0}, backend.statuses)
	backend.mu.Unlock()

	_, err = runCLI(t, "", "generate", "-c", cfg, "again")
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestLogsAndCourseDetail(t *testing.T) {
	_, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	login(t, cfg)

	out, err := runCLI(t, "", "logs", "-c", cfg, "--slug", "5g-core")
	require.NoError(t, err)
	require.Contains(t, out, "earlier question")

	out, err = runCLI(t, "", "course", "detail", "-c", cfg, "--slug", "5G Core", "--json")
	require.NoError(t, err)
	var got struct {
		Chapters outline.ChapterOutline `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Chapters.Courses, 1)
	require.Equal(t, "Core", got.Chapters.Courses[0].Title)
}

func TestCourseCreateReadsStageFiles(t *testing.T) {
	backend, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	login(t, cfg)

	quiz := filepath.Join(t.TempDir(), "quiz.html")
	require.NoError(t, os.WriteFile(quiz, []byte("<ol><li>Q1</li></ol>"), 0o600))
	_, err := runCLI(t, "", "course", "create", "-c", cfg, "--slug", "RAN Basics", "--quiz", quiz, "--query", "ran")
	require.NoError(t, err)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.courses, 1)
	rec := backend.courses[0]
	require.Equal(t, "ran-basics", rec.SlugID)
	require.Equal(t, "42", rec.UserID)
	require.Equal(t, "<ol><li>Q1</li></ol>", rec.QuizDetail)
	require.Empty(t, rec.ProgramDetail)
}

func TestChatSession(t *testing.T) {
	backend, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	login(t, cfg)

	out, err := runCLI(t, "/tab chapter\n/kind descriptions\nBuild chapters\n", "chat", "-c", cfg, "--slug", "5G Core")
	require.NoError(t, err)
	require.Contains(t, out, "<ol><li>Intro</li><li>Basics</li></ol>")
	require.Contains(t, out, "Chapter >")
	require.Contains(t, out, "Goodbye!")

	reqs := backend.generated()
	require.Len(t, reqs, 1)
	require.Equal(t, "Build chapters", reqs[0].UserQuery)
	require.Equal(t, "descriptions", reqs[0].ActionType)
	require.Equal(t, "5g-core", reqs[0].SlugID)
}

func TestREPLSaveAndClear(t *testing.T) {
	backend, srv := newFakeBackend(t)
	cfg := writeTestConfig(t, srv.URL)
	login(t, cfg)

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	user, err := a.user()
	require.NoError(t, err)

	var out bytes.Buffer
	r := newREPL(a, user, &out, t.TempDir())
	r.save(ctx)
	require.Contains(t, out.String(), "Set a slug first")

	r.slug = "ran"
	_, err = r.ctrl.Session().AppendLocal(chat.TabProgram, chat.Entry{UserQuery: "q", Response: "<ol><li>A</li></ol>"})
	require.NoError(t, err)
	_, err = r.ctrl.Session().AppendLocal(chat.TabSlides, chat.Entry{UserQuery: "q2", Response: "<ol><li>S</li></ol>"})
	require.NoError(t, err)
	r.save(ctx)
	require.Contains(t, out.String(), "Saved ran")

	backend.mu.Lock()
	require.Len(t, backend.courses, 1)
	require.Equal(t, "<ol><li>A</li></ol>", backend.courses[0].ProgramDetail)
	require.Equal(t, "<ol><li>S</li></ol>", backend.courses[0].PPTDetail)
	require.Equal(t, "q", backend.courses[0].UserQuery)
	backend.mu.Unlock()

	require.False(t, r.handle(ctx, "/clear all"))
	snap := r.ctrl.Session().Snapshot()
	require.Empty(t, snap.Tabs[chat.TabProgram].History)
	require.Len(t, snap.History, 2)
	require.True(t, r.handle(ctx, "/exit"))
}

func TestReadQuery(t *testing.T) {
	q, err := readQuery(strings.NewReader("ignored"), []string{"from args"})
	require.NoError(t, err)
	require.Equal(t, "from args", q)

	q, err = readQuery(strings.NewReader("  from stdin \n"), []string{"-"})
	require.NoError(t, err)
	require.Equal(t, "from stdin", q)

	_, err = readQuery(strings.NewReader(" "), nil)
	require.Error(t, err)
}
