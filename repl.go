package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"coursegen/internal/auth"
	"coursegen/internal/chat"
	"coursegen/internal/course"
	"coursegen/internal/terminal"
	"coursegen/internal/ui"
)

const replHelp = `Commands:
  /tab [name]       show or switch the tab (program, course, chapter, slides, quiz)
  /kind [kind]      show or switch what to generate (titledata, descriptions)
  /slug [name]      show or set the course slug
  /source [url]     queue a page as source material, "/source clear" drops them
  /files [query]    list files to mention with @path
  /stop             stop the running generation
  /show             render the parsed outline of the tab's last answer
  /undo             drop the tab's last answer
  /history          show the interaction log
  /logs             merge the server-side log for the slug
  /clear [all]      clear the tab, or every tab
  /save             store the last answer of every tab under the slug
  /exit             leave`

func newChatCmd(cfgPath *string) *cobra.Command {
	var tabName, slug string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive authoring session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := chat.ParseTab(tabName)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			user, err := a.user()
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("working directory: %w", err)
			}
			r := newREPL(a, user, cmd.OutOrStdout(), wd)
			r.tab = tab
			r.slug = course.NormalizeSlug(slug)
			return r.run(a.userContext(cmd.Context()), cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&tabName, "tab", "t", string(chat.TabProgram), "initial tab")
	cmd.Flags().StringVar(&slug, "slug", "", "course slug")
	return cmd
}

type repl struct {
	app      *app
	user     *auth.User
	out      io.Writer
	workDir  string
	display  *terminal.Display
	renderer *ui.Renderer
	ctrl     *chat.Controller

	mu      sync.Mutex
	tab     chat.Tab
	kind    chat.Kind
	slug    string
	sources []string

	busy    atomic.Bool
	running sync.WaitGroup
}

func newREPL(a *app, user *auth.User, out io.Writer, workDir string) *repl {
	r := &repl{
		app:      a,
		user:     user,
		out:      out,
		workDir:  workDir,
		display:  terminal.NewDisplay(out),
		renderer: ui.NewRenderer(out, a.cfg.UI.RenderMarkdown),
		tab:      chat.TabProgram,
		kind:     chat.KindTitleData,
	}
	cb := streamCallbacks(r.display, r.renderer, a.cfg.UI.ShowSpinner)
	settled := cb.OnSettled
	cb.OnSettled = func(state chat.State) {
		settled(state)
		r.busy.Store(false)
		r.display.PrintPrompt(string(r.currentTab()))
	}
	r.ctrl = a.controller(cb)
	return r
}

func (r *repl) currentTab() chat.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tab
}

type lineResult struct {
	line string
	err  error
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.display.PrintWelcome(r.app.cfg.APIURL)
	defer r.display.Cleanup()

	lines := make(chan lineResult)
	go func() {
		reader := terminal.NewReader(in)
		for {
			line, err := reader.ReadLine()
			select {
			case lines <- lineResult{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		if !r.busy.Load() {
			r.display.PrintPrompt(string(r.currentTab()))
		}
		var res lineResult
		select {
		case <-ctx.Done():
			r.running.Wait()
			r.display.PrintGoodbye()
			return nil
		case res = <-lines:
		}

		quit := r.handle(ctx, res.line)
		if quit || res.err != nil {
			r.running.Wait()
			r.display.PrintGoodbye()
			if res.err != nil && !errors.Is(res.err, io.EOF) {
				return fmt.Errorf("read input: %w", res.err)
			}
			return nil
		}
	}
}

// handle executes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	cmd, ok := terminal.ParseCommand(line)
	if !ok {
		r.dispatch(ctx, line)
		return false
	}

	switch cmd.Name {
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(r.out, replHelp)
	case "tab":
		r.switchTab(cmd.Arg)
	case "kind":
		r.switchKind(cmd.Arg)
	case "slug":
		r.mu.Lock()
		if cmd.Arg != "" {
			r.slug = course.NormalizeSlug(cmd.Arg)
		}
		slug := r.slug
		r.mu.Unlock()
		r.display.PrintInfo("Slug: " + slug)
	case "source":
		r.queueSource(cmd.Arg)
	case "files":
		terminal.ShowFileSuggestions(r.out, r.workDir, "@"+cmd.Arg)
	case "stop":
		if err := r.ctrl.Stop(ctx); err != nil {
			r.display.PrintError(err)
			break
		}
		r.display.PrintInfo("Stop requested")
	case "show":
		r.showLast()
	case "undo":
		if _, ok := r.ctrl.Session().RemoveLast(r.currentTab()); !ok {
			r.display.PrintWarning("Nothing to undo")
			break
		}
		r.display.PrintSuccess("Dropped the last answer")
	case "history":
		r.renderer.History(r.ctrl.Session().Snapshot().History)
	case "logs":
		r.mergeLogs(ctx)
	case "clear":
		r.clear(cmd.Arg)
	case "save":
		r.save(ctx)
	default:
		r.display.PrintWarning(fmt.Sprintf("Unknown command /%s, try /help", cmd.Name))
	}
	return false
}

func (r *repl) switchTab(name string) {
	if name == "" {
		r.display.PrintInfo("Tab: " + string(r.currentTab()))
		return
	}
	tab, err := chat.ParseTab(name)
	if err != nil {
		r.display.PrintError(err)
		return
	}
	r.mu.Lock()
	r.tab = tab
	r.mu.Unlock()
}

func (r *repl) switchKind(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch chat.Kind(strings.ToLower(name)) {
	case "":
	case chat.KindTitleData:
		r.kind = chat.KindTitleData
	case chat.KindDescriptions:
		r.kind = chat.KindDescriptions
	default:
		r.display.PrintError(fmt.Errorf("unknown kind %q", name))
		return
	}
	r.display.PrintInfo("Kind: " + string(r.kind))
}

func (r *repl) queueSource(arg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch arg {
	case "":
		if len(r.sources) == 0 {
			r.display.PrintInfo("No sources queued")
		}
		for _, u := range r.sources {
			r.display.PrintInfo(u)
		}
	case "clear":
		r.sources = nil
		r.display.PrintInfo("Sources cleared")
	default:
		r.sources = append(r.sources, arg)
		r.display.PrintInfo(fmt.Sprintf("%d source(s) queued", len(r.sources)))
	}
}

// dispatch starts a generation for query on the current tab. Queued sources
// are consumed by the request.
func (r *repl) dispatch(ctx context.Context, query string) {
	if r.busy.Load() {
		r.display.PrintWarning("A generation is running, use /stop first")
		return
	}
	r.mu.Lock()
	tab, kind, slug, sources := r.tab, r.kind, r.slug, r.sources
	r.sources = nil
	r.mu.Unlock()

	query, material, err := r.app.material(ctx, query, sources)
	if err != nil {
		r.display.PrintError(err)
		return
	}
	req := chat.Request{
		Tab:           tab,
		Query:         query,
		UserID:        userID(r.user),
		SlugID:        slug,
		ExtractedText: material,
		Kind:          kind,
	}
	if p, ok, err := r.app.storedPrompt(ctx, tab, query, slug); err != nil {
		r.display.PrintWarning(fmt.Sprintf("Stored prompts unavailable: %v", err))
	} else if ok {
		req.SystemPrompt, req.DefaultPrompt = p.SystemPrompt, p.DefaultPrompt
	}

	r.busy.Store(true)
	r.renderer.StartResponse(tab)
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		defer r.busy.Store(false)
		if _, err := r.ctrl.Dispatch(ctx, req); err != nil {
			if errors.Is(err, chat.ErrInFlight) {
				r.display.PrintError(err)
			}
			pslog.Ctx(ctx).Debug("chat.repl_dispatch_failed", "err", err)
		}
	}()
}

func (r *repl) lastEntry(tab chat.Tab) (chat.Entry, bool) {
	history := r.ctrl.Session().Snapshot().Tabs[tab].History
	if len(history) == 0 {
		return chat.Entry{}, false
	}
	return history[len(history)-1], true
}

func (r *repl) showLast() {
	tab := r.currentTab()
	entry, ok := r.lastEntry(tab)
	if !ok {
		r.display.PrintWarning("No answer on this tab yet")
		return
	}
	r.renderer.Tab(tab, entry.Response)
}

func (r *repl) mergeLogs(ctx context.Context) {
	r.mu.Lock()
	q := chat.LogQuery{UserID: r.user.ID, SlugID: r.slug, OutlineType: r.tab.OutlineType()}
	r.mu.Unlock()
	added, err := r.ctrl.FetchLogs(ctx, q)
	if err != nil {
		r.display.PrintError(err)
		return
	}
	r.display.PrintSuccess(fmt.Sprintf("Merged %d new entries", added))
}

func (r *repl) clear(arg string) {
	if r.ctrl.Session().InFlight() {
		r.display.PrintWarning("A generation is running, use /stop first")
		return
	}
	if strings.EqualFold(arg, "all") {
		r.ctrl.Session().ClearAll()
		r.display.PrintSuccess("Cleared every tab")
		return
	}
	tab := r.currentTab()
	if err := r.ctrl.Session().ClearTab(tab); err != nil {
		r.display.PrintError(err)
		return
	}
	r.display.PrintSuccess("Cleared " + string(tab))
}

func (r *repl) save(ctx context.Context) {
	r.mu.Lock()
	slug := r.slug
	r.mu.Unlock()
	if slug == "" {
		r.display.PrintWarning("Set a slug first with /slug <name>")
		return
	}
	details := make(map[chat.Tab]string, len(chat.AllTabs))
	query := ""
	for _, tab := range chat.AllTabs {
		if entry, ok := r.lastEntry(tab); ok {
			details[tab] = entry.Response
			if query == "" {
				query = entry.UserQuery
			}
		}
	}
	if len(details) == 0 {
		r.display.PrintWarning("Nothing to save yet")
		return
	}
	rec := courseRecord(r.user.ID, slug, query, r.currentTab().OutlineType(), details)
	if _, err := r.app.courses().Create(ctx, rec); err != nil {
		r.display.PrintError(err)
		return
	}
	r.display.PrintSuccess("Saved " + slug)
}
