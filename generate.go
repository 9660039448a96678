package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"coursegen/internal/chat"
	"coursegen/internal/terminal"
	"coursegen/internal/ui"
)

type generateOptions struct {
	tab           string
	kind          string
	prompt        bool
	storedPrompt  bool
	systemPrompt  string
	defaultPrompt string
	slug          string
	selected      string
	structure     string
	files         []string
	sourceURLs    []string
	show          bool
}

func newGenerateCmd(cfgPath *string) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate [query|-]",
		Short: "Stream one generation for a tab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			tab, err := chat.ParseTab(opts.tab)
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
			ctx := a.userContext(cmd.Context())

			query, material, err := a.material(ctx, query, opts.sourceURLs)
			if err != nil {
				return err
			}
			req := chat.Request{
				Tab:           tab,
				Query:         query,
				UserID:        userID(user),
				SystemPrompt:  opts.systemPrompt,
				DefaultPrompt: opts.defaultPrompt,
				SlugID:        opts.slug,
				ExtractedText: material,
				StructureType: opts.structure,
				FilePaths:     opts.files,
				Kind:          chat.Kind(opts.kind),
				Prompt:        opts.prompt,
				SelectedTitle: opts.selected,
			}
			if len(opts.files) == 1 {
				req.IsFileSingle = "true"
			}
			if opts.storedPrompt && req.SystemPrompt == "" && req.DefaultPrompt == "" {
				p, ok, err := a.storedPrompt(ctx, tab, query, opts.slug)
				if err != nil {
					return err
				}
				if ok {
					req.SystemPrompt, req.DefaultPrompt = p.SystemPrompt, p.DefaultPrompt
				}
			}

			out := cmd.OutOrStdout()
			display := terminal.NewDisplay(out)
			defer display.Cleanup()
			renderer := ui.NewRenderer(out, a.cfg.UI.RenderMarkdown)
			ctrl := a.controller(streamCallbacks(display, renderer, a.cfg.UI.ShowSpinner))

			renderer.StartResponse(tab)
			entry, err := ctrl.Dispatch(ctx, req)
			if err != nil {
				return err
			}
			if opts.show {
				renderer.Tab(tab, entry.Response)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.tab, "tab", "t", string(chat.TabProgram), "tab to generate for (program, course, chapter, slides, quiz)")
	flags.StringVar(&opts.kind, "kind", string(chat.KindTitleData), "what to generate (titledata or descriptions)")
	flags.BoolVar(&opts.prompt, "prompt", false, "treat the query as a prompt refinement")
	flags.BoolVar(&opts.storedPrompt, "stored-prompt", true, "use the stored prompt pair for the tab when none is given")
	flags.StringVar(&opts.systemPrompt, "system", "", "system prompt")
	flags.StringVar(&opts.defaultPrompt, "default", "", "default prompt")
	flags.StringVar(&opts.slug, "slug", "", "course slug")
	flags.StringVar(&opts.selected, "selected", "", "title the generation refines")
	flags.StringVar(&opts.structure, "structure", "", "structure type")
	flags.StringSliceVar(&opts.files, "file", nil, "server-side file path to ground the generation on")
	flags.StringSliceVar(&opts.sourceURLs, "source-url", nil, "page to fetch and send as source material")
	flags.BoolVar(&opts.show, "show", false, "render the parsed outline after the stream ends")
	return cmd
}

// streamCallbacks writes chunks live and toggles the spinner while the
// backend has not produced text.
func streamCallbacks(display *terminal.Display, renderer *ui.Renderer, spinner bool) chat.Callbacks {
	return chat.Callbacks{
		OnTyping: func(typing bool) {
			if !spinner || !display.Interactive() {
				return
			}
			if typing {
				display.ShowSpinner("Generating")
				return
			}
			display.StopSpinner()
		},
		OnChunk: func(_ chat.Tab, chunk string) {
			renderer.WriteChunk(chunk)
		},
		OnSettled: func(state chat.State) {
			display.StopSpinner()
			renderer.EndResponse(state)
		},
	}
}

// readQuery takes the query from args, or from in when it is "-" or absent.
func readQuery(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		if strings.TrimSpace(args[0]) == "" {
			return "", fmt.Errorf("query cannot be empty")
		}
		return args[0], nil
	}
	if f, ok := in.(*os.File); ok && len(args) == 0 && terminal.IsTerminalFile(f) {
		return "", fmt.Errorf("query required")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read query: %w", err)
	}
	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}
	return query, nil
}

func newStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <chat-id>",
		Short: "Ask the backend to stop a running generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.client.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
			return err
		},
	}
}

func newLogsCmd(cfgPath *string) *cobra.Command {
	var slug, tabName string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the server-side interaction log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			user, err := a.user()
			if err != nil {
				return err
			}
			q := chat.LogQuery{UserID: user.ID, SlugID: slug}
			if tabName != "" {
				tab, err := chat.ParseTab(tabName)
				if err != nil {
					return err
				}
				q.OutlineType = tab.OutlineType()
			}
			ctrl := a.controller(chat.Callbacks{})
			if _, err := ctrl.FetchLogs(a.userContext(cmd.Context()), q); err != nil {
				return err
			}
			renderer := ui.NewRenderer(cmd.OutOrStdout(), a.cfg.UI.RenderMarkdown)
			renderer.History(ctrl.Session().Snapshot().History)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "course slug")
	cmd.Flags().StringVarP(&tabName, "tab", "t", "", "limit to one tab")
	return cmd
}
