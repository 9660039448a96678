package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coursegen/internal/chat"
	"coursegen/internal/course"
	"coursegen/internal/gateway"
	"coursegen/internal/outline"
	"coursegen/internal/ui"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newParseCmd() *cobra.Command {
	var as string
	var leads []string
	var asJSON, plain bool
	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Parse generated HTML into an outline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				src, err = os.ReadFile(args[0])
			} else {
				src, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			out := cmd.OutOrStdout()
			renderer := ui.NewRenderer(out, !plain)
			switch as {
			case "course", "program":
				o := outline.ParseCourse(string(src), leads...)
				if asJSON {
					return writeJSON(out, o)
				}
				renderer.Course(o)
			case "chapters", "chapter":
				o := outline.ParseChapters(string(src))
				if asJSON {
					return writeJSON(out, o)
				}
				renderer.Chapters(o)
			case "listing", "slides", "quiz":
				l := outline.ParseListing(string(src))
				if asJSON {
					return writeJSON(out, l)
				}
				renderer.Listing(l)
			default:
				return fmt.Errorf("unknown outline %q (want course, chapters or listing)", as)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "course", "outline to extract (course, chapters, listing)")
	cmd.Flags().StringSliceVar(&leads, "lead", nil, "lead-in words that introduce description lists")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outline as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "print markdown without terminal styling")
	return cmd
}

func newPreviewCmd(cfgPath *string) *cobra.Command {
	var slug string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Fetch and parse the document preview of a course",
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
			p, err := a.courses().Preview(a.userContext(cmd.Context()), gateway.PreviewRequest{
				UserID: user.ID,
				SlugID: course.NormalizeSlug(slug),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, p)
			}
			renderer := ui.NewRenderer(out, a.cfg.UI.RenderMarkdown)
			renderer.Course(p.Course)
			renderer.Chapters(p.Chapters)
			renderer.Listing(p.Listing)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "course slug")
	_ = cmd.MarkFlagRequired("slug")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the preview as JSON")
	return cmd
}

func newCourseCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage stored courses",
	}
	cmd.AddCommand(newCourseCreateCmd(cfgPath))
	cmd.AddCommand(newCourseDetailCmd(cfgPath))
	cmd.AddCommand(newCourseListCmd(cfgPath))
	cmd.AddCommand(newCoursePromptsCmd(cfgPath))
	cmd.AddCommand(newCourseSlugCmd(cfgPath))
	return cmd
}

func newCourseCreateCmd(cfgPath *string) *cobra.Command {
	var slug, query, outlineType string
	stages := map[chat.Tab]*string{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store accepted stage outputs for a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			details := make(map[chat.Tab]string, len(stages))
			for tab, path := range stages {
				if *path == "" {
					continue
				}
				data, err := os.ReadFile(*path)
				if err != nil {
					return fmt.Errorf("read %s detail: %w", tab.OutlineType(), err)
				}
				details[tab] = string(data)
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
			rec := courseRecord(user.ID, course.NormalizeSlug(slug), query, outlineType, details)
			ack, err := a.courses().Create(a.userContext(cmd.Context()), rec)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ack) > 0 {
				_, err = fmt.Fprintf(out, "%s\n", ack)
				return err
			}
			_, err = fmt.Fprintf(out, "stored %s\n", rec.SlugID)
			return err
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "course slug")
	_ = cmd.MarkFlagRequired("slug")
	cmd.Flags().StringVar(&query, "query", "", "query the course was generated from")
	cmd.Flags().StringVar(&outlineType, "outline-type", "", "outline type")
	for _, tab := range chat.AllTabs {
		path := new(string)
		stages[tab] = path
		cmd.Flags().StringVar(path, tab.OutlineType(), "", fmt.Sprintf("file holding the %s output", tab))
	}
	return cmd
}

// courseRecord maps per-tab outputs onto the stored record fields.
func courseRecord(user int64, slug, query, outlineType string, details map[chat.Tab]string) gateway.CourseRecord {
	return gateway.CourseRecord{
		UserQuery:     query,
		OutlineType:   outlineType,
		ProgramDetail: details[chat.TabProgram],
		CourseDetail:  details[chat.TabCourse],
		ChapterDetail: details[chat.TabChapter],
		PPTDetail:     details[chat.TabSlides],
		QuizDetail:    details[chat.TabQuiz],
		UserID:        strconv.FormatInt(user, 10),
		SlugID:        slug,
	}
}

func newCourseDetailCmd(cfgPath *string) *cobra.Command {
	var slug string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detail",
		Short: "Show the stored outline of a course",
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
			svc := a.courses()
			rec, ok, err := svc.Detail(a.userContext(cmd.Context()), gateway.CourseKey{
				UserID: userID(user),
				SlugID: course.NormalizeSlug(slug),
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("course %q not found", slug)
			}
			o := svc.Outline(rec)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, o)
			}
			renderer := ui.NewRenderer(out, a.cfg.UI.RenderMarkdown)
			if rec.ProgramDetail != "" {
				renderer.Course(o.Program)
			}
			if rec.CourseDetail != "" {
				renderer.Course(o.Courses)
			}
			if rec.ChapterDetail != "" {
				renderer.Chapters(o.Chapters)
			}
			if rec.PPTDetail != "" {
				renderer.Listing(o.Slides)
			}
			if rec.QuizDetail != "" {
				renderer.Listing(o.Quiz)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "course slug")
	_ = cmd.MarkFlagRequired("slug")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outline as JSON")
	return cmd
}

func newCourseListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored courses",
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
			records, err := a.courses().List(a.userContext(cmd.Context()), user.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", rec.SlugID, rec.OutlineType, rec.UserQuery)
			}
			return nil
		},
	}
}

func newCoursePromptsCmd(cfgPath *string) *cobra.Command {
	var tabName, parent, query string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Show the stored prompts of a stage",
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
			prompts, err := a.courses().Prompts(a.userContext(cmd.Context()), gateway.PromptRequest{
				UserQuery:   query,
				OutlineType: tab.OutlineType(),
				ParentID:    parent,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), prompts)
		},
	}
	cmd.Flags().StringVarP(&tabName, "tab", "t", string(chat.TabProgram), "stage to look up")
	cmd.Flags().StringVar(&parent, "parent", "", "parent id")
	cmd.Flags().StringVar(&query, "query", "", "user query")
	return cmd
}

func newCourseSlugCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "slug <name...>",
		Short: "Resolve a course slug",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			slug, detail, err := a.courses().Slug(a.userContext(cmd.Context()), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", slug, detail)
			return err
		},
	}
}
