package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"pkt.systems/pslog"

	"coursegen/internal/auth"
	"coursegen/internal/chat"
	"coursegen/internal/config"
	"coursegen/internal/course"
	"coursegen/internal/gateway"
	"coursegen/internal/logx"
	"coursegen/internal/persist"
	"coursegen/internal/source"
	"coursegen/internal/terminal"
)

var errNotSignedIn = errors.New("not signed in, run `coursegen login` first")

// app bundles the collaborators every command needs
type app struct {
	cfg    *config.Config
	client *gateway.Client
	store  persist.Store
	auth   *auth.Slice
}

func openApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	store, err := persist.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	slice, err := auth.Load(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pslog.Ctx(ctx).Debug("app.open", "api_url", cfg.APIURL, "store", cfg.Store.Backend, "path", cfg.Store.Path)
	return &app{
		cfg:    cfg,
		client: gateway.NewClient(cfg.APIURL, cfg.AccessToken, cfg.RequestTimeout),
		store:  store,
		auth:   slice,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		pslog.Ctx(context.Background()).Warn("app.close_store", "err", err)
	}
}

// user returns the signed-in account.
func (a *app) user() (*auth.User, error) {
	user := a.auth.State().User
	if user == nil {
		return nil, errNotSignedIn
	}
	return user, nil
}

// userContext attaches the signed-in user to the context logger.
func (a *app) userContext(ctx context.Context) context.Context {
	if user := a.auth.State().User; user != nil {
		return logx.ContextWithUser(ctx, userID(user))
	}
	return ctx
}

func (a *app) controller(cb chat.Callbacks) *chat.Controller {
	return chat.NewController(a.client, chat.NewSession(),
		chat.WithStopDrainTimeout(a.cfg.Chat.StopDrainTimeout),
		chat.WithCallbacks(cb),
	)
}

func (a *app) courses() *course.Service {
	return course.NewService(a.client, course.WithDescriptionLeads(a.cfg.UI.DescriptionLeads...))
}

func userID(user *auth.User) string {
	if user == nil {
		return ""
	}
	return strconv.FormatInt(user.ID, 10)
}

// material gathers the text sent alongside a query: files mentioned with
// @path and the pages at urls. It returns the query without mentions.
func (a *app) material(ctx context.Context, query string, urls []string) (string, string, error) {
	query, mentions := terminal.ExtractMentions(query)
	var parts []string
	if len(mentions) > 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("working directory: %w", err)
		}
		files, err := terminal.ReadMentions(wd, mentions)
		if err != nil {
			return "", "", err
		}
		parts = append(parts, files)
	}
	if len(urls) > 0 {
		pages := source.NewFetcher(a.cfg.Source).Fetch(ctx, urls)
		text, errs := source.Combine(pages)
		for _, err := range errs {
			pslog.Ctx(ctx).Warn("source.skipped", "err", err)
		}
		if text == "" && len(errs) > 0 {
			return "", "", fmt.Errorf("no source page could be fetched: %w", errors.Join(errs...))
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return query, strings.Join(parts, "\n\n"), nil
}

// storedPrompt returns the first stored prompt pair for tab's stage.
func (a *app) storedPrompt(ctx context.Context, tab chat.Tab, query, parentID string) (gateway.Prompt, bool, error) {
	prompts, err := a.courses().Prompts(ctx, gateway.PromptRequest{
		UserQuery:   query,
		OutlineType: tab.OutlineType(),
		ParentID:    parentID,
	})
	if err != nil {
		return gateway.Prompt{}, false, err
	}
	if len(prompts) == 0 {
		return gateway.Prompt{}, false, nil
	}
	return prompts[0], true, nil
}
