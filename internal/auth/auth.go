// Package auth holds the signed-in user. It is the only state persisted
// across runs.
package auth

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"

	"coursegen/internal/gateway"
	"coursegen/internal/persist"
)

// User statuses reported to the backend
const (
	StatusInactive = 0
	StatusActive   = 1
)

// User is the signed-in account
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	OrgID  int64  `json:"orgid"`
	Status int    `json:"status"`
}

// State is the auth slice
type State struct {
	User    *User  `json:"data"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Registrar records users with the backend
type Registrar interface {
	CreateUser(ctx context.Context, req gateway.UserRequest) (gateway.Ack, error)
	UpdateUserStatus(ctx context.Context, id int64, status int) (gateway.Ack, error)
}

type rootDocument struct {
	Auth State `json:"auth"`
}

// Slice guards the auth state and writes it through to the store.
type Slice struct {
	mu    sync.RWMutex
	state State
	store persist.Store
}

// Load rehydrates the slice from store. A missing document yields a
// signed-out slice.
func Load(ctx context.Context, store persist.Store) (*Slice, error) {
	s := &Slice{store: store}
	var doc rootDocument
	if _, err := persist.LoadJSON(ctx, store, persist.RootKey, &doc); err != nil {
		return nil, fmt.Errorf("load auth state: %w", err)
	}
	s.state = doc.Auth
	s.state.Loading = false
	return s, nil
}

// State returns a copy of the current state.
func (s *Slice) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.User != nil {
		user := *out.User
		out.User = &user
	}
	return out
}

// Start marks a sign-in as running.
func (s *Slice) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = true
	s.state.Error = ""
}

// Succeed stores user as the signed-in account.
func (s *Slice) Succeed(ctx context.Context, user User) error {
	s.mu.Lock()
	s.state.User = &user
	s.state.Loading = false
	s.state.Error = ""
	s.mu.Unlock()
	return s.save(ctx)
}

// Fail records a failed sign-in. The previous user, if any, is kept.
func (s *Slice) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	s.state.Error = msg
}

// Reset signs out and clears the persisted state.
func (s *Slice) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	if err := s.store.Delete(ctx, persist.RootKey); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

// Login registers user with the backend and signs it in.
func (s *Slice) Login(ctx context.Context, reg Registrar, user User) error {
	s.Start()
	user.Status = StatusActive
	_, err := reg.CreateUser(ctx, gateway.UserRequest{
		Name:   user.Name,
		Email:  user.Email,
		OrgID:  user.OrgID,
		Status: user.Status,
		UserID: user.ID,
	})
	if err != nil {
		s.Fail(err.Error())
		return fmt.Errorf("register user: %w", err)
	}
	pslog.Ctx(ctx).Info("auth.login", "user", user.ID, "email", user.Email)
	return s.Succeed(ctx, user)
}

// Logout marks the user inactive on the backend and resets the slice. A
// failed status update is logged and does not block the sign-out.
func (s *Slice) Logout(ctx context.Context, reg Registrar) error {
	current := s.State().User
	if current != nil && reg != nil {
		if _, err := reg.UpdateUserStatus(ctx, current.ID, StatusInactive); err != nil {
			pslog.Ctx(ctx).Warn("auth.logout_status_failed", "user", current.ID, "err", err)
		}
	}
	if err := s.Reset(ctx); err != nil {
		return err
	}
	pslog.Ctx(ctx).Info("auth.logout")
	return nil
}

func (s *Slice) save(ctx context.Context) error {
	doc := rootDocument{Auth: s.State()}
	doc.Auth.Loading = false
	if err := persist.SaveJSON(ctx, s.store, persist.RootKey, doc); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}
