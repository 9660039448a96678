package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"coursegen/internal/gateway"
	"coursegen/internal/persist"
)

type fakeRegistrar struct {
	created   []gateway.UserRequest
	updated   map[int64]int
	createErr error
	updateErr error
}

func (f *fakeRegistrar) CreateUser(_ context.Context, req gateway.UserRequest) (gateway.Ack, error) {
	if f.createErr != nil {
		return gateway.Ack{}, f.createErr
	}
	f.created = append(f.created, req)
	return gateway.Ack{Message: "created"}, nil
}

func (f *fakeRegistrar) UpdateUserStatus(_ context.Context, id int64, status int) (gateway.Ack, error) {
	if f.updated == nil {
		f.updated = map[int64]int{}
	}
	f.updated[id] = status
	return gateway.Ack{}, f.updateErr
}

func openStore(t *testing.T) (persist.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := persist.OpenFile(path)
	require.NoError(t, err)
	return store, path
}

func TestLoginPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	store, path := openStore(t)

	slice, err := Load(ctx, store)
	require.NoError(t, err)
	require.Nil(t, slice.State().User)

	reg := &fakeRegistrar{}
	require.NoError(t, slice.Login(ctx, reg, User{ID: 7, Name: "Ada", Email: "ada@example.com", OrgID: 2}))
	require.Len(t, reg.created, 1)
	require.Equal(t, StatusActive, reg.created[0].Status)
	require.Equal(t, int64(7), reg.created[0].UserID)

	reopened, err := persist.OpenFile(path)
	require.NoError(t, err)
	restored, err := Load(ctx, reopened)
	require.NoError(t, err)
	state := restored.State()
	require.NotNil(t, state.User)
	require.Equal(t, "Ada", state.User.Name)
	require.False(t, state.Loading)
}

func TestLoginFailureKeepsUserOut(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	slice, err := Load(ctx, store)
	require.NoError(t, err)

	err = slice.Login(ctx, &fakeRegistrar{createErr: errors.New("duplicate email")}, User{ID: 1})
	require.Error(t, err)
	state := slice.State()
	require.Nil(t, state.User)
	require.False(t, state.Loading)
	require.Equal(t, "duplicate email", state.Error)

	_, ok, err := store.Get(ctx, persist.RootKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogoutResets(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	slice, err := Load(ctx, store)
	require.NoError(t, err)

	reg := &fakeRegistrar{updateErr: errors.New("offline")}
	require.NoError(t, slice.Login(ctx, reg, User{ID: 9}))
	require.NoError(t, slice.Logout(ctx, reg))
	require.Equal(t, StatusInactive, reg.updated[9])
	require.Equal(t, State{}, slice.State())

	_, ok, err := store.Get(ctx, persist.RootKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStateReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	slice, err := Load(ctx, store)
	require.NoError(t, err)
	require.NoError(t, slice.Succeed(ctx, User{ID: 3, Name: "orig"}))

	state := slice.State()
	state.User.Name = "changed"
	require.Equal(t, "orig", slice.State().User.Name)
}
