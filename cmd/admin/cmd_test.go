package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

type fakeUsers struct {
	byEmail map[string]model.User
	nextID  uint64
	lastPwd map[uint64]string
}

func (f *fakeUsers) Create(_ context.Context, u *model.User, password string, _ int) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrEmailExists
	}
	f.nextID++
	u.ID = f.nextID
	f.byEmail[u.Email] = *u
	f.lastPwd[u.ID] = password
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) SetPassword(_ context.Context, id uint64, password string, _ int) error {
	f.lastPwd[id] = password
	return nil
}

type fakeRevoker struct{ revoked []uint64 }

func (f *fakeRevoker) RevokeAllForUser(_ context.Context, id uint64) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func setup(t *testing.T) (*commandLine, *fakeUsers, *fakeRevoker) {
	t.Helper()
	users := &fakeUsers{
		byEmail: map[string]model.User{"ops@example.com": {ID: 40, Email: "ops@example.com", AccountType: model.AccountSuperAdmin}},
		nextID:  40,
		lastPwd: map[uint64]string{},
	}
	tokens := &fakeRevoker{}
	return &commandLine{
		users:   users,
		tokens:  tokens,
		migrate: func(context.Context) (int, error) { return 12, nil },
		cost:    4,
		out:     &bytes.Buffer{},
	}, users, tokens
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
	errStr  string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := tt.pwd
		readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errStr != "":
				assert.EqualError(t, err, tt.errStr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"createadmin", "-nope"}, wantErr: errHelp},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)
	runCLITests(t, cli, []cliTest{{name: "ok", args: []string{"migrate"}}})
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "applied 12 statements")

	cli.migrate = func(context.Context) (int, error) { return 3, errors.New("bad statement") }
	runCLITests(t, cli, []cliTest{{name: "failure", args: []string{"migrate"}, errStr: "bad statement"}})
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, users, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "no name", args: []string{"createadmin", "-email", "a@example.com"}, wantErr: errHelp},
		{name: "short password", args: []string{"createadmin", "-email", "a@example.com", "-name", "Ada"}, pwd: "short", errStr: "password must be at least 8 characters"},
		{name: "duplicate", args: []string{"createadmin", "-email", "ops@example.com", "-name", "Ops"}, pwd: "long-enough", wantErr: repository.ErrEmailExists},
		{name: "created", args: []string{"createadmin", "-email", "a@example.com", "-name", " Ada "}, pwd: "long-enough"},
	})

	u, err := users.GetByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.AccountSuperAdmin, u.AccountType)
	assert.Equal(t, "Ada", u.FullName)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.TheaterID)
	assert.Equal(t, "long-enough", users.lastPwd[u.ID])
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, users, tokens := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "ghost@example.com"}, pwd: "long-enough", wantErr: repository.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "ops@example.com"}, pwd: "brand-new-pass"},
	})
	assert.Equal(t, "brand-new-pass", users.lastPwd[40])
	assert.Equal(t, []uint64{40}, tokens.revoked)
}
