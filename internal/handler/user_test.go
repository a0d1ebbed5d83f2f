package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-canteen/internal/model"
	"github.com/iliyamo/theater-canteen/internal/repository"
)

type fakeUsers struct {
	users     map[uint64]model.User
	passwords map[uint64]string
}

func (f *fakeUsers) Create(_ context.Context, u *model.User, password string, _ int) error {
	for _, x := range f.users {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = uint64(len(f.users) + 100)
	f.users[u.ID] = *u
	f.passwords[u.ID] = password
	return nil
}

func (f *fakeUsers) GetInTheater(_ context.Context, theaterID, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok || u.TheaterIDOrZero() != theaterID {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ListByTheater(_ context.Context, theaterID uint64, _ string, _ model.Page) ([]model.User, int, error) {
	var out []model.User
	for _, u := range f.users {
		if u.TheaterIDOrZero() == theaterID {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (f *fakeUsers) Update(_ context.Context, u *model.User) error {
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUsers) SetActive(ctx context.Context, theaterID, id uint64, active bool) error {
	u, err := f.GetInTheater(ctx, theaterID, id)
	if err != nil {
		return err
	}
	u.IsActive = active
	f.users[id] = u
	return nil
}

func (f *fakeUsers) SetPassword(_ context.Context, id uint64, password string, _ int) error {
	f.passwords[id] = password
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, theaterID, id uint64) error {
	if _, err := f.GetInTheater(ctx, theaterID, id); err != nil {
		return err
	}
	delete(f.users, id)
	return nil
}

type fakeRoles map[uint64]model.Role

func (f fakeRoles) Create(_ context.Context, r *model.Role) error { return nil }
func (f fakeRoles) Update(_ context.Context, r *model.Role) error { return nil }
func (f fakeRoles) Delete(context.Context, uint64, uint64) error  { return nil }

func (f fakeRoles) Get(_ context.Context, theaterID, id uint64) (model.Role, error) {
	r, ok := f[id]
	if !ok || r.TheaterID != theaterID {
		return model.Role{}, repository.ErrNotFound
	}
	return r, nil
}

func (f fakeRoles) List(_ context.Context, theaterID uint64) ([]model.Role, error) {
	var out []model.Role
	for _, r := range f {
		if r.TheaterID == theaterID {
			out = append(out, r)
		}
	}
	return out, nil
}

func userFixture(who identity) (*echo.Echo, *fakeUsers, *fakeTokens) {
	users := &fakeUsers{
		users: map[uint64]model.User{
			7: {ID: 7, TheaterID: ptr(uint64(1)), Email: "admin@grand.example", AccountType: model.AccountTheaterAdmin, IsActive: true},
			8: {ID: 8, TheaterID: ptr(uint64(1)), Email: "clerk@grand.example", AccountType: model.AccountTheaterUser, RoleID: ptr(uint64(3)), IsActive: true},
			9: {ID: 9, TheaterID: ptr(uint64(2)), Email: "other@else.example", AccountType: model.AccountTheaterAdmin, IsActive: true},
		},
		passwords: map[uint64]string{},
	}
	tokens := &fakeTokens{active: map[string]uint64{"t8": 8, "t7": 7}}
	h := &UserHandler{
		Users:  users,
		Roles:  fakeRoles{3: {ID: 3, TheaterID: 1, Name: "Staff", IsActive: true}, 4: {ID: 4, TheaterID: 2, Name: "Theirs"}},
		Tokens: tokens,
	}
	e := newEcho(who)
	g := e.Group("/v1/theaters/:theaterId/users")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/active", h.SetActive)
	g.PUT("/:id/password", h.ResetPassword)
	g.DELETE("/:id", h.Delete)
	return e, users, tokens
}

func TestUserHandler_Create(t *testing.T) {
	e, users, _ := userFixture(theaterAdmin)

	rec := serve(e, http.MethodPost, "/v1/theaters/1/users",
		`{"email":"new@grand.example","full_name":"New Clerk","password":"longenough","account_type":"THEATER_USER","role_id":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[model.User](t, rec)
	assert.Equal(t, uint64(1), u.TheaterIDOrZero())
	assert.Equal(t, "longenough", users.passwords[u.ID])

	runHTTPTests(t, e, []httpTest{
		{name: "role required", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"x@grand.example","full_name":"X","password":"longenough","account_type":"THEATER_USER"}`,
			wantCode: http.StatusBadRequest, wantErr: "role_id"},
		{name: "role of another theater", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"x@grand.example","full_name":"X","password":"longenough","account_type":"THEATER_USER","role_id":4}`,
			wantCode: http.StatusNotFound},
		{name: "duplicate email", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"clerk@grand.example","full_name":"X","password":"longenough","account_type":"THEATER_ADMIN"}`,
			wantCode: http.StatusConflict},
		{name: "super admin not allowed", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"x@grand.example","full_name":"X","password":"longenough","account_type":"SUPER_ADMIN"}`,
			wantCode: http.StatusBadRequest},
		{name: "short password", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"x@grand.example","full_name":"X","password":"short","account_type":"THEATER_ADMIN"}`,
			wantCode: http.StatusBadRequest},
	})
}

func TestUserHandler_SelfProtection(t *testing.T) {
	e, _, _ := userFixture(theaterAdmin)
	runHTTPTests(t, e, []httpTest{
		{name: "deactivate self", method: http.MethodPatch, path: "/v1/theaters/1/users/7/active",
			body: `{"is_active":false}`, wantCode: http.StatusForbidden},
		{name: "delete self", method: http.MethodDelete, path: "/v1/theaters/1/users/7", wantCode: http.StatusForbidden},
		{name: "demote self", method: http.MethodPut, path: "/v1/theaters/1/users/7",
			body: `{"full_name":"Me","account_type":"THEATER_USER","role_id":3}`, wantCode: http.StatusForbidden},
		{name: "rename self", method: http.MethodPut, path: "/v1/theaters/1/users/7",
			body: `{"full_name":"Me","account_type":"THEATER_ADMIN"}`, wantCode: http.StatusOK},
		{name: "user of another theater", method: http.MethodGet, path: "/v1/theaters/1/users/9", wantCode: http.StatusNotFound},
	})
}

func TestUserHandler_DeactivateRevokesSessions(t *testing.T) {
	e, users, tokens := userFixture(theaterAdmin)

	rec := serve(e, http.MethodPatch, "/v1/theaters/1/users/8/active", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, users.users[8].IsActive)
	assert.Equal(t, map[string]uint64{"t7": 7}, tokens.active)

	tokens.active["t8"] = 8
	rec = serve(e, http.MethodPut, "/v1/theaters/1/users/8/password", `{"password":"brand-new-secret"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, "brand-new-secret", users.passwords[8])
	assert.NotContains(t, tokens.active, "t8")
}

func TestUserHandler_StaffCannotManageAdmins(t *testing.T) {
	clerk := identity{userID: 8, role: model.AccountTheaterUser, theaterID: 1}
	e, users, tokens := userFixture(clerk)
	users.users[10] = model.User{ID: 10, TheaterID: ptr(uint64(1)), Email: "cook@grand.example",
		AccountType: model.AccountTheaterUser, RoleID: ptr(uint64(3)), IsActive: true}

	runHTTPTests(t, e, []httpTest{
		{name: "create admin", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"boss@grand.example","full_name":"Boss","password":"longenough","account_type":"THEATER_ADMIN"}`,
			wantCode: http.StatusForbidden, wantErr: "admin"},
		{name: "promote staff", method: http.MethodPut, path: "/v1/theaters/1/users/10",
			body: `{"full_name":"Cook","account_type":"THEATER_ADMIN"}`, wantCode: http.StatusForbidden},
		{name: "edit admin", method: http.MethodPut, path: "/v1/theaters/1/users/7",
			body: `{"full_name":"Renamed","account_type":"THEATER_ADMIN"}`, wantCode: http.StatusForbidden},
		{name: "reset admin password", method: http.MethodPut, path: "/v1/theaters/1/users/7/password",
			body: `{"password":"hijacked1"}`, wantCode: http.StatusForbidden},
		{name: "deactivate admin", method: http.MethodPatch, path: "/v1/theaters/1/users/7/active",
			body: `{"is_active":false}`, wantCode: http.StatusForbidden},
		{name: "delete admin", method: http.MethodDelete, path: "/v1/theaters/1/users/7", wantCode: http.StatusForbidden},
		{name: "create staff", method: http.MethodPost, path: "/v1/theaters/1/users",
			body:     `{"email":"new@grand.example","full_name":"New","password":"longenough","account_type":"THEATER_USER","role_id":3}`,
			wantCode: http.StatusCreated},
		{name: "reset staff password", method: http.MethodPut, path: "/v1/theaters/1/users/10/password",
			body: `{"password":"fresh-pass"}`, wantCode: http.StatusNoContent},
	})

	assert.NotContains(t, users.passwords, uint64(7))
	assert.Equal(t, model.AccountTheaterAdmin, users.users[7].AccountType)
	assert.True(t, users.users[7].IsActive)
	assert.Contains(t, tokens.active, "t7")
	assert.Equal(t, "fresh-pass", users.passwords[10])
}

func TestUserHandler_SuperAdminManagesAdmins(t *testing.T) {
	e, users, _ := userFixture(superAdmin)
	runHTTPTests(t, e, []httpTest{
		{name: "reset admin password", method: http.MethodPut, path: "/v1/theaters/1/users/7/password",
			body: `{"password":"platform-reset"}`, wantCode: http.StatusNoContent},
	})
	assert.Equal(t, "platform-reset", users.passwords[7])
}
