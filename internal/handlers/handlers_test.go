package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/equipment-console/internal/apiclient"
	"github.com/otcheredev/equipment-console/internal/authprovider"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/otcheredev/equipment-console/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = &apiclient.APIError{StatusCode: http.StatusNotFound, Message: "Not found"}

type fakeGroups struct {
	mu     sync.Mutex
	nextID int64
	groups []models.EquipmentGroup
	calls  int
	saving bool
}

func newFakeGroups(names ...string) *fakeGroups {
	f := &fakeGroups{nextID: 1}
	for _, n := range names {
		f.groups = append(f.groups, models.EquipmentGroup{ID: f.nextID, Name: n})
		f.nextID++
	}
	return f
}

func (f *fakeGroups) List(ctx context.Context) ([]models.EquipmentGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.EquipmentGroup(nil), f.groups...), nil
}

func (f *fakeGroups) Get(ctx context.Context, id int64) (*models.EquipmentGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.ID == id {
			return &g, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeGroups) Create(ctx context.Context, req models.EquipmentGroupCreate) (*models.EquipmentGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	g := models.EquipmentGroup{ID: f.nextID, Name: req.Name}
	f.nextID++
	f.groups = append(f.groups, g)
	return &g, nil
}

func (f *fakeGroups) Update(ctx context.Context, id int64, req models.EquipmentGroupUpdate) (*models.EquipmentGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.groups {
		if f.groups[i].ID == id {
			f.groups[i].Name = req.Name
			g := f.groups[i]
			return &g, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeGroups) Delete(ctx context.Context, id int64) (*models.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.groups {
		if f.groups[i].ID == id {
			f.groups = append(f.groups[:i], f.groups[i+1:]...)
			return &models.DeleteResult{Status: "deleted"}, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeGroups) Creating(ctx context.Context) bool { return f.saving }
func (f *fakeGroups) Updating(ctx context.Context) bool { return false }
func (f *fakeGroups) Deleting(ctx context.Context) bool { return false }

func pageRouter(groups EquipmentGroups) http.Handler {
	h := NewEquipmentGroupHandler(groups)
	r := chi.NewRouter()
	r.Get(masterPath, h.Page)
	r.Post(masterPath, h.Save)
	r.Post(masterPath+"/{id}/delete", h.Delete)
	return r
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestMasterPage(t *testing.T) {
	router := pageRouter(newFakeGroups("切断グループ"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, masterPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "切断グループ")
	assert.NotContains(t, rec.Body.String(), "<dialog")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, masterPath+"?dialog=create", nil))
	assert.Contains(t, rec.Body.String(), `name="mode" value="create"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, masterPath+"?dialog=edit&id=1", nil))
	assert.Contains(t, rec.Body.String(), `name="mode" value="edit"`)
	assert.Contains(t, rec.Body.String(), `value="切断グループ" placeholder`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, masterPath+"?delete=1", nil))
	assert.Contains(t, rec.Body.String(), "削除の確認")
	assert.Contains(t, rec.Body.String(), `action="/master/equipment-groups/1/delete"`)
}

func TestMasterPageShowsPendingSave(t *testing.T) {
	groups := newFakeGroups("切断グループ")
	groups.saving = true
	router := pageRouter(groups)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, masterPath+"?dialog=create", nil))
	assert.Contains(t, rec.Body.String(), "保存中...")
}

func TestSaveBlankNameMakesNoCall(t *testing.T) {
	groups := newFakeGroups()
	router := pageRouter(groups)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postForm(masterPath, url.Values{"mode": {"create"}, "name": {"   "}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), view.MsgNameRequired)
	assert.Contains(t, rec.Body.String(), "<dialog open>")
	assert.Zero(t, groups.calls)
}

func TestSaveCreateAndUpdate(t *testing.T) {
	groups := newFakeGroups()
	router := pageRouter(groups)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postForm(masterPath, url.Values{"mode": {"create"}, "name": {"切断グループ"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, masterPath, rec.Header().Get("Location"))

	flash := rec.Result().Cookies()
	require.NotEmpty(t, flash)
	req := httptest.NewRequest(http.MethodGet, masterPath, nil)
	for _, c := range flash {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), view.MsgCreated)
	assert.Contains(t, rec.Body.String(), "切断グループ")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postForm(masterPath, url.Values{"mode": {"edit"}, "id": {"1"}, "name": {"溶接グループ"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	list, _ := groups.List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "溶接グループ", list[0].Name)
}

func TestDeleteMissingKeepsConfirmationOpen(t *testing.T) {
	router := pageRouter(newFakeGroups("切断グループ"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, postForm(masterPath+"/99/delete", url.Values{}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), view.MsgDeleteFailed)
	assert.Contains(t, rec.Body.String(), "削除の確認")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, postForm(masterPath+"/1/delete", url.Values{}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

type fakeAuth struct {
	err     error
	logouts []string
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "sid-1", nil
}

func (f *fakeAuth) Logout(ctx context.Context, sid string) error {
	f.logouts = append(f.logouts, sid)
	return nil
}

func TestLogin(t *testing.T) {
	cookie := CookieConfig{Name: "console_session", TTL: time.Hour}
	form := url.Values{"email": {"admin@example.com"}, "password": {"secret"}}

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"success", nil, http.StatusSeeOther, ""},
		{"invalid credentials", authprovider.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid login credentials"},
		{"no tenant", tenant.ErrNoTenant, http.StatusForbidden, view.MsgNoTenant},
		{"provider down", errors.New("dial tcp: refused"), http.StatusBadGateway, view.MsgAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLoginHandler(&fakeAuth{err: tt.err}, cookie)
			rec := httptest.NewRecorder()
			h.Login(rec, postForm("/login", form))

			assert.Equal(t, tt.status, rec.Code)
			var sessionCookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == cookie.Name {
					sessionCookie = c
				}
			}
			if tt.err == nil {
				require.NotNil(t, sessionCookie)
				assert.Equal(t, "sid-1", sessionCookie.Value)
				assert.True(t, sessionCookie.HttpOnly)
				assert.Equal(t, masterPath, rec.Header().Get("Location"))
				return
			}
			assert.Nil(t, sessionCookie)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Contains(t, rec.Body.String(), `value="admin@example.com"`)
		})
	}
}

func TestAPI(t *testing.T) {
	h := NewAPIHandler(newFakeGroups("切断グループ"), nil)
	r := chi.NewRouter()
	r.Get("/api/equipment-groups", h.ListGroups)
	r.Post("/api/equipment-groups", h.CreateGroup)
	r.Patch("/api/equipment-groups/{id}", h.UpdateGroup)
	r.Delete("/api/equipment-groups/{id}", h.DeleteGroup)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/equipment-groups", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"切断グループ","organization_id":"","created_at":"0001-01-01T00:00:00Z","updated_at":"0001-01-01T00:00:00Z"}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/equipment-groups", strings.NewReader(`{"name":" "}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/equipment-groups/1", strings.NewReader(`{"name":"溶接グループ"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "溶接グループ")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/equipment-groups/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/equipment-groups/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	status, detail := statusFor(apiclient.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", detail)

	status, detail = statusFor(&apiclient.APIError{StatusCode: http.StatusServiceUnavailable, Message: "down"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "down", detail)
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"cache":    PingFunc(func(ctx context.Context) error { return nil }),
		"database": PingFunc(func(ctx context.Context) error { return errors.New("down") }),
	})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"cache":"healthy"`)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
