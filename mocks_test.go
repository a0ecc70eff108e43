package usersys_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockContext mocks the router.Context. Request state (cookies, headers,
// params, locals, form) is served from plain maps, responses go through
// the mock so tests can assert them.
type MockContext struct {
	mock.Mock
	NextCalled bool

	MethodMock  string
	URLMock     string
	CookiesMock map[string]string
	HeadersMock map[string]string
	ParamsMock  map[string]string
	LocalsMock  map[any]any
	StoreMock   map[string]any
	FormMock    map[string]any
	CookiesOut  map[string]*router.Cookie

	ctx context.Context
}

func NewMockContext(method, url string) *MockContext {
	return &MockContext{
		MethodMock:  method,
		URLMock:     url,
		CookiesMock: map[string]string{},
		HeadersMock: map[string]string{},
		ParamsMock:  map[string]string{},
		LocalsMock:  map[any]any{},
		StoreMock:   map[string]any{},
		FormMock:    map[string]any{},
		CookiesOut:  map[string]*router.Cookie{},
		ctx:         context.Background(),
	}
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	return m.ctx
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.ctx = ctx
}

func (m *MockContext) Method() string {
	return m.MethodMock
}

func (m *MockContext) Path() string {
	return m.URLMock
}

func (m *MockContext) OriginalURL() string {
	return m.URLMock
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if v, ok := m.ParamsMock[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Bind(i any) error {
	raw, err := json.Marshal(m.FormMock)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, i)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.LocalsMock[key] = value[0]
		return value[0]
	}
	return m.LocalsMock[key]
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.CookiesOut[cookie.Name] = cookie
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := m.CookiesMock[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	args := m.Called(name, data, status)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	args := m.Called(fallback, status)
	return args.Error(0)
}

func (m *MockContext) Header(key string) string {
	return m.HeadersMock[key]
}

func (m *MockContext) Referer() string {
	return m.HeadersMock["Referer"]
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.HeadersMock[key] = val
	return m
}

func (m *MockContext) Set(key string, val any) {
	m.StoreMock[key] = val
}

func (m *MockContext) Get(key string, def any) any {
	if v, ok := m.StoreMock[key]; ok {
		return v
	}
	return def
}

func (m *MockContext) GetString(key string, def string) string {
	if v, ok := m.StoreMock[key].(string); ok {
		return v
	}
	return def
}

func (m *MockContext) GetInt(key string, def int) int {
	if v, ok := m.StoreMock[key].(int); ok {
		return v
	}
	return def
}

func (m *MockContext) GetBool(key string, def bool) bool {
	if v, ok := m.StoreMock[key].(bool); ok {
		return v
	}
	return def
}

const flashCookieName = "router-app-flash"

// flashData decodes the flash cookie written to ctx
func flashData(t *testing.T, ctx *MockContext) router.ViewContext {
	t.Helper()

	cookie, ok := ctx.CookiesOut[flashCookieName]
	require.True(t, ok, "expected a flash cookie")

	next := NewMockContext("GET", "/")
	next.CookiesMock[flashCookieName] = cookie.Value
	return flash.Get(next)
}
