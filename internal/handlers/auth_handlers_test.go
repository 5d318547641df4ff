package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shopcore/storefront/internal/models"
	"github.com/shopcore/storefront/internal/mykafka"
)

func initAuthHandler(t *testing.T) (*AuthHandler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))
	return &AuthHandler{
		DB:            db,
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Producer:      &mykafka.Producer{},
	}, db
}

func jsonRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func TestRegisterCreatesUser(t *testing.T) {
	h, db := initAuthHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/register", `{"username":"alice","email":"alice@example.com","password":"s3cret"}`)
	require.NoError(t, h.Register(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	require.Equal(t, "user", user.Role)
	require.NotEqual(t, "s3cret", user.PasswordHash)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	h, _ := initAuthHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/register", `{"username":"alice","password":"other"}`)
	err := h.Register(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Code)
}

func TestLoginSetsCookiesAndPersistsRefresh(t *testing.T) {
	h, db := initAuthHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	require.Contains(t, names, "accessToken")
	require.Contains(t, names, "refreshToken")

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := initAuthHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`)
	err := h.Login(e.NewContext(req, rec))

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestLogOutRevokesRefreshToken(t *testing.T) {
	h, db := initAuthHandler(t)
	e := echo.New()

	req, rec := jsonRequest(http.MethodPost, "/register", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Register(e.NewContext(req, rec)))

	req, rec = jsonRequest(http.MethodPost, "/login", `{"username":"alice","password":"s3cret"}`)
	require.NoError(t, h.Login(e.NewContext(req, rec)))

	var refresh string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			refresh = c.Value
		}
	}
	require.NotEmpty(t, refresh)

	req, rec = jsonRequest(http.MethodPost, "/logout", "")
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh})
	require.NoError(t, h.LogOut(e.NewContext(req, rec)))

	var row models.RefreshToken
	require.NoError(t, db.Where("token = ?", refresh).First(&row).Error)
	require.True(t, row.Revoked)
}
