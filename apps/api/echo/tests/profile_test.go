package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AbuAli85/business-services-hub-sub009/apps/api/echo"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/tests"
)

func Test_home_health(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to "+env.Conf.AppName+" API!", rec.Body.String())

	tt := httpTest{path: "/v1/health", wantCode: http.StatusOK, wantData: []byte(`{"status":"ok","build":"test"}`)}
	checkCodeAndData(t, tt, do(tt))
}

func Test_auth(t *testing.T) {
	usr := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Awe", "awe@auth.om")
	disabled := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Gone", "gone@auth.om")
	disabled.IsActive = false
	_, err := env.Profiles.UpdateProfile(context.Background(), disabled)
	require.NoError(t, err)

	sign := func(claims *Claims, secret string) string {
		token, err := GenerateToken(secret, claims)
		require.NoError(t, err)
		return token
	}
	wrongAudience := NewClaims(usr, "someone-else", time.Hour)
	expired := NewClaims(usr, env.Conf.Auth.Audience, -time.Minute)

	tests := []httpTest{
		{name: "no token", path: "/v1/profiles/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "bad signature", path: "/v1/profiles/me", token: sign(NewClaims(usr, env.Conf.Auth.Audience, time.Hour), "lol"),
			wantCode: http.StatusUnauthorized, wantData: []byte(`{"error":"invalid or expired jwt"}`),
		},
		{
			name: "expired", path: "/v1/profiles/me", token: sign(expired, env.Conf.Auth.JWTSecret),
			wantCode: http.StatusUnauthorized, wantData: []byte(`{"error":"invalid or expired jwt"}`),
		},
		{
			name: "wrong audience", path: "/v1/profiles/me", token: sign(wrongAudience, env.Conf.Auth.JWTSecret),
			wantCode: http.StatusUnauthorized, wantData: []byte(`{"error":"user not authenticated"}`),
		},
		{
			name: "deactivated", path: "/v1/profiles/me", token: getToken(t, disabled),
			wantCode: http.StatusForbidden, wantData: []byte(`{"error":"account deactivated"}`),
		},
		{name: "ok", path: "/v1/profiles/me", token: getToken(t, usr), wantCode: http.StatusOK, wantData: marchallObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(tt))
		})
	}
}

func Test_auth_firstLogin(t *testing.T) {
	newcomer := profile.Profile{
		ID:       uuid.New().String(),
		Email:    "NEW@auth.om",
		FullName: "New Provider",
		Role:     profile.RoleProvider,
	}
	wannabe := profile.Profile{ID: uuid.New().String(), Email: "boss@auth.om", Role: profile.RoleAdmin}

	rec := do(httpTest{path: "/v1/profiles/me", token: getToken(t, newcomer)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got profile.Profile
	unmarshal(t, rec, &got)
	assert.Equal(t, newcomer.ID, got.ID)
	assert.Equal(t, "new@auth.om", got.Email)
	assert.Equal(t, "New Provider", got.FullName)
	assert.Equal(t, profile.RoleProvider, got.Role)
	assert.True(t, got.IsActive)

	rec = do(httpTest{path: "/v1/profiles/me", token: getToken(t, wannabe)})
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &got)
	assert.Equal(t, profile.RoleClient, got.Role, "admin cannot be claimed")

	// subjects must be uuids
	rec = do(httpTest{path: "/v1/profiles/me", token: getToken(t, profile.Profile{ID: "root"})})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_profileApi_updateMe(t *testing.T) {
	usr := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Awe", "awe@me.om")
	token := getToken(t, usr)

	tests := []httpTest{
		{
			name: "invalid avatar", method: http.MethodPut, path: "/v1/profiles/me", token: token,
			body: []byte(`{"avatar_url": "not a url"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"avatar_url":"avatar_url must be a valid URL"}`),
		},
		{
			name: "blank name", method: http.MethodPut, path: "/v1/profiles/me", token: token,
			body: []byte(`{"full_name": "   "}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"full_name":"this field cannot be blank"}`),
		},
		{
			name: "role is admin only", method: http.MethodPut, path: "/v1/profiles/me", token: token,
			body: []byte(`{"role": "provider"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(tt))
		})
	}

	rec := do(httpTest{
		method: http.MethodPut, path: "/v1/profiles/me", token: token,
		body: []byte(`{"full_name": " Awe Trez ", "company_name": "Trez LLC", "phone": "+968 9000 0000"}`),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got profile.Profile
	unmarshal(t, rec, &got)
	assert.Equal(t, "Awe Trez", got.FullName)
	assert.Equal(t, "Trez LLC", got.CompanyName)
	assert.Equal(t, profile.RoleClient, got.Role)
}

func Test_profileApi_retrieve(t *testing.T) {
	usr := testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Awe", "awe@public.om")
	other := testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "", "acme@public.om")
	token := getToken(t, usr)

	tests := []httpTest{
		{
			name: "public view", path: "/v1/profiles/" + other.ID, token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, profile.Participant{ID: other.ID, Name: "acme", Role: profile.RoleProvider}),
		},
		{
			name: "not found", path: "/v1/profiles/" + uuid.New().String(), token: token,
			wantCode: http.StatusNotFound, wantData: []byte(`{"error":"profile not found"}`),
		},
		{name: "roles", path: "/v1/profiles/roles", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, profile.Roles)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, do(tt))
		})
	}
}
