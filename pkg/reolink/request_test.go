package reolink

import (
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)

func testParams(t *testing.T, cmd string, auth AuthType, creds *Credentials) requestParams {
	u, err := url.Parse("http://192.168.1.10/cgi-bin/api.cgi")
	require.NoError(t, err)

	return requestParams{
		transport: NewHTTPTransport(nil),
		baseURL:   u,
		cmd:       cmd,
		auth:      auth,
		creds:     creds,
		now:       testNow,
	}
}

func withToken(creds *Credentials, value string, expiry time.Time) *Credentials {
	creds.token = &Token{Value: value, Expiry: expiry}
	return creds
}

func TestBuildJSONRequestAnyWithoutToken(t *testing.T) {
	p := testParams(t, GetUser.Cmd, GetUser.Auth, NewCredentials("admin", "p@ss w/rd"))

	req, err := buildJSONRequest(p, GetUserRequest{}, false)
	require.NoError(t, err)

	assert.Equal(t, "cmd=GetUser&user=admin&password=p@ss%20w/rd", req.URL().RawQuery)

	hr := req.(*HTTPRequest)
	assert.Equal(t, "POST", hr.Method)
	assert.JSONEq(t, `[{"cmd":"GetUser","param":null}]`, string(hr.Body))
	assert.NotContains(t, string(hr.Body), "action")
}

func TestBuildJSONRequestDetails(t *testing.T) {
	p := testParams(t, GetUser.Cmd, GetUser.Auth, NewCredentials("admin", "secret"))

	req, err := buildJSONRequest(p, GetUserRequest{}, true)
	require.NoError(t, err)

	assert.JSONEq(t, `[{"cmd":"GetUser","action":1,"param":null}]`, string(req.(*HTTPRequest).Body))
}

func TestBuildJSONRequestAnyWithToken(t *testing.T) {
	creds := withToken(NewCredentials("admin", "secret"), "abc123", testNow.Add(time.Hour))
	p := testParams(t, GetDevInfo.Cmd, GetDevInfo.Auth, creds)

	req, err := buildJSONRequest(p, GetDevInfoRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, "cmd=GetDevinfo&token=abc123", req.URL().RawQuery)
}

func TestBuildJSONRequestAnyWithStaleToken(t *testing.T) {
	creds := withToken(NewCredentials("admin", "secret"), "abc123", testNow.Add(10*time.Second))
	p := testParams(t, GetDevInfo.Cmd, GetDevInfo.Auth, creds)

	req, err := buildJSONRequest(p, GetDevInfoRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, "cmd=GetDevinfo&user=admin&password=secret", req.URL().RawQuery)
}

func TestBuildJSONRequestTokenRequired(t *testing.T) {
	tests := []struct {
		name  string
		creds *Credentials
	}{
		{"no token", NewCredentials("admin", "secret")},
		{"expired token", withToken(NewCredentials("admin", "secret"), "abc", testNow.Add(-time.Second))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(t, GetAbility.Cmd, GetAbility.Auth, tt.creds)

			_, err := buildJSONRequest(p, NewGetAbilityRequest(""), false)
			require.Error(t, err)

			var authErr *AuthError
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, "GetAbility", authErr.Cmd)
			assert.Contains(t, err.Error(), "'GetAbility'")
		})
	}
}

func TestBuildJSONRequestTokenStaleButValid(t *testing.T) {
	creds := withToken(NewCredentials("admin", "secret"), "abc", testNow.Add(10*time.Second))
	p := testParams(t, GetAbility.Cmd, GetAbility.Auth, creds)

	req, err := buildJSONRequest(p, NewGetAbilityRequest(""), false)
	require.NoError(t, err)
	assert.Equal(t, "cmd=GetAbility&token=abc", req.URL().RawQuery)
	assert.JSONEq(t, `[{"cmd":"GetAbility","param":{"User":{"userName":"NULL"}}}]`, string(req.(*HTTPRequest).Body))
}

func TestBuildJSONRequestLogin(t *testing.T) {
	p := testParams(t, Login.Cmd, Login.Auth, NewCredentials("admin", "secret"))

	req, err := buildJSONRequest(p, NewLoginRequest("admin", "secret"), false)
	require.NoError(t, err)

	assert.Equal(t, "cmd=Login", req.URL().RawQuery)
	assert.JSONEq(t,
		`[{"cmd":"Login","param":{"User":{"Version":"0","userName":"admin","password":"secret"}}}]`,
		string(req.(*HTTPRequest).Body))
}

func TestBuildJSONRequestLoginPassword(t *testing.T) {
	p := testParams(t, "Custom", AuthLoginPassword, NewCredentials("admin", "secret"))

	req, err := buildJSONRequest(p, struct{}{}, false)
	require.NoError(t, err)
	assert.Equal(t, "cmd=Custom&user=admin&password=secret", req.URL().RawQuery)
}

func TestBuildRequestTimeout(t *testing.T) {
	p := testParams(t, GetUser.Cmd, GetUser.Auth, NewCredentials("admin", "secret"))
	p.timeout = 3 * time.Second

	req, err := buildJSONRequest(p, GetUserRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, req.(*HTTPRequest).Timeout)
}

func TestBuildRequestWithoutURL(t *testing.T) {
	p := testParams(t, GetUser.Cmd, GetUser.Auth, NewCredentials("admin", "secret"))
	p.baseURL = nil

	_, err := buildJSONRequest(p, GetUserRequest{}, false)
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBuildBinaryRequest(t *testing.T) {
	creds := withToken(NewCredentials("admin", "secret"), "abc", testNow.Add(time.Hour))
	p := testParams(t, DownloadFile.Cmd, DownloadFile.Auth, creds)

	req, err := buildBinaryRequest(p, DownloadRequest{Source: "Mp4Record/2024-12-25/RecS03_DST20241225_100000_100500.mp4"})
	require.NoError(t, err)

	assert.Equal(t, "cmd=Download&token=abc&source=Mp4Record/2024-12-25/RecS03_DST20241225_100000_100500.mp4", req.URL().RawQuery)
	assert.Nil(t, req.(*HTTPRequest).Body)
}

func TestBuildBinaryRequestSnapshot(t *testing.T) {
	p := testParams(t, Snapshot.Cmd, Snapshot.Auth, NewCredentials("admin", "secret"))

	req, err := buildBinaryRequest(p, SnapshotRequest{Channel: 2, RS: "flsYJfZgM6RTB_os"})
	require.NoError(t, err)
	assert.Equal(t, "cmd=Snap&user=admin&password=secret&channel=2&rs=flsYJfZgM6RTB_os", req.URL().RawQuery)
}

func TestQueryPairs(t *testing.T) {
	out := "video.mp4"
	pairs, err := queryPairs(DownloadRequest{Source: "a b", Output: &out})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"source", "a b"}, {"output", "video.mp4"}}, pairs)

	pairs, err = queryPairs(nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	pairs, err = queryPairs(GetUserRequest{})
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = queryPairs(SearchRequest{})
	assert.Error(t, err)

	_, err = queryPairs(42)
	assert.Error(t, err)
}

func TestNewSnapshotRequest(t *testing.T) {
	a := NewSnapshotRequest(1)
	b := NewSnapshotRequest(1)

	assert.Equal(t, 1, a.Channel)
	assert.Len(t, a.RS, 16)
	assert.NotEqual(t, a.RS, b.RS)
}
