package reolink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice answers a handful of commands the way the firmware does
type fakeDevice struct {
	mu       sync.Mutex
	password string
	token    string
	logins   int
	logouts  int
	queries  []url.Values
	bodies   []string
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	d := &fakeDevice{password: "secret"}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDevice) counts() (logins, logouts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logins, d.logouts
}

func (d *fakeDevice) lastQuery() url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries[len(d.queries)-1]
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.URL.Path != "/cgi-bin/api.cgi" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	d.queries = append(d.queries, q)

	var body []struct {
		Cmd   string          `json:"cmd"`
		Param json.RawMessage `json:"param"`
	}
	if r.ContentLength > 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body) > 0 {
			d.bodies = append(d.bodies, string(body[0].Param))
		}
	}

	cmd := q.Get("cmd")
	hasToken := d.token != "" && q.Get("token") == d.token
	hasPassword := q.Get("user") == "admin" && q.Get("password") == d.password

	notLoggedIn := func() {
		fmt.Fprintf(w, `[{"cmd":"%s","code":1,"error":{"rspCode":-6,"detail":"please login first"}}]`, cmd)
	}

	switch cmd {
	case "Login":
		var req LoginRequest
		if len(body) == 1 {
			_ = json.Unmarshal(body[0].Param, &req)
		}
		if req.User.UserName != "admin" || req.User.Password != d.password {
			fmt.Fprint(w, `[{"cmd":"Login","code":1,"error":{"rspCode":-7,"detail":"login failed"}}]`)
			return
		}
		d.logins++
		d.token = fmt.Sprintf("tok-%d", d.logins)
		fmt.Fprintf(w, `[{"cmd":"Login","code":0,"value":{"Token":{"leaseTime":3600,"name":"%s"}}}]`, d.token)

	case "Logout":
		if !hasToken {
			notLoggedIn()
			return
		}
		d.logouts++
		d.token = ""
		fmt.Fprint(w, `[{"cmd":"Logout","code":0,"value":{"rspCode":200}}]`)

	case "GetDevinfo":
		if !hasToken && !hasPassword {
			notLoggedIn()
			return
		}
		fmt.Fprint(w, `[{"cmd":"GetDevinfo","code":0,"value":{"DevInfo":{"B485":0,"IOInputNum":0,"IOOutputNum":0,
			"audioNum":0,"buildDay":"build 2024","cfgVer":"v3.1.0.0","channelNum":4,"detail":"HOMEHUB",
			"diskNum":1,"exactType":"HOMEHUB","firmVer":"v3.3.0.333","frameworkVer":1,"hardVer":"HUB_A",
			"model":"Reolink Home Hub","name":"Home Hub","pakSuffix":"pak","serial":"00000000000000",
			"type":"HOMEHUB","wifi":1}}}]`)

	case "GetAbility":
		if !hasToken {
			notLoggedIn()
			return
		}
		fmt.Fprint(w, `[{"cmd":"GetAbility","code":0,"value":{"Ability":{"abilityChn":[],"supportRecordEnable":{"permit":0,"ver":1}}}}]`)

	case "GetUser":
		if !hasToken && !hasPassword {
			notLoggedIn()
			return
		}
		fmt.Fprint(w, getUserDetailed)

	case "Snap":
		if !hasToken && !hasPassword {
			notLoggedIn()
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprintf(w, "JPEG-%s", q.Get("channel"))

	case "Download":
		if !hasToken {
			notLoggedIn()
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		fmt.Fprintf(w, "MP4:%s", q.Get("source"))

	default:
		http.Error(w, "boom", http.StatusInternalServerError)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, password string) *Client {
	c, err := NewClient(srv.URL+"/", "admin", password, WithHTTPClient(srv.Client()), WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func TestParseBaseURL(t *testing.T) {
	u, err := parseBaseURL("http://192.168.1.10/")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.10/cgi-bin/api.cgi", u.String())

	u, err = parseBaseURL("https://nvr.local:8443/reolink?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://nvr.local:8443/reolink/cgi-bin/api.cgi", u.String())

	for _, bad := range []string{"", "192.168.1.10", "ftp://cam", "http://", "http://cam:port:x"} {
		_, err := parseBaseURL(bad)
		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr), bad)
	}
}

func TestClientAnyEndpointUsesPassword(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")

	res, err := Exec(context.Background(), c, GetDevInfo, GetDevInfoRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Reolink Home Hub", res.DevInfo.Model)
	assert.Equal(t, 4, res.DevInfo.ChannelNum)
	assert.True(t, bool(res.DevInfo.Wifi))

	logins, _ := d.counts()
	assert.Zero(t, logins)
	assert.Equal(t, "secret", d.lastQuery().Get("password"))
	assert.Empty(t, d.lastQuery().Get("token"))
}

func TestClientTokenEndpointLogsIn(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	res, err := Exec(ctx, c, GetAbility, NewGetAbilityRequest(""))
	require.NoError(t, err)
	assert.Equal(t, Ability{Permit: 0, Ver: 1}, res.Ability.Device["supportRecordEnable"])

	_, err = Exec(ctx, c, GetAbility, NewGetAbilityRequest(""))
	require.NoError(t, err)

	logins, _ := d.counts()
	assert.Equal(t, 1, logins)
	assert.Equal(t, "tok-1", d.lastQuery().Get("token"))

	// With a token held, Any endpoints use it
	_, err = Exec(ctx, c, GetDevInfo, GetDevInfoRequest{})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", d.lastQuery().Get("token"))
	assert.Empty(t, d.lastQuery().Get("password"))
}

func TestClientConcurrentLogin(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Exec(context.Background(), c.Clone(), GetAbility, NewGetAbilityRequest(""))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logins, _ := d.counts()
	assert.Equal(t, 1, logins)
}

func TestClientLoginFailure(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "wrong")

	_, err := Exec(context.Background(), c, GetAbility, NewGetAbilityRequest(""))
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -7, apiErr.Err.RspCode)

	_, ok := c.Credentials().ReadToken()
	assert.False(t, ok)

	// The Token endpoint itself was never sent
	assert.Equal(t, "Login", d.lastQuery().Get("cmd"))
}

func TestClientExecWithDetails(t *testing.T) {
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")

	res, err := ExecWithDetails(context.Background(), c, GetUser, GetUserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "guest", res.Initial.User.Level)

	add := AddUserRequest{User: AddUserParams{UserName: "viewer", Password: "pw", Level: "guest"}}
	assert.Error(t, add.Validate(res.Range.User))
}

func TestClientDownload(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	jpeg, err := Download(ctx, c, Snapshot, NewSnapshotRequest(3))
	require.NoError(t, err)
	assert.Equal(t, "JPEG-3", string(jpeg))

	mp4, err := Download(ctx, c, DownloadFile, DownloadRequest{Source: "Mp4Record/2024-12-25/a b.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "MP4:Mp4Record/2024-12-25/a b.mp4", string(mp4))

	logins, _ := d.counts()
	assert.Equal(t, 1, logins)
}

func TestClientStatusError(t *testing.T) {
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")

	ep := JSONEndpoint[GetDevInfoRequest, GetDevInfoResponse, NotApplicable, NotApplicable]{Cmd: "Unknown", Auth: AuthAny}
	_, err := Exec(context.Background(), c, ep, GetDevInfoRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, string(statusErr.Body), "boom")
}

func TestClientLogout(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	// Nothing to release
	require.NoError(t, c.Logout(ctx))
	_, logouts := d.counts()
	assert.Zero(t, logouts)

	require.NoError(t, c.Login(ctx))
	require.NoError(t, c.Logout(ctx))

	_, logouts = d.counts()
	assert.Equal(t, 1, logouts)

	_, ok := c.Credentials().ReadToken()
	assert.False(t, ok)
}

func TestClientLogoutForgetsTokenOnFailure(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))

	// The device forgot the session
	d.mu.Lock()
	d.token = ""
	d.mu.Unlock()

	err := c.Logout(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))

	_, ok := c.Credentials().ReadToken()
	assert.False(t, ok)
}

func TestClientCloseLogsOutWithLastHandle(t *testing.T) {
	d, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")
	ctx := context.Background()

	c2 := c.Clone()
	require.NoError(t, c2.Login(ctx))

	c.Close(ctx)
	c.Close(ctx)
	_, logouts := d.counts()
	assert.Zero(t, logouts)

	_, err := Exec(ctx, c, GetDevInfo, GetDevInfoRequest{})
	assert.Equal(t, ErrClosed, err)

	// The clone still works with the shared token
	_, err = Exec(ctx, c2, GetAbility, NewGetAbilityRequest(""))
	require.NoError(t, err)

	c2.Close(ctx)
	_, logouts = d.counts()
	assert.Equal(t, 1, logouts)
}

func TestClientTokenSource(t *testing.T) {
	_, srv := newFakeDevice(t)
	c := newTestClient(t, srv, "secret")

	tok, err := c.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.True(t, tok.Valid())
}
