package reolink

// AuthType is the kind of authentication an endpoint expects
type AuthType int

const (
	// No authentication
	AuthNone AuthType = iota
	// login/password required (e.g. Login)
	AuthLoginPassword
	// A session token is required
	AuthToken
	// Either a token or login/password, a fresh token is preferred
	AuthAny
)

var authTypeNames = []string{"none", "login-password", "token", "any"}

func (a AuthType) String() string {
	if a < 0 || int(a) >= len(authTypeNames) {
		return "unknown"
	}
	return authTypeNames[a]
}

// NotApplicable is the Initial/Range type of endpoints that never return them
type NotApplicable struct{}

// JSONEndpoint describes a command that takes a Req payload and answers with
// JSON.  Resp is the main result; Initial and Range are returned alongside it
// when details are requested.
type JSONEndpoint[Req, Resp, Initial, Range any] struct {
	Cmd  string
	Auth AuthType
}

// BinaryEndpoint describes a command whose Req payload is sent as query
// parameters and whose response body is raw media
type BinaryEndpoint[Req any] struct {
	Cmd  string
	Auth AuthType
}

// Detailed is the result of a detailed exec
type Detailed[Resp, Initial, Range any] struct {
	Value   Resp
	Initial Initial
	Range   Range
}
