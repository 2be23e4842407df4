package reolink

import (
	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/validate"
)

var (
	// Login exchanges the account's login/password for a session token.
	//
	// Do NOT send the login and password in the URL as well as in the payload:
	// the request succeeds, but the resulting token is invalid (Home Hub).
	Login = JSONEndpoint[LoginRequest, LoginResult, NotApplicable, NotApplicable]{Cmd: "Login", Auth: AuthNone}

	// Logout releases the session token
	Logout = JSONEndpoint[LogoutRequest, SimpleResult, NotApplicable, NotApplicable]{Cmd: "Logout", Auth: AuthToken}

	// GetUser lists the device accounts
	GetUser = JSONEndpoint[GetUserRequest, GetUserResult, GetUserInitial, GetUserRange]{Cmd: "GetUser", Auth: AuthAny}

	// AddUser creates a device account
	AddUser = JSONEndpoint[AddUserRequest, SimpleResult, NotApplicable, NotApplicable]{Cmd: "AddUser", Auth: AuthAny}
)

//----- Login

type LoginRequest struct {
	User LoginUser `json:"User"`
}

type LoginUser struct {
	// Must be "0"
	Version  string `json:"Version"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

func NewLoginRequest(login, password string) LoginRequest {
	return LoginRequest{
		User: LoginUser{
			Version:  "0",
			UserName: login,
			Password: password,
		},
	}
}

type LoginResult struct {
	Token LoginToken `json:"Token"`
}

type LoginToken struct {
	// Validity in seconds
	LeaseTime int    `json:"leaseTime"`
	Name      string `json:"name"`
}

//----- Logout

// LogoutRequest has to be sent as an empty object
type LogoutRequest struct{}

//----- GetUser

type GetUserRequest struct {
	noParams
}

type GetUserResult struct {
	User []UserInfo `json:"User"`
}

type UserInfo struct {
	Level    string `json:"level"`
	UserName string `json:"userName"`
}

type GetUserInitial struct {
	User UserInitial `json:"User"`
}

type UserInitial struct {
	Level string `json:"level"`
}

type GetUserRange struct {
	User UserRange `json:"User"`
}

type UserRange struct {
	Level    []string    `json:"level"`
	Password LengthRange `json:"password"`
	UserName LengthRange `json:"userName"`
}

type LengthRange struct {
	MinLen int `json:"minLen"`
	MaxLen int `json:"maxLen"`
}

//----- AddUser

type AddUserRequest struct {
	User AddUserParams `json:"User"`
}

type AddUserParams struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
	Level    string `json:"level"`
}

// Validate checks the new account against the constraints returned by a
// detailed GetUser
func (r AddUserRequest) Validate(rng UserRange) error {
	var res []error

	if err := checkLength("User.userName", r.User.UserName, rng.UserName); err != nil {
		res = append(res, err...)
	}
	if err := checkLength("User.password", r.User.Password, rng.Password); err != nil {
		res = append(res, err...)
	}

	if len(rng.Level) > 0 {
		levels := make([]interface{}, len(rng.Level))
		for i, l := range rng.Level {
			levels[i] = l
		}
		if err := validate.Enum("User.level", "body", r.User.Level, levels); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return oaerrors.CompositeValidationError(res...)
	}
	return nil
}

func checkLength(path, value string, rng LengthRange) []error {
	var res []error

	if rng.MinLen > 0 {
		if err := validate.MinLength(path, "body", value, int64(rng.MinLen)); err != nil {
			res = append(res, err)
		}
	}
	if rng.MaxLen > 0 {
		if err := validate.MaxLength(path, "body", value, int64(rng.MaxLen)); err != nil {
			res = append(res, err)
		}
	}

	return res
}
