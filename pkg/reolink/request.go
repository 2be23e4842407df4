package reolink

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Requests are a single object in an array
type requestEnvelope struct {
	Cmd    string      `json:"cmd"`
	Action *int        `json:"action,omitempty"`
	Param  interface{} `json:"param"`
}

// Asks the device for the initial and range values as well
var detailsAction = 1

type requestParams struct {
	transport Transport
	baseURL   *url.URL
	cmd       string
	auth      AuthType
	creds     *Credentials
	timeout   time.Duration
	now       time.Time
}

// Section common to JSON and binary requests: command and auth parameters
func prepareRequestBase(p requestParams) (RequestBuilder, error) {
	if p.baseURL == nil || p.baseURL.Host == "" {
		return nil, &ConfigError{Msg: "no device URL configured"}
	}

	rb := p.transport.NewRequest(http.MethodPost, p.baseURL)
	rb = rb.Query("cmd", p.cmd)

	switch p.auth {
	case AuthNone:
	case AuthLoginPassword:
		rb = rb.Query("user", p.creds.login).Query("password", p.creds.password)
	case AuthToken:
		tok, ok := p.creds.ReadToken()
		if !ok || tok.IsExpired(p.now) {
			return nil, &AuthError{Cmd: p.cmd}
		}
		rb = rb.Query("token", tok.Value)
	case AuthAny:
		if tok, ok := p.creds.ReadToken(); ok && !tok.NeedsRefresh(p.now) {
			rb = rb.Query("token", tok.Value)
		} else {
			rb = rb.Query("user", p.creds.login).Query("password", p.creds.password)
		}
	default:
		return nil, errors.Errorf("unknown authentication type %d for '%s'", p.auth, p.cmd)
	}

	if p.timeout > 0 {
		rb = rb.Timeout(p.timeout)
	}

	return rb, nil
}

func finalizeRequest(rb RequestBuilder) (Request, error) {
	req, err := rb.Build()
	if err != nil {
		return nil, err
	}

	normalizeURL(req.URL())
	return req, nil
}

func buildJSONRequest(p requestParams, payload interface{}, details bool) (Request, error) {
	rb, err := prepareRequestBase(p)
	if err != nil {
		return nil, err
	}

	env := requestEnvelope{
		Cmd:   p.cmd,
		Param: payload,
	}
	if details {
		env.Action = &detailsAction
	}

	rb = rb.JSON([]requestEnvelope{env})
	return finalizeRequest(rb)
}

func buildBinaryRequest(p requestParams, payload interface{}) (Request, error) {
	rb, err := prepareRequestBase(p)
	if err != nil {
		return nil, err
	}

	pairs, err := queryPairs(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding '%s' parameters", p.cmd)
	}

	for _, kv := range pairs {
		rb = rb.Query(kv[0], kv[1])
	}

	return finalizeRequest(rb)
}

// queryPairs flattens a payload struct into ordered key/value pairs using its
// JSON field names.  Null fields are skipped, nested values are rejected.
func queryPairs(payload interface{}) ([][2]string, error) {
	if payload == nil {
		return nil, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Errorf("payload must encode to an object, got %s", raw)
	}

	var pairs [][2]string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		switch value.(type) {
		case nil:
			continue
		case map[string]interface{}, []interface{}:
			return nil, errors.Errorf("field '%s' cannot be sent as a query parameter", key)
		}

		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, errors.Wrapf(err, "field '%s'", key)
		}
		pairs = append(pairs, [2]string{key, s})
	}

	return pairs, nil
}
