package reolink

import (
	"encoding/json"
	"testing"
	"time"

	oaerrors "github.com/go-openapi/errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeConversions(t *testing.T) {
	d := time.Date(2024, 12, 25, 1, 2, 3, 0, time.UTC)

	rt := TimeOf(d)
	assert.Equal(t, Time{Year: 2024, Mon: 12, Day: 25, Hour: 1, Min: 2, Sec: 3}, rt)
	assert.True(t, d.Equal(rt.In(time.UTC)))

	end := TimeOf(d.Add(22 * time.Hour))
	assert.True(t, rt.SameDay(end))
	assert.False(t, rt.SameDay(TimeOf(d.Add(23*time.Hour))))

	b, err := json.Marshal(rt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"year":2024,"mon":12,"day":25,"hour":1,"min":2,"sec":3}`, string(b))
}

func TestBoolNumber(t *testing.T) {
	var v struct {
		A BoolNumber `json:"a"`
		B BoolNumber `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":0}`), &v))
	assert.True(t, bool(v.A))
	assert.False(t, bool(v.B))

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":0}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestStringUint64(t *testing.T) {
	var f NvrFile
	require.NoError(t, json.Unmarshal([]byte(`{"fileName":"a.mp4","fileSize":"106954752"}`), &f))
	assert.EqualValues(t, 106954752, f.Size)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileName":"a.mp4","fileSize":"106954752"}`, string(b))

	assert.Error(t, json.Unmarshal([]byte(`{"fileSize":12}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"fileSize":"twelve"}`), &f))
}

func TestScheduleTableDays(t *testing.T) {
	assert.Equal(t, []int{1, 3, 31}, ScheduleTable("1010000000000000000000000000001").Days())
	assert.Empty(t, ScheduleTable("0000").Days())
}

func TestAbilitiesUnmarshal(t *testing.T) {
	body := `[{"cmd":"GetAbility","code":0,"value":{"Ability":{
		"abilityChn":[{"snap":{"permit":6,"ver":1},"ptzCtrl":{"permit":0,"ver":0}}],
		"scheduleVersion":{"permit":0,"ver":1},
		"supportRecordEnable":{"permit":0,"ver":1}
	}}}]`

	res, err := decodeResponse[GetAbilityResponse]("GetAbility", []byte(body), true)
	require.NoError(t, err)

	require.Len(t, res.Ability.Channels, 1)
	assert.Equal(t, Ability{Permit: 6, Ver: 1}, res.Ability.Channels[0]["snap"])
	assert.Equal(t, Ability{Permit: 0, Ver: 1}, res.Ability.Device["scheduleVersion"])
	assert.Len(t, res.Ability.Device, 2)

	_, err = decodeResponse[GetAbilityResponse]("GetAbility", []byte(`[{"cmd":"GetAbility","code":0,"value":{"Ability":{}}}]`), false)
	assert.Error(t, err)
}

func TestSearchResponseDecode(t *testing.T) {
	body := `[{"cmd":"Search","code":0,"value":{"SearchResult":{
		"channel":0,
		"File":[{"EndTime":{"day":25,"hour":10,"min":5,"mon":12,"sec":0,"year":2024},
			"StartTime":{"day":25,"hour":10,"min":0,"mon":12,"sec":0,"year":2024},
			"frameRate":0,"height":0,"width":0,
			"name":"Mp4Record/2024-12-25/RecM03_20241225_100000_100500_6D28808_3B1F2C.mp4",
			"size":"3874860","type":"main"}],
		"Status":[{"mon":12,"table":"0000000000000000000000001000000","year":2024}]
	}}}]`

	res, err := decodeResponse[SearchResponse]("Search", []byte(body), true)
	require.NoError(t, err)

	require.Len(t, res.SearchResult.File, 1)
	assert.EqualValues(t, 3874860, res.SearchResult.File[0].Size)
	assert.Equal(t, uint8(10), res.SearchResult.File[0].StartTime.Hour)
	require.Len(t, res.SearchResult.Status, 1)
	assert.Equal(t, []int{25}, res.SearchResult.Status[0].Table.Days())
}

func TestAddUserValidate(t *testing.T) {
	rng := UserRange{
		Level:    []string{"guest", "admin"},
		Password: LengthRange{MinLen: 6, MaxLen: 31},
		UserName: LengthRange{MinLen: 1, MaxLen: 31},
	}

	ok := AddUserRequest{User: AddUserParams{UserName: "newuser", Password: "zeechohya5ie8daeLaiy", Level: "admin"}}
	assert.NoError(t, ok.Validate(rng))

	bad := AddUserRequest{User: AddUserParams{UserName: "", Password: "123", Level: "root"}}
	err := bad.Validate(rng)
	require.Error(t, err)

	var composite *oaerrors.CompositeError
	require.True(t, errors.As(err, &composite))
	assert.Len(t, composite.Errors, 3)

	// An empty range checks nothing
	assert.NoError(t, bad.Validate(UserRange{}))
}
