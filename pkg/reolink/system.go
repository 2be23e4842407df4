package reolink

import (
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	// GetAbility reports a user's permissions on the device and its channels
	GetAbility = JSONEndpoint[GetAbilityRequest, GetAbilityResponse, NotApplicable, NotApplicable]{Cmd: "GetAbility", Auth: AuthToken}

	// GetChannelStatus lists the channels of an NVR/Home Hub.  The command
	// name's spelling is the device's.
	GetChannelStatus = JSONEndpoint[GetChannelStatusRequest, GetChannelStatusResponse, NotApplicable, NotApplicable]{Cmd: "GetChannelstatus", Auth: AuthAny}

	// GetDevInfo describes the device
	GetDevInfo = JSONEndpoint[GetDevInfoRequest, GetDevInfoResponse, NotApplicable, NotApplicable]{Cmd: "GetDevinfo", Auth: AuthAny}
)

//----- GetAbility

type GetAbilityRequest struct {
	User GetAbilityUser `json:"User"`
}

type GetAbilityUser struct {
	// "NULL" for the current user
	UserName string `json:"userName"`
}

func NewGetAbilityRequest(userName string) GetAbilityRequest {
	if userName == "" {
		userName = "NULL"
	}
	return GetAbilityRequest{User: GetAbilityUser{UserName: userName}}
}

type GetAbilityResponse struct {
	Ability Abilities `json:"Ability"`
}

type Ability struct {
	Permit int `json:"permit"`
	Ver    int `json:"ver"`
}

// Abilities holds the per-channel abilities and, flattened alongside them, the
// device-wide ones
type Abilities struct {
	Channels []map[string]Ability
	Device   map[string]Ability
}

func (a *Abilities) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	a.Channels = nil
	a.Device = make(map[string]Ability, len(members))

	for name, raw := range members {
		if name == "abilityChn" {
			if err := json.Unmarshal(raw, &a.Channels); err != nil {
				return errors.Wrap(err, "abilityChn")
			}
			continue
		}

		var ab Ability
		if err := json.Unmarshal(raw, &ab); err != nil {
			return errors.Wrap(err, name)
		}
		a.Device[name] = ab
	}

	if a.Channels == nil {
		return errors.New("missing field 'abilityChn'")
	}

	return nil
}

//----- GetChannelstatus

type GetChannelStatusRequest struct {
	noParams
}

type GetChannelStatusResponse struct {
	Count  int             `json:"count"`
	Status []ChannelStatus `json:"status"`
}

type ChannelStatus struct {
	Channel Channel `json:"channel"`
	Name    string  `json:"name"`
	Online  int     `json:"online"`
	// Not present on Home Hub
	TypeInfo *string `json:"typeInfo,omitempty"`
	// Home Hub only
	UID   string `json:"uid"`
	Sleep int    `json:"sleep"`
}

//----- GetDevinfo

type GetDevInfoRequest struct {
	noParams
}

type GetDevInfoResponse struct {
	DevInfo DevInfo `json:"DevInfo"`
}

type DevInfo struct {
	// Has RS-485?
	B485 BoolNumber `json:"B485"`

	IOInputNum  int `json:"IOInputNum"`
	IOOutputNum int `json:"IOOutputNum"`

	AudioNum      int    `json:"audioNum"`
	BuildDay      string `json:"buildDay"`
	ConfigVersion string `json:"cfgVer"`
	ChannelNum    int    `json:"channelNum"`
	Detail        string `json:"detail"`

	// Number of USB disks or SD cards
	DiskNum int `json:"diskNum"`

	ExactType        string `json:"exactType"`
	FirmwareVersion  string `json:"firmVer"`
	FrameworkVersion int    `json:"frameworkVer"`
	HardwareVersion  string `json:"hardVer"`
	Model            string `json:"model"`
	Name             string `json:"name"`
	PakSuffix        string `json:"pakSuffix"`
	Serial           string `json:"serial"`

	// eg. HOMEHUB
	Type string `json:"type"`

	Wifi BoolNumber `json:"wifi"`
}
