package reolink

import (
	"strings"

	"github.com/google/uuid"
)

var (
	// Search lists the recordings of a channel
	Search = JSONEndpoint[SearchRequest, SearchResponse, NotApplicable, NotApplicable]{Cmd: "Search", Auth: AuthAny}

	// NvrDownload lists the files covering a time span on an NVR
	NvrDownload = JSONEndpoint[NvrDownloadRequest, NvrDownloadResponse, NotApplicable, NotApplicable]{Cmd: "NvrDownload", Auth: AuthAny}

	// GetRecording reads a channel's recording configuration
	GetRecording = JSONEndpoint[GetRecordingRequest, GetRecordingResponse, GetRecordingResponse, GetRecordingRange]{Cmd: "GetRec", Auth: AuthAny}

	// GetRecordingV20 is GetRecording for newer firmware
	GetRecordingV20 = JSONEndpoint[GetRecordingRequest, GetRecordingV20Response, GetRecordingV20Response, GetRecordingV20Range]{Cmd: "GetRecV20", Auth: AuthAny}

	// DownloadFile fetches a recording found with Search
	DownloadFile = BinaryEndpoint[DownloadRequest]{Cmd: "Download", Auth: AuthToken}

	// Snapshot takes a JPEG snapshot of a channel
	Snapshot = BinaryEndpoint[SnapshotRequest]{Cmd: "Snap", Auth: AuthAny}
)

//----- Search

type SearchRequest struct {
	Search SearchParams `json:"Search"`
}

type SearchParams struct {
	Channel Channel `json:"channel"`

	// Only per-day statuses (true), or also a file list (false)?  A file list is
	// only returned when StartTime and EndTime are within the same day.
	OnlyStatus BoolNumber `json:"onlyStatus"`

	// "main" searches the main stream, anything else the sub stream
	StreamType string `json:"streamType"`

	StartTime Time `json:"StartTime"`
	EndTime   Time `json:"EndTime"`
}

type SearchResponse struct {
	SearchResult SearchResults `json:"SearchResult"`
}

type SearchResults struct {
	Channel Channel        `json:"channel"`
	Status  []SearchStatus `json:"Status,omitempty"`
	// Omitted when the time span is more than one day
	File []SearchFile `json:"File,omitempty"`
}

type SearchStatus struct {
	Year uint16 `json:"year"`
	Mon  uint8  `json:"mon"`
	// One digit per day of the month, set when recordings are available
	Table ScheduleTable `json:"table"`
}

type SearchFile struct {
	StreamType string       `json:"type"`
	StartTime  Time         `json:"StartTime"`
	EndTime    Time         `json:"EndTime"`
	FrameRate  int          `json:"frameRate"`
	Height     int          `json:"height"`
	Width      int          `json:"width"`
	Size       StringUint64 `json:"size"`
	Name       string       `json:"name"`
}

//----- NvrDownload

type NvrDownloadRequest struct {
	NvrDownload NvrDownloadParams `json:"NvrDownload"`
}

type NvrDownloadParams struct {
	Channel Channel `json:"channel"`
	// "main" or "sub"
	StreamType string `json:"streamType"`
	StartTime  Time   `json:"StartTime"`
	EndTime    Time   `json:"EndTime"`
}

type NvrDownloadResponse struct {
	FileCount int       `json:"fileCount"`
	FileList  []NvrFile `json:"fileList"`
}

type NvrFile struct {
	Name string       `json:"fileName"`
	Size StringUint64 `json:"fileSize"`
}

//----- GetRec / GetRecV20

type GetRecordingRequest struct {
	Channel Channel `json:"channel"`
}

type GetRecordingResponse struct {
	Rec RecordingConfig `json:"Rec"`
}

type RecordingConfig struct {
	Channel   Channel           `json:"channel"`
	Overwrite int               `json:"overwrite"`
	PackTime  string            `json:"packTime"`
	PostRec   string            `json:"postRec"`
	PreRec    int               `json:"preRec"`
	Schedule  RecordingSchedule `json:"schedule"`
}

type RecordingSchedule struct {
	Enable int           `json:"enable"`
	Table  ScheduleTable `json:"table"`
}

type GetRecordingRange struct {
	Rec RecordingRange `json:"rec"`
}

type RecordingRange struct {
	Channel   Channel       `json:"channel"`
	Overwrite string        `json:"overwrite"`
	PackTime  []string      `json:"packTime"`
	PostRec   []string      `json:"postRec"`
	PreRec    string        `json:"preRec"`
	Schedule  ScheduleRange `json:"schedule"`
}

type ScheduleRange struct {
	Enable int    `json:"enable"`
	Table  string `json:"table"`
}

type GetRecordingV20Response struct {
	Rec RecordingConfigV20 `json:"Rec"`
}

type RecordingConfigV20 struct {
	Enable    int                  `json:"enable"`
	Overwrite int                  `json:"overwrite"`
	PackTime  *string              `json:"packTime,omitempty"`
	PostRec   string               `json:"postRec"`
	PreRec    int                  `json:"preRec"`
	SaveDay   int                  `json:"saveDay"`
	Schedule  RecordingScheduleV20 `json:"schedule"`
}

type RecordingScheduleV20 struct {
	Channel Channel `json:"channel"`
	// Keyed by trigger, eg. "MD", "TIMING"
	Table map[string]ScheduleTable `json:"table,omitempty"`
}

type GetRecordingV20Range struct {
	Rec RecordingRangeV20 `json:"Rec"`
}

type RecordingRangeV20 struct {
	Enable    string           `json:"enable"`
	Overwrite []int            `json:"overwrite"`
	PackTime  []string         `json:"packTime,omitempty"`
	PostRec   []string         `json:"postRec"`
	PreRec    string           `json:"preRec"`
	SaveDay   []int            `json:"saveDay"`
	Schedule  ScheduleRangeV20 `json:"schedule"`
}

type ScheduleRangeV20 struct {
	Channel Channel           `json:"channel"`
	Table   map[string]string `json:"table,omitempty"`
}

//----- Download

type DownloadRequest struct {
	// File name as returned by Search
	Source string `json:"source"`
	// File name the device suggests in its Content-Disposition
	Output *string `json:"output,omitempty"`
}

//----- Snap

type SnapshotRequest struct {
	Channel Channel `json:"channel"`
	// Random string of fixed length, prevents caching
	RS string `json:"rs"`
}

// NewSnapshotRequest fills in a random cache-busting string
func NewSnapshotRequest(channel Channel) SnapshotRequest {
	return SnapshotRequest{
		Channel: channel,
		RS:      strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
	}
}
