package gateway

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/gorilla/mux"
	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/reolink"
)

/*
 *  Read-mostly HTTP front end for one device:
 *
 *    GET  /devinfo
 *    GET  /channels
 *    GET  /channels/{channel}/snapshot
 *    GET  /channels/{channel}/recordings?start=<date-time>&end=<date-time>[&stream=sub][&status-only=true]
 *    GET  /recordings?source=<name from a search>
 *    GET  /users
 *    POST /users
 */

type Handler struct {
	camera Camera
	// Device local time zone, for converting query times
	loc *time.Location
}

func NewHandler(camera Camera, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}

	return &Handler{camera: camera, loc: loc}
}

// Register adds the gateway routes to r
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/devinfo", h.HandleDevInfo).Methods(http.MethodGet)
	r.HandleFunc("/channels", h.HandleChannels).Methods(http.MethodGet)
	r.HandleFunc("/channels/{channel:[0-9]+}/snapshot", h.HandleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/channels/{channel:[0-9]+}/recordings", h.HandleRecordings).Methods(http.MethodGet)
	r.HandleFunc("/recordings", h.HandleDownload).Methods(http.MethodGet)
	r.HandleFunc("/users", h.HandleUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", h.HandleAddUser).Methods(http.MethodPost)
}

func channelVar(r *http.Request) (reolink.Channel, error) {
	return strconv.Atoi(mux.Vars(r)["channel"])
}

func (h *Handler) HandleDevInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.camera.DevInfo(r.Context())
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, info)
}

func (h *Handler) HandleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.camera.Channels(r.Context())
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, channels)
}

func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		sendBadRequest(w, r, "invalid channel")
		return
	}

	jpeg, err := h.camera.Snapshot(r.Context(), channel)
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(jpeg); err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("sending snapshot")
	}
}

func (h *Handler) parseTime(s string) (reolink.Time, error) {
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return reolink.Time{}, err
	}

	return reolink.TimeOf(time.Time(dt).In(h.loc)), nil
}

func (h *Handler) HandleRecordings(w http.ResponseWriter, r *http.Request) {
	channel, err := channelVar(r)
	if err != nil {
		sendBadRequest(w, r, "invalid channel")
		return
	}

	qv := r.URL.Query()
	if qv.Get("start") == "" || qv.Get("end") == "" {
		sendBadRequest(w, r, "start and end are required")
		return
	}

	start, err := h.parseTime(qv.Get("start"))
	if err != nil {
		sendBadRequest(w, r, fmt.Sprintf("invalid start: %s", err))
		return
	}
	end, err := h.parseTime(qv.Get("end"))
	if err != nil {
		sendBadRequest(w, r, fmt.Sprintf("invalid end: %s", err))
		return
	}
	if end.In(h.loc).Before(start.In(h.loc)) {
		sendBadRequest(w, r, "end is before start")
		return
	}

	q := RecordingQuery{
		Channel:    channel,
		StreamType: qv.Get("stream"),
		Start:      start,
		End:        end,
	}
	if q.StreamType == "" {
		q.StreamType = "main"
	}
	if s := qv.Get("status-only"); s != "" {
		if q.OnlyStatus, err = strconv.ParseBool(s); err != nil {
			sendBadRequest(w, r, "invalid status-only")
			return
		}
	}

	res, err := h.camera.Recordings(r.Context(), q)
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, res)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		sendBadRequest(w, r, "source is required")
		return
	}

	data, err := h.camera.Download(r.Context(), source)
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(source)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("sending recording")
	}
}

func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.camera.Users(r.Context())
	if err != nil {
		sendCameraError(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, users)
}

func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	var user reolink.AddUserParams
	if err := decodeJSONBody(w, r, &user); err != nil {
		logging.Logger(r.Context()).WithError(err).Errorf("decoding JSON")
		sendBadRequest(w, r, "unable to parse JSON")
		return
	}

	if user.UserName == "" || user.Password == "" {
		sendBadRequest(w, r, "userName and password are required")
		return
	}
	if user.Level == "" {
		user.Level = "guest"
	}

	if err := h.camera.AddUser(r.Context(), user); err != nil {
		sendCameraError(w, r, err)
		return
	}

	logging.Logger(r.Context()).Infof("added %s user %s", user.Level, user.UserName)
	w.WriteHeader(http.StatusCreated)
}
