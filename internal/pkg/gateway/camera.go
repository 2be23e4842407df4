package gateway

import (
	"context"

	"github.com/jake-scott/reolink/pkg/reolink"
	"github.com/pkg/errors"
)

// Camera is the subset of the device API exposed over HTTP
type Camera interface {
	DevInfo(ctx context.Context) (reolink.DevInfo, error)
	Channels(ctx context.Context) ([]reolink.ChannelStatus, error)
	Snapshot(ctx context.Context, channel reolink.Channel) ([]byte, error)
	Recordings(ctx context.Context, q RecordingQuery) (reolink.SearchResults, error)
	Download(ctx context.Context, source string) ([]byte, error)
	Users(ctx context.Context) ([]reolink.UserInfo, error)
	AddUser(ctx context.Context, user reolink.AddUserParams) error
}

type RecordingQuery struct {
	Channel    reolink.Channel
	StreamType string
	Start      reolink.Time
	End        reolink.Time
	OnlyStatus bool
}

// Live implements Camera with a device client
type Live struct {
	client *reolink.Client
}

func NewLiveCamera(client *reolink.Client) *Live {
	return &Live{client: client}
}

func (c *Live) DevInfo(ctx context.Context) (reolink.DevInfo, error) {
	res, err := reolink.Exec(ctx, c.client, reolink.GetDevInfo, reolink.GetDevInfoRequest{})
	if err != nil {
		return reolink.DevInfo{}, errors.Wrap(err, "fetching device info")
	}

	return res.DevInfo, nil
}

func (c *Live) Channels(ctx context.Context) ([]reolink.ChannelStatus, error) {
	res, err := reolink.Exec(ctx, c.client, reolink.GetChannelStatus, reolink.GetChannelStatusRequest{})
	if err != nil {
		return nil, errors.Wrap(err, "listing channels")
	}

	return res.Status, nil
}

func (c *Live) Snapshot(ctx context.Context, channel reolink.Channel) ([]byte, error) {
	b, err := reolink.Download(ctx, c.client, reolink.Snapshot, reolink.NewSnapshotRequest(channel))
	if err != nil {
		return nil, errors.Wrapf(err, "taking snapshot of channel %d", channel)
	}

	return b, nil
}

func (c *Live) Recordings(ctx context.Context, q RecordingQuery) (reolink.SearchResults, error) {
	req := reolink.SearchRequest{
		Search: reolink.SearchParams{
			Channel:    q.Channel,
			OnlyStatus: reolink.BoolNumber(q.OnlyStatus),
			StreamType: q.StreamType,
			StartTime:  q.Start,
			EndTime:    q.End,
		},
	}

	res, err := reolink.Exec(ctx, c.client, reolink.Search, req)
	if err != nil {
		return reolink.SearchResults{}, errors.Wrapf(err, "searching recordings of channel %d", q.Channel)
	}

	return res.SearchResult, nil
}

func (c *Live) Download(ctx context.Context, source string) ([]byte, error) {
	b, err := reolink.Download(ctx, c.client, reolink.DownloadFile, reolink.DownloadRequest{Source: source})
	if err != nil {
		return nil, errors.Wrapf(err, "downloading %s", source)
	}

	return b, nil
}

func (c *Live) Users(ctx context.Context) ([]reolink.UserInfo, error) {
	res, err := reolink.Exec(ctx, c.client, reolink.GetUser, reolink.GetUserRequest{})
	if err != nil {
		return nil, errors.Wrap(err, "listing users")
	}

	return res.User, nil
}

// AddUser checks the account against the device's limits before creating it
func (c *Live) AddUser(ctx context.Context, user reolink.AddUserParams) error {
	details, err := reolink.ExecWithDetails(ctx, c.client, reolink.GetUser, reolink.GetUserRequest{})
	if err != nil {
		return errors.Wrap(err, "fetching user constraints")
	}

	req := reolink.AddUserRequest{User: user}
	if err := req.Validate(details.Range.User); err != nil {
		return err
	}

	if _, err := reolink.Exec(ctx, c.client, reolink.AddUser, req); err != nil {
		return errors.Wrapf(err, "adding user %s", user.UserName)
	}

	return nil
}
