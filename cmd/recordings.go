package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/reolink"
)

// Times without a zone are device local time
const localTimeLayout = "2006-01-02T15:04:05"

var _recordingsCmdOpts struct {
	start      string
	end        string
	channel    int
	stream     string
	statusOnly bool
}

var _downloadCmdOpts struct {
	output string
}

var _snapshotCmdOpts struct {
	channel int
	output  string
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List the recordings of a channel",
	Long: `List the recordings of a channel between two times, given as
2024-12-25T10:00:00 (device local time) or as RFC 3339 date-times.

The device only lists files when both times fall on the same day; use
--status-only to see which days of longer periods have recordings.`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDeviceFlags(cmd, args); err != nil {
			return err
		}
		return checkRequiredFlags("recordings.start", "recordings.end")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doRecordings()
	},
}

var downloadCmd = &cobra.Command{
	Use:     "download <file>",
	Short:   "Download a recording listed by the recordings command",
	Args:    cobra.ExactArgs(1),
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			data, err := reolink.Download(ctx, c, reolink.DownloadFile, reolink.DownloadRequest{Source: args[0]})
			if err != nil {
				return errors.Wrapf(err, "downloading %s", args[0])
			}

			return writeOutput(_downloadCmdOpts.output, data)
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Take a JPEG snapshot of a channel",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			data, err := reolink.Download(ctx, c, reolink.Snapshot, reolink.NewSnapshotRequest(_snapshotCmdOpts.channel))
			if err != nil {
				return errors.Wrapf(err, "taking snapshot of channel %d", _snapshotCmdOpts.channel)
			}

			return writeOutput(_snapshotCmdOpts.output, data)
		})
	},
}

func init() {
	recordingsCmd.Flags().StringVarP(&_recordingsCmdOpts.start, "start", "s", "", "start time, eg. 2024-12-25T00:00:00")
	recordingsCmd.Flags().StringVarP(&_recordingsCmdOpts.end, "end", "e", "", "end time, eg. 2024-12-25T23:59:59")
	recordingsCmd.Flags().IntVarP(&_recordingsCmdOpts.channel, "channel", "c", 0, "channel number")
	recordingsCmd.Flags().StringVar(&_recordingsCmdOpts.stream, "stream", "main", "main or sub stream")
	recordingsCmd.Flags().BoolVar(&_recordingsCmdOpts.statusOnly, "status-only", false, "only list the days with recordings")

	errPanic(viper.GetViper().BindPFlag("recordings.start", recordingsCmd.Flags().Lookup("start")))
	errPanic(viper.GetViper().BindPFlag("recordings.end", recordingsCmd.Flags().Lookup("end")))

	downloadCmd.Flags().StringVarP(&_downloadCmdOpts.output, "output", "o", "-", "output file, - for stdout")

	snapshotCmd.Flags().IntVarP(&_snapshotCmdOpts.channel, "channel", "c", 0, "channel number")
	snapshotCmd.Flags().StringVarP(&_snapshotCmdOpts.output, "output", "o", "-", "output file, - for stdout")

	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func parseDeviceTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(localTimeLayout, s, time.Local); err == nil {
		return t, nil
	}

	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing time [%s]", s)
	}

	return time.Time(dt).Local(), nil
}

// searchSpan converts and checks the time span of a search
func searchSpan(start, end string, statusOnly bool) (reolink.Time, reolink.Time, error) {
	st, err := parseDeviceTime(start)
	if err != nil {
		return reolink.Time{}, reolink.Time{}, err
	}
	et, err := parseDeviceTime(end)
	if err != nil {
		return reolink.Time{}, reolink.Time{}, err
	}

	if et.Before(st) {
		return reolink.Time{}, reolink.Time{}, errors.New("end is before start")
	}

	rs, re := reolink.TimeOf(st), reolink.TimeOf(et)
	if !statusOnly && !rs.SameDay(re) {
		return reolink.Time{}, reolink.Time{}, errors.New("start and end must be on the same day to list files")
	}

	return rs, re, nil
}

func doRecordings() error {
	start, end, err := searchSpan(viper.GetString("recordings.start"), viper.GetString("recordings.end"), _recordingsCmdOpts.statusOnly)
	if err != nil {
		return err
	}

	return withClient(func(ctx context.Context, c *reolink.Client) error {
		res, err := reolink.Exec(ctx, c, reolink.Search, reolink.SearchRequest{
			Search: reolink.SearchParams{
				Channel:    _recordingsCmdOpts.channel,
				OnlyStatus: reolink.BoolNumber(_recordingsCmdOpts.statusOnly),
				StreamType: _recordingsCmdOpts.stream,
				StartTime:  start,
				EndTime:    end,
			},
		})
		if err != nil {
			return errors.Wrap(err, "searching recordings")
		}

		if _recordingsCmdOpts.statusOnly {
			for _, s := range res.SearchResult.Status {
				for _, day := range s.Table.Days() {
					fmt.Printf("%04d-%02d-%02d\n", s.Year, s.Mon, day)
				}
			}
			return nil
		}

		if len(res.SearchResult.File) == 0 {
			logging.Logger(nil).Warn("No results found")
			return nil
		}

		for _, f := range res.SearchResult.File {
			fmt.Printf("%s  %s  %10d  %s\n",
				f.StartTime.In(time.Local).Format("15:04:05"),
				f.EndTime.In(time.Local).Format("15:04:05"),
				f.Size, f.Name)
		}

		return nil
	})
}

func writeOutput(output string, data []byte) error {
	if output == "" || output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}

	if err := ioutil.WriteFile(output, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", output)
	}

	logging.Logger(nil).Infof("Wrote %d bytes to %s", len(data), output)
	return nil
}
