package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/korovkin/limiter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/reolink"
)

var _fetchCmdOpts struct {
	channels      []int
	day           string
	days          int
	stream        string
	outputDir     string
	maxConcurrent int
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download all the recordings of some channels and days into a directory",
	Long: `Download all the recordings of the given channels, for a number of days
ending on --day, into <output-dir>/ch<channel>/.  Files already present with the
same size are skipped, so fetch can be re-run to pick up new recordings.`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDeviceFlags(cmd, args); err != nil {
			return err
		}
		return checkRequiredFlags("fetch.output-dir")
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return doFetch()
	},
}

func init() {
	fetchCmd.Flags().IntSliceVarP(&_fetchCmdOpts.channels, "channel", "c", []int{0}, "channel numbers")
	fetchCmd.Flags().StringVar(&_fetchCmdOpts.day, "day", "", "last day to fetch, eg. 2024-12-25 (default today)")
	fetchCmd.Flags().IntVar(&_fetchCmdOpts.days, "days", 1, "number of days to fetch")
	fetchCmd.Flags().StringVar(&_fetchCmdOpts.stream, "stream", "main", "main or sub stream")
	fetchCmd.Flags().StringVarP(&_fetchCmdOpts.outputDir, "output-dir", "o", "", "directory to download into")
	fetchCmd.Flags().IntVar(&_fetchCmdOpts.maxConcurrent, "max-concurrent", 2, "maximum simultaneous downloads")

	errPanic(viper.GetViper().BindPFlag("fetch.output-dir", fetchCmd.Flags().Lookup("output-dir")))
	errPanic(viper.GetViper().BindPFlag("fetch.max-concurrent", fetchCmd.Flags().Lookup("max-concurrent")))

	rootCmd.AddCommand(fetchCmd)
}

type fetchItem struct {
	channel reolink.Channel
	file    reolink.SearchFile
}

type fetchStats struct {
	found   int64
	fetched int64
	skipped int64
	failed  int64
}

// fetchDays returns the days to search, oldest first, ending on last
func fetchDays(last string, n int, now time.Time) ([]time.Time, error) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if last != "" {
		var d strfmt.Date
		if err := d.UnmarshalText([]byte(last)); err != nil {
			return nil, errors.Wrapf(err, "parsing day [%s]", last)
		}
		t := time.Time(d)
		end = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	}

	if n < 1 {
		return nil, errors.Errorf("invalid number of days: %d", n)
	}

	days := make([]time.Time, n)
	for i := range days {
		days[i] = end.AddDate(0, 0, i-n+1)
	}

	return days, nil
}

// fetchTarget is where a recording is stored locally.  Only the last element
// of the device's file name is used.
func fetchTarget(dir string, channel reolink.Channel, name string) (string, error) {
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return "", errors.Errorf("recording name [%s] has no usable file name", name)
	}

	return filepath.Join(dir, fmt.Sprintf("ch%d", channel), base), nil
}

// needsFetch reports whether the file at target is missing or of another size
func needsFetch(target string, size uint64) bool {
	fi, err := os.Stat(target)
	if err != nil {
		return true
	}

	return uint64(fi.Size()) != size
}

func searchLoop(ctx context.Context, c *reolink.Client, channels []int, days []time.Time, stream string, out chan<- fetchItem, stats *fetchStats) {
	defer close(out)

	for _, channel := range channels {
		for _, day := range days {
			if ctx.Err() != nil {
				logging.Logger(nil).Info("search-loop: shutting down")
				return
			}

			req := reolink.SearchRequest{
				Search: reolink.SearchParams{
					Channel:    channel,
					StreamType: stream,
					StartTime:  reolink.TimeOf(day),
					EndTime:    reolink.TimeOf(day.AddDate(0, 0, 1).Add(-time.Second)),
				},
			}

			logging.Logger(nil).Debugf("search-loop: channel %d, %s", channel, day.Format("2006-01-02"))
			res, err := reolink.Exec(ctx, c, reolink.Search, req)
			if err != nil {
				logging.Logger(nil).WithError(err).Errorf("search-loop: searching channel %d on %s", channel, day.Format("2006-01-02"))
				continue
			}

			for _, f := range res.SearchResult.File {
				atomic.AddInt64(&stats.found, 1)

				// Don't block waiting for a downloader if we are shutting down
				select {
				case <-ctx.Done():
					return
				case out <- fetchItem{channel: channel, file: f}:
				}
			}
		}
	}
}

func downloadLoop(ctx context.Context, maxConcurrent int, c *reolink.Client, dir string, in <-chan fetchItem, stats *fetchStats) {
	limit := limiter.NewConcurrencyLimiter(maxConcurrent)

	for item := range in {
		item := item
		limit.ExecuteWithTicket(func(ticket int) {
			fetchRecording(ctx, ticket, c, dir, item, stats)
		})
	}

	logging.Logger(nil).Debug("download-loop: waiting for downloads to finish")
	limit.Wait()
}

func fetchRecording(ctx context.Context, ticket int, c *reolink.Client, dir string, item fetchItem, stats *fetchStats) {
	target, err := fetchTarget(dir, item.channel, item.file.Name)
	if err != nil {
		logging.Logger(nil).WithError(err).Errorf("download-goroutine %d: skipping recording", ticket)
		atomic.AddInt64(&stats.failed, 1)
		return
	}

	if !needsFetch(target, uint64(item.file.Size)) {
		logging.Logger(nil).Debugf("download-goroutine %d: %s is up to date", ticket, target)
		atomic.AddInt64(&stats.skipped, 1)
		return
	}

	logging.Logger(nil).Infof("download-goroutine %d: fetching %s", ticket, item.file.Name)

	data, err := reolink.Download(ctx, c, reolink.DownloadFile, reolink.DownloadRequest{Source: item.file.Name})
	if err == nil {
		err = writeAtomically(target, data)
	}

	if err != nil {
		logging.Logger(nil).WithError(err).Errorf("download-goroutine %d: fetching %s", ticket, item.file.Name)
		atomic.AddInt64(&stats.failed, 1)
		return
	}

	atomic.AddInt64(&stats.fetched, 1)
}

// Partial files must never look complete to a later run
func writeAtomically(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	tmp, err := ioutil.TempFile(filepath.Dir(target), ".fetch-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temporary file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary file")
	}

	return errors.Wrap(os.Rename(tmp.Name(), target), "renaming temporary file")
}

func doFetch() error {
	days, err := fetchDays(_fetchCmdOpts.day, _fetchCmdOpts.days, time.Now())
	if err != nil {
		return err
	}

	maxConcurrent := viper.GetInt("fetch.max-concurrent")
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	// context to allow us to stop the loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ctrl-c handler
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			logging.Logger(nil).Info("main: shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		wg    sync.WaitGroup
		stats fetchStats
		items = make(chan fetchItem)
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		downloadLoop(ctx, maxConcurrent, c, viper.GetString("fetch.output-dir"), items, &stats)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		searchLoop(ctx, c, _fetchCmdOpts.channels, days, _fetchCmdOpts.stream, items, &stats)
	}()

	wg.Wait()

	logging.Logger(nil).Infof("found %d recordings: %d fetched, %d up to date, %d failed",
		stats.found, stats.fetched, stats.skipped, stats.failed)

	if stats.failed > 0 {
		return errors.Errorf("%d recordings could not be fetched", stats.failed)
	}
	return ctx.Err()
}
