package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/reolink/internal/pkg/gateway"
	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/middlewares"
)

var _serveCmdOpts struct {
	port            uint16
	tlsCertPath     string
	tlsKeyPath      string
	gracefulTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	corsOrigins     []string
	timeZone        string
	logRequests     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP gateway to the device",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doServe(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDeviceFlags(cmd, args); err != nil {
			return err
		}

		// TLS is all or nothing
		if viper.GetString("http.cert") != "" || viper.GetString("http.key") != "" {
			return checkRequiredFlags("http.cert", "http.key")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Uint16Var(&_serveCmdOpts.port, "port", 8080, "HTTP port number")
	serveCmd.Flags().StringVar(&_serveCmdOpts.tlsCertPath, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&_serveCmdOpts.tlsKeyPath, "tls-key", "", "TLS key file")
	serveCmd.Flags().DurationVar(&_serveCmdOpts.gracefulTimeout, "graceful-timeout", time.Second*15, "duration to wait for server to finish, eg. 1m or 10s")
	serveCmd.Flags().DurationVar(&_serveCmdOpts.readTimeout, "read-timeout", time.Second*15, "duration to wait for request read, eg. 1m or 10s")
	serveCmd.Flags().DurationVar(&_serveCmdOpts.writeTimeout, "write-timeout", time.Minute*6, "duration to wait for response write, eg. 1m or 10s")
	serveCmd.Flags().StringSliceVar(&_serveCmdOpts.corsOrigins, "cors-origin", nil, "origins allowed to call the gateway from a browser")
	serveCmd.Flags().StringVar(&_serveCmdOpts.timeZone, "time-zone", "Local", "device time zone, eg. Europe/Paris")
	serveCmd.Flags().BoolVar(&_serveCmdOpts.logRequests, "log-requests", false, "log requests and responses (only in debug mode)")

	errPanic(viper.GetViper().BindPFlag("http.port", serveCmd.Flags().Lookup("port")))
	errPanic(viper.GetViper().BindPFlag("http.cert", serveCmd.Flags().Lookup("tls-cert")))
	errPanic(viper.GetViper().BindPFlag("http.key", serveCmd.Flags().Lookup("tls-key")))
	errPanic(viper.GetViper().BindPFlag("http.graceful-timeout", serveCmd.Flags().Lookup("graceful-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.read-timeout", serveCmd.Flags().Lookup("read-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.write-timeout", serveCmd.Flags().Lookup("write-timeout")))
	errPanic(viper.GetViper().BindPFlag("http.cors-origins", serveCmd.Flags().Lookup("cors-origin")))
	errPanic(viper.GetViper().BindPFlag("device.time-zone", serveCmd.Flags().Lookup("time-zone")))
	errPanic(viper.GetViper().BindPFlag("logging.log-requests", serveCmd.Flags().Lookup("log-requests")))

	rootCmd.AddCommand(serveCmd)
}

func newRouter(h *gateway.Handler, logRequests bool, corsOrigins []string) *mux.Router {
	r := mux.NewRouter()
	if len(corsOrigins) > 0 {
		r.Use(middlewares.NewCorsMw(middlewares.DefaultCorsOptions(corsOrigins)))
	}
	r.Use(middlewares.NewLoggingMw(logRequests))
	r.Use(middlewares.NewRecoveryMw())
	r.Use(middlewares.NewCorrelationMw(middlewares.DefaultCorrelationHeader))
	h.Register(r)

	return r
}

func doServe() error {
	wait := viper.GetDuration("http.graceful-timeout")
	port := viper.GetUint("http.port")
	certFile := viper.GetString("http.cert")
	keyFile := viper.GetString("http.key")

	loc, err := time.LoadLocation(viper.GetString("device.time-zone"))
	if err != nil {
		return fmt.Errorf("bad time zone: %w", err)
	}

	var logRequests bool
	if viper.GetBool("logging.log-requests") {
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logRequests = true
		} else {
			logging.Logger(nil).Warn("log-requests ignored when not in debug mode")
		}
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	h := gateway.NewHandler(gateway.NewLiveCamera(client), loc)
	r := newRouter(h, logRequests, viper.GetStringSlice("http.cors-origins"))

	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  viper.GetDuration("http.read-timeout"),
		WriteTimeout: viper.GetDuration("http.write-timeout"),
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}

	logging.Logger(nil).Infof("Serving %s on port %d", client.URL(), port)
	go func() {
		var err error
		if certFile != "" {
			err = s.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logging.Logger(nil).WithError(err).Error("running server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Block until we receive a signal
	<-c

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	logging.Logger(nil).Info("shutting down")
	if err := s.Shutdown(ctx); err != nil {
		logging.Logger(nil).WithError(err).Errorf("shutting down")
	}

	// Release the device session once nothing uses it
	client.Close(ctx)

	logging.Logger(nil).Info("exiting")
	return nil
}
