package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/reolink"
	"github.com/jake-scott/reolink/version"
)

var _rootCmdOpts struct {
	cfgFile         string
	envFile         string
	debug           bool
	url             string
	login           string
	password        string
	timeout         time.Duration
	downloadTimeout time.Duration
	insecure        bool
	strict          bool
	logLocation     string
	logLevel        string
	logFormat       string
}

var rootCmd = &cobra.Command{
	Use:   "reolink",
	Short: "Query and control Reolink cameras and NVRs",
	Long: `reolink talks to the HTTP API of Reolink cameras, NVRs and Home Hubs.

The device is configured with --url/--login/--password, the device.* keys of
the config file, or the REOLINK_URL, REOLINK_LOGIN and REOLINK_PASSWORD
environment variables (which may be set in a .env file).`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _rootCmdOpts.debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		return logging.Configure(viper.GetViper())
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&_rootCmdOpts.cfgFile, "config", "", "config file (default is $HOME/.reolink.yaml)")
	pf.StringVar(&_rootCmdOpts.envFile, "env-file", "", "file of environment variables to load (default is ./.env if present)")
	pf.BoolVarP(&_rootCmdOpts.debug, "debug", "d", false, "enable debug logging")
	pf.StringVar(&_rootCmdOpts.url, "url", "", "device URL, eg. http://192.168.1.10")
	pf.StringVar(&_rootCmdOpts.login, "login", "", "device account name")
	pf.StringVar(&_rootCmdOpts.password, "password", "", "device account password")
	pf.DurationVar(&_rootCmdOpts.timeout, "timeout", time.Second*15, "maximum duration of an API call, eg. 1m or 10s")
	pf.DurationVar(&_rootCmdOpts.downloadTimeout, "download-timeout", time.Minute*5, "maximum duration of a snapshot or recording download")
	pf.BoolVar(&_rootCmdOpts.insecure, "insecure", false, "do not verify the device's TLS certificate")
	pf.BoolVar(&_rootCmdOpts.strict, "strict", false, "reject responses with unknown fields")
	pf.StringVar(&_rootCmdOpts.logLocation, "log-location", "stderr", "stdout, stderr or a log file path")
	pf.StringVar(&_rootCmdOpts.logLevel, "log-level", "info", "log level")
	pf.StringVar(&_rootCmdOpts.logFormat, "log-format", "text", "text or json")

	errPanic(viper.GetViper().BindPFlag("device.url", pf.Lookup("url")))
	errPanic(viper.GetViper().BindPFlag("device.login", pf.Lookup("login")))
	errPanic(viper.GetViper().BindPFlag("device.password", pf.Lookup("password")))
	errPanic(viper.GetViper().BindPFlag("device.timeout", pf.Lookup("timeout")))
	errPanic(viper.GetViper().BindPFlag("device.download-timeout", pf.Lookup("download-timeout")))
	errPanic(viper.GetViper().BindPFlag("device.insecure", pf.Lookup("insecure")))
	errPanic(viper.GetViper().BindPFlag("device.strict", pf.Lookup("strict")))
	errPanic(viper.GetViper().BindPFlag("logging.location", pf.Lookup("log-location")))
	errPanic(viper.GetViper().BindPFlag("logging.level", pf.Lookup("log-level")))
	errPanic(viper.GetViper().BindPFlag("logging.format", pf.Lookup("log-format")))

	// The short variable names are the ones documented for the device
	errPanic(viper.BindEnv("device.url", "REOLINK_URL"))
	errPanic(viper.BindEnv("device.login", "REOLINK_LOGIN"))
	errPanic(viper.BindEnv("device.password", "REOLINK_PASSWORD"))
}

func initConfig() {
	if err := loadEnvFile(_rootCmdOpts.envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _rootCmdOpts.cfgFile != "" {
		viper.SetConfigFile(_rootCmdOpts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".reolink")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("reolink")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Logger(nil).Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _rootCmdOpts.cfgFile != "" {
		fmt.Fprintf(os.Stderr, "reading config file %s: %s\n", _rootCmdOpts.cfgFile, err)
		os.Exit(1)
	}
}

// An explicit env file must exist, the default one is optional.  Variables
// already in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return err
		}
		return godotenv.Load(expanded)
	}

	if _, err := os.Stat(filepath.Join(".", ".env")); err == nil {
		return godotenv.Load()
	}

	return nil
}

func errPanic(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRequiredFlags(needFlags ...string) error {
	missingFlags := []string{}

	for _, f := range needFlags {
		if !viper.IsSet(f) || viper.GetString(f) == "" {
			missingFlags = append(missingFlags, f)
		}
	}

	if len(missingFlags) > 0 {
		itemPlural := "item"
		if len(missingFlags) > 1 {
			itemPlural = "items"
		}
		return fmt.Errorf("required config %s `%s` not set", itemPlural, strings.Join(missingFlags, "`, `"))
	}

	return nil
}

// For commands talking to the device
func checkDeviceFlags(cmd *cobra.Command, args []string) error {
	return checkRequiredFlags("device.url", "device.login", "device.password")
}

func newClient() (*reolink.Client, error) {
	hc := &http.Client{}
	if viper.GetBool("device.insecure") {
		hc.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return reolink.NewClient(
		viper.GetString("device.url"),
		viper.GetString("device.login"),
		viper.GetString("device.password"),
		reolink.WithTransport(reolink.NewHTTPTransport(hc).WithUserAgent(version.UserAgent())),
		reolink.WithTimeout(viper.GetDuration("device.timeout")),
		reolink.WithDownloadTimeout(viper.GetDuration("device.download-timeout")),
		reolink.WithStrictDecoding(viper.GetBool("device.strict")),
	)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
