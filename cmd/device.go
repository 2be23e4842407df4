package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jake-scott/reolink/pkg/reolink"
)

var _abilityCmdOpts struct {
	user string
}

var devInfoCmd = &cobra.Command{
	Use:     "devinfo",
	Short:   "Display the device's model, firmware and hardware details",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			res, err := reolink.Exec(ctx, c, reolink.GetDevInfo, reolink.GetDevInfoRequest{})
			if err != nil {
				return errors.Wrap(err, "fetching device info")
			}

			return printJSON(res.DevInfo)
		})
	},
}

var channelsCmd = &cobra.Command{
	Use:     "channels",
	Short:   "List the channels of an NVR or Home Hub",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			res, err := reolink.Exec(ctx, c, reolink.GetChannelStatus, reolink.GetChannelStatusRequest{})
			if err != nil {
				return errors.Wrap(err, "listing channels")
			}

			for _, s := range res.Status {
				state := "offline"
				if s.Online != 0 {
					state = "online"
				}
				if s.Sleep != 0 {
					state += ",sleeping"
				}
				fmt.Printf("%3d  %-24s %-16s %s\n", s.Channel, s.Name, state, s.UID)
			}

			return nil
		})
	},
}

var abilityCmd = &cobra.Command{
	Use:     "ability",
	Short:   "Display the permissions of a device account",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			res, err := reolink.Exec(ctx, c, reolink.GetAbility, reolink.NewGetAbilityRequest(_abilityCmdOpts.user))
			if err != nil {
				return errors.Wrap(err, "fetching abilities")
			}

			printAbilities("device", res.Ability.Device)
			for i, chn := range res.Ability.Channels {
				printAbilities(fmt.Sprintf("channel %d", i), chn)
			}

			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Log in and print a session token, for use with other tools",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		// Deliberately not closed: closing would log the token out
		tok, err := c.TokenSource(context.Background()).Token()
		if err != nil {
			return errors.Wrap(err, "logging in")
		}

		return printJSON(tok)
	},
}

func init() {
	abilityCmd.Flags().StringVar(&_abilityCmdOpts.user, "user", "", "account to query (default the logged in account)")

	rootCmd.AddCommand(devInfoCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(abilityCmd)
	rootCmd.AddCommand(tokenCmd)
}

func printAbilities(scope string, abilities map[string]reolink.Ability) {
	names := make([]string, 0, len(abilities))
	for name := range abilities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := abilities[name]
		fmt.Printf("%-10s %-32s permit=%d ver=%d\n", scope, name, a.Permit, a.Ver)
	}
}

// withClient runs f with a client that is closed (and logged out) afterwards
func withClient(f func(ctx context.Context, c *reolink.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()
	defer c.Close(ctx)

	return f(ctx, c)
}
