package cmd

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jake-scott/reolink/internal/pkg/gateway"
	"github.com/jake-scott/reolink/pkg/reolink"
)

var _usersAddCmdOpts struct {
	password string
	level    string
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage device accounts",
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the device accounts",
	PreRunE: checkDeviceFlags,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			res, err := reolink.ExecWithDetails(ctx, c, reolink.GetUser, reolink.GetUserRequest{})
			if err != nil {
				return errors.Wrap(err, "listing users")
			}

			for _, u := range res.Value.User {
				fmt.Printf("%-32s %s\n", u.UserName, u.Level)
			}

			rng := res.Range.User
			fmt.Printf("\nlevels: %v, default %s; user name %d-%d chars; password %d-%d chars\n",
				rng.Level, res.Initial.User.Level,
				rng.UserName.MinLen, rng.UserName.MaxLen,
				rng.Password.MinLen, rng.Password.MaxLen)

			return nil
		})
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a device account",
	Args:  cobra.ExactArgs(1),

	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDeviceFlags(cmd, args); err != nil {
			return err
		}
		if _usersAddCmdOpts.password == "" {
			return errors.New("--new-password is required")
		}
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *reolink.Client) error {
			user := reolink.AddUserParams{
				UserName: args[0],
				Password: _usersAddCmdOpts.password,
				Level:    _usersAddCmdOpts.level,
			}

			return gateway.NewLiveCamera(c).AddUser(ctx, user)
		})
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&_usersAddCmdOpts.password, "new-password", "", "password of the new account")
	usersAddCmd.Flags().StringVar(&_usersAddCmdOpts.level, "level", "guest", "guest or admin")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	rootCmd.AddCommand(usersCmd)
}
