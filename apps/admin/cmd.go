package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	echoapi "github.com/AbuAli85/business-services-hub-sub009/apps/api/echo"
	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword        // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	conf       *core.Config
	profileSvc *profile.Service
	out        io.Writer
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Business Services Hub administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.out)

	cmd.AddCommand(cli.migrateCommand())
	cmd.AddCommand(cli.promoteCommand())
	cmd.AddCommand(cli.tokenCommand())
	return cmd
}

// run executes the command line; args include the program name like os.Args.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCommand()
	if len(args) < 2 {
		_ = root.Usage()
		return errHelp
	}
	root.SetArgs(args[1:])
	return root.Execute()
}

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, down, status, version, redo, reset, up-to, down-to...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return gooseRunFunc(cli.db, args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) promoteCommand() *cobra.Command {
	var id, email, role string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Set the role of a profile (and reactivate it)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (id == "") == (email == "") || role == "" {
				_ = cmd.Usage()
				return errHelp
			}
			ctx := context.Background()

			p, err := cli.findProfile(ctx, id, email)
			if err != nil {
				return err
			}
			if p, err = cli.profileSvc.SetRole(ctx, p.ID, core.CleanString(role, true /* lower */)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cli.out, "%s (%s) is now %s\n", p.DisplayName(), p.ID, p.Role)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "The profile ID")
	cmd.Flags().StringVar(&email, "email", "", "The profile email")
	cmd.Flags().StringVar(&role, "role", "", "One of admin, provider, client")
	return cmd
}

func (cli *commandLine) tokenCommand() *cobra.Command {
	var id string
	var ttl time.Duration
	var promptSecret bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				_ = cmd.Usage()
				return errHelp
			}
			p, err := cli.findProfile(context.Background(), id, "")
			if err != nil {
				return err
			}

			secret := cli.conf.Auth.JWTSecret
			if promptSecret || secret == "" {
				if secret, err = cli.readSecret(); err != nil {
					return err
				}
			}
			if ttl <= 0 {
				ttl = cli.conf.Auth.TokenExpiry
			}

			token, err := echoapi.GenerateToken(secret, echoapi.NewClaims(p, cli.conf.Auth.Audience, ttl))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cli.out, token)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "The profile ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to the configured expiry)")
	cmd.Flags().BoolVar(&promptSecret, "prompt-secret", false, "Prompt for the JWT secret instead of reading the config")
	return cmd
}

func (cli *commandLine) findProfile(ctx context.Context, id, email string) (profile.Profile, error) {
	if id != "" {
		return cli.profileSvc.Get(ctx, core.CleanString(id, true /* lower */))
	}
	return cli.profileSvc.GetByEmail(ctx, email)
}

func (cli *commandLine) readSecret() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter JWT secret:")
	secret, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading secret")
	}
	if len(secret) == 0 {
		return "", errHelp
	}
	return string(secret), nil
}
