package main

import (
	"context"
	"fmt"
	stdLog "log"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/Astemirdum/library-desk/library/app"
	"github.com/Astemirdum/library-desk/library/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	return config.NewConfig(
		config.WithLogLevel(zapcore.InfoLevel),
		config.WithWriteTimeout(time.Minute),
	)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "library",
		Short:        "Library desk: books, members, loans and fines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(loadConfig())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd(), createMemberCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(loadConfig())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|redo|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "redo", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			return app.Migrate(loadConfig(), command)
		},
	}
}

func createMemberCmd() *cobra.Command {
	var form app.RegisterForm
	var memberType string
	cmd := &cobra.Command{
		Use:   "create-member",
		Short: "Register a login account with its member profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Password == "" {
				password, err := readPassword(cmd)
				if err != nil {
					return err
				}
				form.Password = password
			}
			form.MemberType = app.MemberType(memberType)

			member, err := app.CreateMember(context.Background(), loadConfig(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created member %d: %s\n", member.ID, member)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&form.Username, "username", "", "login name")
	flags.StringVar(&form.Password, "password", "", "password, prompted for when empty")
	flags.StringVar(&form.Name, "name", "", "full name")
	flags.StringVar(&form.Email, "email", "", "email address")
	flags.StringVar(&memberType, "type", string(app.MemberTypeStudent), "member type: Student or Teacher")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", errors.New("--password is required when stdin is not a terminal")
	}
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimSpace(string(raw)), nil
}
