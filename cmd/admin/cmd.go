package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/iliyamo/theater-canteen/internal/model"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

const minPasswordLen = 8

type adminUsers interface {
	Create(ctx context.Context, u *model.User, password string, cost int) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	SetPassword(ctx context.Context, id uint64, password string, cost int) error
}

type tokenRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type commandLine struct {
	users   adminUsers
	tokens  tokenRevoker
	migrate func(ctx context.Context) (int, error)
	cost    int
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                                - apply the database schema")
	fmt.Fprintln(cli.out, "  createadmin -email EMAIL -name NAME    - create a SUPER_ADMIN account")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL             - reset a user's password and sign them out")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminCmd.SetOutput(cli.out)
	createAdminEmail := createAdminCmd.String("email", "", "The admin's email. The password will be prompted next.")
	createAdminName := createAdminCmd.String("name", "", "The admin's full name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := cli.migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "applied %d statements\n", n)
		return nil
	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		email := strings.TrimSpace(*createAdminEmail)
		name := strings.TrimSpace(*createAdminName)
		if email == "" || name == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.createAdmin(email, name, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if strings.TrimSpace(*resetPasswordEmail) == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return string(pwd), nil
}

func (cli *commandLine) createAdmin(email, name, pwd string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	u := &model.User{
		Email:       email,
		FullName:    name,
		AccountType: model.AccountSuperAdmin,
		IsActive:    true,
	}
	if err := cli.users.Create(ctx, u, pwd, cli.cost); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created super admin %s (id %d)\n", u.Email, u.ID)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	u, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := cli.users.SetPassword(ctx, u.ID, pwd, cli.cost); err != nil {
		return err
	}
	if err := cli.tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password reset for %s\n", u.Email)
	return nil
}
