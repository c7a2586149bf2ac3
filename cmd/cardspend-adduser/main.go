// Command cardspend-adduser creates an account directly in the configured
// data backend, without going through the HTTP API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"

	"cardspend/internal/auth"
	"cardspend/internal/backend"
	"cardspend/internal/cli"
	"cardspend/internal/config"
)

func main() {
	cli.LoadEnvFile()
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cardspend-adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email of the new user")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	printToken := fs.Bool("token", false, "Print a login token for the new user")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stdout, "Usage: cardspend-adduser -email <email> [-password <password>] [-token]")
		fs.PrintDefaults()
		return errors.New("missing required flag: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}

	result, err := backend.NewFactory(cli.SetupLogger("adduser", "warn")).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			fmt.Fprintf(stderr, "cleanup: %v\n", err)
		}
	}()

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		*printToken = false
	}
	svc := auth.NewService(result.Backend, auth.NewTokens(secret, cfg.TokenTTL))

	token, err := svc.Register(ctx, *email, password)
	if errors.Is(err, auth.ErrEmailTaken) {
		return fmt.Errorf("user %s already exists", *email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	color.New(color.FgGreen).Fprintf(stdout, "User %s created", strings.ToLower(strings.TrimSpace(*email)))
	fmt.Fprintf(stdout, " in the %s backend\n", backendCfg.Type)
	if *printToken {
		fmt.Fprintln(stdout, token)
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
