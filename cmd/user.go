package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/password"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Interactively create a user account",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCreateUser(false)
	},
}

var createSuperUserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Interactively create an admin account",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCreateUser(true)
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(createSuperUserCmd)
}

func runCreateUser(superuser bool) error {
	userService, db, err := newUserServiceForCommands()
	if err != nil {
		return err
	}
	defer db.Close()

	reader := bufio.NewReader(os.Stdin)

	email, err := promptEmail(reader)
	if err != nil {
		return err
	}
	plaintext, err := promptPassword(reader)
	if err != nil {
		return err
	}

	var user *entity.User
	if superuser {
		user, err = userService.CreateSuperUser(context.Background(), email, plaintext)
	} else {
		user, err = userService.CreateUser(context.Background(), email, plaintext)
	}
	if err != nil {
		return fmt.Errorf("could not create user: %w", err)
	}

	fmt.Printf("User created successfully: %s\n", user.Email)
	return nil
}

func newUserServiceForCommands() (*service.UserService, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := configureLogging(cfg); err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}

	userRepo := repository.NewUserRepository(db)
	actionCodec := token.NewCodec(cfg.SecretKey, cfg.ActionTokenTTL, token.PurposeAction)
	dispatcher := mailer.NewAsyncDispatcher(mailer.NewSMTPMailer(cfg))

	return service.NewUserService(userRepo, dispatcher, actionCodec, cfg), db, nil
}

func promptEmail(reader *bufio.Reader) (string, error) {
	for {
		fmt.Print("Email address: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}

		email := strings.TrimSpace(line)
		if _, err := mail.ParseAddress(email); err == nil {
			return email, nil
		}
		fmt.Println("Error: invalid email")
	}
}

func promptPassword(reader *bufio.Reader) (string, error) {
	for {
		fmt.Print("Password: ")
		first, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}

		fmt.Print("Password (again): ")
		second, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}

		if string(first) != string(second) {
			fmt.Println("Error: the passwords didn't match")
			continue
		}

		plaintext := string(first)
		if password.IsStrong(plaintext) {
			return plaintext, nil
		}

		fmt.Print("The password doesn't meet strength requirements. Bypass validation? y/N: ")
		bypass, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.EqualFold(strings.TrimSpace(bypass), "y") {
			return plaintext, nil
		}
	}
}
