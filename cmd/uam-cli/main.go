package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/errolitolopez/user-access-manager/internal/config"
	sdomain "github.com/errolitolopez/user-access-manager/internal/settings/domain"
	srepo "github.com/errolitolopez/user-access-manager/internal/settings/repository"
	ssvc "github.com/errolitolopez/user-access-manager/internal/settings/service"
	udomain "github.com/errolitolopez/user-access-manager/internal/users/domain"
	urepo "github.com/errolitolopez/user-access-manager/internal/users/repository"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "uam-cli",
	Short: "User access manager admin tool",
	Long:  "Administrative access to accounts and runtime configs over a direct database connection.",
}

func init() {
	seedUserCmd.Flags().StringVar(&seedUsername, "username", "", "username (required)")
	seedUserCmd.Flags().StringVar(&seedEmail, "email", "", "email (required)")
	seedUserCmd.Flags().StringVar(&seedPassword, "password", "", "password (required)")
	_ = seedUserCmd.MarkFlagRequired("username")
	_ = seedUserCmd.MarkFlagRequired("email")
	_ = seedUserCmd.MarkFlagRequired("password")

	unlockUserCmd.Flags().StringVar(&unlockUsername, "username", "", "username (required)")
	_ = unlockUserCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(seedUserCmd)
	rootCmd.AddCommand(unlockUserCmd)
	rootCmd.AddCommand(setConfigCmd)
}

// connect loads configuration and opens the shared pg pool.
func connect(ctx context.Context) (*pgxpool.Pool, config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, cfg, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("pg pool: %w", err)
	}
	return pool, cfg, nil
}

const defaultAccountExpiryYears = 1

// newAccount builds an enabled account whose expiration sits the given
// number of years out and whose credentials are considered fresh now.
func newAccount(username, email, passwordHash string, years int, now time.Time) udomain.User {
	return udomain.User{
		ID:                    uuid.New(),
		Username:              username,
		Email:                 email,
		PasswordHash:          passwordHash,
		Enabled:               true,
		AccountExpirationDate: now.AddDate(years, 0, 0),
		PasswordLastUpdated:   now,
	}
}

var (
	seedUsername string
	seedEmail    string
	seedPassword string
)

var seedUserCmd = &cobra.Command{
	Use:   "seed-user",
	Short: "Create an enabled account with a bcrypt-hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		settings := ssvc.New(srepo.New(pool))
		years, err := settings.GetInt(ctx, sdomain.KeyAccountExpiryYears, defaultAccountExpiryYears)
		if err != nil {
			return err
		}

		h, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		u := newAccount(seedUsername, seedEmail, string(h), years, time.Now())
		if err := urepo.New(pool).Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

var unlockUsername string

var unlockUserCmd = &cobra.Command{
	Use:   "unlock-user",
	Short: "Clear the lock and failed-attempt counter on an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		users := urepo.New(pool)
		u, err := users.FindByUsername(ctx, unlockUsername)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if !u.AccountLocked && u.FailedLoginAttempts == 0 {
			fmt.Printf("user %s is not locked\n", u.Username)
			return nil
		}
		u.AccountLocked = false
		u.FailedLoginAttempts = 0
		u.LastFailedLoginTime = nil
		if err := users.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		fmt.Printf("unlocked user %s\n", u.Username)
		return nil
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set-config <key> <value>",
	Short: "Upsert a runtime config row",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := srepo.New(pool).Upsert(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("upsert config: %w", err)
		}
		fmt.Printf("set %s\n", args[0])
		return nil
	},
}
