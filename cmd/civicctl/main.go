package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/civicvoice/civicvoice/client-go/internal/config"
	"github.com/civicvoice/civicvoice/client-go/internal/issues"
	"github.com/civicvoice/civicvoice/client-go/internal/session"
	"github.com/civicvoice/civicvoice/client-go/internal/store"
	"github.com/civicvoice/civicvoice/client-go/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	manager *session.Manager
}

func (a *app) init() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)

	var st store.Store
	switch cfg.Storage.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st = store.NewRedisStore(client, cfg.Redis.Prefix)
	default:
		st, err = store.NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
	}

	a.cfg = cfg
	a.manager = session.NewManager(session.Config{
		BaseURL:         cfg.API.BaseURL,
		Store:           st,
		HTTPClient:      &http.Client{Timeout: cfg.API.Timeout},
		RefreshInterval: cfg.Session.RefreshInterval,
		RestoreTimeout:  cfg.Session.RestoreTimeout,
		ExpiryLeeway:    cfg.Session.ExpiryLeeway,
		OnForcedLogout: func(reason string) {
			fmt.Fprintln(os.Stderr, "session ended, please log in again")
		},
	})
	return nil
}

// restore rebuilds session state and fails the command when no session exists.
func (a *app) restore(ctx context.Context) error {
	if a.manager.Restore(ctx) != session.Authenticated {
		return fmt.Errorf("not logged in (run: civicctl login <email-or-phone>)")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "civicctl",
		Short:         "Command-line client for the CivicVoice citizen engagement portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	var password string

	login := &cobra.Command{
		Use:   "login <email-or-phone>",
		Short: "Authenticate and persist a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("a password is required (--password)")
			}
			if !a.manager.Login(cmd.Context(), args[0], password) {
				return fmt.Errorf("login failed")
			}
			fmt.Printf("logged in as %s\n", a.manager.CurrentUser().DisplayName())
			return nil
		},
	}
	login.Flags().StringVarP(&password, "password", "p", "", "account password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.manager.Logout(cmd.Context())
			fmt.Println("logged out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			u := a.manager.CurrentUser()
			fmt.Printf("%s <%s> role=%s\n", u.DisplayName(), u.Email, u.Role.Name)
			if u.Location != nil {
				fmt.Printf("location: %s / %s / %s\n", u.Location.District, u.Location.Sector, u.Location.Cell)
			}
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Force a token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if !a.manager.Refresh(cmd.Context()) {
				return fmt.Errorf("refresh failed, session cleared")
			}
			fmt.Println("tokens refreshed")
			return nil
		},
	}

	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "Work with reported issues",
	}

	var status, category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List reported issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			got, err := issues.NewClient(a.manager.API()).List(cmd.Context(), status, category)
			if err != nil {
				return err
			}
			for _, is := range got {
				fmt.Printf("%-36s  %-12s  %-16s  %s\n", is.ID, is.Status, is.Category, is.Title)
			}
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&category, "category", "", "filter by category")

	var title, description, reportCategory string
	report := &cobra.Command{
		Use:   "report",
		Short: "Report a new issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd.Context()); err != nil {
				return err
			}
			if title == "" {
				return fmt.Errorf("a title is required (--title)")
			}
			created, err := issues.NewClient(a.manager.API()).Report(cmd.Context(), issues.ReportRequest{
				Title:       title,
				Description: description,
				Category:    reportCategory,
			})
			if err != nil {
				return err
			}
			fmt.Printf("reported issue %s (%s)\n", created.ID, created.Status)
			return nil
		},
	}
	report.Flags().StringVar(&title, "title", "", "issue title")
	report.Flags().StringVar(&description, "description", "", "issue description")
	report.Flags().StringVar(&reportCategory, "category", "", "issue category")

	issuesCmd.AddCommand(list, report)
	root.AddCommand(login, logout, whoami, refresh, issuesCmd)
	return root
}
