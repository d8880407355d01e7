package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/recklessbear/rbsite/internal/config"
	"github.com/recklessbear/rbsite/internal/hunt"
	"github.com/recklessbear/rbsite/internal/logger"
)

// consoleNotifier renders the machine's UI callbacks on stdout so the
// hunt flow can be exercised without the SPA.
type consoleNotifier struct{}

func (consoleNotifier) Toast(msg string) { fmt.Println(msg) }
func (consoleNotifier) OpenRegistration() {
	fmt.Println("-> registration form would open here (run: rbsite hunt register)")
}
func (consoleNotifier) ShowCongrats() {
	fmt.Println("-> congratulations! all golden logos found")
}

func newHuntCommand() *cobra.Command {
	var baseURL, stateFile string

	cmd := &cobra.Command{
		Use:   "hunt",
		Short: "Drive the golden-logo machine against a running server (QA tool)",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8080", "record-store API base URL")
	cmd.PersistentFlags().StringVar(&stateFile, "state-file", defaultHuntStateFile(), "local device state file")

	newMachine := func() (*hunt.Machine, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		svc, err := hunt.NewHTTPService(hunt.ClientConfig{BaseURL: baseURL})
		if err != nil {
			return nil, err
		}
		local, err := hunt.NewLocalState(stateFile)
		if err != nil {
			return nil, err
		}
		var completion hunt.CompletionNotifier
		if cfg.Competition.CompletionWebhookURL != "" {
			completion, err = hunt.NewWebhookNotifier(cfg.Competition.CompletionWebhookURL)
			if err != nil {
				return nil, err
			}
		}
		log, err := logger.New(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		return hunt.NewMachine(hunt.Config{
			Service:    svc,
			Local:      local,
			Notifier:   consoleNotifier{},
			Completion: completion,
			Log:        log,
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the machine state for this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("state: %s, logos found: %d\n", m.State(), m.LogosFound())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "register <full-name> <email> <phone>",
		Short: "Submit the registration form",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}
			if err := m.Register(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("registered, state: %s\n", m.State())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "find <logo-id>",
		Short: "Actuate a golden logo trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}
			before := m.State()
			if err := m.FindLogo(cmd.Context(), args[0]); err != nil {
				return err
			}
			if before != hunt.StateRegisteredCompleted && m.State() == hunt.StateRegisteredCompleted {
				// Give the fire-and-forget completion webhook a moment
				// before the process exits.
				waitForWebhook(cmd.Context())
			}
			fmt.Printf("state: %s, logos found: %d\n", m.State(), m.LogosFound())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logos",
		Short: "List the golden logo placements",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			placements, err := hunt.Placements()
			if err != nil {
				return err
			}
			for _, p := range placements {
				mark := " "
				if m.AlreadyFound(p.ID) {
					mark = "x"
				}
				fmt.Printf("[%s] %-16s %s (%s)\n", mark, p.ID, p.Page, p.Hint)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Wipe local device state (keeps the device id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newMachine()
			if err != nil {
				return err
			}
			return m.Reset()
		},
	})

	return cmd
}

func waitForWebhook(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}
}

func defaultHuntStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rbsite-hunt.json"
	}
	return filepath.Join(home, ".rbsite", "hunt.json")
}
