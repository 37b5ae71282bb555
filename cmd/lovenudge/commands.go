package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jask/lovenudge/internal/database/repository"
	"github.com/jask/lovenudge/internal/session"
	"github.com/jask/lovenudge/internal/tui"
)

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "lovenudge",
		Short:         "Send little pushes of affection to your partner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			p := tea.NewProgram(tui.New(cmd.Context(), a.session, a.presets), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $HOME/.config/lovenudge/config.toml)")

	action := func(use, short string, nargs int, run func(cmd *cobra.Command, a *app, args []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.MinimumNArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd.Context(), configPath)
				if err != nil {
					return err
				}
				defer a.Close()
				if err := run(cmd, a, args); err != nil {
					return errors.New(session.UserMessage(err))
				}
				return nil
			},
		}
	}

	root.AddCommand(
		action("register NAME", "Register your name with this device's push token", 1, func(cmd *cobra.Command, a *app, args []string) error {
			st, err := a.session.SubmitName(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered as %s\n", st.UserName)
			return nil
		}),
		action("pair NAME", "Look up your partner by name", 1, func(cmd *cobra.Command, a *app, args []string) error {
			st, err := a.session.SubmitPartnerLookup(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paired. Sending to %s\n", st.PartnerPushToken)
			return nil
		}),
		action("send MESSAGE|NUMBER", "Send a preset (by number or phrase) or your own message", 1, func(cmd *cobra.Command, a *app, args []string) error {
			body := a.presets.Resolve(strings.Join(args, " "))
			if a.session.State().SendsToSelf() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no partner yet, sending to your own device")
			}
			if _, err := a.session.SendAffection(cmd.Context(), body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent: %s\n", body)
			return nil
		}),
		action("status", "Show the current session", 0, func(cmd *cobra.Command, a *app, _ []string) error {
			entries, err := a.kv.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list stored keys: %w", err)
			}
			printStatus(cmd.OutOrStdout(), a.session.State(), entries)
			return nil
		}),
		action("reset", "Forget your name and partner", 0, func(cmd *cobra.Command, a *app, _ []string) error {
			if _, err := a.session.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		}),
		action("presets", "List preset messages", 0, func(cmd *cobra.Command, a *app, _ []string) error {
			for i, p := range a.presets.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, p)
			}
			return nil
		}),
	)
	return root
}

func printStatus(w io.Writer, st session.State, entries []repository.Entry) {
	fmt.Fprintf(w, "step:          %s\n", st.Step)
	fmt.Fprintf(w, "name:          %s\n", orDash(st.UserName))
	fmt.Fprintf(w, "your token:    %s\n", orDash(st.LocalPushToken))
	fmt.Fprintf(w, "partner token: %s\n", orDash(st.PartnerPushToken))
	if st.TokenChanged {
		fmt.Fprintln(w, "note:          push token changed, run register again")
	}
	if n := st.Latest; !n.IsZero() {
		fmt.Fprintf(w, "latest:        %s: %s\n", orDash(n.Title), n.Body)
		if data := n.DataJSON(); data != "" {
			fmt.Fprintf(w, "latest data:   %s\n", data)
		}
	}
	if len(entries) > 0 {
		fmt.Fprintln(w, "updated:")
		for _, e := range entries {
			fmt.Fprintf(w, "  %-18s %s\n", e.Key, e.UpdatedAt.UTC().Format(time.DateTime))
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
