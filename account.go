package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"coursegen/internal/auth"
	"coursegen/internal/config"
	"coursegen/internal/feedback"
)

func newLoginCmd(cfgPath *string) *cobra.Command {
	var user auth.User
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Register and sign in a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.ID <= 0 {
				return fmt.Errorf("--id must be positive")
			}
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.auth.Login(cmd.Context(), a.client, user); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", user.Name, user.Email)
			return err
		},
	}
	cmd.Flags().Int64Var(&user.ID, "id", 0, "user id")
	cmd.Flags().StringVar(&user.Name, "name", "", "display name")
	cmd.Flags().StringVar(&user.Email, "email", "", "email address")
	cmd.Flags().Int64Var(&user.OrgID, "org", 0, "organisation id")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.auth.Logout(cmd.Context(), a.client); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return err
		},
	}
}

func newFeedbackCmd(cfgPath *string) *cobra.Command {
	var rating int
	var comments, attach string
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Send feedback with an optional screenshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := feedback.Form{Rating: rating, Comments: comments}
			if attach != "" {
				att, err := feedback.LoadAttachment(attach)
				if err != nil {
					return err
				}
				form.Attachment = att
			}
			if err := form.Validate(); err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			user, err := a.user()
			if err != nil {
				return err
			}
			form.UserID, form.Name, form.Email = userID(user), user.Name, user.Email
			if _, err := feedback.Submit(a.userContext(cmd.Context()), a.client, form, time.Now()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "thanks for the feedback")
			return err
		},
	}
	cmd.Flags().IntVarP(&rating, "rating", "r", 0, fmt.Sprintf("rating from %d to %d", feedback.MinRating, feedback.MaxRating))
	cmd.Flags().StringVarP(&comments, "comments", "m", "", "comments")
	cmd.Flags().StringVar(&attach, "attach", "", "image to attach (jpeg, png, gif, webp)")
	return cmd
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(*cfgPath, force)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.AccessToken = redact(cfg.AccessToken)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	return cmd
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
