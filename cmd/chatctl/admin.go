package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agency-chat/internal/chatclient"
	"agency-chat/internal/console"
	"agency-chat/internal/domain"
)

type adminOptions struct {
	email    string
	password string
	token    string
}

func (o *adminOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.email, "email", envOr("ADMIN_EMAIL", ""), "Operator email")
	cmd.Flags().StringVar(&o.password, "password", envOr("CHATCTL_PASSWORD", ""), "Operator password")
	cmd.Flags().StringVar(&o.token, "token", envOr("CHATCTL_TOKEN", ""), "Access token (skips login)")
}

func (o *adminOptions) client(cmd *cobra.Command, root *rootOptions) (*chatclient.Client, error) {
	c := chatclient.New(root.apiURL, nil, domain.VisitorInfo{}, root.logger())
	if o.token != "" {
		c.SetToken(o.token)
		return c, nil
	}
	if o.email == "" || o.password == "" {
		return nil, fmt.Errorf("operator credentials required: use --email/--password or --token")
	}
	if err := c.Login(cmd.Context(), o.email, o.password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return c, nil
}

func newSessionsCmd(root *rootOptions) *cobra.Command {
	var (
		admin  adminOptions
		query  string
		status string
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := admin.client(cmd, root)
			if err != nil {
				return err
			}
			list, err := c.ListSessions(cmd.Context(), query, status)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			console.RenderSessions(cmd.OutOrStdout(), list)
			return nil
		},
	}
	admin.bind(cmd)
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search visitor name, email or session id")
	cmd.Flags().StringVar(&status, "status", "all", "Status filter: all, active or closed")
	return cmd
}

func newTranscriptCmd(root *rootOptions) *cobra.Command {
	var admin adminOptions
	cmd := &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Show the messages of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := admin.client(cmd, root)
			if err != nil {
				return err
			}
			msgs, err := c.Transcript(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load transcript: %w", err)
			}
			console.RenderTranscript(cmd.OutOrStdout(), args[0], msgs)
			return nil
		},
	}
	admin.bind(cmd)
	return cmd
}
