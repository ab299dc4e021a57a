package main

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest PROMPT",
		Short: "Ask the AI backend to rewrite a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodPost, "/ai/suggestion", map[string]string{"prompt": args[0]})
		},
	}
}

func newWhoAmICmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the calling identity, or look up a user with --email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email != "" {
				return run(cmd, http.MethodGet, "/users/lookup?email="+url.QueryEscape(email), nil)
			}
			return run(cmd, http.MethodGet, "/me", nil)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Look up this email instead")
	return cmd
}
