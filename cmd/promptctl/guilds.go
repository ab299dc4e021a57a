package main

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newGuildsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guilds",
		Short: "Guild operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List guilds you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodGet, "/guilds", nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a guild owned by you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodPost, "/guilds", map[string]string{"name": args[0]})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get GUILD_ID",
		Short: "Get a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodGet, "/guilds/"+args[0], nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete GUILD_ID",
		Short: "Delete a guild and all of its prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodDelete, "/guilds/"+args[0], nil)
		},
	})

	var role string
	inviteCmd := &cobra.Command{
		Use:   "invite GUILD_ID EMAIL",
		Short: "Add a signed-in user to a guild by email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"email": args[1], "role": role}
			return run(cmd, http.MethodPost, "/guilds/"+args[0]+"/invitations", body)
		},
	}
	inviteCmd.Flags().StringVarP(&role, "role", "r", "viewer", "Role: editor or viewer")
	cmd.AddCommand(inviteCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role GUILD_ID USER_ID ROLE",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodPatch, "/guilds/"+args[0]+"/members/"+args[1], map[string]string{"role": args[2]})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-member GUILD_ID USER_ID",
		Short: "Remove a member from a guild",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodDelete, "/guilds/"+args[0]+"/members/"+args[1], nil)
		},
	})

	return cmd
}
