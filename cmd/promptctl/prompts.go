package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promptguild/promptguild/internal/model"
)

func newPromptsCmd() *cobra.Command {
	var guildID string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Prompt operations (personal library, or a guild with --guild)",
	}
	cmd.PersistentFlags().StringVarP(&guildID, "guild", "g", "", "Guild ID for shared prompts")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List prompts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodGet, scopePath(guildID, "/prompts"), nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get PROMPT_ID",
		Short: "Get a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodGet, scopePath(guildID, "/prompts/"+args[0]), nil)
		},
	})

	var title, content, category string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.PromptInput{Title: title, Content: content}
			if cmd.Flags().Changed("category") {
				in.Category = &category
			}
			return run(cmd, http.MethodPost, scopePath(guildID, "/prompts"), in)
		},
	}
	createCmd.Flags().StringVarP(&title, "title", "t", "", "Prompt title (required)")
	createCmd.Flags().StringVarP(&content, "content", "c", "", "Prompt text (required)")
	createCmd.Flags().StringVar(&category, "category", "", "Category")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("content")
	cmd.AddCommand(createCmd)

	var newTitle, newContent, newCategory string
	updateCmd := &cobra.Command{
		Use:   "update PROMPT_ID",
		Short: "Update a prompt; the previous text is kept as a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.PromptPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &newTitle
			}
			if cmd.Flags().Changed("content") {
				patch.Content = &newContent
			}
			if cmd.Flags().Changed("category") {
				patch.Category = &newCategory
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass --title, --content or --category")
			}
			return run(cmd, http.MethodPatch, scopePath(guildID, "/prompts/"+args[0]), patch)
		},
	}
	updateCmd.Flags().StringVarP(&newTitle, "title", "t", "", "New title")
	updateCmd.Flags().StringVarP(&newContent, "content", "c", "", "New text")
	updateCmd.Flags().StringVar(&newCategory, "category", "", "New category (empty clears it)")
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete PROMPT_ID",
		Short: "Delete a prompt and its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodDelete, scopePath(guildID, "/prompts/"+args[0]), nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use PROMPT_ID",
		Short: "Record one use of a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodPost, scopePath(guildID, "/prompts/"+args[0]+"/use"), nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rate PROMPT_ID RATING",
		Short: "Rate a prompt from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be an integer: %w", err)
			}
			body := map[string]int{"rating": rating}
			return run(cmd, http.MethodPut, scopePath(guildID, "/prompts/"+args[0]+"/rating"), body)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "versions PROMPT_ID",
		Short: "List earlier versions of a prompt, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, http.MethodGet, scopePath(guildID, "/prompts/"+args[0]+"/versions"), nil)
		},
	})

	return cmd
}
