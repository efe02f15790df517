package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	roleUser string
	roleName string

	linkCategory string
	linkProject  string
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage user roles",
}

var roleGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant a role to a user",
	Long:  "Grant a role to a user. Granting the configured super role gives access to every active project with no region restriction.",
	Args:  cobra.NoArgs,
	RunE:  runRoleGrant,
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage issue categories",
}

var categoryLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Make an issue category visible to a project",
	Args:  cobra.NoArgs,
	RunE:  runCategoryLink,
}

func init() {
	roleGrantCmd.Flags().StringVar(&roleUser, "user", "", "User id (required)")
	roleGrantCmd.Flags().StringVar(&roleName, "role", "", "Role name (required)")
	_ = roleGrantCmd.MarkFlagRequired("user")
	_ = roleGrantCmd.MarkFlagRequired("role")
	roleCmd.AddCommand(roleGrantCmd)

	categoryLinkCmd.Flags().StringVar(&linkCategory, "category", "", "Issue category id (required)")
	categoryLinkCmd.Flags().StringVar(&linkProject, "project", "", "Project id (required)")
	_ = categoryLinkCmd.MarkFlagRequired("category")
	_ = categoryLinkCmd.MarkFlagRequired("project")
	categoryCmd.AddCommand(categoryLinkCmd)
}

func runRoleGrant(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.GrantRole(ctx, roleUser, roleName); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"user_id": roleUser, "role": roleName})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Granted role %s to %s\n", roleName, roleUser)
	return nil
}

func runCategoryLink(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.LinkCategory(ctx, linkCategory, linkProject); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"category": linkCategory, "project": linkProject})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked category %s to project %s\n", linkCategory, linkProject)
	return nil
}
