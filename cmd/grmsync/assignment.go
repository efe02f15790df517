package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/grmsync/internal/store"
	"github.com/hyperengineering/grmsync/internal/validation"
	"github.com/spf13/cobra"
)

var (
	assignUser       string
	assignProject    string
	assignRegion     string
	assignDepartment string
	assignRole       string
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Manage project assignments",
	Long:  "Assignments decide which projects and regions a user syncs. Changes apply on the user's next pull.",
}

var assignmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Assign a user to a project",
	Args:  cobra.NoArgs,
	RunE:  runAssignmentAdd,
}

var assignmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's assignments",
	Args:  cobra.NoArgs,
	RunE:  runAssignmentList,
}

var assignmentDeactivateCmd = &cobra.Command{
	Use:   "deactivate <assignment-id>",
	Short: "Deactivate an assignment",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssignmentDeactivate,
}

func init() {
	assignmentAddCmd.Flags().StringVar(&assignUser, "user", "", "User id (required)")
	assignmentAddCmd.Flags().StringVar(&assignProject, "project", "", "Project id (required)")
	assignmentAddCmd.Flags().StringVar(&assignRegion, "region", "", "Administrative region id")
	assignmentAddCmd.Flags().StringVar(&assignDepartment, "department", "", "Department")
	assignmentAddCmd.Flags().StringVar(&assignRole, "role", "", "Role within the project")
	_ = assignmentAddCmd.MarkFlagRequired("user")
	_ = assignmentAddCmd.MarkFlagRequired("project")

	assignmentListCmd.Flags().StringVar(&assignUser, "user", "", "User id (required)")
	_ = assignmentListCmd.MarkFlagRequired("user")

	assignmentCmd.AddCommand(assignmentAddCmd)
	assignmentCmd.AddCommand(assignmentListCmd)
	assignmentCmd.AddCommand(assignmentDeactivateCmd)
}

func runAssignmentAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.AddAssignment(ctx, store.Assignment{
		UserID:     assignUser,
		Project:    assignProject,
		Region:     assignRegion,
		Department: assignDepartment,
		Role:       assignRole,
		Active:     true,
		Activated:  true,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), a)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to project %s (id: %s)\n", a.UserID, a.Project, a.ID)
	return nil
}

func runAssignmentList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	assignments, err := st.UserAssignments(ctx, assignUser)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"assignments": assignments,
			"total":       len(assignments),
		})
	}

	if len(assignments) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No assignments for %s.\n", assignUser)
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tPROJECT\tREGION\tDEPARTMENT\tROLE\tACTIVE\tCREATED")
	for _, a := range assignments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			a.ID,
			a.Project,
			orDash(a.Region),
			orDash(a.Department),
			orDash(a.Role),
			a.Active && a.Activated,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runAssignmentDeactivate(cmd *cobra.Command, args []string) error {
	id := args[0]
	if verr := validation.ValidateULID("id", id); verr != nil {
		return fmt.Errorf("invalid assignment id: %w", verr)
	}
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeactivateAssignment(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("assignment %q not found", id)
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"id": id, "active": false})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deactivated assignment %s\n", id)
	return nil
}
