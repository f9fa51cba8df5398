package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/store"
)

// NewOrgCmd constructs the `hiresync org` command group. Organizations are
// not indexed, so these commands only touch the store.
func NewOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(newOrgCreateCmd(), newOrgListCmd())
	return cmd
}

func newOrgCreateCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization",
		Long: `Create an organization. Candidates and job listings can only be created for
an existing organization. The id is generated unless --id is given.

Examples:
  hiresync org create "Acme Corp" --id acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			db, err := openStore(log)
			if err != nil {
				return fmt.Errorf("org: %w", err)
			}
			defer func() { _ = db.Close() }()

			o := &model.Organization{ID: id, Name: args[0]}
			if err := store.NewOrganizations(db, log).Create(cmd.Context(), o); err != nil {
				return fmt.Errorf("org: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Organization id (default: a generated UUID)")

	return cmd
}

func newOrgListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			db, err := openStore(log)
			if err != nil {
				return fmt.Errorf("org: %w", err)
			}
			defer func() { _ = db.Close() }()

			orgs, err := store.NewOrganizations(db, log).List(cmd.Context(), store.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return fmt.Errorf("org: %w", err)
			}
			if orgs == nil {
				orgs = []*model.Organization{}
			}
			return printJSON(cmd.OutOrStdout(), orgs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of organizations")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of organizations to skip")

	return cmd
}
