package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/yourorg/property-api/client"
)

func NewFavoriteCommand(rootOpts *RootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Add or remove a property from a user's favorites",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "", "user id (required)")

	set := func(on bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			fav := client.NewFavorites(client.New(rootOpts.API), user)
			if err := fav.Load(cmd.Context()); err != nil {
				return err
			}
			if err := fav.Set(cmd.Context(), args[0], on); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, map[string]any{
				"user_id":   user,
				"favorites": fav.IDs(),
			})
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:          "add <property-id>",
		Short:        "Mark a property as favorite",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         set(true),
	})
	cmd.AddCommand(&cobra.Command{
		Use:          "remove <property-id>",
		Short:        "Remove a property from favorites",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         set(false),
	})
	return cmd
}
