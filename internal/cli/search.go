package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourorg/property-api/client"
	"github.com/yourorg/property-api/internal/canon"
)

func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		p    client.ListParams
		flow string
	)
	cmd := &cobra.Command{
		Use:          "search",
		Short:        "List properties from the API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flow != "" {
				f, ok := canon.ParseFlow(flow)
				if !ok {
					return fmt.Errorf("unknown flow %q", flow)
				}
				p.Flow = f
			}
			s := client.NewSearcher(client.New(rootOpts.API))
			recs, err := s.Search(cmd.Context(), p)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, recs)
		},
	}
	cmd.Flags().StringVar(&p.City, "city", "", "city (case-insensitive)")
	cmd.Flags().StringVar(&p.State, "state", "", "state")
	cmd.Flags().StringVar(&p.OwnerID, "owner", "", "owner id")
	cmd.Flags().StringVarP(&p.Q, "query", "q", "", "free-text filter")
	cmd.Flags().StringVar(&flow, "flow", "", "listing flow, e.g. residential_rent")
	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 0, "page size (server default when 0)")
	return cmd
}
