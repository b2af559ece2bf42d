package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/property-api/internal/canon"
)

// row is a property row as exported from the document store.
type row struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Price       any            `json:"price"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	FlowType    string         `json:"flow_type"`
	CreatedAt   time.Time      `json:"created_at"`
	Details     map[string]any `json:"property_details"`
	Coordinates *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Source    string  `json:"source"`
	} `json:"coordinates"`
}

func (r row) document() canon.Document {
	doc := canon.Document{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Price:     r.Price,
		City:      r.City,
		State:     r.State,
		FlowType:  r.FlowType,
		CreatedAt: r.CreatedAt,
		Details:   r.Details,
	}
	if doc.Details == nil {
		doc.Details = map[string]any{}
	}
	if c := r.Coordinates; c != nil {
		doc.Coordinates = &canon.CoordinateRow{Latitude: c.Latitude, Longitude: c.Longitude, Source: c.Source}
	}
	return doc
}

type normalizeOptions struct {
	OmitDetails bool
	CenterLat   float64
	CenterLng   float64
}

func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &normalizeOptions{}
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Normalize raw property rows into canonical records",
		Long: `Read one property row or an array of rows as JSON and print the
canonical record for each. Use "-" to read from stdin.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer in.Close()
			docs, single, err := readRows(in)
			if err != nil {
				return err
			}
			recs := canon.NormalizeAll(docs, canon.Options{
				Center:      canon.Center{Latitude: opts.CenterLat, Longitude: opts.CenterLng},
				OmitDetails: opts.OmitDetails,
			})
			if single {
				return writeOutput(cmd.OutOrStdout(), rootOpts.Format, recs[0])
			}
			return writeOutput(cmd.OutOrStdout(), rootOpts.Format, recs)
		},
	}
	cmd.Flags().BoolVar(&opts.OmitDetails, "omit-details", false, "drop the raw payload from the output")
	cmd.Flags().Float64Var(&opts.CenterLat, "center-lat", canon.DefaultCenter.Latitude, "fallback centre latitude")
	cmd.Flags().Float64Var(&opts.CenterLng, "center-lng", canon.DefaultCenter.Longitude, "fallback centre longitude")
	return cmd
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// readRows accepts a single object or an array of objects.
func readRows(r io.Reader) ([]canon.Document, bool, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read input: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if raw[0] == '[' {
		var rows []row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, false, fmt.Errorf("decode rows: %w", err)
		}
		docs := make([]canon.Document, 0, len(rows))
		for _, r := range rows {
			docs = append(docs, r.document())
		}
		return docs, false, nil
	}
	var one row
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, false, fmt.Errorf("decode row: %w", err)
	}
	return []canon.Document{one.document()}, true, nil
}
