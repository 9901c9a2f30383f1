package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/nearby/internal/domain/provider"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
)

type searchOptions struct {
	lat       float64
	lon       float64
	radiusKm  float64
	services  []string
	tiers     []string
	minRating float64
	skip      int
	take      int
	format    string
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a radius search against the index",
		Long: `Run a radius search against the index and print the ranked page.

Examples:
  nearbyctl search --lat 51.5074 --lon -0.1278 --radius 10
  nearbyctl search --lat 51.5 --lon -0.12 --radius 25 --service plumbing --tier gold --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := opts.params(cmd)
			if err != nil {
				return err
			}
			a, _, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.Search.Search(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printPage(cmd.OutOrStdout(), &page, opts.format)
		},
	}

	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Origin latitude")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Origin longitude")
	cmd.Flags().Float64VarP(&opts.radiusKm, "radius", "r", 0, "Radius in kilometers")
	cmd.Flags().StringSliceVarP(&opts.services, "service", "s", nil, "Service id filter, any match (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.tiers, "tier", "t", nil, "Allowed tier: free, standard, gold, platinum (repeatable)")
	cmd.Flags().Float64Var(&opts.minRating, "min-rating", 0, "Minimum average rating")
	cmd.Flags().IntVar(&opts.skip, "skip", 0, "Results to skip")
	cmd.Flags().IntVarP(&opts.take, "take", "n", request.DefaultTake, "Results to return")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("radius")

	return cmd
}

func (o *searchOptions) params(cmd *cobra.Command) (request.Params, error) {
	p := request.Params{
		Lat:        o.lat,
		Lon:        o.lon,
		RadiusKm:   o.radiusKm,
		ServiceIDs: o.services,
		Skip:       o.skip,
		Take:       &o.take,
	}
	if cmd.Flags().Changed("min-rating") {
		p.MinRating = &o.minRating
	}
	for _, name := range o.tiers {
		t, err := provider.ParseTier(name)
		if err != nil {
			return p, err
		}
		p.Tiers = append(p.Tiers, t)
	}
	return p, nil
}

type hitView struct {
	ProviderID    string   `json:"provider_id"`
	Name          string   `json:"name"`
	Tier          string   `json:"tier"`
	AverageRating float64  `json:"average_rating"`
	DistanceKm    float64  `json:"distance_km"`
	ServiceIDs    []string `json:"service_ids"`
}

func printPage(w io.Writer, page *result.Page, format string) error {
	hits := page.Items()
	views := make([]hitView, len(hits))
	for i := range hits {
		p := hits[i].Provider()
		views[i] = hitView{
			ProviderID:    p.ProviderID(),
			Name:          p.Name(),
			Tier:          p.Tier().String(),
			AverageRating: p.AverageRating(),
			DistanceKm:    hits[i].DistanceKm(),
			ServiceIDs:    p.ServiceIDs(),
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"items":           views,
			"total_count":     page.TotalCount(),
			"count_available": page.CountAvailable(),
		})
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tNAME\tTIER\tRATING\tKM\tSERVICES")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.3f\t%s\n",
				v.ProviderID, v.Name, v.Tier, v.AverageRating, v.DistanceKm, strings.Join(v.ServiceIDs, ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if page.CountAvailable() {
			fmt.Fprintf(w, "%d of %d\n", len(views), page.TotalCount())
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
