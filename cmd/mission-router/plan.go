package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mission-router/core"
	"github.com/signalsfoundry/mission-router/internal/logging"
	"github.com/signalsfoundry/mission-router/terrainio"
)

// planOutput is the combined result of the one-shot pipeline.
type planOutput struct {
	Routes    *core.RouteResponse  `json:"routes"`
	Risks     *core.RiskResponse   `json:"risks"`
	Pace      *core.PaceResponse   `json:"pace"`
	Selection *core.SelectResponse `json:"selection"`
	Export    *core.ExportResponse `json:"export"`
}

func planCmd() *cobra.Command {
	var (
		terrainDir    string
		exportDir     string
		start         []float64
		end           []float64
		mode          string
		loadKg        float64
		maxCandidates int
		policy        string
		avoidSlope    float64
		maxDistance   float64
		deadline      string
		basename      string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run the full pipeline once: route, risk, pace, select, export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(start) != 2 || len(end) != 2 {
				return fmt.Errorf("--start and --end each need lat,lon")
			}

			bundle, err := terrainio.LoadBundle(terrainDir)
			if err != nil {
				return err
			}
			planner := core.NewPlanner(bundle,
				core.WithLogger(logging.NewFromEnv()),
				core.WithExportDir(exportDir),
			)
			ctx := cmd.Context()

			routes, err := planner.Route(ctx, core.RouteRequest{
				Start:         core.Coordinate{Lat: start[0], Lon: start[1]},
				End:           core.Coordinate{Lat: end[0], Lon: end[1]},
				MaxCandidates: maxCandidates,
			})
			if err != nil {
				return err
			}
			risks, err := planner.RiskEval(ctx, core.RiskRequest{})
			if err != nil {
				return err
			}
			pace, err := planner.PaceEstimator(ctx, core.PaceRequest{
				Mode:   core.TravelMode(mode),
				LoadKg: loadKg,
			})
			if err != nil {
				return err
			}

			constraints := core.Constraints{}
			if cmd.Flags().Changed("avoid-slope") {
				constraints.AvoidSlopeDegrees = &avoidSlope
			}
			if cmd.Flags().Changed("max-distance") {
				constraints.MaxDistanceM = &maxDistance
			}
			if deadline != "" {
				t, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return fmt.Errorf("parse --must-arrive-before: %w", err)
				}
				constraints.ArrivalDeadline = &t
			}
			selection, err := planner.Select(ctx, core.SelectRequest{
				Policy:      core.Policy(policy),
				Constraints: constraints,
				Mode:        core.TravelMode(mode),
				LoadKg:      loadKg,
			})
			if err != nil {
				return err
			}
			export, err := planner.Export(ctx, core.ExportRequest{Basename: basename})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(planOutput{
				Routes:    routes,
				Risks:     risks,
				Pace:      pace,
				Selection: selection,
				Export:    export,
			})
		},
	}

	cmd.Flags().StringVar(&terrainDir, "terrain-dir", "configs/terrain", "terrain fixture directory")
	cmd.Flags().StringVar(&exportDir, "export-dir", "exports", "briefing artifact directory")
	cmd.Flags().Float64SliceVar(&start, "start", nil, "start position as lat,lon")
	cmd.Flags().Float64SliceVar(&end, "end", nil, "end position as lat,lon")
	cmd.Flags().StringVar(&mode, "mode", "foot", "travel mode: foot or wheeled")
	cmd.Flags().Float64Var(&loadKg, "load-kg", 25.0, "carried load in kilograms")
	cmd.Flags().IntVar(&maxCandidates, "max-candidates", core.MaxCandidates, "maximum candidate routes")
	cmd.Flags().StringVar(&policy, "policy", string(core.PolicyPreferLowRisk), "selection policy: prefer_low_risk or cost_only")
	cmd.Flags().Float64Var(&avoidSlope, "avoid-slope", 0, "exclude routes steeper than this many degrees")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "exclude routes longer than this many metres")
	cmd.Flags().StringVar(&deadline, "must-arrive-before", "", "RFC 3339 arrival deadline")
	cmd.Flags().StringVar(&basename, "export-name", "", "basename for exported files (default: selected route id)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
