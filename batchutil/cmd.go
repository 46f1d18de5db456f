/*
Copyright © 2026 the VectorBatch authors.
This file is part of VectorBatch.

VectorBatch is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VectorBatch is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VectorBatch.  If not, see <http://www.gnu.org/licenses/>.
*/

package batchutil

import (
	"context"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	vectorbatch "github.com/spatialmodel/vectorbatch"
	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// InitializeConfig builds the vectorbatch command tree: one subcommand
// per operation in operations.go, following the shape of inmaputil's
// InitializeConfig.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "vectorbatch",
		Short: "A parallel batch-processing engine for vector geospatial data.",
		Long: `vectorbatch runs spatial SQL operations (buffer, erase, intersect,
join, split, union, dissolve, and friends) against GeoPackage-style
SQLite containers, partitioning large inputs across worker goroutines.

Configuration can also be set with a config file, specified with
--config.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if path := cfg.GetString("config"); path != "" {
				cfg.SetConfigFile(path)
				if err := cfg.ReadInConfig(); err != nil {
					return fmt.Errorf("batchutil: reading config file %s: %w", path, err)
				}
			}
			return nil
		},
	}
	cfg.Root.PersistentFlags().String("config", "", "path to a configuration file")
	cfg.Root.PersistentFlags().Int("parallelism", -1, "number of batches to run concurrently; -1 auto-tunes")
	cfg.Root.PersistentFlags().Bool("force", false, "overwrite the output if it already exists")
	cfg.Root.PersistentFlags().Int("verbosity", 1, "log verbosity: 0=warn, 1=info, 2=debug")
	cfg.BindPFlags(cfg.Root.PersistentFlags())

	cfg.Root.AddCommand(
		bufferCmd(cfg),
		simplifyCmd(cfg),
		isvalidCmd(cfg),
		makevalidCmd(cfg),
		convexhullCmd(cfg),
		eraseCmd(cfg),
		intersectCmd(cfg),
		joinByLocationCmd(cfg),
		exportByLocationCmd(cfg),
		exportByDistanceCmd(cfg),
		splitCmd(cfg),
		unionCmd(cfg),
		dissolveCmd(cfg),
	)
	return cfg
}

// setVerbosity configures logrus per the --verbosity flag, the
// ambient-stack piece every subcommand applies before running an
// operation.
func setVerbosity(v int) {
	switch {
	case v <= 0:
		logrus.SetLevel(logrus.WarnLevel)
	case v == 1:
		logrus.SetLevel(logrus.InfoLevel)
	default:
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// describeInput opens path read-only and describes layer (empty
// meaning "the only layer"), the shared precondition every operation
// subcommand needs before it can build an OperationRequest.
func describeInput(ctx context.Context, path, layer string) (vectorbatch.LayerDescriptor, error) {
	conn, err := engine.Open(path, false, engine.ProfileSafe)
	if err != nil {
		return vectorbatch.LayerDescriptor{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer conn.Close()
	return vectorbatch.Describe(ctx, conn, layer)
}

// baseRequest builds the OperationRequest fields common to every
// subcommand from the persistent flags and the described input(s).
func baseRequest(cfg *Cfg, op string, input1 vectorbatch.LayerDescriptor, outputPath, outputLayer string) vectorbatch.OperationRequest {
	return vectorbatch.OperationRequest{
		Operation:       op,
		Input1:          input1,
		OutputPath:      outputPath,
		OutputLayer:     outputLayer,
		ParallelismHint: cfg.GetInt("parallelism"),
		Force:           cfg.GetBool("force"),
		Verbosity:       cfg.GetInt("verbosity"),
	}
}

func bufferCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer string
	var distance float64
	var quadrantSegments int
	cmd := &cobra.Command{
		Use:   "buffer",
		Short: "Buffer every feature of a layer by a fixed distance.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "buffer", input1, outputPath, outputLayer)
			return vectorbatch.Buffer(cmd.Context(), req, distance, quadrantSegments)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name (default: the container's only layer)")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	cmd.Flags().Float64Var(&distance, "distance", 0, "buffer distance, in the input's spatial reference units")
	cmd.Flags().IntVar(&quadrantSegments, "quadrant-segments", 8, "number of segments used to approximate a quarter circle")
	return cmd
}

func simplifyCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer string
	var tolerance float64
	cmd := &cobra.Command{
		Use:   "simplify",
		Short: "Simplify every feature of a layer with the Douglas-Peucker algorithm.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "simplify", input1, outputPath, outputLayer)
			return vectorbatch.Simplify(cmd.Context(), req, tolerance)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "simplification tolerance")
	return cmd
}

func isvalidCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer string
	var onlyInvalid bool
	cmd := &cobra.Command{
		Use:   "isvalid",
		Short: "Report the validity of every feature of a layer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "isvalid", input1, outputPath, outputLayer)
			allValid, err := vectorbatch.IsValid(cmd.Context(), req, onlyInvalid)
			if err != nil {
				return err
			}
			if allValid {
				fmt.Println("all geometries are valid")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	cmd.Flags().BoolVar(&onlyInvalid, "only-invalid", true, "only write rows with an invalid geometry")
	return cmd
}

func makevalidCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer string
	cmd := &cobra.Command{
		Use:   "makevalid",
		Short: "Repair every invalid feature of a layer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "makevalid", input1, outputPath, outputLayer)
			return vectorbatch.MakeValid(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	return cmd
}

func convexhullCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer string
	cmd := &cobra.Command{
		Use:   "convexhull",
		Short: "Compute the convex hull of every feature of a layer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "convexhull", input1, outputPath, outputLayer)
			return vectorbatch.ConvexHull(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	return cmd
}

// twoLayerFlags holds the flag set shared by every operation that
// takes a second input layer.
type twoLayerFlags struct {
	input1Path, input1Layer, input1Columns string
	input2Path, input2Layer, input2Columns string
	outputPath, outputLayer                string
}

func (f *twoLayerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input1Path, "input1", "", "first input container path")
	cmd.Flags().StringVar(&f.input1Layer, "input1-layer", "", "first input layer name")
	cmd.Flags().StringVar(&f.input1Columns, "input1-columns", "", "comma-separated columns to keep from input1 (default: all)")
	cmd.Flags().StringVar(&f.input2Path, "input2", "", "second input container path")
	cmd.Flags().StringVar(&f.input2Layer, "input2-layer", "", "second input layer name")
	cmd.Flags().StringVar(&f.input2Columns, "input2-columns", "", "comma-separated columns to keep from input2 (default: all)")
	cmd.Flags().StringVar(&f.outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&f.outputLayer, "output-layer", "result", "output layer name")
}

func (f *twoLayerFlags) describe(ctx context.Context) (vectorbatch.LayerDescriptor, vectorbatch.LayerDescriptor, error) {
	in1, err := describeInput(ctx, f.input1Path, f.input1Layer)
	if err != nil {
		return vectorbatch.LayerDescriptor{}, vectorbatch.LayerDescriptor{}, err
	}
	in2, err := describeInput(ctx, f.input2Path, f.input2Layer)
	if err != nil {
		return vectorbatch.LayerDescriptor{}, vectorbatch.LayerDescriptor{}, err
	}
	return in1, in2, nil
}

func (f *twoLayerFlags) request(cfg *Cfg, op string, in1, in2 vectorbatch.LayerDescriptor) vectorbatch.OperationRequest {
	req := baseRequest(cfg, op, in1, f.outputPath, f.outputLayer)
	req.Input2 = &in2
	req.Projection1 = vectorbatch.ColumnProjection{Columns: splitColumns(f.input1Columns)}
	req.Projection2 = vectorbatch.ColumnProjection{Columns: splitColumns(f.input2Columns)}
	return req
}

func eraseCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Remove from input1 every part that intersects input2.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			return vectorbatch.Erase(cmd.Context(), f.request(cfg, "erase", in1, in2))
		},
	}
	f.register(cmd)
	return cmd
}

func intersectCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	cmd := &cobra.Command{
		Use:   "intersect",
		Short: "Compute the pairwise intersection of input1 and input2.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			return vectorbatch.Intersect(cmd.Context(), f.request(cfg, "intersect", in1, in2))
		},
	}
	f.register(cmd)
	return cmd
}

func joinByLocationCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	var discardNonmatching bool
	var minAreaIntersect float64
	var areaInterColumn string
	cmd := &cobra.Command{
		Use:   "join-by-location",
		Short: "Spatially join input1 to input2.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			req := f.request(cfg, "join_by_location", in1, in2)
			return vectorbatch.JoinByLocation(cmd.Context(), req, discardNonmatching, minAreaIntersect, areaInterColumn)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&discardNonmatching, "discard-nonmatching", false, "drop input1 rows with no matching input2 row")
	cmd.Flags().Float64Var(&minAreaIntersect, "min-area-intersect", 0, "minimum intersection area required to keep a match")
	cmd.Flags().StringVar(&areaInterColumn, "area-column", "area_inters", "name of the synthetic intersection-area column")
	return cmd
}

func exportByLocationCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	var minAreaIntersect float64
	var areaInterColumn string
	cmd := &cobra.Command{
		Use:   "export-by-location",
		Short: "Write every input1 feature that intersects at least one input2 feature.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			req := f.request(cfg, "export_by_location", in1, in2)
			return vectorbatch.ExportByLocation(cmd.Context(), req, minAreaIntersect, areaInterColumn)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&minAreaIntersect, "min-area-intersect", 0, "minimum intersection area required to keep a match")
	cmd.Flags().StringVar(&areaInterColumn, "area-column", "area_inters", "name of the synthetic intersection-area column")
	return cmd
}

func exportByDistanceCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	var maxDistance float64
	cmd := &cobra.Command{
		Use:   "export-by-distance",
		Short: "Write every input1 feature within a distance of some input2 feature.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			req := f.request(cfg, "export_by_distance", in1, in2)
			return vectorbatch.ExportByDistance(cmd.Context(), req, maxDistance)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "maximum distance to a input2 feature")
	return cmd
}

func splitCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Partition input1 into features that intersect input2 and features that do not.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			return vectorbatch.Split(cmd.Context(), f.request(cfg, "split", in1, in2))
		},
	}
	f.register(cmd)
	return cmd
}

func unionCmd(cfg *Cfg) *cobra.Command {
	f := &twoLayerFlags{}
	cmd := &cobra.Command{
		Use:   "union",
		Short: "Compute the full geometric union of input1 and input2.",
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			in1, in2, err := f.describe(cmd.Context())
			if err != nil {
				return err
			}
			return vectorbatch.Union(cmd.Context(), f.request(cfg, "union", in1, in2))
		},
	}
	f.register(cmd)
	return cmd
}

func dissolveCmd(cfg *Cfg) *cobra.Command {
	var inputPath, inputLayer, outputPath, outputLayer, groupBy string
	var gridPath, gridLayerName string
	cmd := &cobra.Command{
		Use:   "dissolve",
		Short: "Union every feature of a layer, optionally grouped by columns.",
		Long: `Without --grid, dissolve runs as a single unpartitioned query.
With --grid, it instead tiles the work by intersecting the input against
each feature of the given polygon grid layer and appending the per-cell
results, the way dissolve_cardsheets does for inputs too large to union
in one pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbosity(cfg.GetInt("verbosity"))
			input1, err := describeInput(cmd.Context(), inputPath, inputLayer)
			if err != nil {
				return err
			}
			req := baseRequest(cfg, "dissolve", input1, outputPath, outputLayer)
			cols := splitColumns(groupBy)
			if gridPath == "" {
				return vectorbatch.Dissolve(cmd.Context(), req, cols)
			}
			grid, err := describeInput(cmd.Context(), gridPath, gridLayerName)
			if err != nil {
				return err
			}
			return vectorbatch.DissolveCardSheets(cmd.Context(), req, grid, cols)
		},
	}
	cmd.Flags().StringVar(&inputPath, "input", "", "input container path")
	cmd.Flags().StringVar(&inputLayer, "input-layer", "", "input layer name")
	cmd.Flags().StringVar(&outputPath, "output", "", "output container path")
	cmd.Flags().StringVar(&outputLayer, "output-layer", "result", "output layer name")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "comma-separated columns to group by (default: dissolve to a single feature)")
	cmd.Flags().StringVar(&gridPath, "grid", "", "polygon grid container path; enables dissolve_cardsheets tiling")
	cmd.Flags().StringVar(&gridLayerName, "grid-layer", "", "grid layer name (default: the container's only layer)")
	return cmd
}
