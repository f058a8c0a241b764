package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"amsprobe/internal/config"
	"amsprobe/internal/errors"
	"amsprobe/internal/vector"
)

func newVectorsCmd() *cobra.Command {
	var testFile, outDir string
	var only []string
	var seed int64

	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Generate and dump the test vectors without simulating",
		Long: `Generate the digital mode and analog vectors of every test and write them
to <out>/<test>/ as CSV. A later "check --use-cache" run cannot reuse them:
it also needs the simulation results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig()
			if err != nil {
				return err
			}
			tests, err := config.LoadTestConfig(testFile)
			if err != nil {
				return err
			}
			for _, spec := range tests.Tests {
				if len(only) > 0 && !slices.Contains(only, spec.Name) {
					continue
				}
				ph, err := spec.PortHandler()
				if err != nil {
					return errors.ConfigInvalidf("test %s: %v", spec.Name, err)
				}
				ph.AddDummyDigitalMode()
				ph.AddDummyAnalogInput()

				gen := vector.NewGenerator(ph, vector.Options{
					MinDepth:  spec.Option.MinAnalogLevel,
					MaxSample: spec.Option.MaxSample,
					Order:     spec.Option.Order,
					Interact:  spec.Option.Interact,
					Seed:      seed,
				}, logger)
				gen.Generate()

				dir := filepath.Join(outDir, spec.Name)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrapf(err, "create %s", dir)
				}
				if err := gen.Dump(dir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d mode(s) x %d vector(s), depth %d -> %s\n",
					spec.Name, len(gen.DigitalModes()), len(gen.AnalogVectors()), gen.Depth(), dir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&testFile, "test", "t", "test.yaml", "Test configuration file")
	cmd.Flags().StringVarP(&outDir, "out", "o", "vectors", "Output directory")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Generate only the named tests")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Vector generator seed (0 is time based)")
	return cmd
}
