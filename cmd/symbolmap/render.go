package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/symbolmap/internal/logger"
)

var (
	renderIndex  int
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the markers for one period as GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()

		v, err := env.loadView(cmd.Context())
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("index") {
			tr, _ := v.Jump(renderIndex)
			if tr.Clamped {
				logger.Warn("Index %d is out of range, rendering period %d", renderIndex, tr.To)
			}
		}

		data, err := v.GeoJSON()
		if err != nil {
			return err
		}

		if renderOutput != "" && renderOutput != "-" {
			if err := writeFile(renderOutput, data); err != nil {
				return err
			}
		} else if err := writeOutput(cmd.OutOrStdout(), data); err != nil {
			return err
		}

		state := v.State()
		logger.Info("Rendered %d markers for %s", len(state.Markers), state.Label)
		return nil
	},
}

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "List the attribute sequence and the global minimum",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()

		v, err := env.loadView(cmd.Context())
		if err != nil {
			return err
		}

		state := v.State()
		out := cmd.OutOrStdout()
		for i, p := range state.Periods {
			fmt.Fprintf(out, "%d\t%s\t%s\n", i, p.Key, p.Label)
		}
		if state.Minimum != nil {
			fmt.Fprintf(out, "minimum\t%g\n", *state.Minimum)
		} else {
			fmt.Fprintln(out, "minimum\tnone")
		}
		return nil
	},
}

func writeOutput(w io.Writer, data []byte) error {
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeFile writes data to path and reports a failed close, which is where
// buffered write errors surface.
func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeOutput(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func init() {
	renderCmd.Flags().IntVar(&renderIndex, "index", 0, "sequence index to render (clamped to the valid range)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(renderCmd, attributesCmd)
}
