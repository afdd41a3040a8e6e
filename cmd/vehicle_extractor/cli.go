package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vehicle-extractor/extension/internal/colors"
	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/literal"
	"github.com/vehicle-extractor/extension/internal/output"
	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/internal/reader/fixture"
	"github.com/vehicle-extractor/extension/internal/snapshot"
	"github.com/vehicle-extractor/extension/internal/storage"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           ExtensionName,
		Short:         "Vehicle data extractor",
		Long:          "Offline tools for the vehicle data extractor: render fixtures, inspect the archive and the colour mapper.",
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Command parsing has been successful. Returns to not print usage anymore.
			cmd.SilenceUsage = true
			// a missing config file leaves the defaults in place
			if err := config.Load(ModuleFolder); err != nil {
				Logger.Debug("No config loaded", "error", err)
			}
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true

	root.AddCommand(newRenderCmd(), newHistoryCmd(), newColorsCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the extension version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", ExtensionName, CurrentExtensionVersion, BuildDate)
			return err
		},
	}
}

type renderOptions struct {
	fixture string
	policy  string
	append  string
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a vehicle fixture as a DispatchableVehicle literal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.OutOrStdout(), opts, time.Now())
		},
	}
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "path to a vehicle fixture JSON file")
	cmd.Flags().StringVar(&opts.policy, "policy", snapshot.PolicyDispatch.Name, "snapshot policy (dispatch or compact)")
	cmd.Flags().StringVar(&opts.append, "append", "", "also append the entry to this output file")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func runRender(w io.Writer, opts renderOptions, now time.Time) error {
	policy, err := snapshot.PolicyByName(opts.policy)
	if err != nil {
		return err
	}
	v, err := fixture.Load(opts.fixture)
	if err != nil {
		return err
	}

	r := reader.New(v, reader.HeapAllocator{}, Logger)
	h, err := r.Target()
	if err != nil {
		return err
	}
	lit := literal.Render(snapshot.Build(r.Read(h), policy))

	if _, err := io.WriteString(w, lit); err != nil {
		return err
	}
	if opts.append != "" {
		return output.NewAppender("", opts.append).Append(literal.Entry(now, lit))
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		byModel bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent extractions from the configured archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := createStorageBackend(config.GetStorageConfig())
			if err != nil {
				return err
			}
			if backend == nil {
				return errors.New("no archive configured (storage.type is none)")
			}
			if err := backend.Init(); err != nil {
				return err
			}
			defer backend.Close()
			if byModel {
				return printModelCounts(cmd.OutOrStdout(), backend)
			}
			return printHistory(cmd.OutOrStdout(), backend, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of extractions to list")
	cmd.Flags().BoolVar(&byModel, "by-model", false, "count archived extractions per model instead")
	return cmd
}

func printHistory(w io.Writer, backend storage.Backend, limit int) error {
	l, ok := backend.(storage.Lister)
	if !ok {
		return fmt.Errorf("archive backend %T cannot list extractions", backend)
	}
	list, err := l.RecentExtractions(limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTRACTED\tMODEL\tPOLICY\tDLC\tMODS\tOUTPUT")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%s\n",
			e.ExtractedAt.Format(literal.TimestampLayout),
			e.Snapshot.ModelName,
			e.Policy,
			e.Snapshot.RequiresDLC,
			len(e.Snapshot.RequiredVariation.Mods),
			e.OutputPath,
		)
	}
	return tw.Flush()
}

// printModelCounts lists models by how often they were extracted, most first.
func printModelCounts(w io.Writer, backend storage.Backend) error {
	c, ok := backend.(storage.ModelCounter)
	if !ok {
		return fmt.Errorf("archive backend %T cannot count extractions", backend)
	}
	counts, err := c.CountByModel()
	if err != nil {
		return err
	}

	models := make([]string, 0, len(counts))
	for m := range counts {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool {
		if counts[models[i]] != counts[models[j]] {
			return counts[models[i]] > counts[models[j]]
		}
		return models[i] < models[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tEXTRACTIONS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%d\n", m, counts[m])
	}
	return tw.Flush()
}

func newColorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "colors [index...]",
		Short: "Show how raw paint indices map to colour IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printColors(cmd.OutOrStdout(), args)
		},
	}
}

func printColors(w io.Writer, args []string) error {
	if len(args) == 0 {
		_, err := fmt.Fprintf(w, "indices 0-%d map to themselves; anything else maps to %d\n", colors.MaxKnown, colors.Unknown)
		return err
	}
	for _, a := range args {
		raw, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid paint index %q: %w", a, err)
		}
		if _, err := fmt.Fprintf(w, "%d -> %d\n", raw, colors.Map(raw)); err != nil {
			return err
		}
	}
	return nil
}
