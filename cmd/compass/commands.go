package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/compass-survey/internal/catalog"
	"github.com/signalsfoundry/compass-survey/internal/export"
	"github.com/signalsfoundry/compass-survey/kb"
	"github.com/signalsfoundry/compass-survey/model"
	"github.com/signalsfoundry/compass-survey/survey"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <project.mak>",
		Short: "Load a project and check that every shot is connected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			shots := 0
			surveys := p.Surveys()
			for _, s := range surveys {
				shots += len(s.Shots)
			}
			fmt.Fprintf(out, "%s: %d survey files, %d surveys, %d shots, %d fixed stations\n",
				p.Path, len(p.SurveyFiles), len(surveys), shots, len(p.FixedStations()))

			if err := kb.Validate(p); err != nil {
				var verr *kb.ValidationError
				if errors.As(err, &verr) {
					for _, problem := range verr.Problems {
						fmt.Fprintln(out, "  "+problem.Error())
					}
				}
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <project.mak>",
		Short: "Print a table of survey files, surveys, shots and length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			writeSummary(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func writeSummary(w io.Writer, p *model.LoadedProject) {
	var (
		data                     [][]string
		totalSurveys, totalShots int
		totalLength              float64
	)
	for _, f := range p.SurveyFiles {
		shots := 0
		length := 0.0
		for _, s := range f.Surveys {
			shots += len(s.Shots)
			length += s.TotalLength()
		}
		totalSurveys += len(f.Surveys)
		totalShots += shots
		totalLength += length
		data = append(data, []string{
			f.FilePath,
			strconv.Itoa(len(f.Surveys)),
			strconv.Itoa(shots),
			strconv.FormatFloat(length, 'f', 2, 64),
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FILE", "SURVEYS", "SHOTS", "LENGTH"})
	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(totalSurveys),
		strconv.Itoa(totalShots),
		strconv.FormatFloat(totalLength, 'f', 2, 64),
	})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()
}

func newCanonicalizeCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "canonicalize <file.dat>",
		Short: "Parse a survey data file and write it back in canonical layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := a.newLoader()
			if err != nil {
				return err
			}
			surveys, err := loader.ReadSurveyFile(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}

			if output == "" || output == "-" {
				return survey.Write(cmd.OutOrStdout(), surveys...)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := survey.Write(f, surveys...); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <project.mak>",
		Short: "Export a loaded project as JSON or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			p, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), p, f)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatJSON), "Output format (json or yaml)")
	return cmd
}

func newIndexCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "index <project.mak>",
		Short: "Write a loaded project into the SQLite catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.load(cmd, args[0])
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = a.cfg.CatalogPath
			}

			ctx := cmd.Context()
			c, err := catalog.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Index(ctx, p); err != nil {
				return err
			}
			counts, err := c.Counts(ctx, p.Path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s into %s: %d surveys, %d shots, %d stations\n",
				p.Path, dbPath, counts.Surveys, counts.Shots, counts.Stations)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Catalog database path (defaults to catalog_path from the configuration)")
	return cmd
}

// load reads the project at path and every survey file it references.
func (a *app) load(cmd *cobra.Command, path string) (*model.LoadedProject, error) {
	loader, err := a.newLoader()
	if err != nil {
		return nil, err
	}
	p, err := loader.Load(cmd.Context(), path)
	if err != nil {
		return nil, describe(err)
	}
	return p, nil
}
