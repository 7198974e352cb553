package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"supplies-portal/internal/config"
	"supplies-portal/internal/models"
	"supplies-portal/internal/repository"
	"supplies-portal/internal/services"
	"supplies-portal/internal/tabular"

	"github.com/spf13/cobra"
)

var errDatabaseOnly = errors.New("this command needs STORE_BACKEND=database")

func newWorksheetsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worksheets",
		Short: "Inspect and move worksheet data",
	}
	cmd.AddCommand(newWorksheetsListCmd(opts))
	cmd.AddCommand(newWorksheetsInitCmd())
	cmd.AddCommand(newWorksheetsImportCmd())
	cmd.AddCommand(newWorksheetsExportCmd())
	return cmd
}

func newWorksheetsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the worksheets of the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			var infos []models.WorksheetInfo
			if e.cfg.Store.Backend == config.BackendDatabase {
				infos, err = repository.NewWorksheetRepository(e.db).List(ctx)
				if err != nil {
					return err
				}
			} else {
				store, _, err := e.store()
				if err != nil {
					return err
				}
				names, err := store.Tables(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					t, err := store.Read(ctx, name)
					if err != nil {
						return err
					}
					infos = append(infos, models.WorksheetInfo{Name: name, Columns: len(t.Header), Rows: len(t.Rows)})
				}
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(out, "No worksheets found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOLUMNS\tROWS\tUPDATED")
			fmt.Fprintln(w, "----\t-------\t----\t-------")
			for _, info := range infos {
				updated := "-"
				if !info.UpdatedAt.IsZero() {
					updated = info.UpdatedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", info.Name, info.Columns, info.Rows, updated)
			}
			return w.Flush()
		},
	}
}

func newWorksheetsInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the template worksheets that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.Store.Backend != config.BackendDatabase {
				return errDatabaseOnly
			}

			repo := repository.NewWorksheetRepository(e.db)
			created, err := services.InitTemplates(ctx, repo, repo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(created) == 0 {
				fmt.Fprintln(out, "All template worksheets already exist.")
				return nil
			}
			fmt.Fprintf(out, "Created %s\n", strings.Join(created, ", "))
			return nil
		},
	}
}

func newWorksheetsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <worksheet> <file.csv>",
		Short: "Replace a worksheet with the contents of a CSV file",
		Long: `Replace a worksheet with the contents of a CSV file. The first record
is the header row. The worksheet is created when it does not exist.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("worksheet name is required")
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[1], err)
			}
			defer f.Close()

			r := csv.NewReader(f)
			r.FieldsPerRecord = -1
			records, err := r.ReadAll()
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}

			t := tabular.FromValues(name, records)
			if !tabular.HeaderValid(t.Header) {
				return fmt.Errorf("%s has no usable header row", args[1])
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.Store.Backend != config.BackendDatabase {
				return errDatabaseOnly
			}
			if err := repository.NewWorksheetRepository(e.db).Import(ctx, t); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows into %s\n", len(t.Rows), name)
			return nil
		},
	}
}

func newWorksheetsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <worksheet>",
		Short: "Write a worksheet to standard output as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			store, _, err := e.store()
			if err != nil {
				return err
			}
			t, err := store.Read(ctx, args[0])
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			if err := w.Write(t.Header); err != nil {
				return err
			}
			if err := w.WriteAll(tabular.Project(t.Header, t.Rows)); err != nil {
				return err
			}
			return w.Error()
		},
	}
}
