package cmd

import (
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/registry"
	"bitwise74/model-vault/internal/service"
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type integrityFlags struct {
	owner string
	ext   string
	yes   bool
}

func (f *integrityFlags) filter() registry.MissingFilter {
	return registry.MissingFilter{
		OwnerID:   f.owner,
		Extension: f.ext,
	}
}

func (f *integrityFlags) register(cmd *cobra.Command, withYes bool) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "only assets of this user ID")
	cmd.Flags().StringVar(&f.ext, "ext", "", "only assets with this extension, like glb")

	if withYes {
		cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "skip the confirmation prompt")
	}
}

func newIntegrityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Reconcile the catalog with the storage backend",
		Long: `Check that the bytes of every asset can still be found in storage.

Assets whose bytes are gone are flagged as missing and can't be
downloaded until they reappear. Flags are cleared again automatically
once a later check finds the bytes.

Examples:
  modelvault integrity check
  modelvault integrity list --ext glb
  modelvault integrity reset --owner ab12cd34 --yes
  modelvault integrity prune`,
	}

	cmd.AddCommand(
		newIntegrityCheckCmd(),
		newIntegrityListCmd(),
		newIntegrityResetCmd(),
		newIntegrityPruneCmd(),
	)

	return cmd
}

func newIntegrityCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check every asset and update its missing flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *internal.Deps) error {
				report, err := d.Checker.Check(cmd.Context())
				if err != nil {
					return err
				}

				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func printReport(out io.Writer, r service.IntegrityReport) {
	fmt.Fprintln(out, styleTitle.Render("Integrity check"))
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderTable(
		[]string{"Total", "Found", "Missing", "Unknown", "Recovered", "Newly missing"},
		[][]string{{
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Found),
			strconv.Itoa(r.Missing),
			strconv.Itoa(r.Unknown),
			strconv.Itoa(r.Recovered),
			strconv.Itoa(r.NewlyMissing),
		}},
	))

	fmt.Fprintln(out, styleMuted.Render("Took "+r.Duration.Round(time.Millisecond).String()))

	for _, err := range r.Errors {
		fmt.Fprintln(out, formatError(err.Error()))
	}

	switch {
	case r.NewlyMissing > 0:
		fmt.Fprintln(out, formatWarning(fmt.Sprintf("%d asset(s) newly flagged as missing", r.NewlyMissing)))
	case r.Missing == 0 && r.Unknown == 0:
		fmt.Fprintln(out, formatSuccess("Every asset is present"))
	}
}

func newIntegrityListCmd() *cobra.Command {
	var flags integrityFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets flagged as missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *internal.Deps) error {
				assets, err := d.Checker.List(cmd.Context(), flags.filter())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()

				if len(assets) == 0 {
					fmt.Fprintln(out, formatSuccess("No assets are flagged as missing"))
					return nil
				}

				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					location := a.StoredName
					if a.ExternalRef != "" {
						location = a.ExternalRef
					}

					rows = append(rows, []string{
						strconv.FormatUint(uint64(a.ID), 10),
						a.Name,
						a.OwnerUsername,
						a.OwnerEmail,
						a.StorageBackend,
						location,
					})
				}

				fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Owner", "Email", "Backend", "Location"}, rows))
				fmt.Fprintln(out, formatInfo(fmt.Sprintf("%d asset(s) flagged as missing", len(assets))))
				return nil
			})
		},
	}

	flags.register(cmd, false)
	return cmd
}

// bulkAction is a reset or prune of flagged assets. Called without apply
// it only returns the number of matching assets.
type bulkAction func(ctx context.Context, f registry.MissingFilter, apply bool) (int64, error)

func newIntegrityResetCmd() *cobra.Command {
	var flags integrityFlags

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the missing flag of matching assets",
		Long: `Clear the missing flag of matching assets without checking storage.
Use it after restoring files by hand. The next check flags them again if
they're still gone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *internal.Deps) error {
				return runBulk(cmd, flags, "Clear the missing flag of", "Cleared the missing flag of", d.Checker.Reset)
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}

func newIntegrityPruneCmd() *cobra.Command {
	var flags integrityFlags

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete the catalog entries of matching missing assets",
		Long: `Delete the catalog entries of assets flagged as missing. Owner stats
are updated accordingly. This can't be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *internal.Deps) error {
				return runBulk(cmd, flags, "Delete", "Deleted", d.Checker.Prune)
			})
		},
	}

	flags.register(cmd, true)
	return cmd
}

func runBulk(cmd *cobra.Command, flags integrityFlags, verb, done string, action bulkAction) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	f := flags.filter()

	n, err := action(ctx, f, false)
	if err != nil {
		return err
	}

	if n == 0 {
		fmt.Fprintln(out, formatInfo("No flagged assets match, nothing to do"))
		return nil
	}

	if !flags.yes {
		fmt.Fprintf(out, "%s %d asset(s)? Type 'yes' to continue: ", verb, n)

		ok, err := confirm(cmd.InOrStdin())
		if err != nil {
			return err
		}

		if !ok {
			fmt.Fprintln(out, formatWarning("Aborted, nothing was changed"))
			return nil
		}
	}

	n, err = action(ctx, f, true)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, formatSuccess(fmt.Sprintf("%s %d asset(s)", done, n)))
	return nil
}

// confirm reads a single line and accepts only "yes"
func confirm(in io.Reader) (bool, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation, %w", err)
	}

	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}
