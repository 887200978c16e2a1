package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/auth"
	"github.com/nerrad567/gray-logic-installer/internal/hardware"
	"github.com/nerrad567/gray-logic-installer/internal/snapshot"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		units  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "scan CENTRAL DIRECTION",
		Short: "List free capacity on a central's input or output ports",
		Example: `  glconsole scan central-1 input
  glconsole scan central-1 output --units 2 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := hardware.ParseDirection(args[1])
			if err != nil {
				return err
			}
			svc, release, err := a.oneShotService(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ports, err := svc.Scan(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}

			var suggestion *allocator.Suggestion
			if units > 0 {
				if s, ok := allocator.Suggest(ports, units); ok {
					suggestion = &s
				}
			}
			if asJSON {
				return writeScanJSON(a.out, ports, suggestion)
			}
			return writeScanTable(a.out, ports, suggestion, units)
		},
	}
	cmd.Flags().IntVar(&units, "units", 0, "key units the new device needs; prints a suggested port and slot")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeScanJSON(w io.Writer, ports []allocator.PortAvailability, s *allocator.Suggestion) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Ports      []allocator.PortAvailability `json:"ports"`
		Suggestion *allocator.Suggestion        `json:"suggestion,omitempty"`
	}{ports, s})
}

func writeScanTable(w io.Writer, ports []allocator.PortAvailability, s *allocator.Suggestion, units int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tLABEL\tSTATE\tKEYS FREE\tNEXT SLOT\tOCCUPIED")
	for _, p := range ports {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
			p.Port, p.Label, portState(p), p.KeysAvailable, p.KeysLimit, nextSlot(p), joinInts(p.SequenceOccupied))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	switch {
	case units <= 0:
	case s == nil:
		fmt.Fprintf(w, "\nno port has room for %d key unit(s)\n", units)
	default:
		fmt.Fprintf(w, "\nsuggested: port %d, slot %d (%d key unit(s))\n", s.Port, s.Slot, s.Units)
	}
	return nil
}

func portState(p allocator.PortAvailability) string {
	switch {
	case p.Malformed:
		return "malformed"
	case p.Available:
		return "available"
	default:
		return "full"
	}
}

func nextSlot(p allocator.PortAvailability) string {
	if len(p.Sequence) == 0 {
		return "-"
	}
	return strconv.Itoa(p.Sequence[0].Index)
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate CENTRAL DIRECTION DEVICE",
		Short: "Print the port and sequence slot a device occupies",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			centralID, deviceID := args[0], args[2]
			dir, err := hardware.ParseDirection(args[1])
			if err != nil {
				return err
			}
			svc, release, err := a.oneShotService(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			p, found, err := svc.Locate(cmd.Context(), deviceID, centralID, dir)
			if err != nil {
				return fmt.Errorf("locating %s: %w", deviceID, err)
			}
			if !found {
				_, err = fmt.Fprintf(a.out, "%s is not placed on %s %s\n", deviceID, centralID, dir)
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s: port %d, slot %d\n", deviceID, p.Port, p.Slot)
			return err
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FIXTURE",
		Short: "Load centrals from a YAML, TOML or JSON fixture into the SQLite replica",
		Long: `Replaces every central named in the fixture with its ports, slots and
keys. Centrals not in the fixture are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := snapshot.LoadFixture(args[0])
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // written through a transaction

			centrals := fx.Centrals()
			if err := snapshot.Import(cmd.Context(), db, centrals); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "imported %d central(s) into %s\n", len(centrals), db.Path())
			return err
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage the SQLite replica schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			ctx := cmd.Context()

			db, err := openReplica(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // schema changes are committed per migration

			switch action {
			case "up":
				err = db.Migrate(ctx)
			case "down":
				err = db.Rollback(ctx)
			}
			if err != nil {
				return err
			}

			applied, pending, err := db.Status(ctx)
			if err != nil {
				return err
			}
			for _, m := range applied {
				fmt.Fprintf(a.out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
			}
			for _, m := range pending {
				fmt.Fprintf(a.out, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API access token for a technician",
		Example: `  glconsole token --subject tech-7 --role installer
  glconsole token --subject wallboard --role viewer --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			secret := a.cfg.Security.JWT.Secret
			if secret == "" {
				return errors.New("security.jwt.secret is not set, tokens would not be checked")
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = a.cfg.AccessTokenTTL()
			}
			token, err := auth.GenerateAccessToken(auth.Identity{Subject: subject, Role: r}, []byte(secret), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is for")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleInstaller), "viewer, installer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
