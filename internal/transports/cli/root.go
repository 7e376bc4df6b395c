package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dockman/internal/modules/docker"
	"dockman/internal/modules/host"
	"dockman/internal/storage"
)

// Service операции агента, доступные из командной строки.
type Service interface {
	Status(ctx context.Context) docker.Status
	System(ctx context.Context) (host.Details, error)
	History(ctx context.Context, q storage.OperationQuery) ([]storage.OperationRecord, error)
	Run(ctx context.Context, op docker.Operation) docker.Result
	Serve(ctx context.Context) error
	Close() error
}

// Opener строит Service по пути к конфигу и флагу dry-run.
type Opener func(configPath string, dryRun bool) (Service, error)

type options struct {
	configPath string
	dryRun     bool
	open       Opener
}

func (o *options) service() (Service, error) {
	return o.open(o.configPath, o.dryRun)
}

// New создает корневую CLI-команду.
func New(open Opener, version string) *cobra.Command {
	opts := &options{open: open}
	root := &cobra.Command{
		Use:           "dockman",
		Short:         "Управление установкой Docker на узле",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "print package manager commands instead of running them")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newSystemCmd(opts))
	root.AddCommand(newOperationCmd(opts, docker.OpInstall, "Установить Docker"))
	root.AddCommand(newOperationCmd(opts, docker.OpUpdate, "Обновить Docker"))
	root.AddCommand(newOperationCmd(opts, docker.OpUninstall, "Удалить Docker вместе с данными"))
	root.AddCommand(newHistoryCmd(opts))

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API и планировщик",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := svc.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Проверить, установлен ли Docker",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			st := svc.Status(cmd.Context())
			if asJSON {
				return encodeJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			if st.Installed {
				version := ""
				if st.Version != nil {
					version = *st.Version
				}
				color.New(color.FgGreen).Fprintf(out, "installed: %s\n", version)
			} else {
				color.New(color.FgYellow).Fprintln(out, "not installed")
			}
			fmt.Fprintf(out, "os: %s\n", st.OS)
			fmt.Fprintf(out, "requires privileges: %t\n", st.RequiresPrivileges)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSystemCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Показать сведения об узле",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			details, err := svc.System(ctx)
			if err != nil {
				return fmt.Errorf("system info: %w", err)
			}
			return encodeJSON(cmd.OutOrStdout(), details)
		},
	}
}

func newOperationCmd(opts *options, op docker.Operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(op),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res := svc.Run(cmd.Context(), op)
			if !res.Success {
				color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), res.Message)
				return fmt.Errorf("%s failed: %s", op, res.Message)
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		action string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать журнал операций",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			recs, err := svc.History(cmd.Context(), storage.OperationQuery{Action: action, Limit: limit})
			if err != nil {
				return err
			}
			if asJSON {
				return encodeJSON(cmd.OutOrStdout(), recs)
			}
			return printHistory(cmd.OutOrStdout(), recs, time.Now())
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max records")
	cmd.Flags().StringVar(&action, "action", "", "filter by action (install, update, uninstall)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printHistory(w io.Writer, recs []storage.OperationRecord, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tACTION\tSOURCE\tRESULT\tTOOK\tMESSAGE")
	for _, rec := range recs {
		result := "ok"
		if !rec.Success {
			result = rec.ErrorCode
			if result == "" {
				result = "failed"
			}
		}
		fmt.Fprintf(tw, "%s ago\t%s\t%s\t%s\t%s\t%s\n",
			units.HumanDuration(now.Sub(rec.TS)),
			rec.Action,
			rec.Source,
			result,
			(time.Duration(rec.DurationMS) * time.Millisecond).String(),
			rec.Message,
		)
	}
	return tw.Flush()
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
