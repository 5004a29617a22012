// Package main provides the command-line client for the proctoring API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"proctoring/internal/client"
	"proctoring/internal/poller"
)

const (
	defaultServer   = "http://localhost:5000"
	defaultInterval = 5 * time.Second
	defaultJitter   = 500 * time.Millisecond
)

var (
	serverURL string
	verbose   bool

	registerName     string
	registerExam     string
	registerPassword string

	watchInterval time.Duration
	watchJitter   time.Duration

	examName     string
	examPassword string
	examInterval time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "proctorctl",
		Short:        "Exam proctoring client",
		SilenceUsage: true,
	}
	server := os.Getenv("PROCTOR_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "API base URL (env PROCTOR_SERVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newStudentsCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newExamCmd())
	return rootCmd
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage students",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List students, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			students, err := client.New(serverURL).ListStudents(cmd.Context())
			if err != nil {
				return err
			}
			return printStudents(cmd.OutOrStdout(), students)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := client.New(serverURL).ResetStudents(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d students\n", n)
			return nil
		},
	}

	register := &cobra.Command{
		Use:   "register",
		Short: "Register a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := client.New(serverURL).CreateStudent(cmd.Context(), registerName, registerExam, registerPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", s.Name, s.ID)
			return nil
		},
	}
	register.Flags().StringVar(&registerName, "name", "", "student name")
	register.Flags().StringVar(&registerExam, "exam", "", "exam name")
	register.Flags().StringVar(&registerPassword, "password", "", "password (defaults to the name)")
	_ = register.MarkFlagRequired("name")
	_ = register.MarkFlagRequired("exam")

	cmd.AddCommand(list, reset, register)
	return cmd
}

func printStudents(w io.Writer, students []client.Student) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXAM\tSTATUS\tELAPSED\tRISK")
	for _, s := range students {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Exam, s.Status, s.TimeElapsed, s.RiskScore)
	}
	return tw.Flush()
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the student list and print status changes",
		Args:  cobra.NoArgs,
		RunE:  runWatchCmd,
	}
	cmd.Flags().DurationVar(&watchInterval, "interval", defaultInterval, "poll interval")
	cmd.Flags().DurationVar(&watchJitter, "jitter", defaultJitter, "random delay added to each interval")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	api := client.New(serverURL)
	logger := newLogger(cmd.ErrOrStderr())
	out := cmd.OutOrStdout()
	last := map[string]client.Student{}

	p := poller.New(poller.Config{
		Name:      "watch",
		Interval:  watchInterval,
		Jitter:    watchJitter,
		Immediate: true,
		Logger:    logger,
	}, func(ctx context.Context) error {
		students, err := api.ListStudents(ctx)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(students))
		for _, s := range students {
			seen[s.ID] = true
			prev, ok := last[s.ID]
			switch {
			case !ok:
				fmt.Fprintf(out, "%s  + %s (%s) %s risk=%d\n", stamp(), s.Name, s.Exam, s.Status, s.RiskScore)
			case prev.Status != s.Status || prev.RiskScore != s.RiskScore:
				fmt.Fprintf(out, "%s  ~ %s %s -> %s risk=%d\n", stamp(), s.Name, prev.Status, s.Status, s.RiskScore)
			}
			last[s.ID] = s
		}
		for id, s := range last {
			if !seen[id] {
				fmt.Fprintf(out, "%s  - %s\n", stamp(), s.Name)
				delete(last, id)
			}
		}
		return nil
	})
	p.Run(ctx)
	logger.Debug("watch stopped", "skipped_ticks", p.Skipped())
	return nil
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

func newExamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Sit an exam: log in, go active, and sync the clock until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runExamCmd,
	}
	cmd.Flags().StringVar(&examName, "name", "", "student name")
	cmd.Flags().StringVar(&examPassword, "password", "", "password")
	cmd.Flags().DurationVar(&examInterval, "interval", defaultInterval, "sync interval")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runExamCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	api := client.New(serverURL)
	logger := newLogger(cmd.ErrOrStderr())

	sess, err := client.Login(ctx, api, examName, examPassword)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s, err := sess.Start(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("start exam: %w", err)
	}
	logger.Info("exam started", "student_id", sess.StudentID, "exam", s.Exam, "status", s.Status)

	p := poller.New(poller.Config{
		Name:     "exam-sync",
		Interval: examInterval,
		Logger:   logger,
	}, func(ctx context.Context) error {
		sess.Tick(time.Now())
		if err := sess.Sync(ctx); err != nil {
			return err
		}
		logger.Debug("synced", "elapsed", sess.Elapsed())
		return nil
	})
	p.Run(ctx)

	endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer endCancel()
	sess.Tick(time.Now())
	if err := sess.Sync(endCtx); err != nil {
		logger.Warn("final sync failed", "err", err)
	}
	s, err = sess.End(endCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("end exam: %w", err)
	}
	logger.Info("exam ended", "elapsed", sess.Elapsed(), "status", s.Status)
	return nil
}
