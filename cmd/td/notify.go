package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/notify"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification commands",
	}

	cmd.AddCommand(newNotifyServeCmd())
	cmd.AddCommand(newNotifyDigestCmd())
	return cmd
}

func newNotifyServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daily reminder scheduler until interrupted",
		Long:  "Posts the reminder about unassigned active tasks on the notify.digest_cron schedule. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNotifyServe(ctx, cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runNotifyServe(ctx context.Context, cmd *cobra.Command, configPath string) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	digest := notify.NewDigest(a.tasks, a.dispatcher, a.log)
	if err := digest.Schedule(a.cfg.Notify.DigestCron); err != nil {
		return err
	}
	digest.Start()
	a.log.Info("notify serve started", "digest_cron", a.cfg.Notify.DigestCron)
	fmt.Fprintf(cmd.OutOrStdout(), "Reminder scheduled (%s). Press Ctrl+C to stop.\n", a.cfg.Notify.DigestCron)

	<-ctx.Done()
	<-digest.Stop().Done()
	a.log.Info("notify serve stopped")
	return nil
}

func newNotifyDigestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the unassigned-task reminder now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			sent, err := notify.NewDigest(a.tasks, a.dispatcher, a.log).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(cmd.OutOrStdout(), "No unassigned active tasks.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reminder sent.")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
