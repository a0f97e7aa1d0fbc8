package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "jobs [request-id]",
		Short: "List generation jobs or show one by request id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, job)
			}

			jobs, err := client.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, jobs)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "no generation jobs recorded")
				return nil
			}
			if stdoutIsTerminal() {
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					detail := job.ResultURL
					if job.ErrorReason != "" {
						detail = job.ErrorReason
					}
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.TokenID,
						job.Artifact,
						job.Status,
						strconv.Itoa(job.Attempts),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Token", "Artifact", "Status", "Attempts", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			}
			for _, job := range jobs {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%d\n", job.ID, job.TokenID, job.Artifact, job.Status, job.Attempts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit jobs as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable at %s: %w", ctx.bindAddress(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon %s (%s environment) at %s\n",
				health.Status, health.Environment, ctx.bindAddress())
			return nil
		},
	}
}
