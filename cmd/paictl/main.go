// paictl is the operator CLI for the job-management REST API.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lanya16/pai/internal/job"
	"github.com/lanya16/pai/internal/launcher"
)

var (
	serverURL string
	userName  string
	apiToken  string

	specFile   string
	userFilter string
)

var rootCmd = &cobra.Command{
	Use:           "paictl",
	Short:         "Manage distributed jobs on the cluster",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("PAI_SERVER", "http://localhost:9186"), "rest-server base URL")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", envOr("PAI_USER", os.Getenv("USER")), "calling user name")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("PAI_TOKEN"), "API bearer token")

	submitCmd.Flags().StringVarP(&specFile, "file", "f", "", "job spec file (YAML). Required.")
	_ = submitCmd.MarkFlagRequired("file")

	listCmd.Flags().StringVar(&userFilter, "owner", "", "only list jobs owned by this user")

	rootCmd.AddCommand(submitCmd, listCmd, getCmd, stopCmd, resumeCmd, deleteCmd, configCmd, sshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func client() *apiClient {
	return newAPIClient(serverURL, userName, apiToken)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job from a YAML spec file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(specFile)
		if err != nil {
			return err
		}
		var spec job.Spec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return fmt.Errorf("parse job spec: %w", err)
		}
		if err := client().submitJob(cmd.Context(), &spec); err != nil {
			return err
		}
		fmt.Printf("Job %s submitted\n", color.CyanString(spec.FullName()))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := client().listJobs(cmd.Context(), userFilter)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tUSER\tVC\tSTATE\tRETRIES\tCREATED")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.Name, s.UserName, s.VirtualCluster,
				colorState(s.State), s.TotalRetries, formatTimestamp(s.CreatedTime))
		}
		return w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Show the detail of one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := client().getJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDetail(detail)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().setExecutionType(cmd.Context(), args[0], launcher.ExecutionStop); err != nil {
			return err
		}
		fmt.Printf("Job %s stopping\n", args[0])
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume NAME",
	Short: "Resume a stopped job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().setExecutionType(cmd.Context(), args[0], launcher.ExecutionStart); err != nil {
			return err
		}
		fmt.Printf("Job %s resuming\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().deleteJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Job %s deleted\n", args[0])
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config NAME",
	Short: "Print the job-spec snapshot persisted at submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := client().getJobConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(content)
		return err
	},
}

var sshCmd = &cobra.Command{
	Use:   "ssh NAME",
	Short: "Show SSH endpoints and key-pair location for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := client().getSSHInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if info.KeyPair != nil {
			fmt.Printf("Key pair: %s (%s / %s)\n",
				info.KeyPair.FolderPath, info.KeyPair.PrivateKeyFileName, info.KeyPair.PublicKeyFileName)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTAINER\tIP\tSSH PORT")
		for _, c := range info.Containers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.IP, c.SSHPort)
		}
		return w.Flush()
	},
}

func printDetail(d *job.Detail) {
	fmt.Printf("Name:            %s\n", d.Name)
	fmt.Printf("User:            %s\n", d.UserName)
	fmt.Printf("Virtual cluster: %s\n", d.VirtualCluster)
	fmt.Printf("State:           %s\n", colorState(d.State))
	fmt.Printf("Retries:         %d (platform %d, resource %d, user %d)\n",
		d.Retries.Total, d.Retries.Platform, d.Retries.Resource, d.Retries.User)
	fmt.Printf("Created:         %s\n", formatTimestamp(d.CreatedTime))
	if d.CompletedTime > 0 {
		fmt.Printf("Completed:       %s\n", formatTimestamp(d.CompletedTime))
	}
	if d.TrackingURL != "" {
		fmt.Printf("Tracking URL:    %s\n", d.TrackingURL)
	}

	if diag := d.ExitDiagnosis; diag != nil {
		fmt.Println()
		if diag.Code != nil {
			fmt.Printf("Exit code:       %d\n", *diag.Code)
		}
		if diag.Spec != nil {
			fmt.Printf("Exit phrase:     %s (%s)\n", diag.Spec.Phrase, diag.Spec.Category)
			if diag.Spec.Reason != "" {
				fmt.Printf("Reason:          %s\n", diag.Spec.Reason)
			}
			for _, s := range diag.Spec.Solution {
				fmt.Printf("Solution:        %s\n", s)
			}
		}
		if diag.Trigger != nil {
			fmt.Printf("Triggered by:    %s\n", formatTrigger(diag.Trigger))
		}
		if diag.Segments.Runtime != nil {
			fmt.Printf("Runtime report:  %s\n", diag.Segments.Runtime.Reason)
		}
	}

	for _, role := range d.TaskRoles {
		fmt.Printf("\nTask role %s:\n", role.Name)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  INDEX\tSTATE\tIP\tEXIT CODE")
		for _, task := range role.Tasks {
			exit := ""
			if task.ExitCode != nil {
				exit = strconv.Itoa(*task.ExitCode)
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", task.Index, string(task.State), task.ContainerIP, exit)
		}
		w.Flush()
	}
}

func formatTrigger(t *job.ExitTrigger) string {
	parts := make([]string, 0, 3)
	if t.TaskRoleName != "" {
		name := t.TaskRoleName
		if t.TaskIndex != nil {
			name += "[" + strconv.Itoa(*t.TaskIndex) + "]"
		}
		parts = append(parts, name)
	}
	if t.Message != "" {
		parts = append(parts, t.Message)
	}
	return strings.Join(parts, ": ")
}

func colorState(s job.State) string {
	switch s {
	case job.StateRunning:
		return color.CyanString(string(s))
	case job.StateSucceeded:
		return color.GreenString(string(s))
	case job.StateFailed:
		return color.RedString(string(s))
	case job.StateStopped:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func formatTimestamp(millis int64) string {
	if millis <= 0 {
		return "-"
	}
	return time.UnixMilli(millis).Local().Format("2006-01-02 15:04:05")
}
