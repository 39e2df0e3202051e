package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/tikwatch/tikwatch/internal/cli"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	outputJSON bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tikctl",
	Short: "CLI for the tikwatch bandwidth collector",
	Long: `tikctl is a command-line interface for the tikwatch collector API.

It provides commands to manage monitored MikroTik routers and query
per-host bandwidth usage, rate series, and router logs.`,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check collector service health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cli.NewClient(serverURL)
		data, err := client.Health()
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		fmt.Printf("Status: %s\n", data["status"])
		fmt.Printf("Database: %s\n", data["database"])
		return nil
	},
}

var routersCmd = &cobra.Command{
	Use:   "routers",
	Short: "Manage monitored routers",
}

var listRoutersCmd = &cobra.Command{
	Use:   "list",
	Short: "List all routers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := cli.NewClient(serverURL)
		data, err := client.ListRouters()
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		return cli.FormatRoutersTable(data)
	},
}

var addRouterCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a router to monitor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		client := cli.NewClient(serverURL)
		data, err := client.AddRouter(args[0], host, port, username, password)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		fmt.Printf("Added router %s with ID %.0f\n", args[0], data["id"])
		return nil
	},
}

var removeRouterCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a router and its stored data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}

		client := cli.NewClient(serverURL)
		if err := client.RemoveRouter(id); err != nil {
			return err
		}

		fmt.Printf("Removed router %d\n", id)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show the latest poll status for a router",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}

		client := cli.NewClient(serverURL)
		data, err := client.RouterStatus(id)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		return cli.FormatStatusTable(data)
	},
}

var bandwidthCmd = &cobra.Command{
	Use:   "bandwidth [id]",
	Short: "Show per-host bandwidth totals for a router",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}
		window, _ := cmd.Flags().GetString("window")

		client := cli.NewClient(serverURL)
		data, err := client.Bandwidth(id, window)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		return cli.FormatBandwidthTable(data)
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series [id]",
	Short: "Show the Mbps rate series for one IP on a router",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}
		ip, _ := cmd.Flags().GetString("ip")
		window, _ := cmd.Flags().GetString("window")
		if ip == "" {
			return fmt.Errorf("--ip is required")
		}

		client := cli.NewClient(serverURL)
		data, err := client.Series(id, ip, window)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		return cli.FormatSeriesTable(data)
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "Show recent log entries collected from a router",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client := cli.NewClient(serverURL)
		data, err := client.Logs(id, limit, offset)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		return cli.FormatLogsTable(data)
	},
}

var retentionCmd = &cobra.Command{
	Use:   "retention [id] [days]",
	Short: "Set the sample retention window for a router",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}
		days, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid days %q", args[1])
		}

		client := cli.NewClient(serverURL)
		data, err := client.SetRetention(id, days)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		fmt.Printf("Retention set to %d days, %.0f expired rows deleted\n", days, data["deleted"])
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep [id]",
	Short: "Delete samples and logs older than the retention window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRouterID(args[0])
		if err != nil {
			return err
		}

		client := cli.NewClient(serverURL)
		data, err := client.Sweep(id)
		if err != nil {
			return err
		}

		if outputJSON {
			return cli.FormatJSON(data)
		}

		fmt.Printf("Deleted %.0f expired rows\n", data["deleted"])
		return nil
	},
}

func parseRouterID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid router id %q", arg)
	}
	return id, nil
}

func init() {
	// Check for environment variable, fallback to default
	defaultServerURL := os.Getenv("TIKWATCH_URL")
	if defaultServerURL == "" {
		defaultServerURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "Collector server URL")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "Output in JSON format")

	addRouterCmd.Flags().String("host", "", "Router address")
	addRouterCmd.Flags().Int("port", 8728, "RouterOS API port")
	addRouterCmd.Flags().String("username", "admin", "RouterOS API username")
	addRouterCmd.Flags().String("password", "", "RouterOS API password")
	addRouterCmd.MarkFlagRequired("host")

	bandwidthCmd.Flags().StringP("window", "w", "1h", "Time window (1m 5m 15m 30m 1h 3h 6h 12h 24h 3d 1w)")
	seriesCmd.Flags().String("ip", "", "Host IP address")
	seriesCmd.Flags().StringP("window", "w", "1h", "Time window (1m 5m 15m 30m 1h 3h 6h 12h 24h 3d 1w)")

	logsCmd.Flags().IntP("limit", "l", 50, "Number of log entries to retrieve (max: 1000)")
	logsCmd.Flags().Int("offset", 0, "Number of log entries to skip")

	routersCmd.AddCommand(listRoutersCmd)
	routersCmd.AddCommand(addRouterCmd)
	routersCmd.AddCommand(removeRouterCmd)

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(routersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(bandwidthCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(sweepCmd)
}
