package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"
)

func FormatJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func FormatRoutersTable(data map[string]interface{}) error {
	routers, ok := data["routers"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid routers data")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHOST\tPORT\tENABLED\tCREATED")

	for _, r := range routers {
		router := r.(map[string]interface{})

		enabled := "no"
		if b, ok := router["enabled"].(bool); ok && b {
			enabled = "yes"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			formatNumber(router["id"]),
			getString(router["name"]),
			getString(router["host"]),
			formatNumber(router["port"]),
			enabled,
			formatTime(router["created_at"]),
		)
	}

	return w.Flush()
}

func FormatStatusTable(data map[string]interface{}) error {
	fmt.Printf("Status: %s\n", getString(data["status"]))
	if errMsg := getString(data["error"]); errMsg != "" {
		fmt.Printf("Error: %s\n", errMsg)
	}
	if identity := getString(data["identity"]); identity != "" {
		fmt.Printf("Identity: %s\n", identity)
	}
	if version := getString(data["version"]); version != "" {
		fmt.Printf("Version: %s\n", version)
	}
	if uptime := getString(data["uptime"]); uptime != "" {
		fmt.Printf("Uptime: %s\n", uptime)
	}
	if cpuLoad := getString(data["cpu_load"]); cpuLoad != "" {
		fmt.Printf("CPU Load: %s%%\n", cpuLoad)
	}
	if total, ok := data["total_memory"].(float64); ok && total > 0 {
		free, _ := data["free_memory"].(float64)
		fmt.Printf("Memory: %s free of %s\n", formatBytes(free), formatBytes(total))
	}
	fmt.Printf("Last Checked: %s\n", formatTime(data["last_checked"]))
	return nil
}

func FormatBandwidthTable(data map[string]interface{}) error {
	stats, ok := data["stats"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid bandwidth data")
	}

	fmt.Printf("Top talkers over %s:\n\n", getString(data["window"]))
	if len(stats) == 0 {
		fmt.Println("No traffic recorded in this window")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IP\tHOSTNAME\tMAC\tDOWNLOAD\tUPLOAD")

	for _, s := range stats {
		stat := s.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			getString(stat["ip_address"]),
			getString(stat["hostname"]),
			getString(stat["mac_address"]),
			formatBytes(stat["rx_bytes"]),
			formatBytes(stat["tx_bytes"]),
		)
	}

	return w.Flush()
}

func FormatSeriesTable(data map[string]interface{}) error {
	points, ok := data["points"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid series data")
	}

	fmt.Printf("Rate series for %s over %s:\n\n", getString(data["ip"]), getString(data["window"]))
	if len(points) == 0 {
		fmt.Println("No data in this window")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tDOWN Mbps\tUP Mbps\tTOTAL Mbps")

	for _, p := range points {
		point := p.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			formatTime(point["timestamp"]),
			formatMbps(point["download_mbps"]),
			formatMbps(point["upload_mbps"]),
			formatMbps(point["total_mbps"]),
		)
	}

	return w.Flush()
}

func FormatLogsTable(data map[string]interface{}) error {
	logs, ok := data["logs"].([]interface{})
	if !ok {
		return fmt.Errorf("invalid logs data")
	}

	if len(logs) == 0 {
		fmt.Println("No log entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOPICS\tMESSAGE")

	for _, l := range logs {
		entry := l.(map[string]interface{})
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			formatTime(entry["logged_at"]),
			getString(entry["topics"]),
			getString(entry["message"]),
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nShowing %s of %s entries\n", formatNumber(data["count"]), formatNumber(data["total"]))
	return nil
}

func getString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func formatNumber(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	default:
		return "0"
	}
}

func formatMbps(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.3f", f)
	}
	return "0.000"
}

func formatBytes(v interface{}) string {
	var bytes float64
	switch n := v.(type) {
	case float64:
		bytes = n
	case int64:
		bytes = float64(n)
	case int:
		bytes = float64(n)
	default:
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	for bytes >= 1024 && i < len(units)-1 {
		bytes /= 1024
		i++
	}

	return fmt.Sprintf("%.1f %s", bytes, units[i])
}

func formatTime(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
