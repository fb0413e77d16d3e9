package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "ytgrab",
		Short: "ytgrab CLI - fetch video metadata and manage downloads",
		Long:  `A command-line client for a ytgrab server: inspect videos and playlists, start downloads, follow their progress and fetch the results.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ensureServer()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8001", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start a local server if not running")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(historyCmd)

	downloadCmd.Flags().StringP("format", "f", domain.DefaultFormat, "Container format (mp4, webm, mp3, m4a)")
	downloadCmd.Flags().StringP("quality", "q", domain.DefaultQuality, `Maximum height like "720p", or "best"`)
	downloadCmd.Flags().BoolP("wait", "w", false, "Wait for the download to finish")
	downloadCmd.Flags().StringP("output", "o", "", "With --wait, fetch the file into this directory")
	fetchCmd.Flags().StringP("output", "o", ".", "Directory to save the file in")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of records")
}

// ensureServer starts a local server if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart || !isLocalServer(serverURL) {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func client() *apiClient {
	return newAPIClient(serverURL)
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show video metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		meta, err := client().VideoInfo(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Title:    %s\n", meta.Title)
		fmt.Printf("Uploader: %s\n", meta.Uploader)
		fmt.Printf("Duration: %s\n", time.Duration(meta.Duration*float64(time.Second)).Round(time.Second))
		fmt.Printf("Views:    %d\n", meta.ViewCount)
		fmt.Printf("Uploaded: %s\n", meta.UploadDate)
		if len(meta.Formats) > 0 {
			fmt.Println("Formats:")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  ID\tEXT\tNOTE\tVCODEC\tACODEC\tSIZE")
			for _, f := range meta.Formats {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
					f.FormatID, f.Ext, f.FormatNote, f.VCodec, f.ACodec, humanBytes(f.Filesize))
			}
			w.Flush()
		}
		return nil
	},
}

var playlistCmd = &cobra.Command{
	Use:   "playlist [url]",
	Short: "List playlist entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		playlist, err := client().PlaylistInfo(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d entries)\n", playlist.Title, len(playlist.Entries))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tTITLE\tDURATION")
		for i, e := range playlist.Entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, e.ID, truncate(e.Title, 60),
				time.Duration(e.Duration*float64(time.Second)).Round(time.Second))
		}
		return w.Flush()
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Start a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		format, _ := cmd.Flags().GetString("format")
		quality, _ := cmd.Flags().GetString("quality")
		wait, _ := cmd.Flags().GetBool("wait")
		output, _ := cmd.Flags().GetString("output")

		c := client()
		id, err := c.StartDownload(ctx, args[0], format, quality)
		if err != nil {
			return err
		}
		fmt.Printf("Download started successfully!\n")
		fmt.Printf("ID: %s\n", id)

		if !wait {
			return nil
		}

		job, err := c.WaitForTerminal(ctx, id, time.Second, func(j *domain.Job) {
			fmt.Printf("\r%-11s %6.2f%%", j.Status, j.Progress)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		if job.Status == domain.StatusError {
			return fmt.Errorf("download failed: %s", job.Error)
		}

		if output == "" {
			fmt.Printf("Completed: %s\n", job.Title)
			return nil
		}
		path, err := c.Fetch(ctx, id, output)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show download status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		job, err := client().Status(ctx, args[0])
		if err != nil {
			return err
		}
		printJob(job)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		jobs, err := client().List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tFORMAT\tSTATUS\tPROGRESS\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%.2f%%\t%s\n",
				truncate(j.ID, 8),
				truncate(j.Title, 40),
				j.Format, j.Quality,
				j.Status,
				j.Progress,
				j.CreatedAt.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [id]",
	Short: "Save the file of a completed download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		output, _ := cmd.Flags().GetString("output")
		path, err := client().Fetch(ctx, args[0], output)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a download and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := client().Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Download deleted successfully")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed downloads recorded by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := client().History(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No history (history may be disabled on the server)")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tTITLE\tFORMAT\tURL")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\n",
				r.CreatedAt.Format(time.DateTime), truncate(r.Title, 40), r.Format, r.Quality, r.URL)
		}
		return w.Flush()
	},
}

func printJob(job *domain.Job) {
	fmt.Printf("Download Details:\n")
	fmt.Printf("  ID:       %s\n", job.ID)
	fmt.Printf("  Title:    %s\n", job.Title)
	fmt.Printf("  URL:      %s\n", job.URL)
	fmt.Printf("  Format:   %s (%s)\n", job.Format, job.Quality)
	fmt.Printf("  Status:   %s\n", job.Status)
	fmt.Printf("  Progress: %.2f%%\n", job.Progress)
	fmt.Printf("  Created:  %s\n", job.CreatedAt.Format(time.DateTime))
	if job.Filename != "" {
		fmt.Printf("  File:     %s\n", job.Filename)
	}
	if job.Error != "" {
		fmt.Printf("  Error:    %s\n", job.Error)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func humanBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
