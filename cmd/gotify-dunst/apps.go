package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/gotify-dunst/internal/config"
	"github.com/jmylchreest/gotify-dunst/internal/iconcache"
)

var appsOpts struct {
	fetch bool
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the server's applications and their cached icons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		icons := iconcache.New(config.CacheDir(), cfg.Server.BaseURL(), cfg.Server.Token,
			&http.Client{Timeout: cfg.HTTP.Timeout.Duration()}, logger)
		icons.SetUserAgent("gotify-dunst/" + version)

		apps, err := icons.ListApplications(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, app := range apps {
			if appsOpts.fetch {
				if _, err := icons.GetIcon(cmd.Context(), app.ID); err != nil {
					logger.Warn("failed to fetch icon", "app_id", app.ID, "error", err)
				}
			}
			printApp(out, app, icons.Path(app.ID))
		}
		return nil
	},
}

func init() {
	appsCmd.Flags().BoolVar(&appsOpts.fetch, "fetch", false, "Download icons that are not cached yet")
	rootCmd.AddCommand(appsCmd)
}

func printApp(w io.Writer, app iconcache.Application, iconPath string) {
	fmt.Fprintf(w, "%d: %s\n", app.ID, app.Name)
	info, err := os.Stat(iconPath)
	if err != nil {
		fmt.Fprintf(w, "  Icon: %s (not cached)\n", iconPath)
		return
	}
	fmt.Fprintf(w, "  Icon: %s (%s, cached %s)\n", iconPath,
		humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
}
