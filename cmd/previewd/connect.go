package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandview/previewd/internal/broadcast"
	"github.com/sandview/previewd/internal/config"
	"github.com/sandview/previewd/internal/reload"
	"github.com/sandview/previewd/internal/ui"
)

// connectCmd attaches the native reload client to a running server's HMR
// channel and prints broadcast traffic. Useful for watching hot-reload
// behavior without a browser.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Monitor a running preview server's HMR channel",
	Long: `Attach to a running preview server's hot-reload channel and print
every broadcast as it arrives: css/js updates, full-reload requests, and
server errors. Reconnects with bounded backoff when the server goes away.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringP("config", "c", config.ConfigFileName, "Path to the project config file")
	connectCmd.Flags().String("url", "", "Channel URL (overrides the config)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	channelURL, _ := cmd.Flags().GetString("url")

	opts := reload.Options{
		Applier:         terminalApplier{},
		LastSeenVersion: -1,
	}
	if channelURL == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			ui.PrintError("Failed to load config: %v", err)
			return err
		}
		channelURL = cfg.ChannelURL(cfg.Project.Name)
		opts.ReloadDebounce = cfg.HMR.ReloadDebounce()
		opts.MaxAttempts = cfg.HMR.MaxReconnectAttempts
	}
	opts.ChannelURL = channelURL

	ui.PrintTitle("previewd channel monitor")
	ui.PrintLink("Channel", channelURL)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := reload.NewClient(opts)
	client.Connect(ctx)
	<-ctx.Done()
	client.Close()

	ui.Println()
	ui.PrintDim("Disconnected")
	return nil
}

// terminalApplier renders broadcast effects as terminal output instead of
// mutating a page.
type terminalApplier struct{}

func (terminalApplier) ApplyCSS(path string, timestamp int64) {
	ui.PrintInfo("css update: %s", path)
}

func (terminalApplier) ApplyJS(path string, timestamp int64) {
	ui.PrintInfo("js update: %s", path)
}

func (terminalApplier) Navigate(lastSeenVersion int64) {
	ui.PrintWarning("full reload requested (version %d)", lastSeenVersion)
}

func (terminalApplier) ShowServerError(payload broadcast.ErrorPayload) {
	ui.PrintError("%s error: %s", payload.Type, payload.Message)
}
