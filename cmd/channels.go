package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zjrosen/erwt/internal/channel"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Start the host and list its main-side channels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		host, cleanup, err := startHost(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderChannels(host.Dispatcher().ListEvents()))
		return err
	},
}

func init() {
	rootCmd.AddCommand(channelsCmd)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	stoppedStyle = cellStyle.Foreground(lipgloss.Color("#FF8787"))
)

// renderChannels draws one row per channel in registration order.
func renderChannels(infos []channel.ChannelInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CHANNEL", "STARTED", "CALLBACKS")

	for _, info := range infos {
		t.Row(info.Name, strconv.FormatBool(info.Started), strconv.Itoa(len(info.Callbacks)))
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 1 && row >= 0 && row < len(infos) && !infos[row].Started {
			return stoppedStyle
		}
		return cellStyle
	})
	return t.String()
}
