package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	httpserver "github.com/webitel/im-realtime-gateway/infra/server/http"
	"github.com/webitel/im-realtime-gateway/internal/domain/model"
)

const historySize = 60

func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live dashboard of a running node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://localhost:8080",
				Usage: "Base URL of the node",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: time.Second,
				Usage: "Polling interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runTop(c.Context, c.String("addr"), c.Duration("interval"))
		},
	}
}

// fetchStats reads one snapshot from the node's stats endpoint.
func fetchStats(ctx context.Context, client *http.Client, base string) (*model.HubStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+httpserver.PathStats, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats: %s", resp.Status)
	}
	st := &model.HubStats{}
	if err := json.NewDecoder(resp.Body).Decode(st); err != nil {
		return nil, fmt.Errorf("stats: decode: %w", err)
	}
	return st, nil
}

type dashboard struct {
	summary *widgets.Paragraph
	rooms   *widgets.Table
	spark   *widgets.Sparkline
	group   *widgets.SparklineGroup
}

func newDashboard(base string) *dashboard {
	d := &dashboard{
		summary: widgets.NewParagraph(),
		rooms:   widgets.NewTable(),
		spark:   widgets.NewSparkline(),
	}
	d.summary.Title = " " + base + " "
	d.rooms.Title = " rooms "
	d.rooms.RowSeparator = false
	d.spark.Title = "connections"
	d.spark.LineColor = ui.ColorGreen
	d.group = widgets.NewSparklineGroup(d.spark)
	d.group.Title = " history "
	d.layout()
	return d
}

func (d *dashboard) layout() {
	w, h := ui.TerminalDimensions()
	d.summary.SetRect(0, 0, w, 7)
	d.group.SetRect(0, 7, w, 15)
	d.rooms.SetRect(0, 15, w, h)
}

func (d *dashboard) update(st *model.HubStats, err error) {
	if err != nil {
		d.summary.Text = "[error](fg:red) " + err.Error()
		return
	}
	d.summary.Text = fmt.Sprintf(
		"node      %s\nuptime    %s\nusers     %d\nsockets   %d\nchannels  %d    pending grace %d",
		st.NodeID, st.Uptime.Truncate(time.Second), st.TotalUsers, st.TotalConnections, st.Channels, st.PendingGrace)

	d.spark.Data = append(d.spark.Data, float64(st.TotalConnections))
	if len(d.spark.Data) > historySize {
		d.spark.Data = d.spark.Data[len(d.spark.Data)-historySize:]
	}

	rows := [][]string{{"room", "sockets", "open"}}
	for _, r := range st.Rooms {
		rows = append(rows, []string{r.RoomID, fmt.Sprint(r.Sockets), fmt.Sprint(r.OpenSockets)})
	}
	d.rooms.Rows = rows
}

func (d *dashboard) render() { ui.Render(d.summary, d.group, d.rooms) }

func runTop(ctx context.Context, base string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("top: init terminal: %w", err)
	}
	defer ui.Close()

	client := &http.Client{Timeout: interval}
	d := newDashboard(base)

	poll := func() {
		st, err := fetchStats(ctx, client, base)
		d.update(st, err)
		d.render()
	}
	poll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				d.layout()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			poll()
		}
	}
}
