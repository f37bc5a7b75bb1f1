package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/history"
	"github.com/yllada/teleport-manager/tui"
	"github.com/yllada/teleport-manager/vpn"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2EA043"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	labelStyle = lipgloss.NewStyle().Bold(true)
)

func renderResult(w io.Writer, res vpn.Result) {
	switch {
	case !res.Success:
		fmt.Fprintln(w, errorStyle.Render("✗ "+res.Message))
	case res.Soft():
		fmt.Fprintln(w, warnStyle.Render("! "+res.Message))
	default:
		fmt.Fprintln(w, okStyle.Render("✓ "+res.Message))
	}
}

func stateLabel(state common.TunnelState) string {
	return tui.StateStyle(state).Render(state.String())
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func renderStatus(w io.Writer, r vpn.StatusReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Tunnel"), stateLabel(r.State))
	fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Paired"), yesNo(r.Paired))
	fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Device token"), yesNo(r.HasToken))

	config := "missing"
	if r.Summary != nil {
		config = r.ConfigPath
	}
	fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Config"), config)
	if s := r.Summary; s != nil {
		fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Public key"), s.PublicKey)
		if len(s.Addresses) > 0 {
			fmt.Fprintf(tw, "%s\t%s\n", labelStyle.Render("Addresses"), strings.Join(s.Addresses, ", "))
		}
		for _, p := range s.Peers {
			endpoint := p.Endpoint
			if endpoint == "" {
				endpoint = "-"
			}
			fmt.Fprintf(tw, "%s\t%s via %s\n", labelStyle.Render("Peer"), common.ShortID(p.PublicKey), endpoint)
		}
	}
	tw.Flush()
}

func renderHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tRESULT\tDURATION\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Started.Local().Format(time.DateTime),
			e.Operation,
			outcomeLabel(e.Outcome),
			e.Duration.Round(time.Millisecond),
			e.Message,
		)
	}
	tw.Flush()
}

func outcomeLabel(o vpn.Outcome) string {
	switch {
	case !o.Success:
		return "failed"
	case o.ErrorKind != "":
		return o.ErrorKind
	default:
		return "ok"
	}
}

func timestamp() string {
	return time.Now().Format(time.TimeOnly)
}
