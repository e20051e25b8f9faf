package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/aviabot/core/buildinfo"
	"github.com/m3rciful/aviabot/core/telegram/helpers"
	"github.com/m3rciful/aviabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Report is the runtime snapshot served by /stats and the status endpoint.
type Report struct {
	Version  string                   `json:"version"`
	Sessions int                      `json:"sessions"`
	Airlines AirlinesReport           `json:"airlines"`
	Sender   SenderReport             `json:"sender"`
	Updates  middleware.StatsSnapshot `json:"updates"`
}

type AirlinesReport struct {
	State string `json:"state"`
	Size  int    `json:"size"`
}

type SenderReport struct {
	Sent   uint64 `json:"sent"`
	Errors uint64 `json:"errors"`
}

// Report implements status.Reporter.
func (h *Handlers) Report(ctx context.Context) (any, error) {
	return h.snapshot(ctx)
}

func (h *Handlers) snapshot(ctx context.Context) (Report, error) {
	sessions, err := h.machine.SessionCount(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count sessions: %w", err)
	}
	r := Report{
		Version:  buildinfo.Summary(),
		Sessions: sessions,
		Updates:  h.stats.Snapshot(),
	}
	if h.directory != nil {
		r.Airlines = AirlinesReport{State: string(h.directory.State()), Size: h.directory.Size()}
	}
	if h.dispatcher != nil {
		r.Sender = SenderReport{Sent: h.dispatcher.SentCount(), Errors: h.dispatcher.ErrorCount()}
	}
	return r, nil
}

func (h *Handlers) onStats(c tele.Context) error {
	r, err := h.snapshot(helpers.BuildContext(c))
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "version: %s\n", r.Version)
	fmt.Fprintf(&b, "sessions: %d\n", r.Sessions)
	fmt.Fprintf(&b, "airlines: %s (%d)\n", r.Airlines.State, r.Airlines.Size)
	fmt.Fprintf(&b, "sender: sent=%d errors=%d\n", r.Sender.Sent, r.Sender.Errors)
	fmt.Fprintf(&b, "updates: messages=%d callbacks=%d rate_limited=%d panics=%d",
		r.Updates.Messages, r.Updates.Callbacks, r.Updates.RateLimited, r.Updates.Panics)
	return helpers.SendText(c, b.String())
}
