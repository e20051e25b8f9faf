package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	tghelpers "github.com/m3rciful/aviabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary runs fn under handlerName and logs one handler.handled line.
func handleWithSummary(c tele.Context, handlerName string, fn func() error, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, handlerName)
	err := fn()

	status, outcome := "ok", "ok"
	if err != nil {
		status, outcome = "fail", "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.Info(ctx, logger.CompTG, "handler.handled", append(attrs, extras...)...)
	return err
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
