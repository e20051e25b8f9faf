package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/aviabot/core/logger"
	tghelpers "github.com/m3rciful/aviabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return Recover(nil)(next)
}

// Recover is RecoverMiddleware with panic counting.
func Recover(stats *Stats) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stats.incPanics()
					logger.Error(tghelpers.BuildContext(c), logger.CompTG, "panic",
						slog.String("status", "fail"),
						slog.Any("err", r),
						slog.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("telegram: handler panic: %v", r)
				}
			}()
			return next(c)
		}
	}
}
