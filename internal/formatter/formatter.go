// Package formatter рендерит сигналы в HTML-сообщения Telegram.
package formatter

import (
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"signal_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	CallbackRefresh = "refresh_signal"
	CallbackStats   = "stats"
)

var expiry = map[string]string{
	"M1":  "5 min",
	"M5":  "15 min",
	"M15": "45 min",
	"M30": "1.5 hours",
	"H1":  "3 hours",
	"H4":  "12 hours",
	"D1":  "2 days",
}

// ConfidenceLabel: >=85 HIGH, >=60 MEDIUM, иначе LOW.
func ConfidenceLabel(c int) string {
	switch {
	case c >= 85:
		return fmt.Sprintf("🟢 HIGH (%d%%)", c)
	case c >= 60:
		return fmt.Sprintf("🟡 MEDIUM (%d%%)", c)
	default:
		return fmt.Sprintf("🔴 LOW (%d%%)", c)
	}
}

func ExpiryByTimeframe(tf string) string {
	if v, ok := expiry[strings.ToUpper(tf)]; ok {
		return v
	}
	return "Unknown"
}

// Message — основное сообщение в канал.
func Message(sig models.Signal) string {
	asset := sig.Asset
	if asset == "" {
		asset = "EUR/USD"
	}
	tf := sig.Timeframe
	if tf == "" {
		tf = "M15"
	}
	strategy := sig.Strategy
	if strategy == "" {
		strategy = "Rule Engine"
	}

	dirEmoji := "🔴"
	if sig.Direction == models.SideBuy {
		dirEmoji = "🟢"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>📊 %s | %s</b>\n", html.EscapeString(asset), html.EscapeString(tf))
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", dirEmoji, sig.Direction)
	fmt.Fprintf(&b, "🎯 <b>Entry:</b> %s\n", sig.Entry)
	fmt.Fprintf(&b, "💰 <b>TP:</b> %s\n", price(sig.TP))
	fmt.Fprintf(&b, "🛑 <b>SL:</b> %s\n\n", price(sig.SL))
	fmt.Fprintf(&b, "⭐ <b>Confidence:</b> %s", ConfidenceLabel(sig.Confidence))

	if v := sig.Volatility; v != nil {
		state := v.State
		if state == "" {
			state = "normal"
		}
		fmt.Fprintf(&b, "\n📉 <b>Volatility:</b> %s%% (%s)", price(v.ATRPercent), capitalize(state))
	}

	fmt.Fprintf(&b, "\n⏳ <b>Expires:</b> %s\n", ExpiryByTimeframe(tf))
	fmt.Fprintf(&b, "🧠 <b>Strategy:</b> %s\n\n", html.EscapeString(strategy))
	b.WriteString("⚠️ <i>Educational purpose only</i>")

	return b.String()
}

// MessageWithID — то же с signal_id сверху.
func MessageWithID(sig models.Signal) string {
	id := sig.SignalID
	if id == "" {
		id = "N/A"
	}
	return fmt.Sprintf("🆔 <code>%s</code>\n\n%s", html.EscapeString(id), Message(sig))
}

// ExecutionReport — машиночитаемый отчёт в <code>.
func ExecutionReport(sig models.Signal) string {
	id := sig.SignalID
	if id == "" {
		id = "N/A"
	}
	mode := sig.Mode
	if mode == "" {
		mode = string(models.ModeLive)
	}

	lines := []string{
		"🚀 EXECUTION_REPORT",
		"ID: " + id,
		"ASSET: " + sig.Asset,
		"DIR: " + string(sig.Direction),
		"ENTRY: " + sig.Entry.String(),
		"TP: " + price(sig.TP),
		"SL: " + price(sig.SL),
		"CONF: " + strconv.Itoa(sig.Confidence) + "%",
		"MODE: " + mode,
		"TIME: " + sig.Time(),
		"---",
	}
	return "<code>" + html.EscapeString(strings.Join(lines, "\n")) + "</code>"
}

// StatusMessage — ответ на /signal, когда исполнения за сегодня нет.
func StatusMessage(marketOpen bool) string {
	if !marketOpen {
		return "⏸ <b>MARKET_CLOSED</b>\nForex opens Sunday 22:00 UTC."
	}
	return "⏳ <b>AWAITING_EXECUTION</b>\nNo signal executed today yet."
}

// LiveMessage — расчёт движка, который сегодня ещё не исполнялся.
func LiveMessage(sig models.Signal) string {
	return "📡 <b>LIVE</b> <i>not executed yet</i>\n\n" + Message(sig)
}

// StatsMessage — ответ на /stats по состоянию dispatch guard.
func StatsMessage(state models.DispatchState) string {
	if len(state) == 0 {
		return "📊 <b>Dispatch stats</b>\nNo signals dispatched yet."
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Dispatch stats</b>\nPairs: %d\n", len(state))
	for _, k := range keys {
		e := state[k]
		fmt.Fprintf(&b, "\n• <code>%s</code> %s @ %s (%d%%), %s",
			html.EscapeString(k), html.EscapeString(e.Direction), e.Entry.String(), e.Confidence,
			e.LastSent.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return b.String()
}

func ChartURL(asset string) string {
	clean := strings.NewReplacer("/", "", "-", "").Replace(strings.ToUpper(asset))
	return "https://www.tradingview.com/chart/?symbol=FX:" + clean
}

// Keyboard — кнопки под сигналом.
func Keyboard(asset string) tgbot.InlineKeyboardMarkup {
	if asset == "" {
		asset = "EUR/USD"
	}
	return tgbot.NewInlineKeyboardMarkup(
		tgbot.NewInlineKeyboardRow(
			tgbot.NewInlineKeyboardButtonURL("📈 View Chart", ChartURL(asset)),
			tgbot.NewInlineKeyboardButtonData("🔄 Refresh", CallbackRefresh),
		),
		tgbot.NewInlineKeyboardRow(
			tgbot.NewInlineKeyboardButtonData("📊 Stats", CallbackStats),
		),
	)
}

// Payload — готовое сообщение для канала.
func Payload(chatID int64, sig models.Signal) tgbot.MessageConfig {
	msg := tgbot.NewMessage(chatID, Message(sig))
	msg.ParseMode = tgbot.ModeHTML
	msg.ReplyMarkup = Keyboard(sig.Asset)
	msg.DisableWebPagePreview = true
	return msg
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
