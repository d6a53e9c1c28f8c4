package parlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
)

// telegramSendInterval keeps alerts under the bot API's per-chat limit (about 30 a minute).
const telegramSendInterval = 2 * time.Second

var _ ReportNotifier = (*TelegramNotifier)(nil)

var errNotifierStopped = errors.New("notifier stopped")

// messageSender is the part of the bot API the notifier uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends Telegram alerts for rejected and flagged parlays.
// Messages are queued and sent by one background worker with a minimum interval.
type TelegramNotifier struct {
	bot          messageSender
	chatID       int64
	notifyFlags  bool
	notifyBlocks bool
	interval     time.Duration

	mu       sync.Mutex
	lastSend time.Time

	queue     chan string
	queueDone chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewTelegramNotifier connects to the bot API and starts the send worker.
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	n := newTelegramNotifier(bot, cfg, telegramSendInterval)
	slog.Info("Telegram notifier initialized", "chat_id", cfg.ChatID, "bot", bot.Self.UserName)
	return n, nil
}

func newTelegramNotifier(bot messageSender, cfg config.TelegramConfig, interval time.Duration) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:          bot,
		chatID:       cfg.ChatID,
		notifyFlags:  cfg.NotifyFlags,
		notifyBlocks: cfg.NotifyBlocks,
		interval:     interval,
		queue:        make(chan string, 100),
		queueDone:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	n.wg.Add(1)
	go n.messageSender()
	return n
}

// QueueLen returns current number of messages in the send queue.
func (n *TelegramNotifier) QueueLen() int {
	if n == nil {
		return 0
	}
	return len(n.queue)
}

// NotifyReport queues an alert for FLAGGED or REJECTED_INCOMPATIBLE reports, as configured.
// Other statuses are ignored. Never blocks.
func (n *TelegramNotifier) NotifyReport(ctx context.Context, r Report) error {
	if n == nil || n.bot == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}
	switch {
	case r.Status == StatusFlagged && n.notifyFlags:
	case r.Status == StatusRejectedIncompatible && n.notifyBlocks:
	default:
		return nil
	}

	select {
	case <-n.ctx.Done():
		return errNotifierStopped
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- formatReportAlert(r):
		return nil
	default:
		slog.Warn("Telegram message queue is full, dropping message", "session", r.SessionID)
		return fmt.Errorf("message queue is full")
	}
}

// Stop stops the notifier after sending what is already queued.
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.cancel()
	<-n.queueDone
	n.wg.Wait()
}

func (n *TelegramNotifier) messageSender() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			for {
				select {
				case text := <-n.queue:
					n.send(text, false)
				default:
					close(n.queueDone)
					return
				}
			}
		case text := <-n.queue:
			n.send(text, true)
		}
	}
}

// send waits out the rate limit and sends. While draining on stop the wait is not cancellable.
func (n *TelegramNotifier) send(text string, cancellable bool) {
	n.mu.Lock()
	if wait := n.interval - time.Since(n.lastSend); wait > 0 {
		n.mu.Unlock()
		if cancellable {
			select {
			case <-n.ctx.Done():
			case <-time.After(wait):
			}
		} else {
			time.Sleep(wait)
		}
		n.mu.Lock()
	}
	n.lastSend = time.Now()
	n.mu.Unlock()

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	start := time.Now()
	if _, err := n.bot.Send(msg); err != nil {
		slog.Error("Telegram send: failed", "error", err, "preview", truncateString(text, 50))
		return
	}
	slog.Info("Telegram send: success", "send_duration", time.Since(start), "queue_length", len(n.queue))
}

// formatReportAlert renders a report as a MarkdownV2 message.
func formatReportAlert(r Report) string {
	var b strings.Builder
	switch r.Status {
	case StatusRejectedIncompatible:
		b.WriteString("🚫 *Parlay rejected*\n\n")
	case StatusFlagged:
		b.WriteString("⚠️ *Parlay flagged*\n\n")
	default:
		b.WriteString(fmt.Sprintf("*Parlay %s*\n\n", escapeMarkdown(string(r.Status))))
	}
	b.WriteString(fmt.Sprintf("Session: `%s`\n", r.SessionID))
	if r.Compatibility.SportsbookID != "" {
		b.WriteString(fmt.Sprintf("Sportsbook: %s\n", escapeMarkdown(r.Compatibility.SportsbookID)))
	}
	if r.Reason != "" {
		b.WriteString(fmt.Sprintf("Reason: %s\n", escapeMarkdown(r.Reason)))
	}
	for _, v := range r.Compatibility.Violations {
		if !v.Blocking() {
			continue
		}
		b.WriteString(fmt.Sprintf("• %s: %s \\+ %s\n", escapeMarkdown(v.RuleType), escapeMarkdown(v.Leg1ID), escapeMarkdown(v.Leg2ID)))
	}
	if c := r.Confidence; c != nil {
		b.WriteString(escapeMarkdown(fmt.Sprintf("Confidence: %.3f (threshold %.3f)", c.PosteriorConfidence, c.DynamicThreshold)))
		b.WriteString("\n")
	}
	if r.EffectiveOdds > 0 {
		b.WriteString(escapeMarkdown(fmt.Sprintf("Effective odds: %.2f (tax x%.4f)", r.EffectiveOdds, r.CorrelationTaxMultiplier)))
		b.WriteString("\n")
	}
	return b.String()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// markdownV2Escaper escapes every character MarkdownV2 reserves outside code spans.
var markdownV2Escaper = func() *strings.Replacer {
	const reserved = "_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, 2*len(reserved))
	for _, c := range reserved {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

func escapeMarkdown(text string) string {
	return markdownV2Escaper.Replace(text)
}
