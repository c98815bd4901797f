package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"investassist/internal/models"
	"investassist/internal/repository"
)

// RSI thresholds for the daily summary.
const (
	rsiOverbought      = 70.0
	rsiOversold        = 30.0
	rsiUndervaluedHigh = 40.0
)

// Summary buckets the latest indicator row per asset into the signals the
// daily mail reports on. An asset can appear in an RSI bucket and a trend
// bucket at the same time.
type Summary struct {
	Overbought  []repository.IndicatorView
	Oversold    []repository.IndicatorView
	Undervalued []repository.IndicatorView
	Bullish     []repository.IndicatorView
	Bearish     []repository.IndicatorView
}

func (s Summary) Empty() bool {
	return len(s.Overbought) == 0 && len(s.Oversold) == 0 && len(s.Undervalued) == 0 &&
		len(s.Bullish) == 0 && len(s.Bearish) == 0
}

// Analyze classifies the rows. Undefined indicators keep an asset out of
// the buckets that need them rather than defaulting it anywhere.
func Analyze(rows []repository.IndicatorView) Summary {
	var s Summary
	for _, row := range rows {
		if row.RSI != nil {
			switch rsi := *row.RSI; {
			case rsi > rsiOverbought:
				s.Overbought = append(s.Overbought, row)
			case rsi < rsiOversold:
				s.Oversold = append(s.Oversold, row)
			case rsi <= rsiUndervaluedHigh:
				s.Undervalued = append(s.Undervalued, row)
			}
		}
		if row.SMAShort != nil && row.SMALong != nil {
			switch {
			case *row.SMAShort > *row.SMALong:
				s.Bullish = append(s.Bullish, row)
			case *row.SMAShort < *row.SMALong:
				s.Bearish = append(s.Bearish, row)
			}
		}
	}
	return s
}

// BuildBody renders the plain-text mail. Empty buckets are omitted.
func BuildBody(s Summary) string {
	var b strings.Builder
	b.WriteString("Daily indicator summary\n")

	section := func(title string, rows []repository.IndicatorView) {
		if len(rows) == 0 {
			return
		}
		b.WriteString("\n" + title + "\n")
		for _, row := range rows {
			b.WriteString(fmt.Sprintf("  %s (%s)", row.Ticker, row.Date.Format("2006-01-02")))
			if row.RSI != nil {
				b.WriteString(fmt.Sprintf(" RSI %.2f", *row.RSI))
			}
			if row.SMAShort != nil && row.SMALong != nil {
				b.WriteString(fmt.Sprintf(" SMA %.2f/%.2f", *row.SMAShort, *row.SMALong))
			}
			b.WriteString("\n")
		}
	}

	section("Overbought (RSI > 70)", s.Overbought)
	section("Oversold (RSI < 30)", s.Oversold)
	section("Undervalued (RSI 30-40)", s.Undervalued)
	section("Bullish trend (short SMA above long)", s.Bullish)
	section("Bearish trend (short SMA below long)", s.Bearish)
	return b.String()
}

// runFooter summarizes the batch that produced the rows.
func runFooter(state *models.EtlRunState) string {
	if state == nil || state.LastSuccessAt == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nLast batch: " + state.LastSuccessAt.UTC().Format("2006-01-02 15:04 MST"))
	if state.WatermarkDate != nil {
		b.WriteString(", data through " + state.WatermarkDate.UTC().Format("2006-01-02"))
	}
	b.WriteString("\n")
	return b.String()
}

// Mailer sends the summary over SMTP.
type Mailer struct {
	Host     string
	Port     int
	Sender   string
	Receiver string
	Password string
}

func (m *Mailer) message(subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.Sender)
	msg.SetHeader("To", m.Receiver)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

func (m *Mailer) Send(subject, body string) error {
	if m == nil || m.Host == "" {
		return fmt.Errorf("mailer not configured")
	}
	d := gomail.NewDialer(m.Host, m.Port, m.Sender, m.Password)
	return d.DialAndSend(m.message(subject, body))
}

// Sender abstracts the SMTP hop so the notifier can be tested without a
// mail server.
type Sender interface {
	Send(subject, body string) error
}

// Notifier reads the latest indicator rows and mails the classified
// summary. A day with no signals sends nothing.
type Notifier struct {
	Repo   repository.Repository
	Mail   Sender
	Logger *zap.Logger
}

func (n *Notifier) Run(ctx context.Context) error {
	if n == nil || n.Repo == nil || n.Mail == nil {
		return fmt.Errorf("notifier not configured")
	}

	rows, err := n.Repo.ListLatestIndicators(ctx)
	if err != nil {
		return fmt.Errorf("list latest indicators: %w", err)
	}

	summary := Analyze(rows)
	if summary.Empty() {
		n.logInfo("no signals today, skipping mail")
		return nil
	}

	body := BuildBody(summary)
	// The run-state row is advisory; a missing one just drops the footer.
	if state, err := n.Repo.GetRunState(ctx, "indicators"); err == nil {
		body += runFooter(state)
	}

	if err := n.Mail.Send("Daily indicator summary", body); err != nil {
		return fmt.Errorf("send summary mail: %w", err)
	}
	n.logInfo("summary mail sent",
		zap.Int("overbought", len(summary.Overbought)),
		zap.Int("oversold", len(summary.Oversold)),
		zap.Int("undervalued", len(summary.Undervalued)),
		zap.Int("bullish", len(summary.Bullish)),
		zap.Int("bearish", len(summary.Bearish)))
	return nil
}

func (n *Notifier) logInfo(msg string, fields ...zap.Field) {
	if n == nil || n.Logger == nil {
		return
	}
	n.Logger.Info(msg, fields...)
}
