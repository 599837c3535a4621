package notify

import (
	"fmt"
	"strings"

	"github.com/mr1hm/go-alert-notify/internal/models"
	"github.com/mr1hm/go-alert-notify/internal/notify/channels"
)

var urgencyEmojis = map[models.UrgencyLevel]string{
	models.UrgencyLow:      "🔵",
	models.UrgencyMedium:   "🟡",
	models.UrgencyHigh:     "🟠",
	models.UrgencyCritical: "🔴",
}

var levelEmojis = map[models.AlertLevel]string{
	models.AlertLevelInfo:      "ℹ️",
	models.AlertLevelWarning:   "⚠️",
	models.AlertLevelAlert:     "🚨",
	models.AlertLevelEmergency: "🆘",
}

// FormatAlert renders the channel-agnostic subject/body pair for an alert.
// English gets the full template; other languages fall back to a condensed
// single paragraph. Unknown urgency or level maps to a neutral icon.
func FormatAlert(alert *models.Alert, language string) channels.Message {
	urgency := alert.EffectiveUrgency()
	level := alert.EffectiveLevel()

	urgencyEmoji, ok := urgencyEmojis[urgency]
	if !ok {
		urgencyEmoji = "⚪"
	}
	levelEmoji, ok := levelEmojis[level]
	if !ok {
		levelEmoji = "📢"
	}

	disasterTitle := titleCase(alert.DisasterType)

	if language != "english" {
		return channels.Message{
			Subject: fmt.Sprintf("%s ALERT: %s", levelEmoji, disasterTitle),
			Body: fmt.Sprintf("%s %s in %s\nConfidence: %.1f%%\n\n%s",
				levelEmoji, disasterTitle, alert.Location, alert.ConfidenceScore*100, alert.Content),
			Alert: alert,
		}
	}

	verified := "⚠️ Unverified"
	if alert.IsGenuine {
		verified = "✅ Verified"
	}

	shortID := alert.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	subject := fmt.Sprintf("%s %s: %s Alert", levelEmoji, strings.ToUpper(string(level)), disasterTitle)

	body := fmt.Sprintf(`%[1]s DISASTER ALERT %[1]s

🌍 Location: %s
⚡ Type: %s
%s Urgency: %s
📊 Confidence: %.1f%%
⏰ Time: %s

📱 Source: %s
👤 Reporter: %s
%s

📄 Report:
%s

🆔 Alert ID: %s

---
🌍 Disaster Alert System
Real-time monitoring powered by AI
`,
		levelEmoji,
		alert.Location,
		disasterTitle,
		urgencyEmoji, strings.ToUpper(string(urgency)),
		alert.ConfidenceScore*100,
		alert.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
		titleCase(alert.Platform),
		alert.Author,
		verified,
		alert.Content,
		shortID,
	)

	return channels.Message{
		Subject: subject,
		Body:    body,
		Alert:   alert,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
