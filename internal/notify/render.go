package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"autodial_backend/internal/ami"
	"autodial_backend/internal/events"
)

func renderCallConnected(e events.CallStateChanged) string {
	return fmt.Sprintf("📞 %s connected", e.TargetNumber)
}

func renderCallFinished(e events.CallFinished) string {
	if e.Answered {
		return fmt.Sprintf("✅ %s completed (%s)", e.TargetNumber, formatSeconds(e.DurationSeconds))
	}
	return fmt.Sprintf("❌ %s failed (%s)", e.TargetNumber, ami.CauseName(e.HangupCause))
}

func renderDTMF(e events.CallDTMFReceived) string {
	return fmt.Sprintf("🔔 %s pressed %s", e.TargetNumber, e.Digit)
}

func renderCampaignStopped(e events.CampaignStopped) string {
	return fmt.Sprintf("🛑 Campaign *%s* stopped (%d of %d dialed)", e.Name, e.Dialed, e.Total)
}

func renderCampaignCompleted(e events.CampaignCompleted) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏁 *Campaign complete: %s*\n\n", e.Name)
	b.WriteString("📊 *Results*\n")
	fmt.Fprintf(&b, "├─ Total: %d\n", e.Total)
	fmt.Fprintf(&b, "├─ ✅ Completed: %d\n", e.Completed)
	fmt.Fprintf(&b, "├─ ❌ Failed: %d\n", e.Failed)
	fmt.Fprintf(&b, "└─ 📈 Success rate: %d%%\n", successRate(e.Completed, e.Total))

	if len(e.Responses) > 0 {
		b.WriteString("\n🔔 *Key presses*\n")
		digits := sortedDigits(e.Responses)
		for i, digit := range digits {
			branch := "├─"
			if i == len(digits)-1 {
				branch = "└─"
			}
			fmt.Fprintf(&b, "%s %s: %d\n", branch, digit, e.Responses[digit])
		}
	}

	fmt.Fprintf(&b, "\n⏱ *Duration:* %s", formatSpan(e.FinishedAt.Sub(e.StartedAt)))
	return b.String()
}

func successRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}

func sortedDigits(responses map[string]int) []string {
	digits := make([]string, 0, len(responses))
	for digit := range responses {
		digits = append(digits, digit)
	}
	sort.Strings(digits)
	return digits
}

func formatSeconds(seconds float64) string {
	return formatSpan(time.Duration(seconds * float64(time.Second)))
}

func formatSpan(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}
