package forecast

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// SystemPrompt frames every forecast request. Agents answer with a single
// JSON object matching the prediction schema.
const SystemPrompt = `You are a professional forecaster competing in a prediction market tournament.
Your goal is to make well-calibrated probability estimates and profitable betting decisions.

You will be given a prediction market question along with current market prices.
You have access to the internet via web search to research the question.

Analyze the question carefully, research relevant information, and provide:
1. Your estimated probability of the event occurring
2. Whether to bet YES, bet NO, or PASS (if no edge)
3. Your confidence level (0-1)
4. Suggested bet size as a percentage of bankroll (1-25%)
5. Clear reasoning and key factors

Respond ONLY with valid JSON matching the required schema. Do not include any other text.`

// BuildPrompt renders the user prompt for one market, including up to the
// three most recent prior bets by the same agent for re-evaluation context.
func BuildPrompt(market domain.Market, previous []domain.Bet) string {
	var b strings.Builder

	b.WriteString("## Prediction Market Question\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", market.Question)
	fmt.Fprintf(&b, "**Description:** %s\n\n", orNA(market.Description))
	b.WriteString("**Current Market Prices:**\n")
	fmt.Fprintf(&b, "- YES: $%.2f\n", market.YesPrice)
	fmt.Fprintf(&b, "- NO: $%.2f\n\n", market.NoPrice)
	fmt.Fprintf(&b, "**24h Volume:** $%.0f\n", market.Volume24h)
	if market.EndDate != nil {
		fmt.Fprintf(&b, "**Market End Date:** %s\n", market.EndDate.Format("2006-01-02"))
	} else {
		b.WriteString("**Market End Date:** N/A\n")
	}
	fmt.Fprintf(&b, "**Market ID:** %s\n", market.ID)
	fmt.Fprintf(&b, "**Market Slug:** %s\n", orNA(market.Slug))

	if len(previous) > 0 {
		b.WriteString("\n**Your Previous Bets on This Market (this cohort):**\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "- [%s]: %s at market price $%.2f, your estimated prob: %s, confidence: %s\n",
				p.CreatedAt.Format("2006-01-02 15:04"),
				p.Action,
				p.MarketPriceAtBet,
				fmtPtr(p.EstimatedProbability),
				fmtPtr(p.Confidence),
			)
		}
		b.WriteString("\nConsider whether new information warrants changing your position.\n")
	}

	b.WriteString("\nResearch this question using web search. Then provide your prediction as JSON.")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func fmtPtr(f *float64) string {
	if f == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *f)
}
