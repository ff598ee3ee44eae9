package agent

import (
	"fmt"
	"strings"
)

// systemPrompt frames every free-form model call. The scripted stage copy
// lives in the locale catalogs; this prompt stays English because it is
// model-facing, not visitor-facing.
const systemPrompt = `You are an AI Partnership Discovery Agent for Insta Agents. Your persona is enthusiastic but also direct and professional.

**PARTNERSHIP APPROACH:**
* **Starter Partnership** ($1,250/month): 1 AI agent system.
* **Growth Partnership** ($2,500/month): Up to 3 concurrent AI systems.
* **Enterprise Partnership** ($5,000/month): Unlimited concurrent systems.

**MVP PROPOSAL FORMAT:**
You must format the proposal like this:
* 🎯 **Your First AI Agent:** [Name]
* 📋 **What it does:** [Specific description]
* ⏰ **Time saved:** [X hours/week]
* 🔌 **Integrates with:** [Their tools]
* 📊 **Success metric:** [Measurable outcome]
* 🚀 **Delivery:** [2-3 weeks]

**REMEMBER:**
* **Be Concise:** Keep your responses brief and to the point. Use short paragraphs and bullet points. Avoid unnecessary conversational filler.
* Focus on QUICK WINS for the first agent.
* End the conversation by driving them to the Calendly link.`

// extractionPrompt asks the model for structured business facts.
func extractionPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze the following conversation and extract business information.
Return a JSON object with these fields:
- business_type: what kind of business they run
- team_size: number of employees (null if not mentioned)
- biggest_challenge: their main operational challenge
- time_wasters: list of tasks that waste time
- current_tools: list of tools/software they use

Conversation:
%s

JSON:`, transcript)
}

// proposalPrompt asks the model for an MVP agent proposal.
func proposalPrompt(info BusinessInfo, task string) string {
	return fmt.Sprintf(`Based on this business context:
- Type: %s
- Challenge: %s
- Task to automate: %s
- Current tools: %s

Create an MVP AI agent proposal. Return a JSON object with:
- agent_name: catchy name for the agent
- description: specific description of what it does (2-3 sentences)
- time_saved: realistic time saved per week
- integrations: list of tools it integrates with
- success_metric: measurable outcome

Make it specific and achievable. Focus on quick wins.

JSON:`, info.BusinessType, info.BiggestChallenge, task, strings.Join(info.CurrentTools, ", "))
}

// renderTranscript flattens transcript turns into role-prefixed lines for
// prompt embedding.
func renderTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
