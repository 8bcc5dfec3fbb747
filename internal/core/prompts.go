package core

import (
	"fmt"
	"strings"
)

const urgencyPromptFormat = `You are an email triage assistant. Rate how urgent the following email is.
Respond with a JSON object containing:
- urgency_level: one of "critical", "high", "medium", "low"
- urgency_score: number between 0 and 4 (4 is most urgent)
- triggers: array of short phrases from the email that drove the rating

Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

const expectationsPromptFormat = `You are an email analyst. List what the sender implicitly expects from the
recipient even when it is not asked for directly (a reply, a payment, a document, attendance, ...).
Respond with a JSON object containing:
- expectations: array of objects with
    description: string
    type: string (reply, action, payment, document, meeting, other)
    deadline: string or null
    severity: one of "low", "medium", "high"
- expectation_score: number between 0 and 10 (how demanding the email is overall)

Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

const riskPromptFormat = `You are an email security analyst. Assess whether the following email is a
phishing attempt, scam, impersonation or otherwise risky to act on.
Respond with a JSON object containing:
- risk_flags: array of objects with type and description
- risk_score: number between 0 and 10
- risk_level: one of "LOW", "MEDIUM", "HIGH", "CRITICAL"

From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

const priorityPromptFormat = `You are an email triage assistant. Combine the signals below into a final priority.
Use VERIFY when the email must be verified through an official channel before acting on it.
Respond with a JSON object containing:
- priority: one of "VERIFY", "URGENT", "HIGH", "MEDIUM", "LOW"
- priority_score: number between 0 and 10

Urgency: %s (score %.1f)
Risk: %s (score %.1f)
Hidden expectations: %d
Subject: %s

Respond only with the JSON object and nothing else.`

const planPromptFormat = `You are an expert email security and productivity assistant.

Priority: %s | Urgency: %s | Risk: %s
Sender: %s
Subject: %s

Respond with a JSON object and nothing else:
{
  "action_steps": ["concrete step the user should take", "..."],
  "response_template": "short professional reply in plain text, or null if no reply is needed"
}

Rules:
- At most %d action steps, each one a concrete instruction
- If the sender is a no-reply address, response_template must be null
- For security alerts always include "Do not click links in the email" and "Go directly to the official site"`

func urgencyPrompt(subject, body string) string {
	return fmt.Sprintf(urgencyPromptFormat, subject, body)
}

func expectationsPrompt(subject, body string) string {
	return fmt.Sprintf(expectationsPromptFormat, subject, body)
}

func riskPrompt(sender, subject, body string) string {
	return fmt.Sprintf(riskPromptFormat, sender, subject, body)
}

func priorityPrompt(st PipelineState) string {
	return fmt.Sprintf(priorityPromptFormat,
		st.UrgencyLevel, st.UrgencyScore,
		st.RiskLevel, st.RiskScore,
		len(st.Expectations),
		st.Subject)
}

func planPrompt(st PipelineState, maxSteps int) string {
	return fmt.Sprintf(planPromptFormat,
		st.Priority,
		strings.ToUpper(string(st.UrgencyLevel)),
		st.RiskLevel,
		st.Sender,
		st.Subject,
		maxSteps)
}
