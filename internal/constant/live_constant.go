package constant

const (
	LiveRoleClinician = "clinician"
	LiveRoleAssistant = "assistant"
	LiveRolePatient   = "patient"

	// ListenerTranscriptClip bounds the transcript sent to the listener.
	ListenerTranscriptClip = 9000
	// Followup prompt context limits.
	FollowupTurnsInPrompt   = 8
	FollowupUnaskedInPrompt = 20

	ListenerFallback = "Listener:\n**English Summary:**\n- —\n\n**Swahili Summary:**\n- —\n\n**FINAL PLAN:**\n- Step 1: —"

	ListenerInstructionEnglish = "Summarize this medical conversation in English (bullet points), then provide " +
		"a practical step-by-step clinical plan. " +
		"Follow THIS exact structure:\n\n" +
		"Listener:\n" +
		"**English Summary:**\n" +
		"- ...\n\n" +
		"**FINAL PLAN:**\n" +
		"- Step 1: ...\n" +
		"- Step 2: ...\n\n" +
		"Keep it concise, medical, and actionable."

	ListenerInstructionSwahili = "Andika muhtasari wa mazungumzo haya kwa Kiswahili (vipengele vya nukta), " +
		"kisha toa mpango wa hatua kwa hatua wa nini kinachofuata kliniki. " +
		"Fuata muundo HUU hasa:\n\n" +
		"Listener:\n" +
		"**Swahili Summary:**\n" +
		"- ...\n\n" +
		"**FINAL PLAN:**\n" +
		"- Step 1: ...\n" +
		"- Step 2: ...\n\n" +
		"Weka kwa ufupi, wa kitabibu, na wa vitendo."

	ListenerInstructionBilingual = "Summarize this medical conversation in two parts (English + Swahili) using bullet points, " +
		"then provide a practical step-by-step clinical plan. " +
		"Follow THIS exact structure (no extra text):\n\n" +
		"Listener:\n" +
		"**English Summary:**\n" +
		"- ...\n\n" +
		"**Swahili Summary:**\n" +
		"- ...\n\n" +
		"**FINAL PLAN:**\n" +
		"- Step 1: ...\n" +
		"- Step 2: ...\n" +
		"- Step 3: ...\n\n" +
		"Make the plan clinically sensible (tests, referral, follow-up) and keep it short."

	// ListenerPrompt takes the clipped transcript and the instruction.
	ListenerPrompt = "Conversation transcript:\n%s\n\n%s"

	FollowupSystemPrompt = "You are a clinical reasoning assistant helping a clinician after a patient interview. " +
		"You MUST use the provided session context (transcript, listener summary/final plan, and unasked questions). " +
		"Answer the clinician's questions clearly and safely. " +
		"If something is uncertain or not in the transcript, say so and suggest what to ask/verify. " +
		"Do NOT invent patient facts."

	FollowupLanguageEnglish   = "Respond in English."
	FollowupLanguageSwahili   = "Respond in Swahili."
	FollowupLanguageBilingual = "Respond in English (you may add brief Swahili clarifications if helpful)."

	// FollowupContext takes transcript, listener summary and unasked lines.
	FollowupContext = "\n\n=== SESSION TRANSCRIPT (most recent) ===\n%s\n" +
		"\n=== LISTENER SUMMARY + FINAL PLAN ===\n%s\n" +
		"\n=== UNASKED QUESTIONS (ranked) ===\n%s"

	FollowupHistoryPrefix = "Follow-up chat so far:\n"
)
