package llm

import (
	"fmt"
	"strings"
	"time"
)

// PromptBuilder centralizes all LLM prompts in one place.
type PromptBuilder struct{}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildTaskDetection creates the YES/NO task classifier prompt
func (p *PromptBuilder) BuildTaskDetection(question, conversationContext string) string {
	var prompt strings.Builder

	prompt.WriteString("Analyze the following text and determine if it contains a request for a future task, follow-up, or reminder.\n")
	prompt.WriteString("First, respond with \"YES\" if it's a task request or \"NO\" if it's not.\n\n")
	prompt.WriteString("If it is a task request, on a new line after \"YES\", provide a specific and detailed description of the task (maximum 1/3 the length of the original request).\n")
	prompt.WriteString("Be precise about the exact nature of the task, including specific technical issues mentioned (like CORS errors, deployment issues, etc.).\n")
	prompt.WriteString("If the message mentions scheduling a meeting or call, indicate this is a meeting request.\n\n")
	prompt.WriteString("PRESERVE ALL URLs AND LINKS EXACTLY AS THEY APPEAR IN THE ORIGINAL REQUEST. Do not replace URLs with generic text like \"Link\".\n\n")

	prompt.WriteString("Examples of task requests:\n")
	prompt.WriteString("- \"When you get time ping me about the cosmos deployment\"\n")
	prompt.WriteString("- \"Remind me to check on the server status tomorrow\"\n")
	prompt.WriteString("- \"I need you to follow up with me about this issue later\"\n")
	prompt.WriteString("- \"Once you're free, let's discuss the project timeline\"\n")
	prompt.WriteString("- \"Let's have a call tomorrow\"\n")
	prompt.WriteString("- \"Can we schedule a meeting next week?\"\n")
	prompt.WriteString("- \"Ok let's have a meet on this\"\n\n")

	if conversationContext != "" {
		prompt.WriteString("Recent conversation context:\n")
		prompt.WriteString(conversationContext)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString(fmt.Sprintf("User message: %q\n", question))

	return prompt.String()
}

// BuildMeetingExtraction creates the structured date/time/duration extraction
// prompt, seeded with the current date/time so the model can resolve relative
// expressions.
func (p *PromptBuilder) BuildMeetingExtraction(text string, now time.Time) string {
	var prompt strings.Builder

	tomorrow := now.AddDate(0, 0, 1)

	prompt.WriteString("Extract meeting details from the following text, converting natural language including relative time expressions into structured data.\n")
	prompt.WriteString("Be flexible with format and phrasing - the goal is to successfully extract the information no matter how it's expressed.\n\n")

	prompt.WriteString(fmt.Sprintf("CURRENT DATE AND TIME: %s %s\n\n",
		now.Format("2006-01-02"), now.Format("15:04")))

	prompt.WriteString("Relative time expressions to handle:\n")
	prompt.WriteString(fmt.Sprintf("- \"tomorrow\" = the day after the current date (%s)\n", tomorrow.Format("2006-01-02")))
	prompt.WriteString(fmt.Sprintf("- \"next hour\" = %s\n", now.Add(time.Hour).Format("15:04")))
	prompt.WriteString("- \"few minutes\" = around 10 minutes\n")
	prompt.WriteString("- \"few hours\" = around 2-3 hours\n")
	prompt.WriteString("- \"next week\" = 7 days from current date\n")
	prompt.WriteString("- \"anytime\" = 12 hours from current time\n")
	prompt.WriteString("- \"whenever you are free\" = next day 11:00 AM\n\n")

	prompt.WriteString(fmt.Sprintf("Text: %q\n\n", text))

	prompt.WriteString("You must return a valid JSON object with these fields:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"title\": \"Meeting title or null if not specified\",\n")
	prompt.WriteString("  \"description\": \"Meeting description or null if not specified\",\n")
	prompt.WriteString("  \"date\": \"Date in YYYY-MM-DD format or null if not specified\",\n")
	prompt.WriteString("  \"time\": \"Time in HH:MM format (24 hour) or null if not specified\",\n")
	prompt.WriteString("  \"duration\": \"Duration in minutes (as a number) or null if not specified\"\n")
	prompt.WriteString("}\n\n")

	prompt.WriteString("Examples of input/output:\n")
	prompt.WriteString("Input: \"I want meeting to be on 2nd of november, 2025, from 6.30 Pm for 30 min\"\n")
	prompt.WriteString("Output: {\"date\": \"2025-11-02\", \"time\": \"18:30\", \"duration\": 30}\n\n")
	prompt.WriteString("Input: \"Let's meet tomorrow at 3 in the afternoon for an hour\"\n")
	prompt.WriteString(fmt.Sprintf("Output: {\"date\": %q, \"time\": \"15:00\", \"duration\": 60}\n\n", tomorrow.Format("2006-01-02")))

	prompt.WriteString("IMPORTANT: Return only the raw JSON object without any markdown code blocks or additional text. Do not include ```json or ``` tags around your response.\n")

	return prompt.String()
}

// BuildTopicExtraction creates the conversation-topic prompt
func (p *PromptBuilder) BuildTopicExtraction(history, question string, urls []string) string {
	var prompt strings.Builder

	prompt.WriteString("Based on the following conversation snippet and the current question,\n")
	prompt.WriteString("extract the SPECIFIC AND DETAILED main topic or context of discussion in 5-10 words.\n\n")
	prompt.WriteString("Be PRECISE and TECHNICALLY SPECIFIC. If there are technical issues mentioned (like CORS errors,\n")
	prompt.WriteString("deployment problems, specific bugs), include those specific details.\n\n")
	prompt.WriteString("DO NOT use generic descriptions like \"project discussion\" when more specific details are available.\n\n")

	prompt.WriteString("Recent conversation:\n")
	prompt.WriteString(history)
	prompt.WriteString("\n\n")

	prompt.WriteString(fmt.Sprintf("Current question: %q\n", question))
	if len(urls) > 0 {
		prompt.WriteString(fmt.Sprintf("URLs mentioned: %s\n", strings.Join(urls, " ")))
	}

	prompt.WriteString("\nMain topic (5-10 words, be specific about technical details):")

	return prompt.String()
}

// BuildAnswer creates the grounded-QA prompt for normal questions. The whole
// approved knowledge base is concatenated in; there is no retrieval step.
func (p *PromptBuilder) BuildAnswer(req *AnswerRequest) string {
	var prompt strings.Builder
	owner := req.Owner

	prompt.WriteString(fmt.Sprintf("You are %s's personal AI assistant. Answer based on the following details, in first person, as if %s were answering instead of an AI.\n", owner.Name, owner.Name))
	prompt.WriteString("If you don't have data for some information, say \"I don't have that information. If you have answers to this, please contribute.\"\n")
	prompt.WriteString("Answer questions in a slightly elaborate manner and add humour where it fits.\n")
	prompt.WriteString(fmt.Sprintf("Questions like \"Do you know about this CORS issue in deployment?\" are asked of %s, not of the AI, so answer from %s's data, not from the AI's general knowledge.\n\n", owner.Name, owner.Name))

	prompt.WriteString(fmt.Sprintf("Here's %s's latest data:\n", owner.Name))
	if owner.ProfilePrompt != "" {
		prompt.WriteString(owner.ProfilePrompt)
	} else {
		prompt.WriteString("No specific context provided")
	}
	prompt.WriteString("\n\n")

	if owner.DailyTasks != "" {
		prompt.WriteString(fmt.Sprintf("And this is the user's daily task note: %s\n\n", owner.DailyTasks))
	}

	if req.History != "" {
		prompt.WriteString("RECENT CONVERSATION HISTORY:\n")
		prompt.WriteString(req.History)
		prompt.WriteString("\n\n")
	}

	if req.Topic != "" {
		prompt.WriteString(fmt.Sprintf("Current conversation topic: %s\n\n", req.Topic))
	}

	prompt.WriteString(fmt.Sprintf("Current question: %s\n\n", req.Question))

	if len(req.Contributions) > 0 {
		prompt.WriteString("This is my personal knowledge base of verified information. You can use this to answer the questions:\n")
		for i, c := range req.Contributions {
			prompt.WriteString(fmt.Sprintf("[%d] Question: %s\nAnswer: %s\n\n", i+1, c.Question, c.Answer))
		}
	} else {
		prompt.WriteString("No specific approved contributions yet.\n\n")
	}

	prompt.WriteString("When providing links, give plain URLs like https://github.com/xxxx/\n\n")

	if owner.StylePrompt != "" {
		prompt.WriteString(fmt.Sprintf("This is the way I want the responses to be: %s\n\n", owner.StylePrompt))
	}

	prompt.WriteString("IMPORTANT: Maintain context from the conversation history when answering follow-up questions. If the question seems like a follow-up to previous messages, make sure your response builds on the earlier conversation.\n")

	return prompt.String()
}
