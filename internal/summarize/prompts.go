package summarize

import (
	"fmt"
	"strings"
	"wisgen/internal/core"
)

// BuildInsightPrompt creates the per-newsletter insight extraction prompt.
func BuildInsightPrompt(doc core.NormalizedDocument, content string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional newsletter analyst.\n")
	prompt.WriteString("Your task is to extract 3 to 5 concise, high-value insights from the following newsletter.\n\n")

	prompt.WriteString("Newsletter Metadata:\n\n")
	prompt.WriteString(fmt.Sprintf("Subject: %s\n", doc.Subject))
	prompt.WriteString(fmt.Sprintf("From: %s\n", doc.Sender))
	prompt.WriteString(fmt.Sprintf("Date: %s\n\n", doc.Date))

	prompt.WriteString("Content:\n")
	prompt.WriteString(content)
	prompt.WriteString("\n\n")

	prompt.WriteString("Focus on extracting:\n")
	prompt.WriteString("- Major news, updates, or announcements\n")
	prompt.WriteString("- Emerging industry trends or shifts\n")
	prompt.WriteString("- Actionable advice or recommendations\n")
	prompt.WriteString("- Surprising data points or counterintuitive findings\n\n")

	prompt.WriteString("Format:\n")
	prompt.WriteString("- Use bullet points\n")
	prompt.WriteString("- Each point should be brief, clear, and informative\n")
	prompt.WriteString("- Avoid fluff and focus on what's most useful or insightful\n")

	return prompt.String()
}

// BuildTrendsPrompt creates the cross-newsletter trend analysis prompt over a
// JSON payload of insight entries. The model is asked to answer in HTML.
func BuildTrendsPrompt(payload string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional newsletter analyst and an expert explainer of news who builds mental models and connects the dots across sectors.\n")
	prompt.WriteString("I don't want plain summaries. Go deep, find patterns across multiple newsletters, and give me the key emerging trends you notice.\n\n")

	prompt.WriteString("Avoid generic, overused statements like \"AI is changing the world.\" Instead, explain specifically how such trends ")
	prompt.WriteString("are unfolding: through new business models, shifts in user behavior, regulatory changes, or technological advancements.\n\n")

	prompt.WriteString("Showcase first principles and second order effects with a brain emoji wherever relevant. ")
	prompt.WriteString("Explain what the mental model means and how it relates to the current news.\n\n")

	prompt.WriteString("Format your response with HTML tags:\n")
	prompt.WriteString("- Use <h1>, <h2>, <h3> tags for section headers\n")
	prompt.WriteString("- Use <p> tags for paragraphs\n")
	prompt.WriteString("- Use <b> or <strong> tags for important points\n")
	prompt.WriteString("- Use <ul> and <li> tags for bullet points\n")
	prompt.WriteString("- Use <blockquote> for notable quotes or highlights\n\n")

	prompt.WriteString("Structure your output clearly:\n")
	prompt.WriteString("- Start with a \"TL;DR\" section summarizing the key insights in 4 to 6 sentences.\n")
	prompt.WriteString("- Then go into detailed analysis using clear section headers.\n")
	prompt.WriteString("- When mentioning a news item, give a brief about it in 3 to 4 lines. Don't expect the reader to have read the newsletter.\n")
	prompt.WriteString("- Use bullet points only when citing specific facts, numbers, or data points.\n")
	prompt.WriteString("- End with a summary of the key trends for quick reference. Connect the dots across sectors (geopolitics, technology, business, science) ")
	prompt.WriteString("and across the newsletters, and highlight what's genuinely new rather than what's obvious.\n")
	prompt.WriteString("- Close the summary with questions that urge the reader to think deeply and challenge their assumptions.\n\n")

	prompt.WriteString("Newsletters:\n")
	prompt.WriteString(payload)
	prompt.WriteString("\n")

	return prompt.String()
}

// BuildWeeklyPrompt creates the weekly synthesis prompt over a JSON payload of
// the window's insight entries. The model is asked to answer in markdown.
func BuildWeeklyPrompt(start, end, payload string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a senior analyst writing a weekly briefing from newsletter insights.\n")
	prompt.WriteString(fmt.Sprintf("The insights below were collected between %s and %s.\n\n", start, end))

	prompt.WriteString("Write a synthesis of the week:\n")
	prompt.WriteString("- Group the material into 3 to 6 themes, each under its own heading.\n")
	prompt.WriteString("- Within each theme, point out where sources confirm each other and where they contradict each other, naming the sources.\n")
	prompt.WriteString("- Prefer specific facts, numbers, and names over generalities.\n")
	prompt.WriteString("- Finish with a \"Key Takeaways\" section of 3 to 5 bullets.\n\n")

	prompt.WriteString("Respond in markdown only, without a surrounding code block.\n\n")

	prompt.WriteString("Insights:\n")
	prompt.WriteString(payload)
	prompt.WriteString("\n")

	return prompt.String()
}

// BuildRewritePrompt creates the newsletter clean-up prompt used by Rewriter.
func BuildRewritePrompt(html string) string {
	var prompt strings.Builder

	prompt.WriteString("You are an expert HTML editor and newsletter summariser with a deep understanding of finance, technology, and geopolitics. ")
	prompt.WriteString("I will provide a newsletter in raw HTML which may include advertisements, promotional sections, tracking links, and technical jargon. ")
	prompt.WriteString("Transform it into a clean, simplified, and insightful version for a curious business student.\n\n")

	prompt.WriteString("1. Clean up the HTML\n")
	prompt.WriteString("Remove advertisements, sponsored content, email footers, promotions, unsubscribe links, and social share buttons.\n")
	prompt.WriteString("Strip tracking links, UTM parameters, and affiliate links. If a reference link is valuable, keep a clean version of it.\n\n")

	prompt.WriteString("2. Simplify the content\n")
	prompt.WriteString("Rewrite dense or technical text into clear language. Break up long paragraphs and add headings where needed.\n\n")

	prompt.WriteString("3. Add a TL;DR\n")
	prompt.WriteString("At the top, insert a \"TL;DR\" section summarising the key points in a paragraph of 5 to 6 lines.\n\n")

	prompt.WriteString("4. Add key trends\n")
	prompt.WriteString("At the end, add a \"Key Trends Noticed\" section with analytical insights that connect the news to broader economic, policy, or technology shifts. ")
	prompt.WriteString("Avoid trite generalisations.\n\n")

	prompt.WriteString("5. Explain jargon\n")
	prompt.WriteString("After each major section, add a \"Jargon Explained\" box defining complex terms in 1 to 2 lines each.\n\n")

	prompt.WriteString("6. Add business ideas\n")
	prompt.WriteString("Where a section suggests a business opportunity, add a \"💡 Business Idea\" box with a clearly defined problem statement ")
	prompt.WriteString("that software alone, or a small micro-SaaS product, could solve.\n\n")

	prompt.WriteString("7. Output\n")
	prompt.WriteString("Return only well-formed, valid HTML. Preserve useful formatting such as headings, lists, bold text, and images.\n\n")

	prompt.WriteString("Now, here's the HTML input:\n")
	prompt.WriteString(html)

	return prompt.String()
}

// truncateContent cuts content to at most maxRunes runes. No ellipsis is added.
func truncateContent(content string, maxRunes int) string {
	if maxRunes <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes])
}
