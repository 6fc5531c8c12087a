package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikeboe/deep-research/pkg/clients"
)

// SystemPrompt is shared by every research step.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are an expert researcher. Today is %s. Follow these instructions when responding:
  - You may be asked to research subjects that is after your knowledge cutoff, assume the user is right when presented with news.
  - The user is a highly experienced analyst, no need to simplify it, be as detailed as possible and make sure your response is correct.
  - Be highly organized.
  - Suggest solutions that I didn't think about.
  - Be proactive and anticipate my needs.
  - Treat me as an expert in all subject matter.
  - Mistakes erode my trust, so be accurate and thorough.
  - Provide detailed explanations, I'm comfortable with lots of detail.
  - Value good arguments over authorities, the source is irrelevant.
  - Consider new technologies and contrarian ideas, not just the conventional wisdom.
  - You may use high levels of speculation or prediction, just flag it for me.`, now.Format(time.RFC3339))
}

func queriesPrompt(query string, numQueries int, learnings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following prompt from the user, generate a list of SERP queries to research the topic. "+
		"Return a maximum of %d queries, but feel free to return fewer if the prompt is already clear. "+
		"Make each query unique: \n\n<prompt>%s</prompt>\n\n", numQueries, query)

	if len(learnings) > 0 {
		b.WriteString("Here are some learnings from previous research; use them to generate more specific queries:\n")
		for i, l := range learnings {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + l)
		}
	}
	return b.String()
}

func queriesSchema(numQueries int) *clients.Schema {
	return clients.Object(map[string]*clients.Schema{
		"queries": clients.ArrayOf(fmt.Sprintf("List of SERP queries, max of %d", numQueries), clients.Object(map[string]*clients.Schema{
			"query": clients.String("The SERP query"),
			"researchGoal": clients.String("First talk about the goal of the research that this query is meant to accomplish, " +
				"then go deeper into how to advance the research once the results are found, mention additional research directions. " +
				"Be as specific as possible, especially for additional research directions."),
		})),
	})
}

func learningsPrompt(query string, contents []string, numLearnings int) string {
	blocks := make([]string, len(contents))
	for i, c := range contents {
		blocks[i] = "<content>\n" + c + "\n</content>"
	}
	return fmt.Sprintf("Given the following contents from a SERP search for the query <query>%s</query>, generate a list of learnings from the contents. "+
		"Return a maximum of %d learnings, but feel free to return less if the contents are clear. "+
		"Make sure each learning is unique and not similar to each other. The learnings should be concise and to the point, "+
		"as detailed and information dense as possible. Make sure to include any entities like people, places, companies, "+
		"products, things, etc in the learnings, as well as any exact metrics, numbers, or dates. "+
		"The learnings will be used to research the topic further.\n\n<contents>%s</contents>",
		query, numLearnings, strings.Join(blocks, "\n"))
}

func learningsSchema(numLearnings, numFollowUpQuestions int) *clients.Schema {
	return clients.Object(map[string]*clients.Schema{
		"learnings": clients.StringArray(fmt.Sprintf("List of learnings, max of %d", numLearnings)),
		"followUpQuestions": clients.StringArray(fmt.Sprintf(
			"List of follow-up questions to research the topic further, max of %d", numFollowUpQuestions)),
	})
}

func learningsBlock(learnings []string) string {
	blocks := make([]string, len(learnings))
	for i, l := range learnings {
		blocks[i] = "<learning>\n" + l + "\n</learning>"
	}
	return strings.Join(blocks, "\n")
}

func reportPrompt(prompt string, learnings []string) string {
	return fmt.Sprintf(`Given the following prompt from the user, write a final report on the topic using the learnings from research.
Make it as detailed as possible, aim for 3 or more pages, include ALL the learnings from research:

<prompt>%s</prompt>

Here are all the learnings from previous research:

<learnings>
%s
</learnings>`, prompt, learningsBlock(learnings))
}

var reportSchema = clients.Object(map[string]*clients.Schema{
	"reportMarkdown": clients.String("Final report on the topic in Markdown"),
})

func answerPrompt(prompt string, learnings []string) string {
	return fmt.Sprintf(`Given the following prompt from the user, write a final answer on the topic using the learnings from research.
Follow the format specified in the prompt. Do not yap or babble or include any other text than the answer besides the format specified in the prompt.
Keep the answer as concise as possible - usually it should be just a few words or maximum a sentence.
Try to follow the format specified in the prompt (for example, if the prompt is using Latex, the answer should be in Latex.
If the prompt gives multiple answer choices, the answer should be one of the choices).

<prompt>%s</prompt>

Here are all the learnings from research on the topic that you can use to help answer the prompt:

<learnings>
%s
</learnings>`, prompt, learningsBlock(learnings))
}

var answerSchema = clients.Object(map[string]*clients.Schema{
	"exactAnswer": clients.String("The final answer, make it short and concise, just the answer, no other text"),
})

func feedbackPrompt(query string, numQuestions int) string {
	return fmt.Sprintf("Given the following query from the user, ask some follow up questions to clarify the research direction. "+
		"Return a maximum of %d questions, but feel free to return less if the original query is clear: <query>%s</query>", numQuestions, query)
}

var feedbackSchema = clients.Object(map[string]*clients.Schema{
	"questions": clients.StringArray("Follow up questions to clarify the research direction."),
})
