package selector

import (
	"fmt"
	"strings"

	"github.com/askql/askql/internal/retriever"
)

// schemasPerPrompt caps how many candidate schemas are shown to the model.
const schemasPerPrompt = 3

// synonymWhitelist lists the only concept equivalences the model may use
// when matching question terms to column names. Anything outside this list
// must trigger the ambiguous outcome instead of a guessed query.
var synonymWhitelist = []string{
	"sales ~ orders",
	"customer ~ buyer",
	"product ~ item",
	"name ~ title",
	"count ~ quantity ~ amount",
	"wealth ~ net_worth",
}

// buildSelectionPrompt renders the routing-and-synthesis prompt: the top
// candidate schemas as full CREATE TABLE definitions, the response protocol,
// and the hallucination guard.
func buildSelectionPrompt(question string, candidates []retriever.Candidate) string {
	var sb strings.Builder

	sb.WriteString("You are an expert at writing SQLite SELECT queries.\n")
	sb.WriteString("Below are the schemas of the candidate databases, ranked by relevance to the question.\n\n")

	shown := candidates
	if len(shown) > schemasPerPrompt {
		shown = shown[:schemasPerPrompt]
	}

	for _, candidate := range shown {
		fmt.Fprintf(&sb, "-- Database: %s\n", candidate.Name)

		if candidate.Schema != nil {
			sb.WriteString(candidate.Schema.CreateSQL())
		}

		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Question: %s\n\n", question)

	sb.WriteString(`Respond in exactly one of these formats:

1. If the question maps onto one database and its columns:
DATABASE: <database name>
SQL: <a single SQLite SELECT statement, terminated by a semicolon>

2. If the question is plausible but a concept in it has no matching column:
AMBIGUOUS: <a suggested rephrasing using actual column names>

3. If the question is not about any of these databases:
IRRELEVANT: <what the question seems to be about instead>

4. If the question is understood but the requested data exists in no schema:
UNAVAILABLE: <a short explanation of what is missing>

Rules:
- Use only tables and columns that appear verbatim in the schemas above.
- A question term matches a column only if the names are equal or the pair
  appears in this synonym list: ` + strings.Join(synonymWhitelist, ", ") + `.
- When a concept in the question has no such match, answer AMBIGUOUS instead
  of inventing a query. Never guess a column name.
- Produce exactly one SELECT statement. No mutations, no multiple statements.
`)

	return sb.String()
}

// buildExplanationPrompt asks for a one-sentence summary of a query result.
func buildExplanationPrompt(question, sqlQuery string, rowCount int) string {
	return fmt.Sprintf(
		"The question %q was answered by the SQL query %q, which returned %d row(s). "+
			"Summarize the answer in one short sentence of plain language. "+
			"Do not mention SQL.",
		question, sqlQuery, rowCount)
}
