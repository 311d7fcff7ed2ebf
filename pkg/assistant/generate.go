package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/malbeclabs/pgassist/pkg/frame"
)

const systemPromptPreamble = `You are a PostgreSQL expert. Generate a single SQL query that answers the user's question.
Only use the tables and columns described in the context below. Never invent columns.

Respond with JSON only:
{
  "sql": "the SQL query",
  "explanation": "one sentence on what the query does"
}`

// GenerateResponse is the JSON shape expected from the LLM.
type GenerateResponse struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// GeneratedQuery is a SQL query generated for a question.
type GeneratedQuery struct {
	Question    string
	SQL         string
	Explanation string
}

// GenerateSQL asks the LLM for a query answering question, using the stored
// training data as context.
func (a *Assistant) GenerateSQL(ctx context.Context, question string) (GeneratedQuery, error) {
	if a.llm == nil {
		return GeneratedQuery{}, ErrNoLLM
	}
	if strings.TrimSpace(question) == "" {
		return GeneratedQuery{}, fmt.Errorf("question is required")
	}
	docs := a.store.byType(EntryDocumentation)
	examples := a.store.byType(EntrySQL)
	if len(docs) == 0 && len(examples) == 0 {
		return GeneratedQuery{}, ErrNotTrained
	}

	systemPrompt := buildSystemPrompt(docs, examples)
	response, err := a.llm.Complete(ctx, systemPrompt, question)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	sql, explanation, err := parseGenerateResponse(response)
	if err != nil {
		return GeneratedQuery{}, fmt.Errorf("failed to parse generate response: %w", err)
	}
	if sql == "" {
		return GeneratedQuery{}, fmt.Errorf("no SQL generated")
	}

	a.log.Debug("assistant: generated sql", "question", question, "sql", sql)
	return GeneratedQuery{
		Question:    question,
		SQL:         sql,
		Explanation: explanation,
	}, nil
}

// Ask generates SQL for question and runs it.
func (a *Assistant) Ask(ctx context.Context, question string) (GeneratedQuery, *frame.Frame, error) {
	generated, err := a.GenerateSQL(ctx, question)
	if err != nil {
		return GeneratedQuery{}, nil, err
	}
	result, err := a.RunSQL(ctx, generated.SQL)
	if err != nil {
		return generated, nil, fmt.Errorf("failed to run generated sql: %w", err)
	}
	return generated, result, nil
}

func buildSystemPrompt(docs, examples []TrainingEntry) string {
	var sb strings.Builder
	sb.WriteString(systemPromptPreamble)

	if len(docs) > 0 {
		sb.WriteString("\n\n## Additional Context\n")
		for _, d := range docs {
			sb.WriteString("\n")
			sb.WriteString(strings.TrimSpace(d.Content))
			sb.WriteString("\n")
		}
	}

	if len(examples) > 0 {
		sb.WriteString("\n## Example Questions\n")
		for _, e := range examples {
			fmt.Fprintf(&sb, "\nQuestion: %s\n```sql\n%s\n```\n", e.Question, e.Content)
		}
	}

	return sb.String()
}

// maxExplanationRunes caps the prose kept alongside a fenced query.
const maxExplanationRunes = 500

// sqlLeadingKeywords are the first words accepted for unfenced SQL.
var sqlLeadingKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true,
	"DELETE": true, "CREATE": true, "ALTER": true, "DROP": true,
}

// parseGenerateResponse pulls the query and its explanation out of an LLM
// reply. It accepts, in order: a JSON object, a fenced code block, bare SQL.
func parseGenerateResponse(response string) (sql, explanation string, err error) {
	response = strings.TrimSpace(response)

	if parsed, ok := decodeGenerateResponse(response); ok {
		return cleanSQL(parsed.SQL), parsed.Explanation, nil
	}

	fences, prose := splitFences(response)
	if sql := sqlFromFences(fences); sql != "" {
		return sql, truncateRunes(prose, maxExplanationRunes), nil
	}

	if looksLikeSQL(response) {
		return cleanSQL(response), "", nil
	}

	return "", "", fmt.Errorf("could not extract SQL from response")
}

// decodeGenerateResponse decodes the first JSON object in s that carries SQL.
// Text after the object is ignored.
func decodeGenerateResponse(s string) (GenerateResponse, bool) {
	for offset := 0; offset < len(s); {
		idx := strings.IndexByte(s[offset:], '{')
		if idx < 0 {
			break
		}
		offset += idx
		var parsed GenerateResponse
		if err := json.NewDecoder(strings.NewReader(s[offset:])).Decode(&parsed); err == nil && parsed.SQL != "" {
			return parsed, true
		}
		offset++
	}
	return GenerateResponse{}, false
}

type fence struct {
	lang string
	body string
}

// splitFences separates closed ``` blocks from the prose around them. An
// unclosed fence stays in the prose.
func splitFences(s string) ([]fence, string) {
	var fences []fence
	var prose strings.Builder
	for {
		open := strings.Index(s, "```")
		if open < 0 {
			break
		}
		inner := s[open+3:]
		end := strings.Index(inner, "```")
		if end < 0 {
			break
		}
		block := inner[:end]
		f := fence{body: block}
		if first, rest, ok := strings.Cut(block, "\n"); ok && !strings.ContainsAny(strings.TrimSpace(first), " \t") {
			f = fence{lang: strings.TrimSpace(first), body: rest}
		}
		fences = append(fences, f)
		prose.WriteString(s[:open])
		s = inner[end+3:]
	}
	prose.WriteString(s)
	return fences, strings.TrimSpace(prose.String())
}

// sqlFromFences prefers a block tagged sql, then any block that reads as SQL.
func sqlFromFences(fences []fence) string {
	for _, f := range fences {
		if strings.EqualFold(f.lang, "sql") {
			return cleanSQL(f.body)
		}
	}
	for _, f := range fences {
		if looksLikeSQL(f.body) {
			return cleanSQL(f.body)
		}
	}
	return ""
}

func looksLikeSQL(text string) bool {
	words := strings.Fields(text)
	return len(words) > 0 && sqlLeadingKeywords[strings.ToUpper(words[0])]
}

// cleanSQL drops surrounding whitespace and any trailing semicolons.
func cleanSQL(sql string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}

// truncateRunes shortens s to at most n runes, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
