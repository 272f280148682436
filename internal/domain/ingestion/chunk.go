package ingestion

import (
	"regexp"
	"strings"
)

// Section names recognised in opinion text.
const (
	SectionSyllabus   = "syllabus"
	SectionOpinion    = "opinion"
	SectionConcurring = "concurring"
	SectionDissenting = "dissenting"
	SectionBackground = "background"
	SectionDiscussion = "discussion"
	SectionConclusion = "conclusion"
	SectionBody       = "body"
)

var sectionHeadings = []struct {
	name string
	re   *regexp.Regexp
}{
	{SectionSyllabus, regexp.MustCompile(`(?m)^\s*SYLLABUS\b`)},
	{SectionOpinion, regexp.MustCompile(`(?m)^\s*OPINION\b`)},
	{SectionConcurring, regexp.MustCompile(`(?m)^\s*CONCUR(?:RING|RENCE)?\b`)},
	{SectionDissenting, regexp.MustCompile(`(?m)^\s*DISSENT(?:ING)?\b`)},
	{SectionBackground, regexp.MustCompile(`(?m)^\s*(?:I\.\s*)?BACKGROUND\b`)},
	{SectionDiscussion, regexp.MustCompile(`(?m)^\s*(?:II\.\s*)?DISCUSSION\b`)},
	{SectionConclusion, regexp.MustCompile(`(?m)^\s*(?:III\.\s*)?CONCLUSION\b`)},
}

// Chunk is a window of an opinion prepared for embedding.
type Chunk struct {
	CaseID  string
	Index   int
	Section string
	Text    string
}

// IdentifySections splits text at upper-case section headings. Text before
// the first heading, or text with none, is reported as SectionBody.
func IdentifySections(text string) map[string]string {
	type mark struct {
		name string
		pos  int
	}
	var marks []mark
	for _, h := range sectionHeadings {
		if loc := h.re.FindStringIndex(text); loc != nil {
			marks = append(marks, mark{h.name, loc[0]})
		}
	}
	out := map[string]string{}
	if len(marks) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			out[SectionBody] = t
		}
		return out
	}
	for i := 1; i < len(marks); i++ {
		for j := i; j > 0 && marks[j].pos < marks[j-1].pos; j-- {
			marks[j], marks[j-1] = marks[j-1], marks[j]
		}
	}
	if head := strings.TrimSpace(text[:marks[0].pos]); head != "" {
		out[SectionBody] = head
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].pos
		}
		out[m.name] = strings.TrimSpace(text[m.pos:end])
	}
	return out
}

// ChunkWords splits text into windows of size words overlapping by overlap
// words. overlap must be smaller than size.
func ChunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap
	var out []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// ChunkCase chunks every section of a case's content.
func ChunkCase(caseID, content string, size, overlap int) []Chunk {
	sections := IdentifySections(content)
	order := []string{SectionBody, SectionSyllabus, SectionOpinion, SectionBackground,
		SectionDiscussion, SectionConclusion, SectionConcurring, SectionDissenting}

	var chunks []Chunk
	for _, name := range order {
		body, ok := sections[name]
		if !ok {
			continue
		}
		for _, w := range ChunkWords(body, size, overlap) {
			chunks = append(chunks, Chunk{CaseID: caseID, Index: len(chunks), Section: name, Text: w})
		}
	}
	return chunks
}

//Personal.AI order the ending
