package notifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amishk599/jobsift/internal/model"
)

// DigestFormat renders a run's relevant postings into one digest message.
// The band boundaries come from config, not literals.
type DigestFormat struct {
	HighBand   float64 // "high match" lower bound
	MediumBand float64 // "medium match" lower bound
}

// Format renders the digest: a header with aggregate counts followed by one
// line per posting, highest relevance first.
func (f DigestFormat) Format(postings []model.JobPosting) string {
	sorted := make([]model.JobPosting, len(postings))
	copy(sorted, postings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})

	var high, medium, remote int
	for _, p := range sorted {
		if p.Relevance >= f.HighBand {
			high++
		} else if p.Relevance >= f.MediumBand {
			medium++
		}
		if p.Remote {
			remote++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Job digest: %d matches\n", len(sorted))
	fmt.Fprintf(&b, "🔥 %d high · ✨ %d medium · 🏠 %d remote · 🏢 %d on-site\n",
		high, medium, remote, len(sorted)-remote)

	for _, p := range sorted {
		b.WriteString("\n")
		b.WriteString(f.postingLine(p))
	}
	return b.String()
}

func (f DigestFormat) postingLine(p model.JobPosting) string {
	indicator := "✨"
	if p.Relevance >= f.HighBand {
		indicator = "🔥"
	}

	place := "🏢"
	if p.Remote {
		place = "🏠"
	}

	location := p.Location
	if location == "" {
		location = "unspecified"
	}

	line := fmt.Sprintf("%s %s — %s (%s %s) %.0f%%",
		indicator, p.Title, p.Company, place, location, p.Relevance*100)
	if p.ApplyURL != "" {
		line += "\n   " + p.ApplyURL
	}
	return line + "\n"
}

// partLabelHeadroom is reserved in every chunk for the "(Part N)\n" label
// prepended to chunks after the first.
const partLabelHeadroom = 16

// ChunkMessage splits text into transport-sized chunks at line boundaries.
// Chunks after the first carry a "(Part N)" label; every chunk, label
// included, stays within limit. A single line longer than the per-chunk
// budget is hard-split as a last resort.
func ChunkMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	budget := limit - partLabelHeadroom
	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > budget {
			chunks = flush(chunks, &current)
			chunks = append(chunks, line[:budget])
			line = line[budget:]
		}
		// +1 for the newline this line will need.
		if current.Len() > 0 && current.Len()+len(line)+1 > budget {
			chunks = flush(chunks, &current)
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	chunks = flush(chunks, &current)

	for i := 1; i < len(chunks); i++ {
		chunks[i] = fmt.Sprintf("(Part %d)\n%s", i+1, chunks[i])
	}
	return chunks
}

func flush(chunks []string, current *strings.Builder) []string {
	if current.Len() == 0 {
		return chunks
	}
	chunks = append(chunks, current.String())
	current.Reset()
	return chunks
}
