package application

import "strings"

// sentenceAssembler optionally groups streamed reply chunks into
// sentence-sized playback items so synthesis gets natural phrasing. With
// grouping disabled every chunk becomes its own item.
type sentenceAssembler struct {
	group   bool
	maxLen  int
	pending strings.Builder
}

func newSentenceAssembler(group bool, maxLen int) *sentenceAssembler {
	if maxLen <= 0 {
		maxLen = 400
	}
	return &sentenceAssembler{group: group, maxLen: maxLen}
}

// Add feeds one chunk and returns the playback items completed by it, in
// order.
func (a *sentenceAssembler) Add(chunk string) []string {
	if chunk == "" {
		return nil
	}
	if !a.group {
		return []string{chunk}
	}

	a.pending.WriteString(chunk)
	buf := a.pending.String()

	var items []string
	for {
		cut := strings.IndexAny(buf, ".!?\n")
		if cut < 0 {
			break
		}
		item := strings.TrimSpace(buf[:cut+1])
		if item != "" {
			items = append(items, item)
		}
		buf = buf[cut+1:]
	}
	if len(buf) > a.maxLen {
		items = append(items, strings.TrimSpace(buf))
		buf = ""
	}

	a.pending.Reset()
	a.pending.WriteString(buf)
	return items
}

// Flush returns whatever is still buffered, if anything.
func (a *sentenceAssembler) Flush() string {
	out := strings.TrimSpace(a.pending.String())
	a.pending.Reset()
	return out
}
