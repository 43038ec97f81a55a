package diffproc

import (
	"regexp"
	"strings"

	"github.com/codecritics/codecritic/internal/config"
	"github.com/codecritics/codecritic/internal/domain"
)

// fileDiffPattern matches the "diff --git a/path b/path" boundary a unified
// diff uses to separate per-file sections.
var fileDiffPattern = regexp.MustCompile(`(?m)^diff --git\s+\S+\s+(\S+)`)

// Chunk is one file-boundary-respecting slice of a larger diff.
type Chunk struct {
	Path    string
	Content string
}

// Processor applies the chunking, extension filter, and size policy that
// decide whether (and in what form) a diff reaches the LLM Gateway.
type Processor struct {
	maxDiffSize         int
	largeDiffMultiplier float64
	chunkByteBudget     int
	allowedExtensions   map[string]bool
}

func NewProcessor(cfg *config.Config) *Processor {
	allowed := make(map[string]bool, len(cfg.Diff.AllowedExtensions))
	for _, ext := range cfg.Diff.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Processor{
		maxDiffSize:         cfg.Diff.MaxDiffSize,
		largeDiffMultiplier: cfg.Diff.LargeDiffMultiplier,
		chunkByteBudget:     cfg.Diff.ChunkByteBudget,
		allowedExtensions:   allowed,
	}
}

// Result is the outcome of applying the size-adaptive policy to a diff.
type Result struct {
	Diff       string // the (possibly filtered) diff to send to the LLM; empty if skipped
	Skipped    bool
	SkipReason domain.SkipReason
}

// Chunk splits a unified diff at file boundaries, greedily packing chunks up
// to the configured byte budget. A chunk never straddles a file boundary
// unless a single file already exceeds the budget, in which case that file
// forms its own (oversized) chunk.
func (p *Processor) Chunk(diff string) []Chunk {
	files := splitFiles(diff)
	if len(files) == 0 {
		return nil
	}

	var chunks []Chunk
	var cur strings.Builder
	curPath := ""

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, Chunk{Path: curPath, Content: cur.String()})
			cur.Reset()
			curPath = ""
		}
	}

	for _, f := range files {
		if len(f.content) > p.chunkByteBudget {
			flush()
			chunks = append(chunks, Chunk{Path: f.path, Content: f.content})
			continue
		}
		if cur.Len()+len(f.content) > p.chunkByteBudget && cur.Len() > 0 {
			flush()
		}
		if curPath == "" {
			curPath = f.path
		}
		cur.WriteString(f.content)
	}
	flush()

	return chunks
}

type fileDiff struct {
	path    string
	content string
}

// splitFiles partitions a unified diff into its "diff --git" sections.
func splitFiles(diff string) []fileDiff {
	matches := fileDiffPattern.FindAllStringSubmatchIndex(diff, -1)
	if len(matches) == 0 {
		if strings.TrimSpace(diff) == "" {
			return nil
		}
		return []fileDiff{{path: "", content: diff}}
	}

	files := make([]fileDiff, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(diff)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		path := strings.TrimPrefix(diff[m[2]:m[3]], "b/")
		files = append(files, fileDiff{path: path, content: diff[start:end]})
	}
	return files
}

// FilterByExtension keeps only chunks whose file ends (case-insensitively)
// in an allowed extension.
func (p *Processor) FilterByExtension(chunks []Chunk) []Chunk {
	if len(p.allowedExtensions) == 0 {
		return chunks
	}
	var kept []Chunk
	for _, c := range chunks {
		if p.hasAllowedExtension(c.Path) {
			kept = append(kept, c)
		}
	}
	return kept
}

func (p *Processor) hasAllowedExtension(path string) bool {
	lower := strings.ToLower(path)
	for ext := range p.allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Apply runs the full size-adaptive policy: below maxDiffSize, the diff
// passes through unfiltered; above it, the extension filter is applied, and
// the result is skipped if it is empty or still too large.
func (p *Processor) Apply(diff string) Result {
	if len(diff) <= p.maxDiffSize {
		return Result{Diff: diff}
	}

	chunks := p.FilterByExtension(p.Chunk(diff))
	if len(chunks) == 0 {
		return Result{Skipped: true, SkipReason: domain.SkipNoSupportedFiles}
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	filtered := sb.String()

	if float64(len(filtered)) > float64(p.maxDiffSize)*p.largeDiffMultiplier {
		return Result{Skipped: true, SkipReason: domain.SkipDiffTooLarge}
	}

	return Result{Diff: filtered}
}
