// Package formatter cleans AI-generated blog content into publishable HTML.
//
// The Processor runs a fixed sequence of best-effort stages: raw text
// cleanup, markdown rendering, duplicate title removal, DOM repair,
// sanitizing and a final structure pass. Every stage is allowed to fail
// quietly; the processor never returns an error and falls back to the
// original input whenever the output looks like a regression.
package formatter

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/backlinkoo/blog-engine/internal/metrics"
)

const (
	defaultMinTextRatio     = 0.2
	defaultMaxHeadingLength = 80
)

// Result describes the outcome of a Process call.
type Result struct {
	HTML     string   `json:"html"`
	Fallback bool     `json:"fallback"`
	Applied  []string `json:"applied,omitempty"`
}

// Processor runs the cleanup pipeline. It is safe for concurrent use.
type Processor struct {
	policy           *bluemonday.Policy
	markdown         goldmark.Markdown
	logger           *zap.Logger
	minTextRatio     float64
	maxHeadingLength int
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger attaches a logger used for stage diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMinTextRatio sets how much of the input's visible text must survive
// before the output is accepted.
func WithMinTextRatio(ratio float64) Option {
	return func(p *Processor) {
		if ratio > 0 && ratio <= 1 {
			p.minTextRatio = ratio
		}
	}
}

// WithMaxHeadingLength caps heading text length.
func WithMaxHeadingLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxHeadingLength = n
		}
	}
}

// New builds a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		policy:           newPolicy(),
		markdown:         newMarkdown(),
		logger:           zap.NewNop(),
		minTextRatio:     defaultMinTextRatio,
		maxHeadingLength: defaultMaxHeadingLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format returns the cleaned HTML for content.
func (p *Processor) Format(content, title string) string {
	return p.Process(content, title).HTML
}

// Process cleans content. Title is optional; when present, a leading copy of
// it is removed from the body.
func (p *Processor) Process(content, title string) Result {
	if strings.TrimSpace(content) == "" {
		return Result{HTML: content}
	}

	run := &pipelineRun{processor: p, text: content, title: cleanTitle(title)}
	run.stage("text", run.textStage)
	run.stage("markup", run.markupStage)
	run.stage("title", run.titleStage)
	run.stage("dom", run.domStage)
	run.stage("sanitize", run.sanitizeStage)
	run.stage("structure", run.structureStage)

	if p.regressed(content, run.text) {
		p.logger.Debug("formatter fell back to original input",
			zap.Int("input_len", len(content)),
			zap.Int("output_len", len(run.text)),
		)
		metrics.ObserveFormat("fallback")
		return Result{HTML: content, Fallback: true}
	}
	metrics.ObserveFormat("ok")
	return Result{HTML: run.text, Applied: run.applied}
}

type pipelineRun struct {
	processor *Processor
	text      string
	title     string
	applied   []string
}

// stage runs fn and records it when the text changed. A panicking stage is
// skipped.
func (r *pipelineRun) stage(name string, fn func(string) string) {
	before := r.text
	out, err := safeApply(fn, before)
	if err != nil {
		r.processor.logger.Debug("formatter stage skipped", zap.String("stage", name), zap.Error(err))
		return
	}
	if out != before {
		r.applied = append(r.applied, name)
	}
	r.text = out
}

func safeApply(fn func(string) string, in string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()
	return fn(in), nil
}

func (r *pipelineRun) textStage(s string) string {
	out, fmTitle := cleanText(s)
	if r.title == "" && fmTitle != "" {
		r.title = cleanTitle(fmTitle)
	}
	return out
}

func (r *pipelineRun) markupStage(s string) string {
	return r.processor.toHTML(s)
}

func (r *pipelineRun) titleStage(s string) string {
	return removeDuplicateTitle(s, r.title)
}

func (r *pipelineRun) domStage(s string) string {
	return repairDOM(s, domOptions{
		title:            r.title,
		maxHeadingLength: r.processor.maxHeadingLength,
	})
}

func (r *pipelineRun) sanitizeStage(s string) string {
	return r.processor.policy.Sanitize(s)
}

func (r *pipelineRun) structureStage(s string) string {
	return ensureStructure(finalCleanup(s))
}

// regressed reports whether out should be discarded in favour of in.
func (p *Processor) regressed(in, out string) bool {
	if strings.TrimSpace(out) == "" {
		return true
	}
	inText := visibleLength(in)
	if inText == 0 {
		return false
	}
	return float64(visibleLength(out)) < float64(inText)*p.minTextRatio
}
