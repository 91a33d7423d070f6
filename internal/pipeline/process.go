package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"wisgen/internal/logger"
	"wisgen/internal/render"
)

// ProcessResult contains the output of one rewrite pass
type ProcessResult struct {
	Processed []string `json:"processed"` // Written processed files
	Skipped   int      `json:"skipped"`   // Already processed
	Failed    int      `json:"failed"`
}

// Processor rewrites saved HTML newsletters into cleaned, annotated pages
type Processor struct {
	documents DocumentLister
	processed ProcessedWriter
	rewriter  NewsletterRewriter
	log       *slog.Logger
}

// NewProcessor creates a newsletter processor
func NewProcessor(documents DocumentLister, processed ProcessedWriter, rewriter NewsletterRewriter, log *slog.Logger) *Processor {
	return &Processor{
		documents: documents,
		processed: processed,
		rewriter:  rewriter,
		log:       logger.Or(log),
	}
}

// Run rewrites every HTML newsletter that has no processed version yet.
func (p *Processor) Run(ctx context.Context) (*ProcessResult, error) {
	docs, err := p.documents.List()
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, doc := range docs {
		if filepath.Ext(doc.Filename) != ".html" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.processed.Exists(doc.Filename) {
			result.Skipped++
			continue
		}

		content, err := p.documents.Read(doc.Filename)
		if err != nil {
			result.Failed++
			p.log.Warn("Failed to read newsletter", "file", doc.Filename, "error", err)
			continue
		}

		res := p.rewriter.Rewrite(ctx, content)
		if !res.OK() {
			result.Failed++
			p.log.Warn("Failed to process newsletter", "file", doc.Filename, "error", res.Err)
			continue
		}

		path, err := p.processed.Write(doc.Filename, render.StripCodeFence(res.Text))
		if err != nil {
			result.Failed++
			p.log.Warn("Failed to save processed newsletter", "file", doc.Filename, "error", err)
			continue
		}
		result.Processed = append(result.Processed, path)
		p.log.Info("Processed newsletter", "file", doc.Filename, "path", path)
	}
	return result, nil
}
