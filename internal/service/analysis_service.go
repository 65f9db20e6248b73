package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dealscope/internal/compress"
	"dealscope/internal/consolidate"
	"dealscope/internal/domain"
	"dealscope/internal/gateway"
	"dealscope/internal/port"
	"dealscope/internal/scoring"
)

// DocumentInput is one uploaded file of a batch.
type DocumentInput struct {
	Filename string
	MimeType string
	Data     []byte
}

// AnalyzeInput is the DTO for analyzing a document batch.
type AnalyzeInput struct {
	Documents []DocumentInput
	Weights   map[domain.Dimension]float64
}

// AnalysisConfig holds the orchestration settings of the analysis pipeline.
type AnalysisConfig struct {
	Concurrency      int
	MaxDocuments     int
	MaxDocumentBytes int64
	LimitBytes       int64
	DefaultWeights   map[domain.Dimension]float64
	ArchiveEnabled   bool
}

// AnalysisService defines the batch analysis contract.
type AnalysisService interface {
	Analyze(ctx context.Context, input *AnalyzeInput) (*domain.InvestmentReport, error)
	GetReport(ctx context.Context, id uuid.UUID) (*domain.InvestmentReport, error)
	ListReports(ctx context.Context, offset, limit int) ([]domain.ReportSummary, int, error)
	AskQuestion(ctx context.Context, id uuid.UUID, question string) (string, error)
	GetArchiveURL(ctx context.Context, id uuid.UUID) (string, error)
}

type analysisService struct {
	guard        *compress.Guard
	gateway      *gateway.Gateway
	consolidator *consolidate.Engine
	scorer       *scoring.Engine
	reportRepo   port.ReportRepository
	archive      port.ReportArchive
	assistant    port.ProfileAssistant
	cfg          AnalysisConfig
}

// NewAnalysisService creates a new AnalysisService implementation.
// reportRepo, archive and assistant are optional; nil disables persistence, archiving and Q&A.
func NewAnalysisService(
	guard *compress.Guard,
	gw *gateway.Gateway,
	consolidator *consolidate.Engine,
	scorer *scoring.Engine,
	reportRepo port.ReportRepository,
	archive port.ReportArchive,
	assistant port.ProfileAssistant,
	cfg AnalysisConfig,
) AnalysisService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.DefaultWeights == nil {
		cfg.DefaultWeights = scoring.DefaultWeights()
	}
	return &analysisService{
		guard:        guard,
		gateway:      gw,
		consolidator: consolidator,
		scorer:       scorer,
		reportRepo:   reportRepo,
		archive:      archive,
		assistant:    assistant,
		cfg:          cfg,
	}
}

func (s *analysisService) Analyze(ctx context.Context, input *AnalyzeInput) (*domain.InvestmentReport, error) {
	start := time.Now()

	docs, err := s.buildBatch(input)
	if err != nil {
		return nil, err
	}
	weights, warnings, err := scoring.ResolveWeights(s.cfg.DefaultWeights, input.Weights)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Printf("analysisService.Analyze: %s", w)
	}

	log.Printf("analysisService.Analyze: processing %d documents (concurrency %d)", len(docs), s.cfg.Concurrency)

	results := make([]domain.ExtractionResult, len(docs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range docs {
		i := i
		g.Go(func() error {
			results[i] = s.processDocument(ctx, &docs[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		log.Printf("analysisService.Analyze: batch cancelled, discarding %d results: %v", len(results), err)
		return nil, err
	}

	succeeded := 0
	var failures []domain.DocumentFailure
	for i := range results {
		r := &results[i]
		if r.Succeeded() {
			succeeded++
			continue
		}
		log.Printf("analysisService.Analyze: document %s failed (%s): %s", r.Filename, r.Outcome, r.Error)
		failures = append(failures, domain.DocumentFailure{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Outcome:    r.Outcome,
			ErrorKind:  r.ErrorKind,
			Error:      r.Error,
		})
	}
	if succeeded == 0 {
		return nil, &domain.AllDocumentsFailedError{Failures: failures}
	}

	profile := s.consolidator.Consolidate(results)
	scored, err := s.scorer.Score(profile, weights)
	if err != nil {
		return nil, fmt.Errorf("scoring profile: %w", err)
	}

	report := assembleReport(docs, results, profile, scored)
	report.Warnings = append(warnings, report.Warnings...)
	if succeeded < len(docs) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"partial batch: %s, profile confidence reduced to %.1f", report.Metadata.Summary, profile.Confidence))
	}
	report.Metadata.ElapsedMs = time.Since(start).Milliseconds()

	if s.reportRepo != nil {
		if err := s.reportRepo.Create(ctx, report); err != nil {
			log.Printf("analysisService.Analyze: failed to save report %s: %v", report.AnalysisID, err)
			return nil, fmt.Errorf("saving report: %w", err)
		}
	}
	s.archiveReport(ctx, report)

	log.Printf("analysisService.Analyze: report %s: overall %d, decision %s, %s",
		report.AnalysisID, report.Overall, report.Decision, report.Metadata.Summary)
	return report, nil
}

// processDocument compresses and extracts one document. It writes only to doc.
func (s *analysisService) processDocument(ctx context.Context, doc *domain.Document) domain.ExtractionResult {
	if s.cfg.LimitBytes > 0 {
		c := s.guard.Compress(doc.Bytes, doc.MimeType, s.cfg.LimitBytes)
		doc.Bytes = c.Data
		doc.MimeType = c.MimeType
		doc.CompressedSize = c.CompressedSize
		doc.CompressionMethod = c.Method
		doc.Oversized = c.Exceeded
		if c.Method != domain.CompressionNone {
			log.Printf("analysisService.processDocument: %s compressed %d -> %d bytes (%s, %d steps)",
				doc.Filename, c.OriginalSize, c.CompressedSize, c.Method, c.Steps)
		}
	}

	docCtx, cancel := context.WithTimeout(ctx, s.gateway.Budget())
	defer cancel()

	doc.Status = domain.SubmissionSubmitted
	res := s.gateway.Submit(docCtx, *doc)
	switch {
	case res.Succeeded():
		doc.Status = domain.SubmissionSucceeded
	case res.ErrorKind == domain.ErrorKindOversized:
		doc.Status = domain.SubmissionRejected
	default:
		doc.Status = domain.SubmissionFailed
	}
	if res.OversizedPolicy == domain.OversizedTruncate {
		doc.CompressionMethod = domain.CompressionTruncate
		doc.CompressedSize = res.SubmittedSize
	}
	doc.Bytes = nil
	return res
}

func (s *analysisService) buildBatch(input *AnalyzeInput) ([]domain.Document, error) {
	if input == nil || len(input.Documents) == 0 {
		return nil, &domain.ValidationError{Field: "documents", Reason: "at least one document is required"}
	}
	if s.cfg.MaxDocuments > 0 && len(input.Documents) > s.cfg.MaxDocuments {
		return nil, &domain.ValidationError{
			Field:  "documents",
			Reason: fmt.Sprintf("%d documents exceeds the maximum of %d", len(input.Documents), s.cfg.MaxDocuments),
		}
	}

	docs := make([]domain.Document, len(input.Documents))
	for i, in := range input.Documents {
		field := fmt.Sprintf("documents[%d]", i)
		if len(in.Data) == 0 {
			return nil, &domain.ValidationError{Field: field, Reason: "document is empty"}
		}
		if s.cfg.MaxDocumentBytes > 0 && int64(len(in.Data)) > s.cfg.MaxDocumentBytes {
			return nil, &domain.ValidationError{
				Field:  field,
				Reason: fmt.Sprintf("%d bytes exceeds the maximum of %d", len(in.Data), s.cfg.MaxDocumentBytes),
			}
		}
		mimeType, ok := detectMimeType(in.Filename, in.Data)
		if !ok {
			return nil, &domain.ValidationError{Field: field, Reason: fmt.Sprintf("unsupported file type %q", mimeType)}
		}
		filename := in.Filename
		if filename == "" {
			filename = fmt.Sprintf("document-%d", i+1)
		}
		docs[i] = domain.Document{
			ID:                uuid.New(),
			Index:             i,
			Filename:          filename,
			MimeType:          mimeType,
			SubmittedMimeType: in.MimeType,
			RawSize:           int64(len(in.Data)),
			CompressedSize:    int64(len(in.Data)),
			CompressionMethod: domain.CompressionNone,
			Status:            domain.SubmissionPending,
			Bytes:             in.Data,
		}
	}
	return docs, nil
}

// detectMimeType sniffs the content type from magic bytes. Plain text is refined by extension.
func detectMimeType(filename string, data []byte) (string, bool) {
	detected, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "", false
	}
	if detected == "text/plain" {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
		if byExt, ok := domain.AllowedExtensions[ext]; ok && strings.HasPrefix(byExt, "text/") {
			detected = byExt
		}
	}
	_, ok := domain.AllowedContentTypes[detected]
	return detected, ok
}

func assembleReport(docs []domain.Document, results []domain.ExtractionResult, profile *domain.ConsolidatedProfile, scored *scoring.Result) *domain.InvestmentReport {
	id := uuid.New()
	meta := domain.ProcessingMetadata{
		AnalysisID:         id,
		Timestamp:          time.Now().UTC(),
		DocumentsAttempted: len(docs),
		Documents:          make([]domain.DocumentOutcome, len(docs)),
	}
	for i := range docs {
		d, r := &docs[i], &results[i]
		if r.Succeeded() {
			meta.DocumentsSucceeded++
			meta.CharactersExtracted += r.CharactersExtracted
		}
		meta.Documents[i] = domain.DocumentOutcome{
			DocumentID:        d.ID,
			Filename:          d.Filename,
			MimeType:          d.MimeType,
			Status:            d.Status,
			Outcome:           r.Outcome,
			ErrorKind:         r.ErrorKind,
			Error:             r.Error,
			RawSize:           d.RawSize,
			CompressedSize:    d.CompressedSize,
			CompressionMethod: d.CompressionMethod,
			Oversized:         d.Oversized,
			OversizedPolicy:   r.OversizedPolicy,
			Attempts:          r.Attempts,
			Confidence:        r.Confidence,
		}
	}
	meta.Summary = fmt.Sprintf("%d of %d documents processed", meta.DocumentsSucceeded, meta.DocumentsAttempted)

	return &domain.InvestmentReport{
		AnalysisID:    id,
		Overall:       scored.Overall,
		Decision:      scored.Decision,
		BandDecision:  scored.BandDecision,
		LowData:       scored.LowData,
		RubricVersion: scored.RubricVersion,
		Dimensions:    scored.Dimensions,
		Profile:       profile,
		Metadata:      meta,
		Warnings:      scored.Warnings,
	}
}

// archiveReport stores the report JSON snapshot. Failures are logged, never returned.
func (s *analysisService) archiveReport(ctx context.Context, report *domain.InvestmentReport) {
	if s.archive == nil || !s.cfg.ArchiveEnabled {
		return
	}
	body, err := json.Marshal(report)
	if err != nil {
		log.Printf("analysisService.archiveReport: failed to marshal report %s: %v", report.AnalysisID, err)
		return
	}
	out, err := s.archive.Put(ctx, archiveKey(report.AnalysisID), body)
	if err != nil {
		log.Printf("analysisService.archiveReport: upload failed for report %s: %v", report.AnalysisID, err)
		return
	}
	log.Printf("analysisService.archiveReport: report %s archived at %s", report.AnalysisID, out.Location)
}

func archiveKey(id uuid.UUID) string {
	return fmt.Sprintf("analyses/%s/report.json", id)
}

func (s *analysisService) GetReport(ctx context.Context, id uuid.UUID) (*domain.InvestmentReport, error) {
	if s.reportRepo == nil {
		return nil, domain.ErrReportNotFound
	}
	return s.reportRepo.GetByID(ctx, id)
}

func (s *analysisService) ListReports(ctx context.Context, offset, limit int) ([]domain.ReportSummary, int, error) {
	if s.reportRepo == nil {
		return []domain.ReportSummary{}, 0, nil
	}
	return s.reportRepo.List(ctx, offset, limit)
}

func (s *analysisService) AskQuestion(ctx context.Context, id uuid.UUID, question string) (string, error) {
	if s.assistant == nil {
		return "", domain.ErrAssistantUnavailable
	}
	if strings.TrimSpace(question) == "" {
		return "", domain.ErrEmptyQuestion
	}
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return "", err
	}
	log.Printf("analysisService.AskQuestion: answering question for report %s", id)
	return s.assistant.Ask(ctx, report.Profile, question)
}

func (s *analysisService) GetArchiveURL(ctx context.Context, id uuid.UUID) (string, error) {
	if s.archive == nil || !s.cfg.ArchiveEnabled {
		return "", domain.ErrArchiveDisabled
	}
	if _, err := s.GetReport(ctx, id); err != nil {
		return "", err
	}
	return s.archive.SignedURL(ctx, archiveKey(id))
}
