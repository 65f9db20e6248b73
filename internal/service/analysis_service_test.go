package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealscope/internal/compress"
	"dealscope/internal/consolidate"
	"dealscope/internal/domain"
	"dealscope/internal/gateway"
	"dealscope/internal/parser"
	"dealscope/internal/port"
	"dealscope/internal/scoring"
	"dealscope/internal/service"
	"dealscope/internal/validator"
	"dealscope/mocks"
)

type fixture struct {
	extractor *mocks.MockExtractor
	repo      *mocks.MockReportRepository
	archive   *mocks.MockReportArchive
	assistant *mocks.MockProfileAssistant
	svc       service.AnalysisService
}

func newFixture(t *testing.T, cfg service.AnalysisConfig) *fixture {
	t.Helper()
	f := &fixture{
		extractor: new(mocks.MockExtractor),
		repo:      new(mocks.MockReportRepository),
		archive:   new(mocks.MockReportArchive),
		assistant: new(mocks.MockProfileAssistant),
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if cfg.LimitBytes == 0 {
		cfg.LimitBytes = 1 << 20
	}
	gw := gateway.New(f.extractor, validator.New(nil, validator.DefaultSectionPenalty), gateway.Options{
		AttemptTimeout:  time.Second,
		MaxRetries:      2,
		BackoffBase:     time.Millisecond,
		OversizedPolicy: domain.OversizedReject,
		LimitBytes:      cfg.LimitBytes,
	})
	scorer, err := scoring.NewEngine(scoring.Options{})
	require.NoError(t, err)
	f.svc = service.NewAnalysisService(
		compress.NewGuard(compress.Options{MaxSteps: 4}),
		gw,
		consolidate.NewEngine(),
		scorer,
		f.repo,
		f.archive,
		f.assistant,
		cfg,
	)
	return f
}

func output(name string, confidence float64) *port.ExtractOutput {
	fields := fmt.Sprintf(`{"company":{"name":%q,"industry":"Logistics"},"financial":{"annual_revenue":2000000},`+
		`"team":{"founder_count":2},"market":{"competitors":["Globex"]},"risks":[]}`, name)
	return &port.ExtractOutput{Fields: json.RawMessage(fields), Confidence: confidence, Model: "test-model"}
}

func forFile(name string) interface{} {
	return mock.MatchedBy(func(in port.ExtractInput) bool { return in.Filename == name })
}

func textDocs(names ...string) []service.DocumentInput {
	docs := make([]service.DocumentInput, 0, len(names))
	for _, n := range names {
		docs = append(docs, service.DocumentInput{
			Filename: n,
			MimeType: "text/plain",
			Data:     []byte("Acme Robotics investor memo for " + n),
		})
	}
	return docs
}

func TestAnalyze_AllSucceed(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	f.extractor.On("Extract", mock.Anything, forFile("a.txt")).Return(output("Acme", 80), nil)
	f.extractor.On("Extract", mock.Anything, forFile("b.md")).Return(output("Acme", 70), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.InvestmentReport")).Return(nil).Once()

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt", "b.md")})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, report.AnalysisID)
	assert.Equal(t, report.AnalysisID, report.Metadata.AnalysisID)
	assert.Equal(t, 2, report.Metadata.DocumentsAttempted)
	assert.Equal(t, 2, report.Metadata.DocumentsSucceeded)
	assert.Equal(t, "2 of 2 documents processed", report.Metadata.Summary)
	assert.Greater(t, report.Metadata.CharactersExtracted, 0)
	require.Len(t, report.Metadata.Documents, 2)
	assert.Equal(t, "text/plain", report.Metadata.Documents[0].MimeType)
	assert.Equal(t, "text/markdown", report.Metadata.Documents[1].MimeType)
	assert.Equal(t, domain.SubmissionSucceeded, report.Metadata.Documents[0].Status)
	assert.Equal(t, domain.CompressionNone, report.Metadata.Documents[0].CompressionMethod)
	require.NotNil(t, report.Profile)
	assert.Equal(t, "Acme", *report.Profile.Company.Name)
	assert.Len(t, report.Dimensions, 5)
	assert.GreaterOrEqual(t, report.Overall, 0)
	assert.LessOrEqual(t, report.Overall, 100)
	assert.Equal(t, "v1", report.RubricVersion)
	f.repo.AssertExpectations(t)
	f.archive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_BoundsConcurrentExtractions(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{Concurrency: 2})
	var inFlight, peak int32
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}).
		Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.InvestmentReport")).Return(nil).Once()

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{
		Documents: textDocs("a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"),
	})

	require.NoError(t, err)
	assert.Equal(t, 6, report.Metadata.DocumentsSucceeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
	f.extractor.AssertNumberOfCalls(t, "Extract", 6)
}

func TestAnalyze_PartialBatchLowersConfidence(t *testing.T) {
	baseline := newFixture(t, service.AnalysisConfig{})
	baseline.extractor.On("Extract", mock.Anything, forFile("a.txt")).Return(output("Acme", 80), nil)
	baseline.extractor.On("Extract", mock.Anything, forFile("b.txt")).Return(output("Acme", 70), nil)
	baseline.extractor.On("Extract", mock.Anything, forFile("c.txt")).Return(output("Acme", 90), nil)
	baseline.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	full, err := baseline.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt", "b.txt", "c.txt")})
	require.NoError(t, err)

	f := newFixture(t, service.AnalysisConfig{})
	f.extractor.On("Extract", mock.Anything, forFile("a.txt")).Return(output("Acme", 80), nil)
	f.extractor.On("Extract", mock.Anything, forFile("b.txt")).
		Return(nil, &parser.UnavailableError{Provider: "claude", StatusCode: 503, Err: errors.New("overloaded")})
	f.extractor.On("Extract", mock.Anything, forFile("c.txt")).Return(output("Acme", 90), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	partial, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt", "b.txt", "c.txt")})

	require.NoError(t, err)
	assert.Equal(t, 2, partial.Metadata.DocumentsSucceeded)
	assert.Equal(t, 2, partial.Profile.DocumentsUsed)
	assert.Equal(t, "2 of 3 documents processed", partial.Metadata.Summary)
	assert.Less(t, partial.Profile.Confidence, full.Profile.Confidence)

	failed := partial.Metadata.Documents[1]
	assert.Equal(t, domain.OutcomeTransientExhausted, failed.Outcome)
	assert.Equal(t, domain.SubmissionFailed, failed.Status)
	assert.Equal(t, 3, failed.Attempts)

	found := false
	for _, w := range partial.Warnings {
		if strings.Contains(w, "partial batch: 2 of 3 documents processed") {
			found = true
		}
	}
	assert.True(t, found, "partial batch warning missing: %v", partial.Warnings)
}

func TestAnalyze_AllDocumentsFail(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("claude: %w", parser.ErrUnsupportedContentType))

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt", "b.txt")})

	assert.Nil(t, report)
	require.ErrorIs(t, err, domain.ErrAllDocumentsFailed)
	var allErr *domain.AllDocumentsFailedError
	require.ErrorAs(t, err, &allErr)
	require.Len(t, allErr.Failures, 2)
	assert.Equal(t, "a.txt", allErr.Failures[0].Filename)
	assert.Equal(t, domain.OutcomePermanentFailure, allErr.Failures[0].Outcome)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAnalyze_CancelledBatchReturnsNoReport(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{Concurrency: 1})
	ctx, cancel := context.WithCancel(context.Background())
	f.extractor.On("Extract", mock.Anything, forFile("a.txt")).
		Run(func(mock.Arguments) { cancel() }).
		Return(output("Acme", 80), nil)
	f.extractor.On("Extract", mock.Anything, forFile("b.txt")).Return(output("Acme", 80), nil)

	report, err := f.svc.Analyze(ctx, &service.AnalyzeInput{Documents: textDocs("a.txt", "b.txt")})

	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAnalyze_InvalidWeightsFailFast(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})

	_, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{
		Documents: textDocs("a.txt"),
		Weights:   map[domain.Dimension]float64{domain.DimensionTeam: -10},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestAnalyze_WeightNormalizationWarning(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{
		Documents: textDocs("a.txt"),
		Weights:   map[domain.Dimension]float64{domain.DimensionTeam: 125},
	})

	require.NoError(t, err)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "normalized to 100")
	sum := 0.0
	for _, d := range report.Dimensions {
		sum += d.Weight
	}
	assert.InDelta(t, 100, sum, 1e-9)
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input *service.AnalyzeInput
		field string
	}{
		{"nil input", nil, "documents"},
		{"empty batch", &service.AnalyzeInput{}, "documents"},
		{"too many documents", &service.AnalyzeInput{Documents: textDocs("1.txt", "2.txt", "3.txt", "4.txt")}, "documents"},
		{"empty document", &service.AnalyzeInput{Documents: []service.DocumentInput{{Filename: "a.pdf"}}}, "documents[0]"},
		{"unsupported type", &service.AnalyzeInput{Documents: []service.DocumentInput{
			{Filename: "a.txt", Data: []byte("ok text")},
			{Filename: "b.bin", Data: []byte{0x00, 0x01, 0x02, 0x03, 0xff}},
		}}, "documents[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, service.AnalysisConfig{MaxDocuments: 3})

			_, err := f.svc.Analyze(context.Background(), tt.input)

			require.ErrorIs(t, err, domain.ErrInvalidBatch)
			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_DocumentTooLarge(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{MaxDocumentBytes: 8})

	_, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt")})

	assert.ErrorIs(t, err, domain.ErrInvalidBatch)
}

func TestAnalyze_OversizedTextRejectedButBatchContinues(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{LimitBytes: 40})
	f.extractor.On("Extract", mock.Anything, forFile("short.txt")).Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	docs := []service.DocumentInput{
		{Filename: "short.txt", Data: []byte("Acme memo")},
		{Filename: "long.txt", Data: []byte(strings.Repeat("Acme Robotics growth plan. ", 10))},
	}

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: docs})

	require.NoError(t, err)
	long := report.Metadata.Documents[1]
	assert.True(t, long.Oversized)
	assert.Equal(t, domain.SubmissionRejected, long.Status)
	assert.Equal(t, domain.ErrorKindOversized, long.ErrorKind)
	assert.Equal(t, domain.OversizedReject, long.OversizedPolicy)
	assert.Equal(t, "1 of 2 documents processed", report.Metadata.Summary)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, forFile("long.txt"))
}

func TestAnalyze_ArchivesReport(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{ArchiveEnabled: true})
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.archive.On("Put", mock.Anything,
		mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "analyses/") && strings.HasSuffix(key, "/report.json")
		}),
		mock.MatchedBy(func(body []byte) bool { return json.Valid(body) }),
	).Return(&port.ArchivedReport{Location: "s3://reports/x"}, nil).Once()

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt")})

	require.NoError(t, err)
	assert.NotNil(t, report)
	f.archive.AssertExpectations(t)
	key := f.archive.Calls[0].Arguments.String(1)
	assert.Equal(t, "analyses/"+report.AnalysisID.String()+"/report.json", key)
}

func TestAnalyze_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{ArchiveEnabled: true})
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt")})

	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestAnalyze_PersistFailure(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(output("Acme", 80), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	report, err := f.svc.Analyze(context.Background(), &service.AnalyzeInput{Documents: textDocs("a.txt")})

	assert.Nil(t, report)
	assert.ErrorContains(t, err, "saving report")
}

func TestAskQuestion(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	id := uuid.New()
	profile := &domain.ConsolidatedProfile{DocumentsUsed: 1}
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.InvestmentReport{AnalysisID: id, Profile: profile}, nil)
	f.assistant.On("Ask", mock.Anything, profile, "What is the runway?").Return("About 18 months.", nil).Once()

	answer, err := f.svc.AskQuestion(context.Background(), id, "What is the runway?")

	require.NoError(t, err)
	assert.Equal(t, "About 18 months.", answer)
	f.assistant.AssertExpectations(t)
}

func TestAskQuestion_Errors(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	missing := uuid.New()
	f.repo.On("GetByID", mock.Anything, missing).Return(nil, domain.ErrReportNotFound)

	_, err := f.svc.AskQuestion(context.Background(), uuid.New(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)

	_, err = f.svc.AskQuestion(context.Background(), missing, "Who are the founders?")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	noAssistant := service.NewAnalysisService(nil, nil, nil, nil, f.repo, nil, nil, service.AnalysisConfig{})
	_, err = noAssistant.AskQuestion(context.Background(), missing, "Who are the founders?")
	assert.ErrorIs(t, err, domain.ErrAssistantUnavailable)
}

func TestGetArchiveURL(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{ArchiveEnabled: true})
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(&domain.InvestmentReport{AnalysisID: id}, nil)
	f.archive.On("SignedURL", mock.Anything, "analyses/"+id.String()+"/report.json").
		Return("https://example.test/signed", nil).Once()

	url, err := f.svc.GetArchiveURL(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "https://example.test/signed", url)

	disabled := newFixture(t, service.AnalysisConfig{})
	_, err = disabled.svc.GetArchiveURL(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrArchiveDisabled)
}

func TestListReports(t *testing.T) {
	f := newFixture(t, service.AnalysisConfig{})
	rows := []domain.ReportSummary{{ID: uuid.New(), CompanyName: "Acme", OverallScore: 68}}
	f.repo.On("List", mock.Anything, 0, 20).Return(rows, 1, nil)

	got, total, err := f.svc.ListReports(context.Background(), 0, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, rows, got)
}
