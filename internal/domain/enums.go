package domain

// FileType represents the document formats accepted in a batch.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeWEBP FileType = "webp"
	FileTypeGIF  FileType = "gif"
	FileTypeText FileType = "txt"
)

// AllowedContentTypes maps MIME content types to FileType.
var AllowedContentTypes = map[string]FileType{
	"application/pdf": FileTypePDF,
	"image/jpeg":      FileTypeJPG,
	"image/png":       FileTypePNG,
	"image/webp":      FileTypeWEBP,
	"image/gif":       FileTypeGIF,
	"text/plain":      FileTypeText,
	"text/markdown":   FileTypeText,
}

// AllowedExtensions maps file extensions (without dot) to MIME content types.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"txt":  "text/plain",
	"md":   "text/markdown",
}

// CompressionMethod records how the Compression Guard reduced a document.
type CompressionMethod string

const (
	CompressionNone         CompressionMethod = "none"
	CompressionImageQuality CompressionMethod = "image_quality"
	CompressionImageResize  CompressionMethod = "image_resize"
	CompressionPDFOptimize  CompressionMethod = "pdf_optimize"
	CompressionPDFPageTrim  CompressionMethod = "pdf_page_trim"
	CompressionTruncate     CompressionMethod = "truncate"
)

// SubmissionStatus represents the lifecycle of a document inside one batch.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
	SubmissionRejected  SubmissionStatus = "rejected"
)

// Outcome classifies the terminal state of one document's extraction.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomePermanentFailure   Outcome = "permanent_failure"
	OutcomeTransientExhausted Outcome = "transient_failure_exhausted"
)

// ErrorKind is the explicit error class threaded from the providers to the orchestrator.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindMalformed ErrorKind = "malformed"
	ErrorKindPermanent ErrorKind = "permanent"
	ErrorKindOversized ErrorKind = "oversized"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// OversizedPolicy decides what happens to a document the Compression Guard could not shrink under the limit.
type OversizedPolicy string

const (
	OversizedReject   OversizedPolicy = "reject"
	OversizedTruncate OversizedPolicy = "truncate"
	OversizedProceed  OversizedPolicy = "proceed"
)

// IsValid reports whether p is a known policy.
func (p OversizedPolicy) IsValid() bool {
	switch p {
	case OversizedReject, OversizedTruncate, OversizedProceed:
		return true
	}
	return false
}

// Severity of a risk flag.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank with medium.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityHigh:
		return 3
	default:
		return 2
	}
}

// Dimension is one investment-scoring category.
type Dimension string

const (
	DimensionTeam       Dimension = "team"
	DimensionMarket     Dimension = "market"
	DimensionProduct    Dimension = "product"
	DimensionTraction   Dimension = "traction"
	DimensionFinancials Dimension = "financials"
)

// AllDimensions returns the scoring dimensions in report order.
func AllDimensions() []Dimension {
	return []Dimension{DimensionTeam, DimensionMarket, DimensionProduct, DimensionTraction, DimensionFinancials}
}

// IsValid reports whether d is a known dimension.
func (d Dimension) IsValid() bool {
	for _, known := range AllDimensions() {
		if d == known {
			return true
		}
	}
	return false
}

// Decision is the recommendation band of an InvestmentReport.
type Decision string

const (
	DecisionStrongInvest Decision = "strong-invest"
	DecisionInvest       Decision = "invest"
	DecisionHold         Decision = "hold"
	DecisionPass         Decision = "pass"
	DecisionStrongPass   Decision = "strong-pass"
)
