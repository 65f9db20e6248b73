package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dealscope/internal/csvexport"
	"dealscope/internal/service"
)

const multipartMemory = 32 << 20

// AnalysisHandler handles batch analysis endpoints.
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// AskQuestionRequest is the request body for POST /api/v1/analyses/:id/questions.
type AskQuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

// Create handles POST /api/v1/analyses
// Accepts multipart form data: one or more "files" parts and an optional "weights" JSON object
// keyed by dimension (team, market, product, traction, financials).
func (h *AnalysisHandler) Create(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body exceeds the upload limit")
			return
		}
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "multipart form data is required")
		return
	}

	headers := c.Request.MultipartForm.File["files"]
	if len(headers) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILES", "at least one file is required in the files field")
		return
	}

	input := &service.AnalyzeInput{Documents: make([]service.DocumentInput, 0, len(headers))}
	for _, fh := range headers {
		doc, err := readUpload(fh)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file "+fh.Filename)
			return
		}
		input.Documents = append(input.Documents, doc)
	}

	if raw := strings.TrimSpace(c.Request.FormValue("weights")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Weights); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_WEIGHTS", "weights must be a JSON object of dimension to number")
			return
		}
	}

	report, err := h.analysisService.Analyze(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, report)
}

// GetByID handles GET /api/v1/analyses/:id
func (h *AnalysisHandler) GetByID(c *gin.Context) {
	id, ok := parseAnalysisID(c)
	if !ok {
		return
	}

	report, err := h.analysisService.GetReport(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, report)
}

// List handles GET /api/v1/analyses
func (h *AnalysisHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	reports, total, err := h.analysisService.ListReports(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, reports, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// AskQuestion handles POST /api/v1/analyses/:id/questions
func (h *AnalysisHandler) AskQuestion(c *gin.Context) {
	id, ok := parseAnalysisID(c)
	if !ok {
		return
	}

	var req AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "question is required")
		return
	}

	answer, err := h.analysisService.AskQuestion(c.Request.Context(), id, req.Question)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"analysis_id": id, "question": req.Question, "answer": answer})
}

// ArchiveURL handles GET /api/v1/analyses/:id/archive-url
func (h *AnalysisHandler) ArchiveURL(c *gin.Context) {
	id, ok := parseAnalysisID(c)
	if !ok {
		return
	}

	url, err := h.analysisService.GetArchiveURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"analysis_id": id, "url": url})
}

// ExportCSV handles GET /api/v1/analyses/:id/export/csv
// Streams the report scorecard as a CSV attachment, one row per scoring factor.
func (h *AnalysisHandler) ExportCSV(c *gin.Context) {
	id, ok := parseAnalysisID(c)
	if !ok {
		return
	}

	report, err := h.analysisService.GetReport(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := csvexport.BuildFilename(csvexport.CompanyName(report), report.Metadata.Timestamp)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	_, _ = c.Writer.Write(csvexport.BOM)
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		log.Printf("analysisHandler.ExportCSV: writing header for %s: %v", id, err)
		return
	}
	if err := w.WriteReport(report); err != nil {
		log.Printf("analysisHandler.ExportCSV: writing rows for %s: %v", id, err)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("analysisHandler.ExportCSV: flushing %s: %v", id, err)
	}
}

func parseAnalysisID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid analysis ID")
		return uuid.Nil, false
	}
	return id, true
}

func readUpload(fh *multipart.FileHeader) (service.DocumentInput, error) {
	f, err := fh.Open()
	if err != nil {
		return service.DocumentInput{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.DocumentInput{}, err
	}
	return service.DocumentInput{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
