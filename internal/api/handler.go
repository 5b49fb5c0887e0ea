// Package api exposes the statement parser over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/releve-parser/internal/database"
	"github.com/insightdelivered/releve-parser/internal/extractor"
	"github.com/insightdelivered/releve-parser/internal/models"
	"github.com/insightdelivered/releve-parser/internal/parser"
	"github.com/insightdelivered/releve-parser/internal/writer"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// PageBreak separates pages in the extractedText form field.
const PageBreak = "\n---PAGE_BREAK---\n"

const requestIDHeader = "X-Request-ID"

// ParseResponse is the JSON response from the /api/parse endpoint.
type ParseResponse struct {
	Success      bool                  `json:"success"`
	Error        string                `json:"error,omitempty"`
	Kind         string                `json:"kind,omitempty"`
	RequestID    string                `json:"requestId,omitempty"`
	Bank         string                `json:"bank,omitempty"`
	Document     string                `json:"document,omitempty"`
	EmissionDate string                `json:"emissionDate,omitempty"`
	Headers      []string              `json:"headers,omitempty"`
	Accounts     []models.AccountBlock `json:"accounts,omitempty"`
	Transactions []models.Transaction  `json:"transactions"`
	Count        int                   `json:"count"`
	TotalCredit  decimal.Decimal       `json:"totalCredit"`
	TotalDebit   decimal.Decimal       `json:"totalDebit"`
	TotalUnknown decimal.Decimal       `json:"totalUnknown"`
	CSV          string                `json:"csv,omitempty"`
	StatementID  int64                 `json:"statementId,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Parser *parser.Parser
	// DB, when set, stores every parsed statement and enables
	// /api/transactions and /api/statements.
	DB     *database.DB
	Logger zerolog.Logger
}

// NewApp returns a fiber app with middleware and routes registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "releve-parser",
		BodyLimit:             32 << 20,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(h.requestLogger)
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the API routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/parse", h.HandleParse)
	app.Get("/api/transactions", h.HandleTransactions)
	app.Get("/api/statements", h.HandleStatements)
}

// requestLogger tags every request with an ID and logs its outcome.
func (h *Handler) requestLogger(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Locals("requestid", id)
	c.Set(requestIDHeader, id)

	start := time.Now()
	err := c.Next()
	if err != nil {
		// Let the error handler set the final status before logging.
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	h.Logger.Info().
		Str("request_id", id).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("latency", time.Since(start)).
		Msg("request")
	return nil
}

func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return writeError(c, status, err.Error(), "")
}

// HandleHealth reports service status.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"bank":    h.Parser.BankName(),
		"version": Version,
		"storage": h.DB != nil,
	})
}

// HandleParse parses an uploaded statement. The form carries either a
// "file" (.pdf or .txt) or "extractedText" with pages joined by PageBreak.
// Readable extracted text wins over server-side extraction of the file.
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	includeHeader := c.FormValue("header") != "false"
	document := c.FormValue("document")

	var pages []string
	if text := c.FormValue("extractedText"); text != "" {
		pages = splitExtractedText(text)
	}

	fh, fileErr := c.FormFile("file")
	if fileErr == nil && document == "" {
		document = fh.Filename
	}

	if fileErr == nil && !extractor.IsReadableText(pages) {
		if !extractor.Supported(fh.Filename) {
			return writeError(c, fiber.StatusBadRequest, "Only .pdf and .txt files are supported.", "")
		}
		tmpDir, err := os.MkdirTemp("", "releve-upload-*")
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to create temp directory.", "")
		}
		defer os.RemoveAll(tmpDir)

		tmpPath := filepath.Join(tmpDir, "upload"+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := c.SaveFile(fh, tmpPath); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Failed to save uploaded file.", "")
		}

		extracted, err := extractor.Load(tmpPath)
		if err != nil {
			return writeError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Extraction failed: %v", err), "extraction")
		}
		pages = extracted
	}

	if len(pages) == 0 {
		return writeError(c, fiber.StatusBadRequest, "No input. Use form field 'file' or 'extractedText'.", "")
	}
	if document == "" {
		document = "extracted-text"
	}

	stmt, err := h.Parser.Parse(document, pages)
	if err != nil {
		var docErr *parser.DocumentError
		if errors.As(err, &docErr) {
			return writeError(c, fiber.StatusUnprocessableEntity, err.Error(), docErr.Kind())
		}
		return writeError(c, fiber.StatusInternalServerError, err.Error(), "")
	}

	var csvBuf bytes.Buffer
	csvWriter := &writer.CSVWriter{IncludeHeader: includeHeader}
	if err := csvWriter.Write(&csvBuf, stmt); err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err), "")
	}

	credit, debit, unknown := stmt.Totals()
	resp := ParseResponse{
		Success:      true,
		RequestID:    requestID(c),
		Bank:         h.Parser.BankName(),
		Document:     stmt.Document,
		EmissionDate: stmt.EmissionDate.Format(time.DateOnly),
		Headers:      stmt.Headers,
		Accounts:     stmt.Accounts,
		Transactions: stmt.Transactions,
		Count:        len(stmt.Transactions),
		TotalCredit:  credit,
		TotalDebit:   debit,
		TotalUnknown: unknown,
		CSV:          csvBuf.String(),
	}

	if h.DB != nil {
		id, err := h.DB.SaveStatement(c.UserContext(), stmt)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Failed to store statement: %v", err), "")
		}
		resp.StatementID = id
	}

	return c.JSON(resp)
}

// HandleTransactions lists stored transactions, optionally for one account
// (?account=ID).
func (h *Handler) HandleTransactions(c *fiber.Ctx) error {
	if h.DB == nil {
		return writeError(c, fiber.StatusNotFound, "Storage is not enabled.", "")
	}
	txns, err := h.DB.ListTransactions(c.UserContext(), c.Query("account"))
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error(), "")
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"count":        len(txns),
		"transactions": txns,
	})
}

// StatementEntry describes one stored statement.
type StatementEntry struct {
	ID           int64  `json:"id"`
	Document     string `json:"document"`
	EmissionDate string `json:"emissionDate"`
	Transactions int    `json:"transactions"`
}

// HandleStatements lists stored statements, oldest emission first.
func (h *Handler) HandleStatements(c *fiber.Ctx) error {
	if h.DB == nil {
		return writeError(c, fiber.StatusNotFound, "Storage is not enabled.", "")
	}
	stored, err := h.DB.ListStatements(c.UserContext())
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, err.Error(), "")
	}
	entries := make([]StatementEntry, 0, len(stored))
	for _, s := range stored {
		entries = append(entries, StatementEntry{
			ID:           s.ID,
			Document:     s.Document,
			EmissionDate: s.EmissionDate.Format(time.DateOnly),
			Transactions: s.Transactions,
		})
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"count":      len(entries),
		"statements": entries,
	})
}

func splitExtractedText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages []string
	for _, page := range strings.Split(text, PageBreak) {
		if strings.TrimSpace(page) == "" {
			continue
		}
		if !strings.HasSuffix(page, "\n") {
			page += "\n"
		}
		pages = append(pages, page)
	}
	return pages
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func writeError(c *fiber.Ctx, status int, msg, kind string) error {
	return c.Status(status).JSON(ParseResponse{
		Success:      false,
		Error:        msg,
		Kind:         kind,
		RequestID:    requestID(c),
		Transactions: []models.Transaction{},
	})
}
