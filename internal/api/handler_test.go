package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/releve-parser/internal/database"
	"github.com/insightdelivered/releve-parser/internal/parser"
)

const page1 = `Relevé de vos comptes - n°1
Relevé édité le 15 janvier 2023
Vos opérations
Date
Opération
Ancien solde
Compte Courant Postal n°12 345 67A 020
28/12
ACHAT CB BOULANGERIE
4,50
30/12
VIREMENT DE M DUPONT
1 234,56
`

const page2 = `Livret A n°98 765 43B 021
12/01
OPERATION MYSTERE
5,00
`

func setupTestApp(t *testing.T, withDB bool) *fiber.App {
	t.Helper()
	h := &Handler{Parser: parser.New(parser.Config{})}
	if withDB {
		db, err := database.Open(filepath.Join(t.TempDir(), "releve.db"))
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		h.DB = db
	}
	return NewApp(h)
}

func formRequest(t *testing.T, fields map[string]string, fileName string, fileBody []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(fileBody)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response) ParseResponse {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	var result ParseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	return result
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t, false)

	req := httptest.NewRequest("GET", "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("expected a request ID header")
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", result["status"])
	}
	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %v", result["engine"])
	}
	if result["bank"] != parser.BankName {
		t.Errorf("expected bank=%q, got %v", parser.BankName, result["bank"])
	}
}

func TestParseEndpointRequiresInput(t *testing.T) {
	app := setupTestApp(t, false)

	req := httptest.NewRequest("POST", "/api/parse", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing input, got %d", resp.StatusCode)
	}
}

func TestParseEndpointExtractedText(t *testing.T) {
	app := setupTestApp(t, false)

	req := formRequest(t, map[string]string{
		"extractedText": page1 + PageBreak + page2,
		"document":      "releve.pdf",
	}, "", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decode(t, resp)
	if !result.Success || result.Document != "releve.pdf" {
		t.Errorf("unexpected response: %+v", result)
	}
	if result.EmissionDate != "2023-01-15" {
		t.Errorf("emissionDate: got %q", result.EmissionDate)
	}
	if result.Count != 3 || len(result.Accounts) != 2 {
		t.Fatalf("count=%d accounts=%d, want 3 and 2", result.Count, len(result.Accounts))
	}
	if got := result.Transactions[0].Date.Year(); got != 2022 {
		t.Errorf("December transaction year: got %d, want 2022", got)
	}
	if result.Transactions[2].AccountID != "9876543B021" {
		t.Errorf("third transaction account: got %q", result.Transactions[2].AccountID)
	}
	if result.TotalCredit.String() != "1234.56" || result.TotalDebit.String() != "-4.5" || result.TotalUnknown.String() != "5" {
		t.Errorf("totals: credit=%s debit=%s unknown=%s", result.TotalCredit, result.TotalDebit, result.TotalUnknown)
	}
	if !strings.Contains(result.CSV, "# Bank,La Banque Postale") {
		t.Errorf("expected CSV metadata, got:\n%s", result.CSV)
	}
}

func TestParseEndpointTextFile(t *testing.T) {
	app := setupTestApp(t, false)

	req := formRequest(t, map[string]string{"header": "false"}, "jan.txt", []byte(page1+"\f"+page2))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decode(t, resp)
	if result.Document != "jan.txt" || result.Count != 3 {
		t.Errorf("unexpected response: document=%q count=%d", result.Document, result.Count)
	}
	if strings.Contains(result.CSV, "# Bank") {
		t.Error("metadata rows should be omitted when header=false")
	}
}

func TestParseEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		fileName   string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "not a statement",
			fields:     map[string]string{"extractedText": "Facture d'électricité du mois de janvier, merci de votre confiance.\n"},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantKind:   "not_a_statement",
		},
		{
			name:       "bad emission date",
			fields:     map[string]string{"extractedText": strings.Replace(page1, "15 janvier 2023", "15 brumaire 2023", 1)},
			wantStatus: fiber.StatusUnprocessableEntity,
			wantKind:   "date",
		},
		{
			name:       "unsupported upload",
			fileName:   "statement.docx",
			wantStatus: fiber.StatusBadRequest,
		},
	}

	app := setupTestApp(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(formRequest(t, tt.fields, tt.fileName, []byte("x")))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			result := decode(t, resp)
			if result.Success {
				t.Error("expected success=false")
			}
			if result.Kind != tt.wantKind {
				t.Errorf("kind: got %q, want %q", result.Kind, tt.wantKind)
			}
		})
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	app := setupTestApp(t, true)

	resp, err := app.Test(formRequest(t, map[string]string{
		"extractedText": page1 + PageBreak + page2,
		"document":      "releve.pdf",
	}, "", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if result := decode(t, resp); result.StatementID == 0 {
		t.Errorf("expected a stored statement ID, got %+v", result)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/transactions?account=1234567A020", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decode(t, resp)
	if result.Count != 2 {
		t.Errorf("count: got %d, want 2", result.Count)
	}
}

func TestStatementsEndpoint(t *testing.T) {
	app := setupTestApp(t, true)

	for _, doc := range []string{"jan.pdf", "jan-copy.pdf", "jan.pdf"} {
		resp, err := app.Test(formRequest(t, map[string]string{
			"extractedText": page1 + PageBreak + page2,
			"document":      doc,
		}, "", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("parse %s: expected 200, got %d", doc, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/statements", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result struct {
		Count      int              `json:"count"`
		Statements []StatementEntry `json:"statements"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
	if result.Count != 2 || len(result.Statements) != 2 {
		t.Fatalf("statements: got %+v, want 2 (re-parsed document replaced)", result.Statements)
	}
	for _, st := range result.Statements {
		if st.EmissionDate != "2023-01-15" || st.Transactions != 3 {
			t.Errorf("unexpected entry: %+v", st)
		}
	}
}

func TestStorageEndpointsDisabled(t *testing.T) {
	app := setupTestApp(t, false)

	for _, path := range []string{"/api/transactions", "/api/statements"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}
