package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/storage"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// helper to perform requests with an optional bearer token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

// setupTestServer wires the full stack against a real database. Integration
// tests are opt-in: set DB_DSN_TEST=1 and the DB_* variables to run them.
func setupTestServer(t *testing.T) *testServer {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)

	dsn := "postgres://" + envOr("DB_USER", "postgres") + ":" + envOr("DB_PASSWORD", "postgres") +
		"@" + envOr("DB_HOST", "localhost") + ":" + envOr("DB_PORT", "5432") +
		"/" + envOr("DB_NAME", "procurepay_test") + "?sslmode=" + envOr("DB_SSLMODE", "disable")

	db, err := database.NewConnection(dsn)
	if err != nil {
		t.Fatalf("test database connection failed: %v", err)
	}

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("media storage setup failed: %v", err)
	}

	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo)
	requestService := service.NewRequestService(requestRepo, auditRepo, txManager, store, nil, nil)
	dashboardService := service.NewDashboardService(db)
	auditService := service.NewAuditService(auditRepo)

	router := gin.New()
	NewUserHandler(userService).RegisterRoutes(router.Group(""))
	NewRequestHandler(requestService, store).RegisterRoutes(router.Group(""))
	NewDashboardHandler(dashboardService).RegisterRoutes(router.Group(""))
	NewAuditHandler(auditService).RegisterRoutes(router.Group(""))

	return &testServer{router: router, db: db}
}

// createUser inserts a user with a unique email so runs never collide.
func (ts *testServer) createUser(t *testing.T, role string) (model.User, string) {
	t.Helper()
	password := "Password123!"
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user := model.User{
		ID:       uuid.New(),
		Email:    fmt.Sprintf("%s-%s@test.local", role, uuid.New().String()[:8]),
		Name:     "Test " + role,
		Role:     role,
		Password: string(hash),
	}
	if err := ts.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create %s user: %v", role, err)
	}
	return user, password
}

// login authenticates via the real endpoint and returns the bearer token.
func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp := performRequest(ts.router, http.MethodPost, "/api/auth/login/", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data service.TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if envelope.Data.Token == "" {
		t.Fatalf("empty token in login response: %s", resp.Body.String())
	}
	return envelope.Data.Token
}

func decodeRequest(t *testing.T, resp *httptest.ResponseRecorder) service.RequestResponse {
	t.Helper()
	var envelope struct {
		Data service.RequestResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode request response: %v (body=%s)", err, resp.Body.String())
	}
	return envelope.Data
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		w, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(fileContent)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

const testProforma = `Vendor: Acme Supplies Ltd
Currency: USD

USB-C dock - 120.50
Laptop stand - 55.00

Total: 175.50
`

func TestPurchaseRequestLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	staff, staffPassword := ts.createUser(t, model.RoleStaff)
	approver1, approver1Password := ts.createUser(t, model.RoleApproverL1)
	approver2, approver2Password := ts.createUser(t, model.RoleApproverL2)

	staffToken := ts.login(t, staff.Email, staffPassword)
	l1Token := ts.login(t, approver1.Email, approver1Password)
	l2Token := ts.login(t, approver2.Email, approver2Password)

	// 1. Unauthenticated access is rejected
	resp := performRequest(ts.router, http.MethodGet, "/api/requests/", nil, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated list, got %d", resp.Code)
	}

	// 2. Staff creates a request with a proforma document
	marker := "Dock order " + uuid.New().String()[:8]
	body, contentType := multipartBody(t, map[string]string{
		"title":       marker,
		"description": "Docking stations for the new hires",
		"amount":      "175.50",
	}, "proforma", "proforma.txt", testProforma)
	resp = performRequest(ts.router, http.MethodPost, "/api/requests/", body, staffToken, contentType)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	created := decodeRequest(t, resp)
	if created.Status != model.StatusPending {
		t.Fatalf("new request status = %q, want pending", created.Status)
	}
	if created.Proforma == nil {
		t.Fatal("created request should expose a proforma URL")
	}
	var meta map[string]any
	if err := json.Unmarshal(created.DocumentMetadata, &meta); err != nil {
		t.Fatalf("document_metadata not valid JSON: %v", err)
	}
	if meta["vendor"] != "Acme Supplies Ltd" {
		t.Errorf("extracted vendor = %v, want Acme Supplies Ltd", meta["vendor"])
	}

	requestPath := "/api/requests/" + created.ID + "/"

	// 3. Level 2 cannot approve before level 1
	resp = performRequest(ts.router, http.MethodPatch, requestPath+"approve/", nil, l2Token, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("out-of-order level 2 approval: status=%d, want 400 (body=%s)", resp.Code, resp.Body.String())
	}

	// 4. Staff cannot approve at all
	resp = performRequest(ts.router, http.MethodPatch, requestPath+"approve/", nil, staffToken, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("staff approval: status=%d, want 403", resp.Code)
	}

	// 5. Level 1 approves; request stays pending
	payload, _ := json.Marshal(map[string]string{"comment": "Looks reasonable"})
	resp = performRequest(ts.router, http.MethodPatch, requestPath+"approve/", bytes.NewBuffer(payload), l1Token, "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("level 1 approval failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	afterL1 := decodeRequest(t, resp)
	if afterL1.Status != model.StatusPending {
		t.Fatalf("status after level 1 = %q, want pending", afterL1.Status)
	}
	if len(afterL1.Approvals) != 1 || afterL1.Approvals[0].ApproverLevel != 1 {
		t.Fatalf("unexpected approvals after level 1: %+v", afterL1.Approvals)
	}

	// 6. Level 2 approves; request becomes approved and gets a purchase order
	resp = performRequest(ts.router, http.MethodPatch, requestPath+"approve/", nil, l2Token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("level 2 approval failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	approved := decodeRequest(t, resp)
	if approved.Status != model.StatusApproved {
		t.Fatalf("status after level 2 = %q, want approved", approved.Status)
	}
	if len(approved.Approvals) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(approved.Approvals))
	}
	if approved.PurchaseOrder == nil {
		t.Fatal("fully approved request should expose a purchase order URL")
	}
	if approved.POGeneratedAt == nil {
		t.Fatal("fully approved request should carry po_generated_at")
	}
	if err := json.Unmarshal(approved.DocumentMetadata, &meta); err != nil {
		t.Fatal(err)
	}
	if meta["purchase_order"] == nil {
		t.Fatal("document_metadata should carry purchase_order metadata after approval")
	}

	// 7. Approving an already approved request fails
	resp = performRequest(ts.router, http.MethodPatch, requestPath+"approve/", nil, l1Token, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("approval of approved request: status=%d, want 400", resp.Code)
	}

	// 8. Owner submits a matching receipt
	receipt := "RECEIPT\nAcme Supplies Ltd\nTotal paid: 175.50\n"
	body, contentType = multipartBody(t, nil, "receipt", "receipt.txt", receipt)
	resp = performRequest(ts.router, http.MethodPost, requestPath+"submit-receipt/", body, staffToken, contentType)
	if resp.Code != http.StatusOK {
		t.Fatalf("submit receipt failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	withReceipt := decodeRequest(t, resp)
	if withReceipt.Receipt == nil {
		t.Fatal("request should expose the receipt URL")
	}
	var validation map[string]any
	if err := json.Unmarshal(withReceipt.ReceiptValidation, &validation); err != nil {
		t.Fatalf("receipt_validation not valid JSON: %v", err)
	}
	if validation["is_valid"] != true {
		t.Errorf("matching receipt should validate, got %v", validation)
	}

	// 9. A second receipt is refused
	body, contentType = multipartBody(t, nil, "receipt", "receipt2.txt", receipt)
	resp = performRequest(ts.router, http.MethodPost, requestPath+"submit-receipt/", body, staffToken, contentType)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("second receipt: status=%d, want 400", resp.Code)
	}

	// 10. Search finds the request by its unique title
	resp = performRequest(ts.router, http.MethodGet, "/api/requests/?search="+marker[:10], nil, staffToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list failed status=%d", resp.Code)
	}
	var listEnvelope struct {
		Data struct {
			Results []service.RequestResponse `json:"results"`
			Total   int64                     `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listEnvelope); err != nil {
		t.Fatal(err)
	}
	if listEnvelope.Data.Total != 1 || len(listEnvelope.Data.Results) != 1 {
		t.Fatalf("search should find exactly the created request, got total=%d", listEnvelope.Data.Total)
	}
}

func TestRejectionFlow(t *testing.T) {
	ts := setupTestServer(t)

	staff, staffPassword := ts.createUser(t, model.RoleStaff)
	approver2, approver2Password := ts.createUser(t, model.RoleApproverL2)

	staffToken := ts.login(t, staff.Email, staffPassword)
	l2Token := ts.login(t, approver2.Email, approver2Password)

	body, contentType := multipartBody(t, map[string]string{
		"title":       "Standing desks " + uuid.New().String()[:8],
		"description": "Ergonomics budget",
		"amount":      "2400.00",
	}, "proforma", "proforma.txt", testProforma)
	resp := performRequest(ts.router, http.MethodPost, "/api/requests/", body, staffToken, contentType)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	created := decodeRequest(t, resp)

	// Either level may reject a pending request, no ordering required
	payload, _ := json.Marshal(map[string]string{"comment": "Over budget"})
	resp = performRequest(ts.router, http.MethodPatch, "/api/requests/"+created.ID+"/reject/", bytes.NewBuffer(payload), l2Token, "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("rejection failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	rejected := decodeRequest(t, resp)
	if rejected.Status != model.StatusRejected {
		t.Fatalf("status = %q, want rejected", rejected.Status)
	}

	// A rejected request accepts no further decisions
	resp = performRequest(ts.router, http.MethodPatch, "/api/requests/"+created.ID+"/approve/", nil, l2Token, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("approval of rejected request: status=%d, want 400", resp.Code)
	}

	// And no receipt either
	body, contentType = multipartBody(t, nil, "receipt", "receipt.txt", "anything")
	resp = performRequest(ts.router, http.MethodPost, "/api/requests/"+created.ID+"/submit-receipt/", body, staffToken, contentType)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("receipt on rejected request: status=%d, want 400", resp.Code)
	}
}

func TestVisibilityScoping(t *testing.T) {
	ts := setupTestServer(t)

	owner, ownerPassword := ts.createUser(t, model.RoleStaff)
	otherStaff, otherPassword := ts.createUser(t, model.RoleStaff)
	finance, financePassword := ts.createUser(t, model.RoleFinance)

	ownerToken := ts.login(t, owner.Email, ownerPassword)
	otherToken := ts.login(t, otherStaff.Email, otherPassword)
	financeToken := ts.login(t, finance.Email, financePassword)

	body, contentType := multipartBody(t, map[string]string{
		"title":       "Monitors " + uuid.New().String()[:8],
		"description": "Dual monitors",
		"amount":      "600.00",
	}, "proforma", "proforma.txt", testProforma)
	resp := performRequest(ts.router, http.MethodPost, "/api/requests/", body, ownerToken, contentType)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	created := decodeRequest(t, resp)
	requestPath := "/api/requests/" + created.ID + "/"

	// Other staff cannot see it, not even its existence
	resp = performRequest(ts.router, http.MethodGet, requestPath, nil, otherToken, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("foreign staff detail: status=%d, want 404", resp.Code)
	}

	// Finance sees everything but cannot create
	resp = performRequest(ts.router, http.MethodGet, requestPath, nil, financeToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("finance detail: status=%d, want 200", resp.Code)
	}
	detail := decodeRequest(t, resp)
	if detail.Permissions.CanEdit || detail.Permissions.CanApprove || detail.Permissions.CanReject || detail.Permissions.CanSubmitReceipt {
		t.Errorf("finance must be read-only, got %+v", detail.Permissions)
	}

	body, contentType = multipartBody(t, map[string]string{
		"title":       "Finance request",
		"description": "Should not be allowed",
		"amount":      "10.00",
	}, "proforma", "proforma.txt", testProforma)
	resp = performRequest(ts.router, http.MethodPost, "/api/requests/", body, financeToken, contentType)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("finance create: status=%d, want 403", resp.Code)
	}

	// Staff list only contains own requests
	resp = performRequest(ts.router, http.MethodGet, "/api/requests/", nil, otherToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list failed status=%d", resp.Code)
	}
	var listEnvelope struct {
		Data struct {
			Results []service.RequestResponse `json:"results"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listEnvelope); err != nil {
		t.Fatal(err)
	}
	for _, r := range listEnvelope.Data.Results {
		if r.CreatedBy != otherStaff.ID.String() {
			t.Errorf("staff list leaked request %s created by %s", r.ID, r.CreatedBy)
		}
	}
}

func TestAuditAndDashboardAccess(t *testing.T) {
	ts := setupTestServer(t)

	staff, staffPassword := ts.createUser(t, model.RoleStaff)
	finance, financePassword := ts.createUser(t, model.RoleFinance)

	staffToken := ts.login(t, staff.Email, staffPassword)
	financeToken := ts.login(t, finance.Email, financePassword)

	// Audit trail is closed to staff
	resp := performRequest(ts.router, http.MethodGet, "/api/audit/", nil, staffToken, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("staff audit access: status=%d, want 403", resp.Code)
	}
	resp = performRequest(ts.router, http.MethodGet, "/api/audit/?action=APPROVE_REQUEST", nil, financeToken, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("finance audit access: status=%d, want 200 (body=%s)", resp.Code, resp.Body.String())
	}

	// Dashboard summary works for any authenticated role
	for _, token := range []string{staffToken, financeToken} {
		resp = performRequest(ts.router, http.MethodGet, "/api/dashboard/summary/", nil, token, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("dashboard summary: status=%d body=%s", resp.Code, resp.Body.String())
		}
		var envelope struct {
			Data service.DashboardSummary `json:"data"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAuthRefreshRotation(t *testing.T) {
	ts := setupTestServer(t)

	user, password := ts.createUser(t, model.RoleStaff)

	body, _ := json.Marshal(map[string]string{"email": user.Email, "password": password})
	resp := performRequest(ts.router, http.MethodPost, "/api/auth/login/", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d", resp.Code)
	}
	var loginEnvelope struct {
		Data service.TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &loginEnvelope); err != nil {
		t.Fatal(err)
	}

	// First refresh succeeds and rotates the token
	refreshBody, _ := json.Marshal(map[string]string{"refresh_token": loginEnvelope.Data.RefreshToken})
	resp = performRequest(ts.router, http.MethodPost, "/api/auth/refresh/", bytes.NewBuffer(refreshBody), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// Reusing the consumed refresh token fails
	resp = performRequest(ts.router, http.MethodPost, "/api/auth/refresh/", bytes.NewBuffer(refreshBody), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: status=%d, want 401", resp.Code)
	}

	// Wrong password is rejected without detail
	body, _ = json.Marshal(map[string]string{"email": user.Email, "password": "wrong"})
	resp = performRequest(ts.router, http.MethodPost, "/api/auth/login/", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status=%d, want 401", resp.Code)
	}
	var errEnvelope response.Response
	if err := json.Unmarshal(resp.Body.Bytes(), &errEnvelope); err != nil {
		t.Fatal(err)
	}
	if errEnvelope.Status != "error" {
		t.Errorf("error envelope status = %q, want error", errEnvelope.Status)
	}
}
