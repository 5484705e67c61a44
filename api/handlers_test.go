package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tuition-engine/api"
	"github.com/warp/tuition-engine/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := api.NewHandler(store.NewMemory())
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

// assertMoney compares a JSON money string numerically, since decimal
// strings keep trailing zeros ("94.00").
func assertMoney(t *testing.T, want string, got any) {
	t.Helper()
	s, ok := got.(string)
	require.True(t, ok, "expected money string, got %T", got)
	g, err := decimal.NewFromString(s)
	require.NoError(t, err)
	w, err := decimal.NewFromString(want)
	require.NoError(t, err)
	assert.True(t, w.Equal(g), "want %s, got %s", want, s)
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

// createLearner registers a learner with a 10% registration discount path
// available and returns its ID.
func createLearner(t *testing.T, server *httptest.Server, email string) string {
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/learners", map[string]any{
		"first_name": "Amina",
		"last_name":  "Diallo",
		"email":      email,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func createCourse(t *testing.T, server *httptest.Server, price string) string {
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/courses", map[string]any{
		"title":      "Algebra",
		"base_price": price,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func enroll(t *testing.T, server *httptest.Server, learnerID, courseID string) {
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/learners/"+learnerID+"/enroll",
		map[string]any{"course_id": courseID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// LEARNER ENDPOINTS
// =============================================================================

func TestAPI_CreateLearner(t *testing.T) {
	// GIVEN: A valid registration request
	// WHEN: POSTing it
	// THEN: 201 with the default registration fee applied

	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/learners", map[string]any{
		"first_name": "Amina",
		"last_name":  "Diallo",
		"email":      "amina@example.com",
		"phone":      "+220123456",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Amina", body["first_name"])
	assertMoney(t, "10", body["registration_fee"])
	assert.NotEmpty(t, body["id"])
}

func TestAPI_CreateLearner_Validation(t *testing.T) {
	// GIVEN: A request missing required fields / malformed email
	// WHEN: POSTing it
	// THEN: 400

	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/learners", map[string]any{
		"first_name": "Amina",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/learners", map[string]any{
		"first_name": "Amina",
		"last_name":  "Diallo",
		"email":      "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CreateLearner_DuplicateContact(t *testing.T) {
	// GIVEN: An existing learner
	// WHEN: Registering the same email again
	// THEN: 409

	server := newTestServer(t)
	createLearner(t, server, "amina@example.com")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/learners", map[string]any{
		"first_name": "Other",
		"last_name":  "Person",
		"email":      "amina@example.com",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_GetLearner_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/learners/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DeleteLearner_ThenInvisible(t *testing.T) {
	// GIVEN: A learner
	// WHEN: Soft-deleting and re-fetching
	// THEN: 204 then 404

	server := newTestServer(t)
	id := createLearner(t, server, "amina@example.com")

	resp, _ := doJSON(t, http.MethodDelete, server.URL+"/api/learners/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/learners/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_EnrollAndWithdraw(t *testing.T) {
	// GIVEN: A learner and a 100.00 course
	// WHEN: Enrolling, then withdrawing
	// THEN: Membership and balance follow (110 enrolled, 10 after)

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/learners/"+learnerID+"/enroll",
		map[string]any{"course_id": courseID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{courseID}, body["courses"])
	assertMoney(t, "110", body["balance"])

	// Double enrollment conflicts
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/learners/"+learnerID+"/enroll",
		map[string]any{"course_id": courseID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/learners/"+learnerID+"/withdraw",
		map[string]any{"course_id": courseID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["courses"])
	assertMoney(t, "10", body["balance"])
}

func TestAPI_UpdateLearner_Discounts(t *testing.T) {
	// GIVEN: An enrolled learner
	// WHEN: Setting 10% registration + 15% course discounts via PUT
	// THEN: Financials recompute to 94

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")
	enroll(t, server, learnerID, courseID)

	resp, body := doJSON(t, http.MethodPut, server.URL+"/api/learners/"+learnerID, map[string]any{
		"discounts": map[string]any{
			"registration": "10",
			"courses":      []map[string]any{{"course_id": courseID, "percent": "15"}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, "94", body["balance"])
	assertMoney(t, "85", body["total_course_fees"])
}

func TestAPI_UpdateLearner_InvalidDiscount(t *testing.T) {
	// GIVEN: An enrolled learner
	// WHEN: Setting a 150% discount
	// THEN: 400

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/learners/"+learnerID, map[string]any{
		"discounts": map[string]any{"registration": "150"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

// billedFixture builds learner + course + discounts and returns the created
// invoice ID (total 94.00, two installments).
func billedFixture(t *testing.T, server *httptest.Server) string {
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")
	enroll(t, server, learnerID, courseID)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/learners/"+learnerID, map[string]any{
		"discounts": map[string]any{
			"registration": "10",
			"courses":      []map[string]any{{"course_id": courseID, "percent": "15"}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"learner_id":       learnerID,
		"course_id":        courseID,
		"installment_plan": 2,
		"base_date":        "2025-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestAPI_CreateInvoice(t *testing.T) {
	// GIVEN: The discounted fixture
	// WHEN: Creating a 2-installment invoice
	// THEN: 94.00 split 47/47 due +30/+60 days

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")
	enroll(t, server, learnerID, courseID)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/learners/"+learnerID, map[string]any{
		"discounts": map[string]any{
			"registration": "10",
			"courses":      []map[string]any{{"course_id": courseID, "percent": "15"}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"learner_id":       learnerID,
		"course_id":        courseID,
		"installment_plan": 2,
		"base_date":        "2025-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assertMoney(t, "94", body["total_amount"])
	assert.Equal(t, "Pending", body["status"])
	installments := body["installments"].([]any)
	require.Len(t, installments, 2)
	first := installments[0].(map[string]any)
	second := installments[1].(map[string]any)
	assertMoney(t, "47", first["amount"])
	assert.Equal(t, "2025-02-14", first["due_date"])
	assertMoney(t, "47", second["amount"])
	assert.Equal(t, "2025-03-16", second["due_date"])
}

func TestAPI_CreateInvoice_BadPlan(t *testing.T) {
	// GIVEN: An installment plan of 4
	// WHEN: Creating
	// THEN: 400 from request validation

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")
	enroll(t, server, learnerID, courseID)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"learner_id":       learnerID,
		"course_id":        courseID,
		"installment_plan": 4,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CreateInvoice_NotEnrolled(t *testing.T) {
	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"learner_id":       learnerID,
		"course_id":        courseID,
		"installment_plan": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_PayInvoice_AndRevenue(t *testing.T) {
	// GIVEN: A pending 94.00 invoice
	// WHEN: PUTting status Paid, then again
	// THEN: 200 then 409; revenue totals 94 exactly once

	server := newTestServer(t)
	invoiceID := billedFixture(t, server)

	resp, body := doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+invoiceID,
		map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Paid", body["status"])
	assertMoney(t, "0", body["remaining_balance"])

	// Idempotency: marking paid twice must not double revenue
	resp, _ = doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+invoiceID,
		map[string]any{"status": "Paid"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/revenue/total", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, "94", body["total_revenue"])
}

func TestAPI_VoidPaidInvoice_ReversesRevenue(t *testing.T) {
	// GIVEN: A paid invoice (revenue 94)
	// WHEN: PATCHing void
	// THEN: Revenue returns to 0 and the audit shows two entries that net out

	server := newTestServer(t)
	invoiceID := billedFixture(t, server)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+invoiceID,
		map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPatch, server.URL+"/api/invoices/"+invoiceID+"/void", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Voided", body["status"])

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/revenue/audit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, "0", body["total_revenue"])
	assert.Equal(t, true, body["consistent"])
	assert.Len(t, body["entries"].([]any), 2)
	assert.Empty(t, body["invoices"])

	// Voided is terminal
	resp, _ = doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+invoiceID,
		map[string]any{"status": "Paid"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_ListInvoices_StatusFilter(t *testing.T) {
	// GIVEN: One paid and one pending invoice
	// WHEN: Listing with status=Paid
	// THEN: Only the paid one, with totals

	server := newTestServer(t)
	learnerID := createLearner(t, server, "amina@example.com")
	courseID := createCourse(t, server, "100")
	enroll(t, server, learnerID, courseID)

	var ids []string
	for i := 0; i < 2; i++ {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
			"learner_id":       learnerID,
			"course_id":        courseID,
			"installment_plan": 1,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "invoice %d", i)
		ids = append(ids, body["id"].(string))
	}

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+ids[0],
		map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/invoices?status=Paid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, ids[0], items[0].(map[string]any)["id"])

	// Unknown status is a client error
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/invoices?status=Bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAGINATION
// =============================================================================

func TestAPI_ListLearners_Pagination(t *testing.T) {
	// GIVEN: Five learners
	// WHEN: Fetching page 2 with limit 2
	// THEN: Two items, total 5

	server := newTestServer(t)
	for i := 0; i < 5; i++ {
		createLearner(t, server, fmt.Sprintf("learner%d@example.com", i))
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/learners?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(2), body["page"])
	assert.Len(t, body["items"].([]any), 2)
}

// =============================================================================
// REVENUE BY DATE
// =============================================================================

func TestAPI_RevenueByDate(t *testing.T) {
	// GIVEN: A payment recognized today
	// WHEN: Querying a window covering today, then one in the past
	// THEN: The payment appears only in the covering window

	server := newTestServer(t)
	invoiceID := billedFixture(t, server)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/invoices/"+invoiceID,
		map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet,
		server.URL+"/api/revenue/by-date?start=2000-01-01&end=2100-01-01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, "94", body["total"])
	assert.Len(t, body["entries"].([]any), 1)

	resp, body = doJSON(t, http.MethodGet,
		server.URL+"/api/revenue/by-date?start=2000-01-01&end=2000-12-31", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertMoney(t, "0", body["total"])
	assert.Empty(t, body["entries"])

	// Bad dates are client errors
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/revenue/by-date?start=nope&end=2000-12-31", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
