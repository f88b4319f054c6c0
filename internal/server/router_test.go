package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"obra-backend/internal/config"
	"obra-backend/internal/logger"
	"obra-backend/internal/purchasing"
	"obra-backend/internal/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		CORSOrigins:              "http://localhost:5173",
		DefaultWasteFactor:       1.05,
		CriticalThresholdPercent: 105,
	}
	return NewApp(cfg, logger.NewNop(), testdb.Open(t), purchasing.NewLocalLocker())
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestBudgetFlow(t *testing.T) {
	app := newTestApp(t)

	status, p := do(t, app, http.MethodPost, "/api/projects", map[string]any{"name": "Casa Jalapa", "department": "Jalapa"})
	if status != http.StatusCreated {
		t.Fatalf("create project: %d %v", status, p)
	}
	projectID := p["id"].(string)

	status, item := do(t, app, http.MethodPost, "/api/projects/"+projectID+"/line-items", map[string]any{
		"name":     "Levantado de muro",
		"quantity": 10,
		"payload": map[string]any{
			"unit": "m2",
			"inputs": []map[string]any{
				{"category": "material", "name": "Cemento", "purchase_unit": "bolsa", "yield": 0.5, "reference_price": 80},
			},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("build line item: %d %v", status, item)
	}
	if math.Abs(item["unit_cost"].(float64)-42) > 1e-9 {
		t.Fatalf("unexpected unit cost %v", item["unit_cost"])
	}
	inputID := item["composition"].([]any)[0].(map[string]any)["input_id"].(string)

	status, avail := do(t, app, http.MethodGet, "/api/projects/"+projectID+"/inputs/"+inputID+"/available", nil)
	if status != http.StatusOK || avail["available"].(float64) != 5 {
		t.Fatalf("available: %d %v", status, avail)
	}

	status, body := do(t, app, http.MethodPost, "/api/projects/"+projectID+"/purchase-orders", map[string]any{
		"lines": []map[string]any{{"input_id": inputID, "quantity": 6, "unit_price": 80}},
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for over-budget order, got %d %v", status, body)
	}

	status, body = do(t, app, http.MethodPost, "/api/projects/"+projectID+"/purchase-orders", map[string]any{
		"lines": []map[string]any{{"input_id": inputID, "quantity": 5, "unit_price": 90}},
	})
	if status != http.StatusCreated || body["total"].(float64) != 450 {
		t.Fatalf("create order: %d %v", status, body)
	}

	status, v := do(t, app, http.MethodGet, "/api/projects/"+projectID+"/variance", nil)
	if status != http.StatusOK {
		t.Fatalf("variance: %d %v", status, v)
	}
	// 450 spent of 420 budgeted
	if v["is_critical"] != true || math.Abs(v["theoretical_budget"].(float64)-420) > 1e-9 {
		t.Fatalf("unexpected variance %v", v)
	}
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)
	_, p := do(t, app, http.MethodPost, "/api/projects", map[string]any{"name": "Mapeo"})
	projectID := p["id"].(string)

	status, body := do(t, app, http.MethodPost, "/api/projects/"+projectID+"/line-items", map[string]any{
		"name":     "Muro",
		"quantity": 1,
		"payload": map[string]any{
			"unit":   "m2",
			"inputs": []map[string]any{{"category": "material", "name": "Block", "purchase_unit": "u", "yield": 0}},
		},
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d %v", status, body)
	}

	status, _ = do(t, app, http.MethodGet, "/api/projects/00000000-0000-0000-0000-000000000001/variance", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", status)
	}

	status, _ = do(t, app, http.MethodGet, "/api/projects/not-a-uuid/variance", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", status)
	}

	status, _ = do(t, app, http.MethodPost, "/api/projects", map[string]any{"department": "x"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name got %d", status)
	}
}

func TestMatrixAndRules(t *testing.T) {
	app := newTestApp(t)

	status, m := do(t, app, http.MethodGet, "/api/matrix", nil)
	if status != http.StatusOK || len(m["items"].([]any)) != 19 {
		t.Fatalf("matrix: %d", status)
	}

	status, r := do(t, app, http.MethodPost, "/api/rules/quantities", map[string]any{"name": "Fundición de losa", "quantity": 2})
	if status != http.StatusOK || r["unit"] != "m3" {
		t.Fatalf("rules: %d %v", status, r)
	}
	if q := r["quantities"].(map[string]any)["Cemento"].(float64); q != 19.6 {
		t.Fatalf("expected 19.6 bags of cement got %v", q)
	}
}

func TestOwnerFinanceRoutes(t *testing.T) {
	app := newTestApp(t)
	base := "/api/owners/" + uuid.New().String()

	if status, body := do(t, app, http.MethodPut, base+"/withdrawal", map[string]any{"mode": "anual", "value": 5}); status != http.StatusBadRequest {
		t.Fatalf("bad withdrawal mode: %d %v", status, body)
	}
	if status, body := do(t, app, http.MethodPut, base+"/withdrawal", map[string]any{"mode": "fijo", "value": 500}); status != http.StatusOK {
		t.Fatalf("set withdrawal: %d %v", status, body)
	}
	if status, body := do(t, app, http.MethodPost, base+"/expenses", map[string]any{"description": "Luz", "amount": 200}); status != http.StatusCreated {
		t.Fatalf("register expense: %d %v", status, body)
	}

	status, bal := do(t, app, http.MethodGet, base+"/balance", nil)
	if status != http.StatusOK {
		t.Fatalf("balance: %d %v", status, bal)
	}
	if bal["withdrawal"].(float64) != 500 || bal["month_expenses"].(float64) != 200 || bal["health"] != "Estable" {
		t.Fatalf("unexpected balance %v", bal)
	}
}
