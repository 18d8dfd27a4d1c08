package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cortexbi/cortexbi/internal/config"
	"github.com/cortexbi/cortexbi/internal/feedback"
	"github.com/cortexbi/cortexbi/internal/insight"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Paths: config.PathsConfig{
			Templates: filepath.Join(dir, "templates"),
			Uploads:   filepath.Join(dir, "uploads"),
			Output:    filepath.Join(dir, "output"),
			Models:    filepath.Join(dir, "models"),
			Database:  filepath.Join(dir, "feedback.db"),
		},
		Admin: config.AdminConfig{Users: []string{"admin"}},
	}
	store, err := feedback.Open(cfg.Paths.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := New(cfg, zap.NewNop(), store, "test")
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func uploadCSV(t *testing.T, ts *httptest.Server, filename, content string) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody(t, resp)
}

func createTemplate(t *testing.T, ts *httptest.Server, name string) {
	t.Helper()
	resp := postJSON(t, ts.URL+"/admin/templates", map[string]string{
		"user": "admin", "name": name, "description": "test template",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

const salesCSV = "Mês,Região,Receita,Motivo da Perda\n" +
	"janeiro,sul,1000,preço\n" +
	"janeiro,norte,2000,prazo\n" +
	"fevereiro,sul,1500,preço\n"

func TestRootAndHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "cortexbi", body["service"])

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadAndAnalyze(t *testing.T) {
	_, ts := newTestServer(t)

	body := uploadCSV(t, ts, "vendas.csv", salesCSV)
	assert.Equal(t, "vendas.csv", body["filename"])
	info := body["info"].(map[string]interface{})
	assert.Equal(t, float64(3), info["rows"])

	resp := postJSON(t, ts.URL+"/analyze", map[string]interface{}{
		"filename": "vendas.csv",
		"analysis": map[string]string{"type": "compare_periods"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "compare_periods", out["analysis_type"])
	values := out["values"].(map[string]interface{})
	assert.Equal(t, "3.000", values["total_janeiro"])
}

func TestAnalyzeUnknownDataset(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/analyze", map[string]interface{}{
		"filename": "ausente.csv",
		"analysis": map[string]string{"type": "custom_kpis"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeUnknownType(t *testing.T) {
	_, ts := newTestServer(t)
	uploadCSV(t, ts, "vendas.csv", salesCSV)

	resp := postJSON(t, ts.URL+"/analyze", map[string]interface{}{
		"filename": "vendas.csv",
		"analysis": map[string]string{"type": "mistério"},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeneratePPTX(t *testing.T) {
	_, ts := newTestServer(t)
	createTemplate(t, ts, "relatorio")

	resp := postJSON(t, ts.URL+"/generate-pptx", map[string]interface{}{
		"template": "relatorio",
		"values": map[string]interface{}{
			"titulo": "Resultados", "mes": "janeiro", "receita": 1500,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, float64(3), out["replaced"])
	// subtitulo was not supplied and must be reported as unresolved
	assert.Equal(t, []interface{}{"subtitulo"}, out["remaining"])

	filename := out["output"].(string)
	dl, err := http.Get(ts.URL + "/download/" + filename)
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data[:2]))
}

func TestGeneratePPTXMissingTemplate(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/generate-pptx", map[string]interface{}{
		"template": "nada",
		"values":   map[string]interface{}{},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGeneratePPTXBadValue(t *testing.T) {
	_, ts := newTestServer(t)
	createTemplate(t, ts, "relatorio")

	resp := postJSON(t, ts.URL+"/generate-pptx", map[string]interface{}{
		"template": "relatorio",
		"values":   map[string]interface{}{"titulo": []string{"lista"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeAndGenerate(t *testing.T) {
	_, ts := newTestServer(t)
	uploadCSV(t, ts, "vendas.csv", salesCSV)
	createTemplate(t, ts, "relatorio")

	resp := postJSON(t, ts.URL+"/analyze-and-generate", map[string]interface{}{
		"filename": "vendas.csv",
		"analysis": map[string]string{"type": "count_reasons"},
		"template": "relatorio",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "count_reasons", out["analysis_type"])
	assert.NotEmpty(t, out["output"])
	values := out["values"].(map[string]interface{})
	assert.Equal(t, "preço", values["motivo_principal"])
}

func TestListFiles(t *testing.T) {
	_, ts := newTestServer(t)
	uploadCSV(t, ts, "vendas.csv", salesCSV)

	resp, err := http.Get(ts.URL + "/list-files")
	require.NoError(t, err)
	out := decodeBody(t, resp)
	assert.Equal(t, []interface{}{"vendas.csv"}, out["uploads"])
	assert.Equal(t, []interface{}{}, out["outputs"])
}

func TestTemplatePlaceholders(t *testing.T) {
	_, ts := newTestServer(t)
	createTemplate(t, ts, "relatorio")

	resp, err := http.Get(ts.URL + "/templates/placeholders/relatorio")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t,
		[]interface{}{"mes", "receita", "subtitulo", "titulo"},
		out["placeholders"],
	)

	missing, err := http.Get(ts.URL + "/templates/placeholders/nada")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListTemplates(t *testing.T) {
	_, ts := newTestServer(t)
	createTemplate(t, ts, "relatorio")

	resp, err := http.Get(ts.URL + "/templates")
	require.NoError(t, err)
	out := decodeBody(t, resp)
	templates := out["templates"].([]interface{})
	require.Len(t, templates, 1)
	first := templates[0].(map[string]interface{})
	assert.Equal(t, "relatorio", first["name"])
}

func TestCreateTemplateRequiresAdmin(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/admin/templates", map[string]string{
		"user": "intruso", "name": "x",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdateTemplateRequiresAdmin(t *testing.T) {
	_, ts := newTestServer(t)
	createTemplate(t, ts, "relatorio")

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/admin/templates/relatorio", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCopilotAndFeedback(t *testing.T) {
	_, ts := newTestServer(t)
	uploadCSV(t, ts, "vendas.csv", salesCSV)

	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id":  "maria",
		"question": "quais os principais motivos de perda?",
		"filename": "vendas.csv",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "count_reasons", out["intent"])
	assert.NotEmpty(t, out["response"])
	require.Contains(t, out, "interaction_id")
	values := out["values"].(map[string]interface{})
	assert.Equal(t, "preço", values["motivo_principal"])

	fb := postJSON(t, ts.URL+"/feedback", map[string]interface{}{
		"interaction_id": out["interaction_id"],
		"user_id":        "maria",
		"rating":         5,
		"comment":        "perfeito",
	})
	require.Equal(t, http.StatusOK, fb.StatusCode)
	fb.Body.Close()

	// a second question now carries suggestions informed by history
	again := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "maria", "question": "bom dia",
	})
	require.Equal(t, http.StatusOK, again.StatusCode)
	out = decodeBody(t, again)
	assert.Equal(t, "greeting", out["intent"])
	suggestions := out["suggestions"].([]interface{})
	require.NotEmpty(t, suggestions)
	top := suggestions[0].(map[string]interface{})
	assert.Equal(t, "count_reasons", top["analysis_type"])
}

func TestCopilotUnknownQuestion(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"question": "xyzzy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "unknown", out["intent"])
	assert.NotContains(t, out, "result")
}

func TestFeedbackUnknownInteraction(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/feedback", map[string]interface{}{
		"interaction_id": "inexistente", "user_id": "u", "rating": 3,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadRejectsTraversal(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/download/..%2Fsecrets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestDownloadMissingFile(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/download/nada.pptx")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCopilotPersistsInsightModel(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "maria", "question": "bom dia",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_, err := os.Stat(filepath.Join(srv.cfg.Paths.Models, "insight.json"))
	require.NoError(t, err, "model file not written to the models dir")
	model, err := insight.Load(srv.cfg.Paths.Models)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Samples)

	// a new server over the same paths warm-starts from the saved model
	restarted := New(srv.cfg, zap.NewNop(), srv.store, "test")
	require.NotNil(t, restarted.model)
	assert.Equal(t, model.Samples, restarted.model.Samples)
}

func TestFeedbackAnalyticsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "maria", "question": "compare as vendas por período",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	fb := postJSON(t, ts.URL+"/feedback", map[string]interface{}{
		"interaction_id": out["interaction_id"], "user_id": "maria", "rating": 4,
	})
	require.Equal(t, http.StatusOK, fb.StatusCode)
	fb.Body.Close()

	resp, err := http.Get(ts.URL + "/feedback/analytics?days=7")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analytics := decodeBody(t, resp)
	assert.Equal(t, float64(1), analytics["interactions"])
	assert.Equal(t, float64(1), analytics["ratings"])
	assert.Equal(t, float64(4), analytics["average_rating"])
	byType := analytics["by_type"].(map[string]interface{})
	assert.Equal(t, float64(1), byType["compare_periods"])
}

func TestFeedbackAnalyticsRejectsBadDays(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/feedback/analytics?days=sempre")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserPatternsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "joao", "question": "compare as vendas por período",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/user/joao/patterns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "joao", out["user_id"])
	patterns := out["patterns"].([]interface{})
	require.Len(t, patterns, 1)
	top := patterns[0].(map[string]interface{})
	assert.Equal(t, "compare_periods", top["analysis_type"])
	assert.Equal(t, float64(1), top["uses"])
}

func TestUserPatternsUnknownUser(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/user/ninguem/patterns")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Empty(t, out["patterns"])
}

func TestUserProfileEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "ana", "question": "compare as vendas por período",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/user/ana/profile")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "ana", out["user_id"])
	assert.Equal(t, insight.PersonaCasual, out["persona"])
	assert.Equal(t, "very_low", out["activity_level"])
}

func TestRecommendationsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/copilot/analyze", map[string]string{
		"user_id": "ana", "question": "quais os principais motivos de perda?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/recommendations/ana")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody(t, resp)
	assert.Equal(t, "ana", out["user_id"])
	assert.Equal(t, insight.PersonaCasual, out["persona"])
	recs := out["recommendations"].([]interface{})
	require.NotEmpty(t, recs)
	types := make([]string, 0, len(recs))
	for _, r := range recs {
		types = append(types, r.(map[string]interface{})["analysis_type"].(string))
	}
	assert.Contains(t, types, "count_reasons")
}
