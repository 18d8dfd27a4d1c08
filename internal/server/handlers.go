package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cortexbi/cortexbi/internal/admin"
	"github.com/cortexbi/cortexbi/internal/analytics"
	"github.com/cortexbi/cortexbi/internal/dataset"
	"github.com/cortexbi/cortexbi/internal/feedback"
	"github.com/cortexbi/cortexbi/internal/insight"
	"github.com/cortexbi/cortexbi/internal/nlp"
	"github.com/cortexbi/cortexbi/pkg/deck"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "cortexbi",
		"version": s.version,
		"message": "Córtex BI: análises e geração de apresentações",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// safeName rejects file names that could escape the managed directories.
func safeName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "upload rejected", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field 'file'", err)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := safeName(name); err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name", err)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err)
		return
	}

	frame, err := dataset.Load(name, bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse dataset", err)
		return
	}

	if err := os.MkdirAll(s.cfg.Paths.Uploads, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload", err)
		return
	}
	if err := os.WriteFile(filepath.Join(s.cfg.Paths.Uploads, name), data, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": name,
		"info":     frame.Info(),
	})
}

func (s *Server) loadUploadedFrame(filename string) (*dataset.Frame, error) {
	if err := safeName(filename); err != nil {
		return nil, err
	}
	path := filepath.Join(s.cfg.Paths.Uploads, filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset %q not found", filename)
	}
	defer f.Close()
	return dataset.Load(filename, f)
}

// analysisSpec selects the analysis to run; column names default to the
// conventional Brazilian sales headers when omitted.
type analysisSpec struct {
	Type         string `json:"type"`
	PeriodColumn string `json:"period_column,omitempty"`
	ValueColumn  string `json:"value_column,omitempty"`
	GroupColumn  string `json:"group_column,omitempty"`
	ReasonColumn string `json:"reason_column,omitempty"`
}

func (a *analysisSpec) applyDefaults() {
	if a.PeriodColumn == "" {
		a.PeriodColumn = "mes"
	}
	if a.ValueColumn == "" {
		a.ValueColumn = "receita"
	}
	if a.GroupColumn == "" {
		a.GroupColumn = "regiao"
	}
	if a.ReasonColumn == "" {
		a.ReasonColumn = "motivo_da_perda"
	}
}

// runAnalysis executes one analysis over the frame, returning the typed
// result and the substitution values derived from it.
func runAnalysis(frame *dataset.Frame, spec analysisSpec) (interface{}, map[string]interface{}, error) {
	spec.applyDefaults()
	switch spec.Type {
	case "compare_periods":
		result, err := analytics.ComparePeriods(frame, spec.PeriodColumn, spec.ValueColumn)
		if err != nil {
			return nil, nil, err
		}
		return result, result.Values(), nil
	case "segment_groups":
		result, err := analytics.SegmentByGroups(frame, spec.GroupColumn, spec.ValueColumn)
		if err != nil {
			return nil, nil, err
		}
		return result, result.Values(), nil
	case "count_reasons":
		result, err := analytics.CountReasons(frame, spec.ReasonColumn)
		if err != nil {
			return nil, nil, err
		}
		return result, result.Values(), nil
	case "custom_kpis":
		result, err := analytics.CustomKPIs(frame, spec.ValueColumn)
		if err != nil {
			return nil, nil, err
		}
		return result, result.Values(), nil
	case "validate":
		result := analytics.ValidateResults(frame)
		return result, map[string]interface{}{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown analysis type %q", spec.Type)
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string       `json:"filename"`
		Analysis analysisSpec `json:"analysis"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	frame, err := s.loadUploadedFrame(req.Filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "dataset not available", err)
		return
	}
	result, values, err := runAnalysis(frame, req.Analysis)
	if err != nil {
		writeError(w, http.StatusBadRequest, "analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis_type": req.Analysis.Type,
		"result":        result,
		"values":        values,
	})
}

// renderTemplate loads a template, substitutes values and writes the
// result to the output directory. It reports what was replaced and which
// placeholders remain unresolved.
func (s *Server) renderTemplate(template string, values map[string]interface{}) (map[string]interface{}, int, error) {
	path, err := s.admin.TemplatePath(template)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	e := deck.NewEngine()
	if err := e.Load(path); err != nil {
		if deck.IsFileNotFound(err) {
			return nil, http.StatusNotFound, fmt.Errorf("template %q not found", template)
		}
		return nil, http.StatusBadRequest, err
	}
	replaced, err := e.Substitute(values)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	remaining, err := e.ListPlaceholders()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	outName := fmt.Sprintf("%s-%s.pptx", strings.TrimSuffix(template, ".pptx"), uuid.NewString()[:8])
	if err := e.Save(filepath.Join(s.cfg.Paths.Output, outName)); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if remaining == nil {
		remaining = []string{}
	}
	return map[string]interface{}{
		"output":    outName,
		"replaced":  replaced,
		"remaining": remaining,
	}, http.StatusOK, nil
}

func (s *Server) handleGeneratePPTX(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string                 `json:"template"`
		Values   map[string]interface{} `json:"values"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start := time.Now()
	payload, status, err := s.renderTemplate(req.Template, req.Values)
	if perfErr := s.store.LogPerformance("generate_pptx", time.Since(start), err == nil); perfErr != nil {
		s.logger.Warn("failed to log performance metric", zap.Error(perfErr))
	}
	if err != nil {
		writeError(w, status, "presentation not generated", err)
		return
	}
	writeJSON(w, status, payload)
}

func (s *Server) handleAnalyzeAndGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string       `json:"filename"`
		Analysis analysisSpec `json:"analysis"`
		Template string       `json:"template"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	frame, err := s.loadUploadedFrame(req.Filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "dataset not available", err)
		return
	}
	result, values, err := runAnalysis(frame, req.Analysis)
	if err != nil {
		writeError(w, http.StatusBadRequest, "analysis failed", err)
		return
	}
	payload, status, err := s.renderTemplate(req.Template, values)
	if err != nil {
		writeError(w, status, "presentation not generated", err)
		return
	}
	payload["analysis_type"] = req.Analysis.Type
	payload["result"] = result
	payload["values"] = values
	writeJSON(w, status, payload)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if err := safeName(filename); err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name", err)
		return
	}
	for _, dir := range []string{s.cfg.Paths.Output, s.cfg.Paths.Uploads} {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
			http.ServeFile(w, r, path)
			return
		}
	}
	writeError(w, http.StatusNotFound, "file not found", nil)
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": listDir(s.cfg.Paths.Uploads),
		"outputs": listDir(s.cfg.Paths.Output),
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.admin.ListTemplates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list templates", err)
		return
	}
	if templates == nil {
		templates = []admin.TemplateInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

func (s *Server) handleTemplatePlaceholders(w http.ResponseWriter, r *http.Request) {
	template := r.PathValue("template")
	path, err := s.admin.TemplatePath(template)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template name", err)
		return
	}
	e := deck.NewEngine()
	if err := e.Load(path); err != nil {
		if deck.IsFileNotFound(err) {
			writeError(w, http.StatusNotFound, "template not found", err)
			return
		}
		writeError(w, http.StatusBadRequest, "template could not be parsed", err)
		return
	}
	placeholders, err := e.ListPlaceholders()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to inspect template", err)
		return
	}
	if placeholders == nil {
		placeholders = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"template":     template,
		"placeholders": placeholders,
	})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User        string `json:"user"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !s.admin.IsAdmin(req.User) {
		writeError(w, http.StatusForbidden, "admin access required", nil)
		return
	}
	if err := s.admin.CreateTemplate(req.User, req.Name, req.Description); err != nil {
		writeError(w, http.StatusBadRequest, "template not created", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"template": req.Name})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get("X-User")
	if !s.admin.IsAdmin(user) {
		writeError(w, http.StatusForbidden, "admin access required", nil)
		return
	}
	template := r.PathValue("template")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err)
		return
	}
	if err := s.admin.UpdateTemplate(user, template, data); err != nil {
		writeError(w, http.StatusBadRequest, "template not updated", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"template": template})
}

func (s *Server) handleCopilot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Question string `json:"question"`
		Filename string `json:"filename,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	start := time.Now()
	analysis := nlp.Analyze(req.Question)

	payload := map[string]interface{}{
		"intent":     analysis.Intent,
		"confidence": analysis.Confidence,
		"response":   analysis.Response,
		"params":     analysis.Params,
		"entities":   analysis.Entities,
	}

	// run the detected analysis when a dataset was named
	if req.Filename != "" && isAnalysisIntent(analysis.Intent) {
		frame, err := s.loadUploadedFrame(req.Filename)
		if err != nil {
			writeError(w, http.StatusNotFound, "dataset not available", err)
			return
		}
		spec := specFromParams(analysis.Params)
		result, values, err := runAnalysis(frame, spec)
		if err != nil {
			writeError(w, http.StatusBadRequest, "analysis failed", err)
			return
		}
		payload["result"] = result
		payload["values"] = values
	}

	id, err := s.store.LogInteraction(feedback.Interaction{
		UserID:       req.UserID,
		Question:     req.Question,
		Intent:       string(analysis.Intent),
		AnalysisType: string(analysis.Intent),
		Confidence:   analysis.Confidence,
		Duration:     time.Since(start),
	})
	if err != nil {
		s.logger.Warn("failed to log interaction", zap.Error(err))
	} else {
		payload["interaction_id"] = id
	}

	payload["suggestions"] = s.suggestions(req.UserID)
	writeJSON(w, http.StatusOK, payload)
}

func isAnalysisIntent(intent nlp.Intent) bool {
	switch intent {
	case nlp.IntentComparePeriods, nlp.IntentSegmentGroups, nlp.IntentCountReasons, nlp.IntentCustomKPIs:
		return true
	}
	return false
}

func specFromParams(params map[string]string) analysisSpec {
	return analysisSpec{
		Type:         params["type"],
		PeriodColumn: params["period_column"],
		ValueColumn:  params["value_column"],
		GroupColumn:  params["group_column"],
		ReasonColumn: params["reason_column"],
	}
}

// suggestions ranks likely next analyses for the user. The model is
// retrained per request; the feedback log stays small enough for that.
func (s *Server) suggestions(userID string) []insight.Prediction {
	model := s.trainedModel()
	if model == nil {
		return []insight.Prediction{}
	}
	predictions := model.Predict(userID)
	if len(predictions) > 3 {
		predictions = predictions[:3]
	}
	if predictions == nil {
		predictions = []insight.Prediction{}
	}
	return predictions
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InteractionID string `json:"interaction_id"`
		UserID        string `json:"user_id"`
		Rating        int    `json:"rating"`
		Comment       string `json:"comment,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	err := s.store.CollectFeedback(feedback.Feedback{
		InteractionID: req.InteractionID,
		UserID:        req.UserID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "feedback not recorded", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleFeedbackAnalytics(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter", fmt.Errorf("days must be a positive integer, got %q", raw))
			return
		}
		days = parsed
	}
	analytics, err := s.store.FeedbackAnalytics(days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "feedback analytics unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleUserPatterns(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	patterns, err := s.store.UserPatterns(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage patterns unavailable", err)
		return
	}
	if patterns == nil {
		patterns = []feedback.UsagePattern{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"patterns": patterns,
	})
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := insight.BuildProfile(s.store, r.PathValue("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user profile unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	profile, err := insight.BuildProfile(s.store, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "recommendations unavailable", err)
		return
	}
	recs := insight.Recommend(s.trainedModel(), profile)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         userID,
		"persona":         profile.Persona,
		"recommendations": recs,
	})
}
