// HTTP handlers.
//
// Every handler follows the same shape: read the bounded body, check field
// types with gjson (so "text": 5 is a 400, not a silent zero), decode, run
// the router, then record the outcome.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/compresr/squeeze/external"
	"github.com/compresr/squeeze/internal/compactor"
	"github.com/compresr/squeeze/internal/monitoring"
	"github.com/compresr/squeeze/internal/pipes"
	logoutput "github.com/compresr/squeeze/internal/pipes/log_output"
	"github.com/compresr/squeeze/internal/usage"
)

// errBodyTooLarge marks bodies over maxBodyBytes.
var errBodyTooLarge = errors.New("request body too large")

// readBody reads and syntax-checks a JSON body.
func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("request body must be valid JSON")
	}
	return body, nil
}

// decode reads the body into v after checking that required fields are strings.
func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any, requiredStrings ...string) bool {
	requestID := monitoring.RequestIDFromContext(r.Context())

	body, err := g.readBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		g.alerts.FlagInvalidRequest(requestID, err.Error())
		g.writeError(w, err.Error(), ErrTypeInvalidRequest, status)
		return false
	}

	for _, field := range requiredStrings {
		if f := gjson.GetBytes(body, field); f.Type != gjson.String {
			msg := fmt.Sprintf("Field '%s' is required and must be a string.", field)
			g.alerts.FlagInvalidRequest(requestID, msg)
			g.writeError(w, msg, ErrTypeInvalidRequest, http.StatusBadRequest)
			return false
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		g.alerts.FlagInvalidRequest(requestID, err.Error())
		g.writeError(w, "invalid request body: "+err.Error(), ErrTypeInvalidRequest, http.StatusBadRequest)
		return false
	}
	return true
}

// =============================================================================
// COMPACTION
// =============================================================================

// compactLog runs the log output pipe, optionally with per-request options.
func (g *Gateway) compactLog(ctx context.Context, text string, opts *compactor.Options) (*pipes.PipeContext, string, error) {
	pc := pipes.NewPipeContext(ctx, text)
	pc.RequestID = monitoring.RequestIDFromContext(ctx)

	if opts != nil {
		// Overrides bypass the pooled pipe and its result cache.
		cfg := g.cfg.Pipes.LogOutput
		cfg.Compactor = *opts
		cfg.CacheResults = false
		out, err := logoutput.New(cfg, g.store).Process(pc)
		return pc, out, err
	}

	out, err := g.router.Process(pc, g.cfg.Pipes.LogOutput.Strategy)
	return pc, out, err
}

// record fans a finished compaction out to metrics, logs, telemetry and usage.
func (g *Gateway) record(ctx context.Context, pc *pipes.PipeContext, source monitoring.Source, path, strategy, model string, origTokens, compTokens int, start time.Time, procErr error) {
	latency := time.Since(start)

	switch pc.Status {
	case pipes.StatusCacheHit:
		g.metrics.RecordCacheHit()
	case pipes.StatusCompacted, pipes.StatusTruncated:
		g.metrics.RecordCacheMiss()
	}
	g.metrics.RecordCompaction(pc.Result.OriginalSize, pc.Result.CompactedSize, pc.Fallback)
	if procErr == nil {
		g.alerts.FlagLowReduction(pc.RequestID, pc.Result.OriginalSize, pc.Result.CompactedSize, pc.Fallback)
	}

	g.requestLogger.LogCompaction(&monitoring.CompactionInfo{
		RequestID:     pc.RequestID,
		Strategy:      strategy,
		Status:        pc.Status,
		OriginalSize:  pc.Result.OriginalSize,
		CompactedSize: pc.Result.CompactedSize,
		Ratio:         pc.Result.Ratio(),
		KeptLines:     pc.KeptLines,
		Fallback:      pc.Fallback,
		Duration:      latency,
	})

	event := &monitoring.CompactionEvent{
		RequestID:       pc.RequestID,
		Timestamp:       start,
		Source:          source,
		Path:            path,
		Strategy:        strategy,
		Status:          pc.Status,
		ContentID:       pc.ContentID,
		Model:           model,
		OriginalSize:    pc.Result.OriginalSize,
		CompactedSize:   pc.Result.CompactedSize,
		OriginalTokens:  origTokens,
		CompactedTokens: compTokens,
		Ratio:           pc.Result.Ratio(),
		KeptLines:       pc.KeptLines,
		Fallback:        pc.Fallback,
		LatencyMs:       latency.Milliseconds(),
		Success:         procErr == nil,
	}
	if procErr != nil {
		event.Error = procErr.Error()
	}
	g.tracker.RecordCompaction(event)

	if g.tracker.ComparisonLogEnabled() {
		g.tracker.LogComparison(monitoring.CompactionComparison{
			RequestID:        pc.RequestID,
			Timestamp:        start.UTC().Format(time.RFC3339),
			ContentID:        pc.ContentID,
			Strategy:         strategy,
			OriginalSize:     pc.Result.OriginalSize,
			CompactedSize:    pc.Result.CompactedSize,
			CompressionRatio: pc.Result.Ratio(),
			OriginalContent:  pc.Input,
			CompactedContent: pc.Result.Compacted,
			Status:           pc.Status,
		})
	}

	if g.usage != nil && procErr == nil {
		err := g.usage.Record(ctx, usage.Event{
			RequestID:       pc.RequestID,
			Source:          string(source),
			Strategy:        strategy,
			Model:           model,
			OriginalSize:    pc.Result.OriginalSize,
			CompactedSize:   pc.Result.CompactedSize,
			OriginalTokens:  origTokens,
			CompactedTokens: compTokens,
			Fallback:        pc.Fallback,
			CreatedAt:       start,
		})
		if err != nil {
			g.logger.Warn().Err(err).Str("request_id", pc.RequestID).Msg("failed to record usage")
		}
	}
}

func (g *Gateway) logStrategy() string {
	if s := g.cfg.Pipes.LogOutput.Strategy; s != "" {
		return s
	}
	return pipes.StrategyHeuristic
}

// =============================================================================
// HANDLERS
// =============================================================================

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

func (g *Gateway) handleCompact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CompactRequest
	if !g.decode(w, r, &req, "text") {
		return
	}

	var opts *compactor.Options
	if req.TailLines != 0 || req.StripMode != "" {
		o := g.cfg.Pipes.LogOutput.Compactor
		if req.TailLines != 0 {
			o.TailLines = req.TailLines
		}
		if req.StripMode != "" {
			o.StripMode = req.StripMode
		}
		if err := o.Validate(); err != nil {
			g.writeError(w, err.Error(), ErrTypeInvalidRequest, http.StatusBadRequest)
			return
		}
		opts = &o
	}

	pc, out, err := g.compactLog(r.Context(), req.Text, opts)
	stats := g.tokens.Compare(req.Model, req.Text, out)
	g.record(r.Context(), pc, monitoring.SourceHTTP, r.URL.Path, g.logStrategy(), req.Model, stats.OriginalTokens, stats.CompactedTokens, start, err)
	if err != nil {
		g.writeError(w, "compaction failed: "+err.Error(), ErrTypeInternal, http.StatusInternalServerError)
		return
	}

	g.writeJSON(w, http.StatusOK, CompactResponse{
		ID:        pc.ContentID,
		Result:    pc.Result,
		Status:    pc.Status,
		Fallback:  pc.Fallback,
		KeptLines: pc.KeptLines,
		Tokens:    stats,
	})
}

func (g *Gateway) handleCompress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CompressRequest
	if !g.decode(w, r, &req, "text", "model") {
		return
	}

	pc, out, err := g.compactLog(r.Context(), req.Text, nil)
	stats := g.tokens.Compare(req.Model, req.Text, out)
	g.record(r.Context(), pc, monitoring.SourceHTTP, r.URL.Path, g.logStrategy(), req.Model, stats.OriginalTokens, stats.CompactedTokens, start, err)
	if err != nil {
		g.writeError(w, "Compression error: "+err.Error(), ErrTypeInternal, http.StatusInternalServerError)
		return
	}

	g.writeJSON(w, http.StatusOK, CompressResponse{
		CompressedText: out,
		InputTokens:    stats.OriginalTokens,
		OutputTokens:   stats.CompactedTokens,
	})
}

func (g *Gateway) handleTransform(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := monitoring.RequestIDFromContext(r.Context())

	body, err := g.readBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		g.writeError(w, err.Error(), ErrTypeInvalidRequest, status)
		return
	}

	req, msg := g.parseTransform(body)
	if msg != "" {
		g.alerts.FlagInvalidRequest(requestID, msg)
		g.writeError(w, msg, ErrTypeInvalidRequest, http.StatusBadRequest)
		return
	}

	if !g.cfg.Pipes.Prompt.Enabled {
		g.writeError(w, "prompt pipe is disabled", ErrTypeUnavailable, http.StatusServiceUnavailable)
		return
	}

	pc := pipes.NewPipeContext(r.Context(), req.Text)
	pc.RequestID = requestID
	pc.Rate = req.Rate
	pc.ForceTokens = req.ForceTokens

	out, err := g.router.Process(pc, req.Schema)
	stats := g.tokens.Compare("", req.Text, out)
	g.record(r.Context(), pc, monitoring.SourceHTTP, r.URL.Path, req.Schema, "", stats.OriginalTokens, stats.CompactedTokens, start, err)
	if err != nil {
		g.writeError(w, "Compression failed: "+err.Error(), ErrTypeInternal, http.StatusInternalServerError)
		return
	}

	g.writeJSON(w, http.StatusOK, TransformResponse{
		Compressed:   out,
		Schema:       req.Schema,
		Rate:         req.Rate,
		ForceTokens:  req.ForceTokens,
		InputTokens:  stats.OriginalTokens,
		OutputTokens: stats.CompactedTokens,
	})
}

// parseTransform validates a /transform body. It returns a non-empty message
// on the first invalid field.
func (g *Gateway) parseTransform(body []byte) (TransformRequest, string) {
	var req TransformRequest
	doc := gjson.ParseBytes(body)

	text := doc.Get("text")
	if text.Type != gjson.String || strings.TrimSpace(text.String()) == "" {
		return req, "Field 'text' is required and must be a non-empty string."
	}
	req.Text = text.String()

	req.Schema = g.cfg.Pipes.Prompt.Strategy
	if req.Schema == "" || req.Schema == pipes.StrategyPassthrough {
		req.Schema = pipes.StrategySimple
	}
	if schema := doc.Get("schema"); schema.Exists() {
		if schema.Type != gjson.String || !pipes.IsPromptStrategy(schema.String()) {
			return req, fmt.Sprintf("Invalid schema '%s'. Must be one of: %v", schema.String(), pipes.PromptStrategies)
		}
		req.Schema = schema.String()
	}

	req.Rate = DefaultTransformRate
	if rate := doc.Get("rate"); rate.Exists() {
		if rate.Type != gjson.Number || rate.Float() <= 0 || rate.Float() > 1 {
			return req, "Field 'rate' must be a number in the range (0, 1]."
		}
		req.Rate = rate.Float()
	}

	if force := doc.Get("force_tokens"); force.Exists() && force.Type != gjson.Null {
		if !force.IsArray() {
			return req, "Field 'force_tokens' must be a list of strings."
		}
		for _, tok := range force.Array() {
			if tok.Type != gjson.String {
				return req, "Field 'force_tokens' must be a list of strings."
			}
			req.ForceTokens = append(req.ForceTokens, tok.String())
		}
	}

	return req, ""
}

func (g *Gateway) handleOriginal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, ok := g.store.Get(id)
	if !ok {
		g.writeError(w, fmt.Sprintf("original %q not found or expired", id), ErrTypeNotFound, http.StatusNotFound)
		return
	}
	g.writeJSON(w, http.StatusOK, OriginalResponse{ID: id, Text: text})
}

func (g *Gateway) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	if g.forwarder == nil {
		g.writeError(w, "forwarder is not configured", ErrTypeUnavailable, http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	var req DiagnoseRequest
	if !g.decode(w, r, &req, "text") {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		g.writeError(w, "Field 'text' must be a non-empty string.", ErrTypeInvalidRequest, http.StatusBadRequest)
		return
	}

	model := req.Model
	if model == "" {
		model = g.forwarder.Model()
	}

	pc, out, err := g.compactLog(r.Context(), req.Text, nil)
	stats := g.tokens.Compare(model, req.Text, out)
	g.record(r.Context(), pc, monitoring.SourceHTTP, r.URL.Path, g.logStrategy(), model, stats.OriginalTokens, stats.CompactedTokens, start, err)
	if err != nil {
		g.writeError(w, "compaction failed: "+err.Error(), ErrTypeInternal, http.StatusInternalServerError)
		return
	}

	fwdStart := time.Now()
	result, err := g.forwarder.Diagnose(r.Context(), external.DiagnoseRequest{Logs: out, Question: req.Question, Model: req.Model})
	if err != nil {
		g.alerts.FlagForwardFailure(pc.RequestID, g.forwarder.Provider(), err)
		g.writeError(w, "model call failed: "+err.Error(), ErrTypeUpstream, http.StatusBadGateway)
		return
	}
	g.requestLogger.LogForward(&monitoring.ForwardInfo{
		RequestID:    pc.RequestID,
		Provider:     result.Provider,
		Model:        model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Latency:      time.Since(fwdStart),
	})

	g.writeJSON(w, http.StatusOK, DiagnoseResponse{
		ID:           pc.ContentID,
		Answer:       result.Content,
		Provider:     result.Provider,
		Model:        model,
		Compaction:   pc.Result,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	originals, compacted := g.store.Len()
	resp := StatsResponse{
		UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
		Metrics:       g.metrics.Stats(),
		Store:         StoreStats{Originals: originals, Compacted: compacted},
	}
	if g.usage != nil {
		summary, err := g.usage.Summary(r.Context())
		if err != nil {
			g.writeError(w, "failed to read usage: "+err.Error(), ErrTypeInternal, http.StatusInternalServerError)
			return
		}
		resp.Usage = &summary
	}
	g.writeJSON(w, http.StatusOK, resp)
}
