package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantfabric/options-engine/internal/batch"
	"github.com/quantfabric/options-engine/internal/pricing"
	"github.com/quantfabric/options-engine/internal/stream"
	"github.com/quantfabric/options-engine/pkg/metrics"
	"github.com/quantfabric/options-engine/pkg/models"
	"github.com/quantfabric/options-engine/pkg/utils/errors"
	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	pricer      *pricing.Pricer
	greeks      *pricing.Engine
	solver      *pricing.Solver
	batchEngine *batch.Engine
	hub         *stream.Hub
	recorder    *metrics.Recorder
	log         *logger.Logger
}

// CreateHandlers creates new API handlers
func CreateHandlers(
	pricer *pricing.Pricer,
	greeks *pricing.Engine,
	solver *pricing.Solver,
	batchEngine *batch.Engine,
	hub *stream.Hub,
	recorder *metrics.Recorder,
) *Handlers {
	return &Handlers{
		pricer:      pricer,
		greeks:      greeks,
		solver:      solver,
		batchEngine: batchEngine,
		hub:         hub,
		recorder:    recorder,
		log:         logger.GetLogger("api.handlers"),
	}
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// QuoteRequest carries the scalar pricing inputs over the wire.
type QuoteRequest struct {
	Spot            float64 `json:"spot"`
	Strike          float64 `json:"strike"`
	Rate            float64 `json:"rate"`
	TimeToExpiry    float64 `json:"time_to_expiry"`
	Volatility      float64 `json:"volatility"`
	OptionType      string  `json:"option_type"`
	DividendYield   float64 `json:"dividend_yield"`
	CalculationDate string  `json:"calculation_date"`
}

func (r *QuoteRequest) toQuote() (models.OptionQuote, error) {
	optionType, err := models.ParseOptionType(r.OptionType)
	if err != nil {
		return models.OptionQuote{}, errors.InvalidMarket(err.Error())
	}
	return models.OptionQuote{
		Spot:            r.Spot,
		Strike:          r.Strike,
		Rate:            r.Rate,
		TimeToExpiry:    r.TimeToExpiry,
		Volatility:      r.Volatility,
		Type:            optionType,
		DividendYield:   r.DividendYield,
		CalculationDate: r.CalculationDate,
	}, nil
}

// PriceRequest optionally adds the IV-source selection inputs.
type PriceRequest struct {
	QuoteRequest
	MarketIV *float64 `json:"market_iv"`
	ATMIV    *float64 `json:"atm_iv"`
}

// PriceHandler prices one option. When market_iv is present the IV-source
// priority rule applies and the result carries a provenance tag.
func (h *Handlers) PriceHandler(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := req.toQuote()
	if err != nil {
		h.respondError(c, err)
		return
	}

	start := time.Now()
	var result *models.PricingResult
	if req.MarketIV != nil {
		result, err = h.pricer.PriceWithATMIV(quote, *req.MarketIV, req.ATMIV)
	} else {
		result, err = h.pricer.Price(quote)
	}
	if err != nil {
		h.recorder.RecordPricing(req.OptionType, "invalid", time.Since(start))
		h.respondError(c, err)
		return
	}

	h.recorder.RecordPricing(result.Type.String(), "ok", time.Since(start))
	if result.IntrinsicOnly {
		h.recorder.RecordIntrinsicFallback(string(result.IntrinsicReason))
	}
	c.JSON(http.StatusOK, result.Flatten())
}

// GreeksHandler computes the Greeks for one option
func (h *Handlers) GreeksHandler(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := req.toQuote()
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.greeks.Compute(quote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Flatten())
}

// ImpliedVolRequest carries a solver invocation.
type ImpliedVolRequest struct {
	QuoteRequest
	MarketPrice  float64  `json:"market_price"`
	InitialGuess *float64 `json:"initial_guess"`
}

// ImpliedVolHandler runs one Newton-Raphson solve
func (h *Handlers) ImpliedVolHandler(c *gin.Context) {
	var req ImpliedVolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := req.toQuote()
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.solver.Solve(req.MarketPrice, quote, req.InitialGuess)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.recorder.RecordSolve(string(result.Status), result.Iterations)
	c.JSON(http.StatusOK, result.Flatten())
}

// RobustImpliedVolHandler runs the multi-guess solve. Always 200: failure
// is a status in the envelope, not an HTTP error.
func (h *Handlers) RobustImpliedVolHandler(c *gin.Context) {
	var req ImpliedVolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	quote, err := req.toQuote()
	if err != nil {
		h.respondError(c, err)
		return
	}

	result := h.solver.SolveRobust(req.MarketPrice, quote)
	h.recorder.RecordRobustSolve(result.Status, len(result.TriedGuesses))
	c.JSON(http.StatusOK, result)
}

// ATMIVRequest asks for the at-the-money IV of a chain.
type ATMIVRequest struct {
	Chain        models.OptionChain `json:"chain"`
	CurrentPrice float64            `json:"current_price"`
	OptionType   string             `json:"option_type"`
}

// ATMIVHandler extracts the ATM implied volatility from an option chain
func (h *Handlers) ATMIVHandler(c *gin.Context) {
	var req ATMIVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	optionType, err := models.ParseOptionType(req.OptionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	iv := h.solver.ExtractATMIV(req.Chain, req.CurrentPrice, optionType)
	if iv == nil {
		c.JSON(http.StatusOK, gin.H{"atm_iv": nil, "found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"atm_iv": *iv, "found": true})
}

// ParityHandler prices both sides at matched volatility and reports the
// deviation from dividend-adjusted put-call parity
func (h *Handlers) ParityHandler(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	req.OptionType = "call"
	quote, err := req.toQuote()
	if err != nil {
		h.respondError(c, err)
		return
	}

	call, err := h.pricer.Price(quote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	quote.Type = models.OptionTypePut
	put, err := h.pricer.Price(quote)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"call":       call.Price,
		"put":        put.Price,
		"parity_gap": pricing.ParityGap(call, put),
	})
}

// SurfaceRequest asks for a Greeks surface over a strike × expiry grid.
type SurfaceRequest struct {
	Spot       float64   `json:"spot"`
	Strikes    []float64 `json:"strikes"`
	Expiries   []float64 `json:"expiries"`
	Rate       float64   `json:"rate"`
	Volatility float64   `json:"volatility"`
	OptionType string    `json:"option_type"`
}

// SurfaceHandler generates a Greeks surface
func (h *Handlers) SurfaceHandler(c *gin.Context) {
	var req SurfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	optionType, err := models.ParseOptionType(req.OptionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Strikes) == 0 || len(req.Expiries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strikes and expiries must be non-empty"})
		return
	}

	surface, err := h.batchEngine.GreeksSurface(
		c.Request.Context(), req.Spot, req.Strikes, req.Expiries, req.Rate, req.Volatility, optionType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"surface": surface})
}

// BatchRequest carries a ladder of contracts to evaluate.
type BatchRequest struct {
	Requests []batch.Request `json:"requests"`
}

// BatchHandler evaluates a ladder of contracts concurrently
func (h *Handlers) BatchHandler(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if len(req.Requests) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requests must be non-empty"})
		return
	}

	results, err := h.batchEngine.EvaluateAll(c.Request.Context(), req.Requests)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// StreamHandler upgrades the connection to a pricing-update stream
func (h *Handlers) StreamHandler(c *gin.Context) {
	h.hub.HandleWebSocket(c.Writer, c.Request)
	h.recorder.SetStreamClients(h.hub.ClientCount())
}

// respondError maps the error taxonomy onto HTTP statuses: contract
// violations are the caller's fault, everything else is ours.
func (h *Handlers) respondError(c *gin.Context, err error) {
	if errors.IsInvalidMarket(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Errorf("Request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
