// Package http 策略引擎 HTTP 接口
package http

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/vectorplus/internal/facade/application"
	optapp "github.com/wyfcoding/vectorplus/internal/options/application"
	optdomain "github.com/wyfcoding/vectorplus/internal/options/domain"
	twapapp "github.com/wyfcoding/vectorplus/internal/twap/application"
	twapdomain "github.com/wyfcoding/vectorplus/internal/twap/domain"
	volapp "github.com/wyfcoding/vectorplus/internal/volatility/application"
	voldomain "github.com/wyfcoding/vectorplus/internal/volatility/domain"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

type Handler struct {
	facade     *application.StrategyFacade
	volatility *volapp.Calculator
	twap       *twapapp.Executor
	options    *optapp.OptionService
}

func NewHandler(facade *application.StrategyFacade, volatility *volapp.Calculator, twap *twapapp.Executor, options *optapp.OptionService) *Handler {
	return &Handler{facade: facade, volatility: volatility, twap: twap, options: options}
}

// RegisterRoutes 注册路由。writeLimit 作用于期权写操作，可为空
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, writeLimit ...gin.HandlerFunc) {
	s := r.Group("/strategies")
	{
		s.POST("/:name/making-amount", h.MakingAmount)
		s.POST("/:name/taking-amount", h.TakingAmount)
		s.GET("/gas/:name", h.GasEstimate)
		s.GET("/contracts", h.Contracts)
	}

	v := r.Group("/volatility")
	{
		v.POST("/assess", h.Assess)
		v.POST("/batch-adjust", h.BatchAdjust)
		v.POST("/batch-risk", h.BatchRisk)
	}

	t := r.Group("/twap")
	{
		t.POST("/state", h.TWAPState)
		t.POST("/simulate", h.TWAPSimulate)
	}

	r.POST("/payloads/:kind", h.EncodePayload)

	tpl := r.Group("/templates")
	{
		tpl.GET("/volatility", h.VolatilityTemplate)
		tpl.GET("/twap", h.TWAPTemplate)
	}

	limited := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeLimit...), handler)
	}
	o := r.Group("/options")
	{
		o.POST("/call", limited(h.CreateCall)...)
		o.POST("/put", limited(h.CreatePut)...)
		o.POST("/premium", h.Premium)
		o.POST("/:id/exercise", limited(h.Exercise)...)
		o.GET("/:id", h.GetOption)
		o.GET("/:id/status", h.GetStatus)
		o.GET("/:id/greeks", h.GetGreeks)
	}
	r.GET("/orders/:hash/options", h.ListByOrder)
}

type AmountReq struct {
	Order     *protocol.Order  `json:"order" binding:"required"`
	OrderHash protocol.Hash    `json:"order_hash"`
	Taker     protocol.Address `json:"taker"`
	Amount    decimal.Decimal  `json:"amount"`
	Remaining decimal.Decimal  `json:"remaining"`
	Payload   string           `json:"payload" binding:"required"`
}

func (h *Handler) MakingAmount(c *gin.Context) { h.amount(c, h.facade.GetMakingAmount) }

func (h *Handler) TakingAmount(c *gin.Context) { h.amount(c, h.facade.GetTakingAmount) }

func (h *Handler) amount(c *gin.Context, fn func(ctx context.Context, name string, req *application.AmountRequest) (decimal.Decimal, error)) {
	var req AmountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	raw, err := decodeHex(req.Payload)
	if err != nil {
		badRequest(c, err)
		return
	}

	name := c.Param("name")
	out, err := fn(c.Request.Context(), name, &application.AmountRequest{
		Order:     req.Order,
		OrderHash: req.OrderHash,
		Taker:     req.Taker,
		Amount:    req.Amount,
		Remaining: req.Remaining,
		Payload:   raw,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": name, "amount": out})
}

func (h *Handler) GasEstimate(c *gin.Context) {
	name := c.Param("name")
	gas, err := h.facade.GasEstimate(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": name, "gas": gas})
}

func (h *Handler) Contracts(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.Contracts())
}

func (h *Handler) Assess(c *gin.Context) {
	var s voldomain.Snapshot
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err)
		return
	}
	a := h.volatility.Assess(&s)
	resp := gin.H{"valid": a.Valid(), "assessment": a}
	if !a.Valid() {
		resp["error"] = a.ValidationError.Error()
		resp["code"] = errorCode(a.ValidationError)
	}
	c.JSON(http.StatusOK, resp)
}

type BatchAdjustReq struct {
	Snapshot voldomain.Snapshot `json:"snapshot"`
	Amounts  []decimal.Decimal  `json:"amounts" binding:"required"`
}

func (h *Handler) BatchAdjust(c *gin.Context) {
	var req BatchAdjustReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.facade.BatchApplyAdjustment(req.Amounts, &req.Snapshot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amounts": out})
}

type BatchRiskReq struct {
	Snapshots []*voldomain.Snapshot `json:"snapshots" binding:"required"`
}

func (h *Handler) BatchRisk(c *gin.Context) {
	var req BatchRiskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	for _, s := range req.Snapshots {
		if s == nil {
			badRequest(c, errors.New("snapshot must not be null"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"risk_scores": h.facade.BatchRiskScore(req.Snapshots)})
}

type TWAPReq struct {
	Order     *protocol.Order     `json:"order" binding:"required"`
	OrderHash protocol.Hash       `json:"order_hash"`
	Remaining decimal.Decimal     `json:"remaining"`
	Schedule  twapdomain.Schedule `json:"schedule"`
	Snapshot  voldomain.Snapshot  `json:"snapshot"`
}

func (r *TWAPReq) payload() *twapdomain.Payload {
	return &twapdomain.Payload{Schedule: r.Schedule, Snapshot: r.Snapshot}
}

func (h *Handler) TWAPState(c *gin.Context) {
	var req TWAPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	st, err := h.twap.StateOf(c.Request.Context(), req.Order, req.OrderHash, req.Remaining, req.payload())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) TWAPSimulate(c *gin.Context) {
	var req TWAPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sim, err := h.twap.Simulate(c.Request.Context(), req.Order, req.OrderHash, req.payload())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sim)
}

// EncodePayload 将 JSON 描述编码为策略负载
func (h *Handler) EncodePayload(c *gin.Context) {
	var (
		raw []byte
		err error
	)
	switch kind := c.Param("kind"); kind {
	case volapp.StrategyName:
		var s voldomain.Snapshot
		if err = c.ShouldBindJSON(&s); err == nil {
			raw, err = voldomain.EncodeSnapshot(&s)
		}
	case twapapp.StrategyName:
		var p twapdomain.Payload
		if err = c.ShouldBindJSON(&p); err == nil {
			raw, err = twapdomain.EncodePayload(&p)
		}
	case optapp.StrategyName:
		var o optdomain.Option
		if err = c.ShouldBindJSON(&o); err == nil {
			raw, err = optdomain.EncodeOption(&o)
		}
	default:
		fail(c, fmt.Errorf("%w: %q", application.ErrUnknownStrategy, kind))
		return
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": "0x" + hex.EncodeToString(raw)})
}

type CreateOptionReq struct {
	Order       *protocol.Order  `json:"order" binding:"required"`
	OrderHash   protocol.Hash    `json:"order_hash"`
	Holder      protocol.Address `json:"holder"`
	StrikePrice decimal.Decimal  `json:"strike_price"`
	Expiration  uint64           `json:"expiration"`
	Premium     decimal.Decimal  `json:"premium"`
}

func (h *Handler) CreateCall(c *gin.Context) { h.create(c, h.options.CreateCallOption) }

func (h *Handler) CreatePut(c *gin.Context) { h.create(c, h.options.CreatePutOption) }

func (h *Handler) create(c *gin.Context, fn func(ctx context.Context, cmd optapp.CreateCommand) (protocol.Hash, error)) {
	var req CreateOptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, err := fn(c.Request.Context(), optapp.CreateCommand{
		Order:       req.Order,
		OrderHash:   req.OrderHash,
		Holder:      req.Holder,
		StrikePrice: req.StrikePrice,
		Expiration:  req.Expiration,
		Premium:     req.Premium,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"option_id": id})
}

type ExerciseReq struct {
	Order        *protocol.Order  `json:"order" binding:"required"`
	OrderHash    protocol.Hash    `json:"order_hash"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Caller       protocol.Address `json:"caller"`
}

func (h *Handler) Exercise(c *gin.Context) {
	id, ok := optionID(c)
	if !ok {
		return
	}
	var req ExerciseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.options.ExerciseOption(c.Request.Context(), id, req.Order, req.OrderHash, req.CurrentPrice, req.Caller)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type PremiumReq struct {
	Order            *protocol.Order `json:"order" binding:"required"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	TimeToExpiration uint64          `json:"time_to_expiration"`
	Volatility       uint64          `json:"volatility"`
	IsCall           bool            `json:"is_call"`
}

func (h *Handler) Premium(c *gin.Context) {
	var req PremiumReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.options.CalculateOptionPremium(req.Order, req.CurrentPrice, req.TimeToExpiration, req.Volatility, req.IsCall)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) GetOption(c *gin.Context) {
	id, ok := optionID(c)
	if !ok {
		return
	}
	o, err := h.options.GetOption(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) GetStatus(c *gin.Context) {
	id, ok := optionID(c)
	if !ok {
		return
	}
	st, err := h.options.GetOptionWithStatus(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) GetGreeks(c *gin.Context) {
	id, ok := optionID(c)
	if !ok {
		return
	}
	price, err := decimal.NewFromString(c.Query("price"))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid price: %w", err))
		return
	}
	g, err := h.options.Greeks(c.Request.Context(), id, price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) ListByOrder(c *gin.Context) {
	hash, err := protocol.ParseHash(c.Param("hash"))
	if err != nil {
		badRequest(c, err)
		return
	}
	list, err := h.options.ListOptionsByOrder(c.Request.Context(), hash)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": list})
}

func (h *Handler) VolatilityTemplate(c *gin.Context) {
	current, ok := queryUint(c, "current")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.facade.VolatilityTemplate(current))
}

func (h *Handler) TWAPTemplate(c *gin.Context) {
	start, ok := queryUint(c, "start")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.facade.TWAPTemplate(start))
}

// queryUint 解析可选的无符号查询参数，缺省为 0
func queryUint(c *gin.Context, key string) (uint64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid %s: %w", key, err))
		return 0, false
	}
	return v, true
}

func optionID(c *gin.Context) (protocol.Hash, bool) {
	id, err := protocol.ParseHash(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return id, false
	}
	return id, true
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid hex", protocol.ErrInvalidPayload)
	}
	return b, nil
}
