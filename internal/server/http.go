package server

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"CoverLedger/internal/engine"
	"CoverLedger/internal/insurance"
	"CoverLedger/internal/observability"
	"CoverLedger/internal/query"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server exposes the workflow engine and projection queries over HTTP/JSON.
// The engine is single-threaded; mu serializes every mutating call so the
// deterministic core never sees concurrent operations.
type Server struct {
	mu      sync.Mutex
	eng     *engine.WorkflowEngine
	queries *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func New(
	eng *engine.WorkflowEngine,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		eng:     eng,
		queries: queries,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/health", gin.WrapF(s.health.LivenessHandler))
	r.GET("/ready", gin.WrapF(s.health.ReadinessHandler))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/liquidity", s.addLiquidity)
		v1.POST("/liquidity/withdraw", s.removeLiquidity)
		v1.GET("/liquidity/:asset", s.availableLiquidity)

		v1.POST("/insurance", s.requestInsurance)
		v1.GET("/insurance/:owner", s.insuranceOf)
		v1.DELETE("/insurance/:owner", s.deleteInsurance)
		v1.POST("/insurance/:owner/approve", s.approveInsurance)
		v1.POST("/insurance/:owner/reject", s.rejectInsurance)
		v1.POST("/insurance/:owner/fee", s.payInsuranceFee)
		v1.POST("/insurance/admin", s.changeInsuranceAdmin)
		v1.POST("/insurance/amount", s.changeInsuranceAmount)

		v1.POST("/cover/request", s.requestCover)
		v1.POST("/cover/:owner/approve", s.approveCover)
		v1.POST("/cover/:owner/reject", s.rejectCover)
		v1.POST("/cover/accept-rejection", s.acceptCoverRejection)
		v1.POST("/cover/unlock", s.unlockFunds)

		v1.GET("/policies", s.listPolicies)
		v1.GET("/policies/:owner", s.getPolicy)
		v1.GET("/pools/:asset", s.getPool)
		v1.GET("/events", s.getEvents)
	}

	return r
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.metrics != nil {
			endpoint := c.FullPath()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			s.metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
			s.metrics.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// caller reads the authenticated caller address from the X-Caller-Address
// header. Signature verification happens at the gateway in front of this
// service; here the header is trusted.
func caller(c *gin.Context) (common.Address, bool) {
	raw := c.GetHeader("X-Caller-Address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid X-Caller-Address header"})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pathAddress(c *gin.Context, param string) (common.Address, bool) {
	raw := c.Param(param)
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param + " address"})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// statusForError maps engine errors to HTTP statuses. Validation failures
// are 4xx; anything unrecognized is a 500.
func statusForError(err error) int {
	var (
		unauthorized  *engine.UnauthorizedError
		notRequested  *engine.NotRequestedError
		alreadyReq    *engine.AlreadyRequestedError
		alreadyAppr   *engine.AlreadyApprovedError
		invalidStatus *engine.InvalidStatusError
		notDue        *engine.PaymentNotDueError
		lapsed        *engine.LapsedError
		insufficient  *engine.InsufficientLiquidityError
		exceeds       *engine.AmountExceedsBackingError
		priceOverflow *engine.PriceOverflowError
		zeroAmount    *engine.ZeroAmountError
		sentinel      *engine.SentinelAssetError
		sentinelAddr  *engine.SentinelAddressError
		sizeMismatch  *engine.SizeMismatchError
		scoreMismatch *engine.ScoreMismatchError
	)

	switch {
	case errors.As(err, &unauthorized):
		return http.StatusForbidden
	case errors.As(err, &notRequested):
		return http.StatusNotFound
	case errors.As(err, &alreadyReq),
		errors.As(err, &alreadyAppr),
		errors.As(err, &invalidStatus),
		errors.As(err, &notDue),
		errors.As(err, &lapsed):
		return http.StatusConflict
	case errors.As(err, &insufficient),
		errors.As(err, &exceeds),
		errors.As(err, &priceOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrEmptyScope),
		errors.Is(err, engine.ErrEmptyContactInformation),
		errors.As(err, &zeroAmount),
		errors.As(err, &sentinel),
		errors.As(err, &sentinelAddr),
		errors.As(err, &sizeMismatch),
		errors.As(err, &scoreMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("operation failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// --- Liquidity handlers ---

type liquidityRequest struct {
	Asset  string `json:"asset" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

func (s *Server) addLiquidity(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	var req liquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.AddLiquidity(from, common.HexToAddress(req.Asset), req.Amount)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) removeLiquidity(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	var req liquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.RemoveLiquidity(from, common.HexToAddress(req.Asset), req.Amount)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) availableLiquidity(c *gin.Context) {
	asset, ok := pathAddress(c, "asset")
	if !ok {
		return
	}

	s.mu.Lock()
	available := s.eng.AvailableLiquidity(asset)
	fees := s.eng.CollectedFees(asset)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"asset":          asset.Hex(),
		"available":      available,
		"collected_fees": fees,
	})
}

// --- Insurance handlers ---

type insuranceRequestBody struct {
	ProtocolName       string   `json:"protocol_name"`
	ProtocolWebsite    string   `json:"protocol_website"`
	ContactInformation string   `json:"contact_information"`
	Asset              string   `json:"asset"`
	Amount             int64    `json:"amount"`
	Scope              []string `json:"scope"`
	ChainIDs           []uint64 `json:"chain_ids"`
}

func (s *Server) requestInsurance(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	var body insuranceRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scope := make([]common.Address, len(body.Scope))
	for i, addr := range body.Scope {
		scope[i] = common.HexToAddress(addr)
	}

	req := engine.InsuranceRequest{
		ProtocolName:       body.ProtocolName,
		ProtocolWebsite:    body.ProtocolWebsite,
		ContactInformation: body.ContactInformation,
		Token: insurance.InsuranceToken{
			Amount: body.Amount,
			Asset:  common.HexToAddress(body.Asset),
		},
		Scope:    scope,
		ChainIDs: body.ChainIDs,
	}

	s.mu.Lock()
	err := s.eng.RequestInsurance(from, req)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "requested"})
}

func (s *Server) insuranceOf(c *gin.Context) {
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	s.mu.Lock()
	rec := s.eng.InsuranceOf(owner)
	s.mu.Unlock()

	c.JSON(http.StatusOK, rec)
}

type approveBody struct {
	Scores      []byte `json:"scores"`
	YearlyPrice int64  `json:"yearly_price"`
}

func (s *Server) approveInsurance(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.ApproveInsurance(from, owner, body.Scores, body.YearlyPrice)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectInsurance(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	var body reasonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.RejectInsurance(from, owner, body.Reason)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (s *Server) deleteInsurance(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.DeleteInsurance(from, owner)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) payInsuranceFee(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.PayInsuranceFee(from, owner)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paid"})
}

type changeAdminBody struct {
	NewAdmin string `json:"new_admin" binding:"required"`
}

func (s *Server) changeInsuranceAdmin(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	var body changeAdminBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.ChangeInsuranceAdmin(from, common.HexToAddress(body.NewAdmin))
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type changeAmountBody struct {
	NewAmount int64 `json:"new_amount" binding:"required"`
}

func (s *Server) changeInsuranceAmount(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	var body changeAmountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.ChangeInsuranceAmount(from, body.NewAmount)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Cover handlers ---

func (s *Server) requestCover(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.RequestCover(from)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cover_requested"})
}

func (s *Server) approveCover(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.ApproveCover(from, owner)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cover_approved"})
}

func (s *Server) rejectCover(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	var body reasonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	err := s.eng.RejectCover(from, owner, body.Reason)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cover_rejected"})
}

func (s *Server) acceptCoverRejection(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.AcceptCoverRejection(from)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejection_accepted"})
}

func (s *Server) unlockFunds(c *gin.Context) {
	from, ok := caller(c)
	if !ok {
		return
	}

	s.mu.Lock()
	err := s.eng.UnlockFunds(from)
	s.mu.Unlock()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

// --- Projection query handlers ---

func (s *Server) listPolicies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	policies, err := s.queries.ListPolicies(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies})
}

func (s *Server) getPolicy(c *gin.Context) {
	owner, ok := pathAddress(c, "owner")
	if !ok {
		return
	}

	policy, err := s.queries.GetPolicy(c.Request.Context(), owner.Hex())
	if err != nil {
		s.fail(c, err)
		return
	}
	if policy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no policy for owner"})
		return
	}
	c.JSON(http.StatusOK, policy)
}

func (s *Server) getPool(c *gin.Context) {
	asset, ok := pathAddress(c, "asset")
	if !ok {
		return
	}

	pool, err := s.queries.GetPool(c.Request.Context(), asset.Hex())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (s *Server) getEvents(c *gin.Context) {
	from, _ := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	if owner := c.Query("owner"); owner != "" {
		events, err := s.queries.GetOwnerEvents(c.Request.Context(), owner, limit)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}

	events, err := s.queries.GetEvents(c.Request.Context(), from, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
