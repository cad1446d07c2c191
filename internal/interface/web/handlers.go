package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openlancer/escrowd/internal/core/application"
	"github.com/openlancer/escrowd/internal/core/domain"
	"github.com/shopspring/decimal"
)

type handlers struct {
	svc *application.Service
}

type milestoneBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Budget      string `json:"budget"`
}

type createEscrowBody struct {
	ClientAddress string          `json:"client_address"`
	TotalBudget   string          `json:"total_budget"`
	Milestones    []milestoneBody `json:"milestones"`
}

func (h *handlers) createEscrow(c *gin.Context) {
	var body createEscrowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	budget, err := decimal.NewFromString(body.TotalBudget)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_budget"})
		return
	}
	milestones := make([]application.MilestoneInput, 0, len(body.Milestones))
	for _, m := range body.Milestones {
		b, err := decimal.NewFromString(m.Budget)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone budget"})
			return
		}
		milestones = append(milestones, application.MilestoneInput{
			Title: m.Title, Description: m.Description, Budget: b,
		})
	}
	escrow, err := h.svc.CreateEscrow(c.Request.Context(), body.ClientAddress, budget, milestones)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, escrow)
}

func (h *handlers) listEscrows(c *gin.Context) {
	escrows, err := h.svc.ListEscrows(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, escrows)
}

func (h *handlers) getEscrow(c *gin.Context) {
	escrow, err := h.svc.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}

type fundBody struct {
	Amount        string `json:"amount"`
	FunderAddress string `json:"funder_address"`
}

func (h *handlers) fundEscrow(c *gin.Context) {
	var body fundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	hash, err := h.svc.FundEscrow(c.Request.Context(), c.Param("id"), amount, body.FunderAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": hash})
}

type withdrawBody struct {
	FreelancerAddress string `json:"freelancer_address"`
}

func (h *handlers) withdrawReleased(c *gin.Context) {
	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := h.svc.WithdrawReleased(c.Request.Context(), c.Param("id"), body.FreelancerAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": hash})
}

type actorBody struct {
	ActorAddress string `json:"actor_address"`
}

func (h *handlers) openDispute(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.OpenDispute(c.Request.Context(), c.Param("id"), body.ActorAddress); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type resolveBody struct {
	RefundToClient bool `json:"refund_to_client"`
}

func (h *handlers) resolveDispute(c *gin.Context) {
	var body resolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.ResolveDispute(c.Request.Context(), c.Param("id"), body.RefundToClient); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) startMilestone(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.StartMilestone(c.Request.Context(), c.Param("id"), c.Param("mid"), body.ActorAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) releaseMilestone(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := h.svc.ReleaseMilestone(c.Request.Context(), c.Param("id"), c.Param("mid"), body.ActorAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": hash})
}

type timeReleaseBody struct {
	ActorAddress string `json:"actor_address"`
	ReleaseTime  int64  `json:"release_time"`
	Amount       string `json:"amount"`
}

func (h *handlers) addTimeRelease(c *gin.Context) {
	var body timeReleaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	hash, err := h.svc.AddTimeRelease(
		c.Request.Context(), c.Param("id"), body.ActorAddress, body.ReleaseTime, amount,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tx_hash": hash})
}

func (h *handlers) releaseTimeBased(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	hash, err := h.svc.ReleaseTimeBased(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": hash})
}

func (h *handlers) getBids(c *gin.Context) {
	bids, err := h.svc.GetBids(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

func (h *handlers) acceptBid(c *gin.Context) {
	var body actorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.AcceptBid(c.Request.Context(), c.Param("id"), c.Param("key"), body.ActorAddress)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type submitBidBody struct {
	EscrowId           string `json:"escrow_id"`
	FreelancerAddress  string `json:"freelancer_address"`
	BidAmount          string `json:"bid_amount"`
	DeliveryDays       int    `json:"delivery_days"`
	Proposal           string `json:"proposal"`
	PortfolioLink      string `json:"portfolio_link"`
	MilestonesApproach string `json:"milestones_approach"`
}

func (h *handlers) submitBid(c *gin.Context) {
	var body submitBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.BidAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid_amount"})
		return
	}
	receipt, err := h.svc.SubmitBid(c.Request.Context(), application.BidRequest{
		EscrowId:           body.EscrowId,
		FreelancerAddress:  body.FreelancerAddress,
		BidAmount:          amount,
		DeliveryDays:       body.DeliveryDays,
		Proposal:           body.Proposal,
		PortfolioLink:      body.PortfolioLink,
		MilestonesApproach: body.MilestonesApproach,
	}, nil)
	if err != nil {
		// An unverified bid is persisted; report the receipt with the error.
		var sigErr *domain.InvalidSignatureError
		if errors.As(err, &sigErr) && receipt != nil {
			c.JSON(http.StatusOK, gin.H{
				"bid_hash": receipt.BidHash, "verified": false, "error": sigErr.Error(),
			})
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bid_hash": receipt.BidHash, "verified": receipt.Verified})
}

type rampBody struct {
	Account         string `json:"account"`
	AuthorityDomain string `json:"authority_domain"`
	Amount          string `json:"amount"`
}

func (h *handlers) startOnRamp(c *gin.Context) {
	h.startRamp(c, true)
}

func (h *handlers) startOffRamp(c *gin.Context) {
	h.startRamp(c, false)
}

func (h *handlers) startRamp(c *gin.Context, deposit bool) {
	var body rampBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	var session *domain.AnchorSession
	if deposit {
		session, err = h.svc.StartOnRamp(c.Request.Context(), body.Account, body.AuthorityDomain, amount)
	} else {
		session, err = h.svc.StartOffRamp(c.Request.Context(), body.Account, body.AuthorityDomain, amount)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *handlers) listSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *handlers) getSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *handlers) stopSession(c *gin.Context) {
	h.svc.StopPolling(c.Param("id"))
	c.Status(http.StatusNoContent)
}

type trustlineBody struct {
	Account string `json:"account"`
}

func (h *handlers) establishTrustline(c *gin.Context) {
	var body trustlineBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := h.svc.EstablishTrustline(c.Request.Context(), body.Account)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_hash": hash})
}

// abortWithError maps the domain error taxonomy onto HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		rejectedErr   *domain.UserRejectedError
		conflictErr   *domain.ConflictError
		fundsErr      *domain.InsufficientFundsError
		trustlineErr  *domain.TrustlineRequiredError
		signatureErr  *domain.InvalidSignatureError
		anchorErr     *domain.AnchorError
		networkErr    *domain.NetworkError
		txFailedErr   *domain.TransactionFailedError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &rejectedErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &fundsErr):
		status = http.StatusPaymentRequired
	case errors.As(err, &trustlineErr):
		status = http.StatusPreconditionFailed
	case errors.As(err, &signatureErr):
		status = http.StatusUnauthorized
	case errors.As(err, &anchorErr), errors.As(err, &networkErr), errors.As(err, &txFailedErr):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
