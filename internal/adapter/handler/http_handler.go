package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rl1809/buildcrew/internal/core/domain"
	"github.com/rl1809/buildcrew/internal/core/resolver"
	"github.com/rl1809/buildcrew/internal/core/service"
)

// itemname rejects names that normalize to nothing or never round-trip,
// such as all-whitespace strings.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("itemname", func(fl validator.FieldLevel) bool {
			name := fl.Field().String()
			return domain.NormalizeName(name) != "" && !strings.ContainsAny(name, "\n\t")
		})
	}
}

type HTTPHandler struct {
	projects *service.ProjectService
	resolver *resolver.Service
	logger   *slog.Logger
}

func NewHTTPHandler(projects *service.ProjectService, res *resolver.Service, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{projects: projects, resolver: res, logger: logger}
}

// Register wires all routes onto the engine.
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/projects", h.createProject)
		api.GET("/projects/:id", h.getProject)
		api.PUT("/projects/:id/plan", h.replacePlan)
		api.POST("/projects/:id/contributions", h.contribute)
		api.GET("/projects/:id/contributions", h.listContributions)
		api.GET("/projects/:id/events", h.listEvents)
		api.GET("/recipes/:item/dependencies", h.dependencyList)
		api.GET("/recipes/:item/tree", h.recipeTree)
	}
}

type itemSpecRequest struct {
	Name             string   `json:"name" binding:"required,itemname"`
	QuantityRequired int      `json:"quantity_required" binding:"required,gte=1"`
	Dependencies     []string `json:"dependencies"`
}

type recipeSeedRequest struct {
	Root          string `json:"root" binding:"required"`
	RootQuantity  int    `json:"root_quantity" binding:"omitempty,gte=1"`
	DepthLimit    int    `json:"depth_limit" binding:"omitempty,gte=1"`
	MaxNodeBudget int    `json:"max_node_budget" binding:"omitempty,gte=1"`
}

type createProjectRequest struct {
	Name       string             `json:"name" binding:"required"`
	TargetItem string             `json:"target_item"`
	Items      []itemSpecRequest  `json:"items" binding:"omitempty,dive"`
	FromRecipe *recipeSeedRequest `json:"from_recipe"`
}

type contributeRequest struct {
	Item          string `json:"item" binding:"required,itemname"`
	Quantity      int    `json:"quantity" binding:"required,gte=1"`
	ContributorID string `json:"contributor_id" binding:"required"`
}

type replacePlanRequest struct {
	Items []itemSpecRequest `json:"items" binding:"required,min=1,dive"`
}

func specsFromRequest(in []itemSpecRequest) []service.ItemSpec {
	specs := make([]service.ItemSpec, 0, len(in))
	for _, item := range in {
		specs = append(specs, service.ItemSpec{
			Name:             item.Name,
			QuantityRequired: item.QuantityRequired,
			Dependencies:     item.Dependencies,
		})
	}
	return specs
}

func (h *HTTPHandler) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.CreateProjectInput{
		Name:       req.Name,
		TargetItem: req.TargetItem,
		Items:      specsFromRequest(req.Items),
	}
	if req.FromRecipe != nil {
		input.FromRecipe = &service.RecipeSeed{
			Root:          req.FromRecipe.Root,
			RootQuantity:  req.FromRecipe.RootQuantity,
			DepthLimit:    req.FromRecipe.DepthLimit,
			MaxNodeBudget: req.FromRecipe.MaxNodeBudget,
		}
	}

	snap, err := h.projects.CreateProject(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshotResponse(snap))
}

func (h *HTTPHandler) getProject(c *gin.Context) {
	snap, err := h.projects.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(snap))
}

func (h *HTTPHandler) replacePlan(c *gin.Context) {
	var req replacePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.projects.ReplacePlan(c.Request.Context(), c.Param("id"), specsFromRequest(req.Items))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshotResponse(snap))
}

func (h *HTTPHandler) contribute(c *gin.Context) {
	var req contributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.projects.Contribute(c.Request.Context(), c.Param("id"), req.Item, req.Quantity, req.ContributorID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted_quantity":   result.Accepted,
		"remainder_requested": result.RemainderRequested,
		"remaining":           result.Remaining,
		"item":                itemResponse(result.Item),
		"progress":            result.Progress,
		"bottlenecks":         result.Bottlenecks,
	})
}

func (h *HTTPHandler) listContributions(c *gin.Context) {
	log, err := h.projects.ListContributions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributionsResponse(log)})
}

func (h *HTTPHandler) listEvents(c *gin.Context) {
	events, err := h.projects.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": eventsResponse(events)})
}

type resolveQuery struct {
	Depth    int `form:"depth" binding:"omitempty,gte=1"`
	Budget   int `form:"budget" binding:"omitempty,gte=1"`
	Quantity int `form:"quantity" binding:"omitempty,gte=1"`
}

func (h *HTTPHandler) dependencyList(c *gin.Context) {
	var q resolveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := h.resolver.BuildDependencyList(c.Request.Context(), c.Param("item"), q.Depth, q.Budget)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *HTTPHandler) recipeTree(c *gin.Context) {
	var q resolveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Quantity == 0 {
		q.Quantity = 1
	}

	tree, err := h.resolver.BuildRecipeTree(c.Request.Context(), c.Param("item"), q.Depth, q.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *HTTPHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeError maps the domain error taxonomy to transport responses.
// Conflicts are terminal for the request; only "retryable" invites the
// caller to repeat the call verbatim.
func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	var unmet *domain.UnmetDependencyError
	switch {
	case errors.As(err, &unmet):
		c.JSON(http.StatusConflict, gin.H{
			"error":              "unmet dependencies",
			"item":               unmet.ItemName,
			"unmet_dependencies": unmet.Unmet,
		})
	case errors.Is(err, domain.ErrAlreadyComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "item already complete", "accepted_quantity": 0})
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRecipeUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "no recipe indexed for item"})
	case errors.Is(err, domain.ErrRetryable):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transient contention, retry"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
