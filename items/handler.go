package items

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dbsnap/database/query"
	"github.com/kbukum/dbsnap/errors"
	"github.com/kbukum/dbsnap/logger"
	"github.com/kbukum/dbsnap/server"
	"github.com/kbukum/dbsnap/validation"
)

// Handler serves the items API.
type Handler struct {
	repo *Repository
	log  *logger.Logger
}

// NewHandler returns a handler backed by repo.
func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{repo: repo, log: log.WithComponent("items")}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/items", h.create)
	r.GET("/items", h.list)
	r.GET("/items/:id", h.get)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", "request body must be a JSON object").WithCause(err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	it, err := h.repo.Create(c.Request.Context(), req.Name)
	if err != nil {
		h.log.Error("failed to create item", logger.ErrorFields("create", err))
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		server.RespondWithError(c, errors.InvalidInput("id", "id must be a positive integer"))
		return
	}

	it, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) list(c *gin.Context) {
	res, err := h.repo.List(c.Request.Context(), query.ParseFromRequest(c.Request))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOKWithMeta(c, res.Data, &server.Meta{
		Page:       res.Pagination.Page,
		PageSize:   res.Pagination.PageSize,
		Total:      res.Pagination.Total,
		TotalPages: res.Pagination.TotalPages,
	})
}
