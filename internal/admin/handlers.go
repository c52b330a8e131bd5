package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bastionwaf/bastion/internal/exclusion"
)

// ErrorResponse is the body of every failed admin call.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type PathRuleView struct {
	Index  int    `json:"index"`
	Prefix string `json:"prefix"`
}

type QueryParamSetRuleView struct {
	Index int      `json:"index"`
	Names []string `json:"names"`
}

type ExclusionsResponse struct {
	Paths          []PathRuleView          `json:"paths"`
	QueryParamSets []QueryParamSetRuleView `json:"query_param_sets"`
}

type addPathRequest struct {
	Prefix string `json:"prefix"`
}

// addQueryParamsRequest carries the names as typed into a form field,
// comma separated.
type addQueryParamsRequest struct {
	Names string `json:"names"`
}

type handler struct {
	store  ExclusionStore
	logger *zap.Logger
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) listExclusions(c *gin.Context) {
	c.JSON(http.StatusOK, buildExclusionsResponse(h.store))
}

func (h *handler) addPathRule(c *gin.Context) {
	var req addPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.store.AddPathRule(req.Prefix); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildExclusionsResponse(h.store))
}

func (h *handler) addQueryParamSetRule(c *gin.Context) {
	var req addQueryParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.store.AddQueryParamSetRule(exclusion.ParseQueryParamNames(req.Names)); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildExclusionsResponse(h.store))
}

func (h *handler) removeRule(c *gin.Context) {
	kind, err := exclusion.ParseRuleKind(c.Param("kind"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "index must be an integer")
		return
	}

	if err := h.store.RemoveRule(kind, index); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildExclusionsResponse(h.store))
}

func (h *handler) writeStoreError(c *gin.Context, err error) {
	switch {
	case exclusion.IsValidationError(err):
		writeError(c, http.StatusBadRequest, err.Error())
	case exclusion.IsNotFoundError(err):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Exclusion store failure", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "failed to save exclusion rules")
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Status: "error", Message: message})
}

func buildExclusionsResponse(store ExclusionStore) ExclusionsResponse {
	resp := ExclusionsResponse{
		Paths:          []PathRuleView{},
		QueryParamSets: []QueryParamSetRuleView{},
	}
	for i, rule := range store.PathRules() {
		resp.Paths = append(resp.Paths, PathRuleView{Index: i, Prefix: rule.Prefix})
	}
	for i, rule := range store.QueryParamSetRules() {
		resp.QueryParamSets = append(resp.QueryParamSets, QueryParamSetRuleView{Index: i, Names: rule.Names})
	}
	return resp
}
