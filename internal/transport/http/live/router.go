package livehttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Router 暴露运行状态、持仓与分析结果的查询接口。
type Router struct {
	symbol   string
	state    StateProvider
	analysis AnalysisProvider
	journal  JournalReader
}

func NewRouter(symbol string, state StateProvider, analysis AnalysisProvider, journal JournalReader) *Router {
	return &Router{symbol: symbol, state: state, analysis: analysis, journal: journal}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/state", r.handleState)
	group.GET("/positions", r.handlePositions)
	group.GET("/analysis/last", r.handleLastAnalysis)
	group.GET("/analyses", r.handleAnalyses)
}

func (r *Router) handleState(c *gin.Context) {
	if r.state == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state unavailable"})
		return
	}
	resp := stateResponse{Symbol: r.symbol, Snapshot: r.state.Snapshot()}
	if r.journal != nil {
		resp.RunID = r.journal.RunID()
	}
	c.JSON(http.StatusOK, resp)
}

// handlePositions 优先读取落库记录（包含历史运行），否则退回内存中的已平仓列表。
func (r *Router) handlePositions(c *gin.Context) {
	runID := strings.TrimSpace(c.Query("run_id"))
	if r.journal != nil {
		trades, err := r.journal.ListTrades(c.Request.Context(), runID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"source": "journal", "positions": trades})
		return
	}
	if runID != "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled, only the current run is available"})
		return
	}
	if r.state == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "state unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": "memory", "positions": r.state.Snapshot().Closed})
}

func (r *Router) handleLastAnalysis(c *gin.Context) {
	if r.analysis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis unavailable"})
		return
	}
	res, ok := r.analysis.LastResult()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis yet"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleAnalyses(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = v
	}
	list, err := r.journal.ListAnalyses(c.Request.Context(), strings.TrimSpace(c.Query("run_id")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": list})
}
