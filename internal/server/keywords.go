package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/settings"
)

type trackBody struct {
	Keyword string `json:"keyword"`
}

type validateBody struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

type providerStatus struct {
	Provider   settings.Provider `json:"provider"`
	Name       string            `json:"name"`
	Configured bool              `json:"configured"`
	Valid      bool              `json:"valid"`
	Error      string            `json:"error,omitempty"`
}

// requireKeywords answers 503 when keyword tracking is not set up.
func (s *Server) requireKeywords(c *gin.Context) bool {
	if s.keywords == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "keyword tracking is not configured"})
		return false
	}
	return true
}

func (s *Server) listKeywords(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	list, err := s.keywords.List(c.Request.Context(), c.Query("filter"))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []database.Keyword{}
	}
	c.JSON(http.StatusOK, gin.H{"keywords": list})
}

func (s *Server) trackKeyword(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	var body trackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &article.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	k, err := s.keywords.Track(c.Request.Context(), body.Keyword)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, k)
}

func (s *Server) refreshKeywords(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	report, err := s.keywords.RefreshAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := s.db.InsertReport(c.Request.Context(), database.RunKeywordRefresh, report.Total, report.Updated, report.Failed); err != nil {
		c.Error(err) //nolint:errcheck
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) refreshKeyword(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	k, err := s.keywords.UpdateByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

func (s *Server) untrackKeyword(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	if err := s.keywords.Untrack(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) researchKeywords(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	suggestions, err := s.keywords.Research(c.Request.Context(), c.Query("seed"), c.Query("category"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

func (s *Server) topPins(c *gin.Context) {
	if !s.requireKeywords(c) {
		return
	}
	limit := 10
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			fail(c, &article.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = n
	}
	pins, err := s.keywords.TopPins(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pins": pins})
}

func (s *Server) settingsStatus(c *gin.Context) {
	keys := s.keys()
	problems := keys.Check()
	out := make([]providerStatus, 0, len(settings.AllProviders()))
	for _, p := range settings.AllProviders() {
		st := providerStatus{Provider: p, Name: p.DisplayName(), Configured: keys.Configured(p)}
		if err := problems[p]; err != nil {
			st.Error = err.Error()
		} else {
			st.Valid = st.Configured
		}
		out = append(out, st)
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

func (s *Server) validateKey(c *gin.Context) {
	var body validateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &article.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	p, err := settings.ParseProvider(body.Provider)
	if err != nil {
		fail(c, &article.ValidationError{Field: "provider", Reason: err.Error()})
		return
	}
	if err := settings.Validate(body.Key, p); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
