package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/PinForge/internal/article"
	"github.com/TobiSchelling/PinForge/internal/database"
)

type generateBody struct {
	article.Request
	// ReferenceImage is base64, optionally as a data URL.
	ReferenceImage string `json:"referenceImage"`
}

type regenerateBody struct {
	Prompt string `json:"prompt"`
}

type wordPressBody struct {
	PostID string `json:"postId"`
	URL    string `json:"url"`
}

func (s *Server) listArticles(c *gin.Context) {
	var f database.ArticleFilter
	if v := c.Query("status"); v != "" {
		st, err := article.ParseStatus(v)
		if err != nil {
			fail(c, &article.ValidationError{Field: "status", Reason: err.Error()})
			return
		}
		f.Status = st
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, &article.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	articles, err := s.db.ListArticles(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	if articles == nil {
		articles = []article.Article{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles})
}

func (s *Server) getArticle(c *gin.Context) {
	a, ok := s.loadArticle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) loadArticle(c *gin.Context) (*article.Article, bool) {
	a, err := s.db.GetArticle(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if a == nil {
		fail(c, article.ErrNotFound)
		return nil, false
	}
	return a, true
}

func (s *Server) generateArticle(c *gin.Context) {
	var body generateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &article.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	req := body.Request
	if body.ReferenceImage != "" {
		data, err := decodeImage(body.ReferenceImage)
		if err != nil {
			fail(c, &article.ValidationError{Field: "referenceImage", Reason: "must be base64 encoded"})
			return
		}
		req.ReferenceImage = data
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), req, s.keys())
	if err != nil {
		var perr *article.PersistenceError
		if errors.As(err, &perr) && res != nil {
			c.Error(err) //nolint:errcheck
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": res})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

func (s *Server) deleteArticle(c *gin.Context) {
	if err := s.db.DeleteArticle(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) previewArticle(c *gin.Context) {
	a, ok := s.loadArticle(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.preview.Execute(c.Writer, a); err != nil {
		c.Error(err) //nolint:errcheck
	}
}

func (s *Server) regenerateImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		fail(c, &article.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}
	var body regenerateBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, &article.ValidationError{Field: "body", Reason: err.Error()})
			return
		}
	}

	a, err := s.dispatcher.RegenerateImage(c.Request.Context(), c.Param("id"), index, body.Prompt, s.keys())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) markWordPressDraft(c *gin.Context) {
	var body wordPressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &article.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	a, err := s.dispatcher.MarkWordPressDraft(c.Request.Context(), c.Param("id"), body.PostID, body.URL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.db.GetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
