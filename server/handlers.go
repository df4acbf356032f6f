package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/poiesic/docsift/core"
	"github.com/poiesic/docsift/extract"
	"github.com/poiesic/docsift/metrics"
)

const searchUnavailableMessage = "Search is currently unavailable: the embedding service could not be reached."

func (s *Server) newHomePage(c echo.Context) homePage {
	return homePage{
		Session:   currentSession(c),
		Documents: s.engine.Corpus().Names(),
		Flash:     s.popFlash(c),
		MaxUpload: s.config.MaxUploadBytes,
	}
}

func (s *Server) home(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", s.newHomePage(c))
}

func (s *Server) search(c echo.Context) error {
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.FormValue("query"))
	if query == "" {
		return s.home(c)
	}

	sess, err := s.engine.Sessions().AddHistory(ctx, currentSession(c).ID, query)
	if err != nil {
		s.logger.Warn("failed to record search history", "err", err)
	} else {
		c.Set(sessionKey, sess)
	}

	page := s.newHomePage(c)
	page.Query = query

	if err := s.engine.SearchAvailable(); err != nil {
		s.logger.Warn("search requested while unavailable", "err", err)
		page.SearchError = searchUnavailableMessage
		return c.Render(http.StatusServiceUnavailable, "index.html", page)
	}

	start := time.Now()
	resp, err := s.engine.Searcher().Search(ctx, query)
	if err != nil {
		return err
	}
	s.engine.Metrics().ObserveSearch(time.Since(start), len(resp.Results))

	page.Searched = true
	page.Response = resp
	return c.Render(http.StatusOK, "index.html", page)
}

func (s *Server) apiSearch(c echo.Context) error {
	if !c.QueryParams().Has("q") {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return c.JSON(http.StatusOK, &core.QueryResponse{Query: query, Results: []core.SearchResult{}})
	}
	if err := s.engine.SearchAvailable(); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search unavailable").SetInternal(err)
	}

	start := time.Now()
	resp, err := s.engine.Searcher().Search(c.Request().Context(), query)
	if err != nil {
		return err
	}
	s.engine.Metrics().ObserveSearch(time.Since(start), len(resp.Results))
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) upload(c echo.Context) error {
	result, kind, message := s.storeUpload(c)
	s.engine.Metrics().ObserveUpload(result)
	s.setFlash(c, kind, message)
	return c.Redirect(http.StatusSeeOther, "/")
}

// storeUpload extracts and adds the uploaded file. It returns the
// metrics result and the flash message for the visitor.
func (s *Server) storeUpload(c echo.Context) (string, flashKind, string) {
	fh, err := c.FormFile("file")
	if err != nil {
		return metrics.UploadRejected, flashError, "Choose a file to upload."
	}

	format, err := extract.FormatFromFilename(fh.Filename)
	if err != nil {
		return metrics.UploadRejected, flashError,
			fmt.Sprintf("Unsupported file type for %q: upload a .txt, .pdf or .docx file.", fh.Filename)
	}
	if fh.Size > s.config.MaxUploadBytes {
		return metrics.UploadRejected, flashError,
			fmt.Sprintf("%q is too large: the limit is %d bytes.", fh.Filename, s.config.MaxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		s.logger.Error("failed to open upload", "file", fh.Filename, "err", err)
		return metrics.UploadFailed, flashError, "The upload could not be read."
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadBytes+1))
	if err != nil {
		s.logger.Error("failed to read upload", "file", fh.Filename, "err", err)
		return metrics.UploadFailed, flashError, "The upload could not be read."
	}

	text, err := extract.ExtractFormat(format, data)
	if err != nil {
		s.logger.Warn("text extraction failed", "file", fh.Filename, "err", err)
		return metrics.UploadRejected, flashError,
			fmt.Sprintf("No text could be extracted from %q.", fh.Filename)
	}

	doc, err := s.engine.Corpus().Add(c.Request().Context(), fh.Filename, text)
	switch {
	case errors.Is(err, core.ErrEmptyContent):
		return metrics.UploadRejected, flashError, fmt.Sprintf("%q contains no text.", fh.Filename)
	case errors.Is(err, core.ErrInvalidFilename):
		return metrics.UploadRejected, flashError, fmt.Sprintf("%q is not a usable file name.", fh.Filename)
	case err != nil:
		s.logger.Error("failed to add document", "file", fh.Filename, "err", err)
		return metrics.UploadFailed, flashError,
			fmt.Sprintf("%q could not be indexed; the document collection is unchanged.", fh.Filename)
	}

	s.engine.Metrics().SetDocuments(s.engine.Corpus().Len())
	return metrics.UploadAccepted, flashSuccess, fmt.Sprintf("Uploaded %s.", doc.Name)
}

func (s *Server) document(c echo.Context) error {
	doc, err := s.engine.Corpus().Get(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}
	sess := currentSession(c)
	return c.Render(http.StatusOK, "document.html", documentPage{
		Session:  sess,
		Document: doc,
		Favorite: sess.IsFavorite(doc.Name),
	})
}

func (s *Server) toggleFavorite(c echo.Context) error {
	doc, err := s.engine.Corpus().Get(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	}
	if _, err := s.engine.Sessions().ToggleFavorite(c.Request().Context(), currentSession(c).ID, doc.Name); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, s.backTo(c, "/documents/"+doc.Name))
}

func (s *Server) clearHistory(c echo.Context) error {
	if _, err := s.engine.Sessions().ClearHistory(c.Request().Context(), currentSession(c).ID); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.engine.SearchAvailable(); err != nil {
		return c.String(http.StatusServiceUnavailable, "search unavailable")
	}
	return c.String(http.StatusOK, "ok")
}

// backTo returns the same-origin page the request came from, or fallback.
func (s *Server) backTo(c echo.Context, fallback string) string {
	ref, err := url.Parse(c.Request().Referer())
	if err != nil || !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") {
		return fallback
	}
	if ref.Host != "" && ref.Host != c.Request().Host {
		return fallback
	}
	back := ref.EscapedPath()
	if ref.RawQuery != "" {
		back += "?" + ref.RawQuery
	}
	return back
}
