package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/imageguard"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
)

// Analyze handles POST /analyze with a multipart "image" field
func (s *Server) Analyze(ctx echo.Context) error {
	fh, err := ctx.FormFile("image")
	if err != nil {
		return s.HandleError(ctx, err, "multipart field 'image' is required", http.StatusBadRequest)
	}
	file, err := fh.Open()
	if err != nil {
		return s.HandleError(ctx, err, "failed to read uploaded image", http.StatusBadRequest)
	}
	defer s.closeQuietly(file)

	userID := ctx.FormValue("user_id")
	if userID == "" {
		userID = ctx.QueryParam("user_id")
	}

	result, err := s.analyzer.Analyze(ctx.Request().Context(), pipeline.Request{
		Body:        file,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		FileName:    fh.Filename,
		UserID:      userID,
	})
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, NewAnalyzeResponse(result))
	case errors.Is(err, imageguard.ErrUnsupportedMediaType):
		return s.HandleError(ctx, err, "unsupported media type, use JPEG, PNG or WEBP", http.StatusUnsupportedMediaType)
	case errors.Is(err, imageguard.ErrPayloadTooLarge):
		return s.HandleError(ctx, err, "image exceeds the size limit", http.StatusRequestEntityTooLarge)
	default:
		return s.HandleError(ctx, err, "failed to record analysis", http.StatusInternalServerError)
	}
}

// History handles GET /history?limit=N&user_id=U
func (s *Server) History(ctx echo.Context) error {
	q := pipeline.HistoryQuery{UserID: ctx.QueryParam("user_id")}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return s.HandleError(ctx, err, "limit must be a positive integer", http.StatusBadRequest)
		}
		q.Limit = limit
	}

	items, err := s.analyzer.History(ctx.Request().Context(), q)
	if err != nil {
		return s.HandleError(ctx, err, "failed to load history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, NewHistoryItems(items))
}

// Nutrition handles GET /nutrition?food=key. Unknown keys are 404; the
// default profile is not substituted here.
func (s *Server) Nutrition(ctx echo.Context) error {
	food := ctx.QueryParam("food")
	if food == "" {
		return s.HandleError(ctx, nil, "query parameter 'food' is required", http.StatusBadRequest)
	}

	profile, err := s.analyzer.Nutrition(ctx.Request().Context(), food)
	switch {
	case err == nil:
		return ctx.JSON(http.StatusOK, profile)
	case errors.Is(err, datastore.ErrProfileNotFound):
		return s.HandleError(ctx, err, "unknown food", http.StatusNotFound)
	case errors.IsCategory(err, errors.CategoryValidation):
		return s.HandleError(ctx, err, "query parameter 'food' is required", http.StatusBadRequest)
	default:
		return s.HandleError(ctx, err, "failed to load nutrition profile", http.StatusInternalServerError)
	}
}
