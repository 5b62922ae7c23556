package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"missionctl/core/apperr"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(urlParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", key)
	}
	return id, nil
}
