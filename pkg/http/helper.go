package http

import (
	"net/http"
	"strconv"

	"github.com/HefnerLance/bubble-mongo-linker/pkg/config"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/model"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return config.NormalizePaginationLimit(limit), config.NormalizeOffset(offset), nil
}

// ExtractMatchType reads the optional match_type filter. Empty means all.
func ExtractMatchType(r *http.Request) (model.MatchType, error) {
	mt := model.MatchType(r.URL.Query().Get("match_type"))
	switch mt {
	case "", model.MatchDuplicate, model.MatchDirectID, model.MatchFallback, model.MatchUnmatched:
		return mt, nil
	default:
		return "", apperrors.InvalidInput("invalid match_type parameter: " + string(mt))
	}
}
