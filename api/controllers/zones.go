package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/api/responses"
	"github.com/freshmandi/freshmandi-backend/api/validators"
	"github.com/freshmandi/freshmandi-backend/internal/weather"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
)

type weatherPolicyResponse struct {
	ZoneID           uuid.UUID `json:"zone_id"`
	Classification   string    `json:"classification"`
	Suspended        bool      `json:"suspended"`
	Stale            bool      `json:"stale"`
	WindowMinutes    int       `json:"window_minutes"`
	DeliveryFeePaise *int64    `json:"delivery_fee_paise,omitempty"`
	ObservedAt       time.Time `json:"observed_at"`
}

// ZoneWeatherPolicy reports the delivery policy currently in force for a
// zone. An optional subtotal_paise query parameter quotes the fee a cart of
// that size would pay.
func ZoneWeatherPolicy(svc weather.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "weather service unavailable"))
			return
		}

		rawZoneID := strings.TrimSpace(chi.URLParam(r, "zoneId"))
		if rawZoneID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "zone id is required"))
			return
		}
		zoneID, err := uuid.Parse(rawZoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid zone id"))
			return
		}

		policy, err := svc.CurrentPolicy(r.Context(), zoneID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := weatherPolicyResponse{
			ZoneID:         zoneID,
			Classification: string(policy.Classification),
			Suspended:      policy.Suspended,
			Stale:          policy.Stale,
			WindowMinutes:  policy.WindowMinutes,
			ObservedAt:     policy.ObservedAt,
		}

		subtotal, err := validators.ParseQueryInt(r, "subtotal_paise", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if subtotal > 0 && !policy.Suspended {
			fee := svc.DeliveryFeePaise(policy, int64(subtotal))
			resp.DeliveryFeePaise = &fee
		}

		responses.WriteSuccess(w, resp)
	}
}
