package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dmlat/InfoCoffee-sub001/internal/artifact"
	"github.com/dmlat/InfoCoffee-sub001/internal/errors"
	"github.com/dmlat/InfoCoffee-sub001/internal/models"
	"github.com/dmlat/InfoCoffee-sub001/internal/services"
)

// statsParams is the filter shared by the JSON API and the dashboard signals.
type statsParams struct {
	From      string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Locations locationIDs `json:"locations" validate:"dive,gte=0"`
}

// locationIDs accepts ids as JSON numbers or numeric strings, since checkbox
// values bound by the dashboard arrive as strings.
type locationIDs []int

func (ids *locationIDs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("locations must be a list: %w", err)
	}
	out := make(locationIDs, 0, len(raw))
	for _, item := range raw {
		var id int
		if err := json.Unmarshal(item, &id); err == nil {
			out = append(out, id)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("location id %s is not a number", item)
		}
		id, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("location id %q is not a number", s)
		}
		out = append(out, id)
	}
	*ids = out
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// paramsFromQuery reads ?from=YYYY-MM-DD&to=YYYY-MM-DD&locations=0,2.
func paramsFromQuery(r *http.Request) (statsParams, error) {
	q := r.URL.Query()
	p := statsParams{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}

	for _, raw := range q["locations"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return statsParams{}, errors.BadRequestWrap(err, fmt.Sprintf("location id %q is not a number", part))
			}
			p.Locations = append(p.Locations, id)
		}
	}
	return p, nil
}

// toQuery validates p. A missing start date means today in UTC.
func (p statsParams) toQuery(now time.Time) (services.StatsQuery, error) {
	if err := validate.Struct(p); err != nil {
		return services.StatsQuery{}, errors.ValidationWrap(err, describeValidation(err))
	}

	q := services.StatsQuery{LocationIDs: p.Locations}
	if p.From == "" {
		q.From = models.TruncateDay(now.UTC())
	} else {
		q.From, _ = time.Parse(models.DateLayout, p.From)
	}
	if p.To != "" {
		q.To, _ = time.Parse(models.DateLayout, p.To)
	}
	return q, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid parameters"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", strings.ToLower(fe.Field()))
	case "gte":
		return "location ids must not be negative"
	default:
		return fmt.Sprintf("invalid %s", strings.ToLower(fe.Field()))
	}
}

// toAppError maps engine and source failures onto the HTTP error envelope.
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var fetchErr *artifact.FetchError
	switch {
	case stderrors.Is(err, services.ErrInvalidRange):
		return errors.BadRequestWrap(err, err.Error())
	case stderrors.As(err, &fetchErr):
		return errors.ServiceUnavailableWrap(err, "Sales data is temporarily unavailable")
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.TimeoutWrap(err, "Sales data took too long to load")
	default:
		return errors.InternalWrap(err, "Failed to compute statistics")
	}
}
