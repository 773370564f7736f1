package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
	"meurenda/internal/report"
)

const maxRequestBody = 64 << 10

// TransactionRequest is the body of POST /api/transactions. Amount accepts a
// JSON number or a string such as "1.234,56".
type TransactionRequest struct {
	Date        string      `json:"date"`
	Amount      AmountField `json:"amount"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
}

type AmountField struct {
	decimal.Decimal
	set bool
}

func (a *AmountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Decimal, a.set = v, true
	return nil
}

// Input converts the request into a store input. An absent date is rejected
// by validation rather than defaulted.
func (req TransactionRequest) Input() (core.TransactionInput, error) {
	in := core.TransactionInput{
		Amount:      req.Amount.Decimal,
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
	}
	if !req.Amount.set {
		return in, core.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			return in, err
		}
		in.Date = d
	}
	return in, nil
}

// decodeJSON reads a single JSON value from the body into dst. Unknown
// fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxRequestBody {
		return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxRequestBody)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		// Domain parse errors keep their own status.
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// ReportQuery holds the parsed query of GET /api/reports.
type ReportQuery struct {
	Period report.Period
	Custom core.DateRange
}

// ParseReportQuery reads period, start and end. The period defaults to
// MONTHLY; start and end are only parsed for CUSTOM.
func ParseReportQuery(q url.Values) (ReportQuery, error) {
	rq := ReportQuery{Period: report.Monthly}
	if p := strings.TrimSpace(q.Get("period")); p != "" {
		rq.Period = report.Period(strings.ToUpper(p))
	}
	if !rq.Period.Valid() {
		return rq, fmt.Errorf("%w: %q", report.ErrInvalidPeriod, rq.Period)
	}
	if rq.Period != report.Custom {
		return rq, nil
	}
	for _, f := range []struct {
		name string
		dst  *core.Date
	}{{"start", &rq.Custom.Start}, {"end", &rq.Custom.End}} {
		v := strings.TrimSpace(q.Get(f.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return rq, fmt.Errorf("%w: %s: %v", report.ErrInvalidRange, f.name, err)
		}
		*f.dst = d
	}
	return rq, nil
}

// ParseTypeFilter reads the optional ?type= parameter.
func ParseTypeFilter(q url.Values) core.TransactionType {
	return core.TransactionType(strings.ToUpper(strings.TrimSpace(q.Get("type"))))
}

// sanitizeInput trims whitespace and strips control characters other than
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
