// Package webhook receives purchase notifications from Kiwify and provisions
// the buyer's account.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"meurenda/internal/cache"
	"meurenda/internal/identity"
	applog "meurenda/internal/log"
)

const (
	// MaxBodyBytes caps the accepted payload size.
	MaxBodyBytes = 64 << 10

	SecretHeader = "x-secret"

	eventApproved = "order.approved"
	statusPaid    = "paid"

	processedOrdersSize = 1024
	processedOrdersTTL  = 24 * time.Hour
)

// Response bodies.
const (
	BodyCreated          = "USER CREATED"
	BodyOK               = "OK"
	BodyAlreadyProcessed = "ALREADY PROCESSED"
	BodyUnauthorized     = "Unauthorized"
	BodyInvalidPayload   = "INVALID PAYLOAD"
	BodyTooLarge         = "PAYLOAD TOO LARGE"
	BodyInternalError    = "Internal Server Error"
)

type (
	Payload struct {
		Event string `json:"event"`
		Data  *Data  `json:"data" validate:"required"`
	}

	Data struct {
		Buyer *Buyer `json:"buyer" validate:"required"`
		Order *Order `json:"order" validate:"required"`
	}

	Buyer struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"required"`
	}

	Order struct {
		OrderID     string   `json:"order_id"`
		OrderStatus string   `json:"order_status"`
		Product     *Product `json:"product"`
	}

	Product struct {
		Name string `json:"name"`
	}
)

// Approved reports whether the event grants access.
func (p Payload) Approved() bool {
	if p.Event == eventApproved {
		return true
	}
	return p.Data != nil && p.Data.Order != nil && p.Data.Order.OrderStatus == statusPaid
}

// Purchase extracts the buyer and order fields.
func (p Payload) Purchase() identity.Purchase {
	in := identity.Purchase{
		Email:   p.Data.Buyer.Email,
		Name:    p.Data.Buyer.Name,
		OrderID: p.Data.Order.OrderID,
	}
	if p.Data.Order.Product != nil {
		in.ProductName = p.Data.Order.Product.Name
	}
	return in
}

// dedupeKey identifies a delivery. Orders without an id fall back to the
// buyer's normalized email.
func dedupeKey(in identity.Purchase) string {
	if id := strings.TrimSpace(in.OrderID); id != "" {
		return "order:" + id
	}
	return "email:" + identity.NormalizeEmail(in.Email)
}

// Provisioner creates or refreshes the buyer's account.
type Provisioner interface {
	Provision(ctx context.Context, in identity.Purchase) (identity.Result, error)
}

type Handler struct {
	secret      []byte
	provisioner Provisioner
	processed   *cache.LRUCache[bool]
	validate    *validator.Validate
	logger      *applog.Logger
}

func NewHandler(secret string, provisioner Provisioner, logger *applog.Logger) *Handler {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Handler{
		secret:      []byte(secret),
		provisioner: provisioner,
		processed:   cache.NewLRUCache[bool](processedOrdersSize, processedOrdersTTL),
		validate:    newValidator(),
		logger:      logger.WithComponent(applog.ComponentWebhook),
	}
}

// ProcessedOrders exposes the dedupe cache so it can be registered with a cache.Manager.
func (h *Handler) ProcessedOrders() *cache.LRUCache[bool] {
	return h.processed
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.authorized(r.Header.Get(SecretHeader)) {
		h.logger.WarnContext(ctx, "Webhook rejected: bad secret", applog.FieldOperation, applog.OpValidate)
		writeText(w, http.StatusUnauthorized, BodyUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		writeText(w, http.StatusBadRequest, BodyInvalidPayload)
		return
	}
	if len(body) > MaxBodyBytes {
		writeText(w, http.StatusRequestEntityTooLarge, BodyTooLarge)
		return
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		h.logger.WarnContext(ctx, "Webhook payload is not valid JSON",
			applog.FieldOperation, applog.OpParse, applog.FieldError, err.Error())
		writeText(w, http.StatusBadRequest, BodyInvalidPayload)
		return
	}

	if !p.Approved() {
		h.logger.DebugContext(ctx, "Webhook event ignored", "event", p.Event)
		writeText(w, http.StatusOK, BodyOK)
		return
	}

	if p.Data != nil && p.Data.Buyer != nil {
		p.Data.Buyer.Email = strings.TrimSpace(p.Data.Buyer.Email)
	}
	if err := h.validate.Struct(p); err != nil {
		h.logger.WarnContext(ctx, "Webhook payload failed validation",
			applog.FieldOperation, applog.OpValidate, "fields", invalidFields(err))
		writeText(w, http.StatusBadRequest, BodyInvalidPayload)
		return
	}

	purchase := p.Purchase()
	key := dedupeKey(purchase)
	if !h.processed.SetIfAbsent(key, true) {
		h.logger.InfoContext(ctx, "Webhook order already processed", applog.FieldOrderID, purchase.OrderID)
		writeText(w, http.StatusOK, BodyAlreadyProcessed)
		return
	}

	res, err := h.provisioner.Provision(ctx, purchase)
	if err != nil {
		// Let the provider retry this order.
		h.processed.Delete(key)
		if errors.Is(err, identity.ErrInvalidEmail) {
			writeText(w, http.StatusBadRequest, BodyInvalidPayload)
			return
		}
		applog.NewStructuredLogger(h.logger).LogError(ctx, "Failed to provision paid user", err,
			applog.OpCreate, applog.NewFields())
		writeText(w, http.StatusInternalServerError, BodyInternalError)
		return
	}

	h.logger.InfoContext(ctx, "Paid user provisioned from webhook",
		applog.FieldOrderID, purchase.OrderID,
		applog.FieldEmail, res.User.Email,
		"created", res.Created)
	writeText(w, http.StatusOK, BodyCreated)
}

func (h *Handler) authorized(got string) bool {
	if len(h.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), h.secret) == 1
}

func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Namespace()+":"+fe.Tag())
	}
	return out
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
