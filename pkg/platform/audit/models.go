package audit

import (
	"context"
	"log/slog"
	"time"

	"lockmint/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryLedger covers events that change balances or lock state.
	// These are replayable history and need durable storage.
	CategoryLedger EventCategory = "ledger"

	// CategorySecurity covers rejected or privileged actions: blocked transfers,
	// failed proofs, configuration changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type AuditEvent string

const (
	// Lock events
	EventLockToggled       AuditEvent = "lock_toggled"
	EventTransferBlocked   AuditEvent = "transfer_blocked"
	EventPenaltyRateSet    AuditEvent = "penalty_rate_set"
	EventURIProviderSet    AuditEvent = "token_uri_provider_set"
	EventTokensTransferred AuditEvent = "tokens_transferred"

	// Allowance events
	EventAllowancePurchased AuditEvent = "allowance_purchased"
	EventAllowanceRedeemed  AuditEvent = "allowance_redeemed"
	EventProofRejected      AuditEvent = "membership_proof_rejected"
	EventSaleConfigChanged  AuditEvent = "sale_config_changed"
	EventLedgerReverted     AuditEvent = "ledger_effects_reverted"
	EventLedgerRevertFailed AuditEvent = "ledger_revert_failed"

	// Access control events
	EventRoleGranted AuditEvent = "role_granted"
	EventRoleRevoked AuditEvent = "role_revoked"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventLockToggled:        CategoryLedger,
	EventTokensTransferred:  CategoryLedger,
	EventAllowancePurchased: CategoryLedger,
	EventAllowanceRedeemed:  CategoryLedger,
	EventLedgerReverted:     CategoryLedger,

	EventTransferBlocked:    CategorySecurity,
	EventProofRejected:      CategorySecurity,
	EventPenaltyRateSet:     CategorySecurity,
	EventURIProviderSet:     CategorySecurity,
	EventSaleConfigChanged:  CategorySecurity,
	EventLedgerRevertFailed: CategorySecurity,
	EventRoleGranted:        CategorySecurity,
	EventRoleRevoked:        CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Publisher emits audit events for security-relevant operations.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// LogAudit is a shared helper for logging audit events across services.
// It logs to both the structured logger and the publisher if available.
// attrs are slog-style key/value pairs; they are copied into Event.Fields.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Publisher, event AuditEvent, attrs ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}

	if logger != nil {
		args := append(attrs, "event", string(event), "log_type", "audit")
		logger.InfoContext(ctx, string(event), args...)
	}

	if publisher == nil {
		return
	}
	e := Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		Action:    string(event),
		RequestID: requestID,
		Fields:    fieldsFromAttrs(attrs),
	}
	if actor := requestcontext.Actor(ctx); !actor.IsZero() {
		e.Actor = actor.String()
	}
	if err := publisher.Emit(ctx, e); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func fieldsFromAttrs(attrs []any) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	fields := make(map[string]string, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok || key == "request_id" {
			continue
		}
		fields[key] = slog.AnyValue(attrs[i+1]).String()
	}
	return fields
}
