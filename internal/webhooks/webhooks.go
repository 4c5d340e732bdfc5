package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// ErrBadSignature is returned when the Svix signature does not verify.
var ErrBadSignature = errors.New("webhook signature verification failed")

// Store is the storage surface webhook processing uses.
type Store interface {
	MarkWebhookEvent(id, eventType string) (bool, error)
	MarkEventAndEnqueue(id, eventType string, job *storage.Job) (bool, error)
	RedeemJoinCode(code, userID string, now time.Time) (storage.JoinCode, error)
	SaveMembership(m storage.Membership) error
	DeleteMembership(userID, teacherID string) error
}

// Event is an auth-provider webhook event envelope.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler verifies and processes auth-provider webhooks.
type Handler struct {
	verifier *svix.Webhook
	store    Store
	logger   *slog.Logger
}

func NewHandler(signingSecret string, store Store, logger *slog.Logger) (*Handler, error) {
	verifier, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("initializing webhook verifier: %w", err)
	}
	return &Handler{verifier: verifier, store: store, logger: logger}, nil
}

// VerifyAndParse checks the Svix signature headers against the raw payload
// and decodes the event envelope.
func (h *Handler) VerifyAndParse(payload []byte, headers http.Header) (Event, error) {
	var event Event
	if err := h.verifier.Verify(payload, headers); err != nil {
		return event, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("decoding event: %w", err)
	}
	if event.ID == "" {
		// Svix sends the message id in a header; fall back to it so
		// idempotency still has a key.
		event.ID = headers.Get("svix-id")
	}
	if event.ID == "" || event.Type == "" {
		return event, errors.New("event missing id or type")
	}
	return event, nil
}

// Process runs the matching branch and records the event id. The record is
// only kept once the branch's writes land, so a failure leaves the event
// unrecorded and the provider's redelivery is processed, not acked as a
// replay.
func (h *Handler) Process(event Event) error {
	switch event.Type {
	case "user.created":
		return h.userCreated(event)
	case "organizationMembership.created":
		return h.markAfter(event, h.membershipCreated)
	case "organizationMembership.deleted":
		return h.markAfter(event, h.membershipDeleted)
	default:
		h.logger.Info("ignoring webhook event", "type", event.Type)
		return nil
	}
}

// markAfter runs an idempotent branch and records the event id once it
// succeeds. Replays rerun the write, which is a no-op, before hitting the
// existing record.
func (h *Handler) markAfter(event Event, branch func(Event) error) error {
	if err := branch(event); err != nil {
		return err
	}
	firstTime, err := h.store.MarkWebhookEvent(event.ID, event.Type)
	if err != nil {
		return fmt.Errorf("recording webhook event: %w", err)
	}
	if !firstTime {
		h.logger.Info("webhook replay", "event_id", event.ID, "type", event.Type)
	}
	return nil
}

type userCreatedData struct {
	ID             string `json:"id"`
	UnsafeMetadata struct {
		JoinCode string `json:"join_code"`
	} `json:"unsafe_metadata"`
}

// userCreated enqueues the join-code side effects as a durable job so a
// partial failure is retried instead of lost with the webhook delivery. The
// event id and the job land in one transaction.
func (h *Handler) userCreated(event Event) error {
	var data userCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decoding user.created data: %w", err)
	}
	if data.ID == "" {
		return errors.New("user.created without user id")
	}

	var job *storage.Job
	if data.UnsafeMetadata.JoinCode == "" {
		h.logger.Info("user created without join code", "user_id", data.ID)
	} else {
		payload, err := json.Marshal(RedrivePayload{
			EventID:  event.ID,
			UserID:   data.ID,
			JoinCode: data.UnsafeMetadata.JoinCode,
		})
		if err != nil {
			return fmt.Errorf("marshaling redrive payload: %w", err)
		}
		job = &storage.Job{
			ID:          uuid.NewString(),
			Type:        storage.JobWebhookRedrive,
			PayloadJSON: string(payload),
			MaxAttempts: 5,
		}
	}

	firstTime, err := h.store.MarkEventAndEnqueue(event.ID, event.Type, job)
	if err != nil {
		return fmt.Errorf("recording webhook event: %w", err)
	}
	if !firstTime {
		h.logger.Info("webhook replay ignored", "event_id", event.ID, "type", event.Type)
	}
	return nil
}

type membershipData struct {
	Organization struct {
		ID string `json:"id"`
	} `json:"organization"`
	PublicUserData struct {
		UserID string `json:"user_id"`
	} `json:"public_user_data"`
	Role string `json:"role"`
}

func (h *Handler) membershipCreated(event Event) error {
	var data membershipData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decoding membership data: %w", err)
	}
	if data.PublicUserData.UserID == "" || data.Organization.ID == "" {
		return errors.New("membership event missing user or organization")
	}

	return h.store.SaveMembership(storage.Membership{
		ID:        uuid.NewString(),
		UserID:    data.PublicUserData.UserID,
		TeacherID: data.Organization.ID,
		Role:      data.Role,
		CreatedAt: time.Now().UTC(),
	})
}

func (h *Handler) membershipDeleted(event Event) error {
	var data membershipData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("decoding membership data: %w", err)
	}
	return h.store.DeleteMembership(data.PublicUserData.UserID, data.Organization.ID)
}

// RedrivePayload is the job payload for join-code side effects.
type RedrivePayload struct {
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	JoinCode string `json:"join_code"`
}

// RoleSetter pushes the assigned role back to the auth provider.
type RoleSetter interface {
	SetUserRole(userID, role string) error
}

// Redrive runs the join-code side effects from a durable job: redeem the
// code, record the membership and push the role to the auth provider.
// Exhausted or expired codes are terminal, not retried.
func Redrive(store Store, roles RoleSetter, logger *slog.Logger, payloadJSON string) error {
	var p RedrivePayload
	if err := json.Unmarshal([]byte(payloadJSON), &p); err != nil {
		return fmt.Errorf("decoding redrive payload: %w", err)
	}

	code, err := store.RedeemJoinCode(p.JoinCode, p.UserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrCodeExhausted) || errors.Is(err, storage.ErrNotFound) {
			logger.Warn("join code not redeemable", "user_id", p.UserID, "code", p.JoinCode, "error", err)
			return nil
		}
		return fmt.Errorf("redeeming join code: %w", err)
	}

	if err := store.SaveMembership(storage.Membership{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		TeacherID: code.TeacherID,
		Role:      code.Role,
		JoinCode:  code.Code,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("saving membership: %w", err)
	}

	if roles != nil {
		if err := roles.SetUserRole(p.UserID, code.Role); err != nil {
			return fmt.Errorf("setting provider role: %w", err)
		}
	}
	return nil
}
