package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/eventchain/internal/observability"
	"github.com/hrygo/eventchain/plugin/ai"
)

// Confirmer produces the acknowledgment of a parsed request.
type Confirmer interface {
	Confirm(ctx context.Context, detail Detail, signer string) (*Confirmation, error)
}

// Linker supplies a reference link for a parsed request, such as a calendar invite URL.
// An empty link with a nil error means none is available.
type Linker interface {
	Link(ctx context.Context, detail Detail) (string, error)
}

// ModelConfirmer asks the model for a natural confirmation message.
type ModelConfirmer struct {
	gateway ai.Gateway
	logger  *slog.Logger
}

// NewModelConfirmer creates a new ModelConfirmer.
func NewModelConfirmer(gateway ai.Gateway, logger *slog.Logger) *ModelConfirmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelConfirmer{gateway: gateway, logger: logger}
}

// Confirm generates the message. The result always mentions the signer.
func (c *ModelConfirmer) Confirm(ctx context.Context, detail Detail, signer string) (*Confirmation, error) {
	log := observability.LoggerFrom(ctx, c.logger)
	log.Info("generating confirmation message", "kind", detail.Kind())

	payload, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", detail.Kind(), err)
	}

	var resp confirmationResponse
	err = c.gateway.Generate(ctx, &ai.Request{
		SystemInstruction: confirmationPrompt(signer),
		UserContent:       fmt.Sprintf("%s: %s", detail.Kind(), payload),
		Schema:            confirmationSchema,
	}, &resp)
	if err != nil {
		return nil, err
	}

	log.Info("confirmation message generated successfully")
	return &Confirmation{Message: ensureSigned(resp.ConfirmationMessage, signer)}, nil
}

// TemplateConfirmer renders a fixed-format message without calling the model.
type TemplateConfirmer struct{}

// Confirm never fails for a non-nil detail.
func (TemplateConfirmer) Confirm(_ context.Context, detail Detail, signer string) (*Confirmation, error) {
	var b strings.Builder
	switch d := detail.(type) {
	case *EventDetails:
		fmt.Fprintf(&b, "Your event %q is scheduled for %s", d.Name, d.Date)
		if d.DurationMinutes > 0 {
			fmt.Fprintf(&b, " (%d minutes)", d.DurationMinutes)
		}
		if len(d.Participants) > 0 {
			fmt.Fprintf(&b, " with %s", joinNames(d.Participants))
		}
		b.WriteString(".")
	case *ChangeSet:
		target := "your event"
		if d.EventIdentifier != "" {
			target = fmt.Sprintf("%q", d.EventIdentifier)
		}
		var parts []string
		for _, ch := range d.Changes {
			parts = append(parts, fmt.Sprintf("%s -> %s", ch.Field, ch.NewValue))
		}
		if len(d.ParticipantsToAdd) > 0 {
			parts = append(parts, "adding "+joinNames(d.ParticipantsToAdd))
		}
		if len(d.ParticipantsToRemove) > 0 {
			parts = append(parts, "removing "+joinNames(d.ParticipantsToRemove))
		}
		if len(parts) == 0 {
			fmt.Fprintf(&b, "No changes were requested for %s.", target)
		} else {
			fmt.Fprintf(&b, "I've noted the following updates to %s: %s.", target, strings.Join(parts, "; "))
		}
	default:
		return nil, fmt.Errorf("unsupported detail type %T", detail)
	}
	return &Confirmation{Message: ensureSigned(b.String(), signer)}, nil
}

// ensureSigned appends a sign-off unless message already names the signer.
func ensureSigned(message, signer string) string {
	message = strings.TrimSpace(message)
	signer = strings.TrimSpace(signer)
	if signer == "" || strings.Contains(strings.ToLower(message), strings.ToLower(signer)) {
		return message
	}
	if message == "" {
		return "-- " + signer
	}
	return message + "\n\n-- " + signer
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// Ensure both confirmers implement Confirmer
var (
	_ Confirmer = (*ModelConfirmer)(nil)
	_ Confirmer = TemplateConfirmer{}
)
