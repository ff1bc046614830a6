package push

import "fmt"

// Template parameter names. Silent and alert payloads use disjoint keys so a
// stored template can only ever match one kind of notification.
const (
	ParamAlertMessage  = "alertMessage"
	ParamAlertAction   = "alertAction"
	ParamSilentMessage = "silentMessage"
	ParamSilentAction  = "silentAction"
)

// NotificationRequest describes one logical notification to fan out.
// An empty tag list means broadcast to every installation.
type NotificationRequest struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags"`
	Silent bool     `json:"silent"`
	Action string   `json:"action"`
}

// Validate enforces the silent/text/action invariants: a visible notification
// needs both text and action, a silent one needs at least an action.
func (r *NotificationRequest) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("%w request: missing action", ErrInvalid)
	}
	if !r.Silent && r.Text == "" {
		return fmt.Errorf("%w request: missing text for alert notification", ErrInvalid)
	}
	return nil
}

// TemplateParams builds the substitution map handed to the provider.
// The key set, not a flag, selects between silent and alert templates.
func (r *NotificationRequest) TemplateParams() map[string]string {
	if r.Silent {
		return map[string]string{
			ParamSilentMessage: r.Text,
			ParamSilentAction:  r.Action,
		}
	}
	return map[string]string{
		ParamAlertMessage: r.Text,
		ParamAlertAction:  r.Action,
	}
}
