package push

import "regexp"

// Template names registered by the default device builders.
const (
	TemplateGeneric = "genericTemplate"
	TemplateSilent  = "silentTemplate"
)

var paramPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// RenderTemplate substitutes $(name) placeholders in body with values from
// params. Placeholders with no matching parameter render as an empty string,
// matching the provider's substitution behaviour.
func RenderTemplate(body string, params map[string]string) string {
	return paramPattern.ReplaceAllStringFunc(body, func(m string) string {
		name := m[2 : len(m)-1]
		return params[name]
	})
}

// TemplateUsesParams reports whether body references at least one of the
// supplied parameters. Silent and alert parameter sets use disjoint names, so
// this is what routes a notification to the matching template and keeps an
// alert send from triggering a device's silent template with empty values.
func TemplateUsesParams(body string, params map[string]string) bool {
	for _, m := range paramPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := params[m[1]]; ok {
			return true
		}
	}
	return false
}

// DefaultTemplates returns the generic and silent template bodies a device
// registers for its platform. The bodies are provider JSON fragments; only
// the provider substitutes the placeholders.
func DefaultTemplates(p Platform) map[string]PushTemplate {
	switch p {
	case PlatformAPNS:
		return map[string]PushTemplate{
			TemplateGeneric: {Body: `{"aps":{"alert":"$(alertMessage)"},"action":"$(alertAction)"}`},
			TemplateSilent:  {Body: `{"aps":{"content-available":1},"message":"$(silentMessage)","action":"$(silentAction)"}`},
		}
	case PlatformFCM:
		return map[string]PushTemplate{
			TemplateGeneric: {Body: `{"data":{"message":"$(alertMessage)","action":"$(alertAction)"}}`},
			TemplateSilent:  {Body: `{"data":{"message":"$(silentMessage)","action":"$(silentAction)","silent":"true"}}`},
		}
	default:
		return nil
	}
}
