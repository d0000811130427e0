package entity

import "github.com/shandysiswandi/govault/internal/shared/event"

// Template is the email sent for one kind of security event.
type Template struct {
	Subject string
	Body    string
}

// Templates maps the events worth an email to their content. Events missing
// from the map are acknowledged and dropped.
var Templates = map[event.SecurityEventType]Template{
	event.SecurityEventTwoFAActivated: {
		Subject: "Two-factor authentication is on",
		Body: `<p>Hi,</p>
<p>Two-factor authentication was turned on for {{.email}} at {{.occurred_at}}.</p>
<p>If this was not you, contact {{.support_email}} right away.</p>`,
	},
	event.SecurityEventTwoFAReset: {
		Subject: "Your authenticator was replaced",
		Body: `<p>Hi,</p>
<p>A new authenticator secret was generated for {{.email}} at {{.occurred_at}} from {{.ip_address}} ({{.user_agent}}).</p>
<p>Codes from your previous authenticator app no longer work once you confirm the new one.</p>
<p>If this was not you, contact {{.support_email}} right away.</p>`,
	},
	event.SecurityEventNewLogin: {
		Subject: "New sign-in to your vault",
		Body: `<p>Hi,</p>
<p>Your vault was signed in to at {{.occurred_at}} from {{.ip_address}} ({{.user_agent}}) on device {{.device_id}}.</p>`,
	},
	event.SecurityEventFingerprintMismatch: {
		Subject: "Verification used from a different environment",
		Body: `<p>Hi,</p>
<p>A step-up grant for {{.action_type}} on device {{.device_id}} was used from {{.ip_address}} ({{.user_agent}}) at {{.occurred_at}}, which differs from where it was verified.</p>
<p>If this was not you, sign out everywhere and contact {{.support_email}}.</p>`,
	},
	event.SecurityEventTooManyAttempts: {
		Subject: "Too many verification attempts",
		Body: `<p>Hi,</p>
<p>We blocked further verification attempts for {{.action_type}} after repeated wrong codes at {{.occurred_at}}.</p>`,
	},
	event.SecurityEventCodeReplay: {
		Subject: "A verification code was reused",
		Body: `<p>Hi,</p>
<p>A code that was already spent was submitted again for {{.action_type}} on device {{.device_id}} at {{.occurred_at}}. It was rejected.</p>`,
	},
	event.SecurityEventVaultExported: {
		Subject: "Your vault was exported",
		Body: `<p>Hi,</p>
<p>A full export of your vault was created at {{.occurred_at}} from {{.ip_address}} ({{.user_agent}}).</p>
<p>The download link expires shortly. If this was not you, change your master password and contact {{.support_email}}.</p>`,
	},
}
