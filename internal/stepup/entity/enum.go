package entity

import "github.com/samber/lo"

// ActionType is the closed set of operations a grant can be scoped to.
// Values are persisted, so never rename one.
type ActionType string

const (
	ActionTypeLogin            ActionType = "login"
	ActionTypeCopyPassword     ActionType = "copy_password"
	ActionTypeViewPassword     ActionType = "view_password"
	ActionTypeUpdateCredential ActionType = "update_credential"
	ActionTypeDeleteCredential ActionType = "delete_credential"
	ActionTypeExportVault      ActionType = "export_vault"
	ActionTypeDisable2FA       ActionType = "disable_2fa"
)

var actionTypes = []ActionType{
	ActionTypeLogin,
	ActionTypeCopyPassword,
	ActionTypeViewPassword,
	ActionTypeUpdateCredential,
	ActionTypeDeleteCredential,
	ActionTypeExportVault,
	ActionTypeDisable2FA,
}

// ActionTypeNames lists every action type, used to register the request validator rule.
func ActionTypeNames() []string {
	return lo.Map(actionTypes, func(a ActionType, _ int) string { return string(a) })
}

func (a ActionType) String() string {
	return string(a)
}

// Valid reports whether a belongs to the closed set.
func (a ActionType) Valid() bool {
	return lo.Contains(actionTypes, a)
}

// Context separates grants that establish a session from grants for one sensitive action.
type Context string

const (
	ContextLogin     Context = "login"
	ContextSensitive Context = "sensitive"
)

// ContextNames lists every context, used to register the request validator rule.
func ContextNames() []string {
	return []string{string(ContextLogin), string(ContextSensitive)}
}

func (c Context) String() string {
	return string(c)
}

// Valid reports whether c is a known context.
func (c Context) Valid() bool {
	return c == ContextLogin || c == ContextSensitive
}

// Method is the factor used to verify a challenge. Only TOTP exists today.
type Method string

const MethodTOTP Method = "TOTP"
