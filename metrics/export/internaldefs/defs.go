// Package internaldefs is the shared counter catalog used by the metric
// exporters. Exporters iterate this table instead of hardcoding names.
package internaldefs

import "github.com/mailgate/mailgate"

// CounterDef binds a MetricID to its exported name and help text.
type CounterDef struct {
	ID   mailgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{mailgate.MetricLoginStarted, "mailgate_login_started_total", "Login starts that posed an OTP challenge."},
	{mailgate.MetricLoginFailure, "mailgate_login_failure_total", "Login starts the platform rejected."},
	{mailgate.MetricTokensIssued, "mailgate_tokens_issued_total", "Challenge answers that produced credentials."},
	{mailgate.MetricAnswerRejected, "mailgate_answer_rejected_total", "Challenge answers that were rejected."},
	{mailgate.MetricRefreshSuccess, "mailgate_refresh_success_total", "Refresh exchanges that were honored."},
	{mailgate.MetricRefreshFailure, "mailgate_refresh_failure_total", "Refresh exchanges that were refused or failed."},
	{mailgate.MetricVerifySuccess, "mailgate_verify_success_total", "Access credentials that verified."},
	{mailgate.MetricVerifyFailure, "mailgate_verify_failure_total", "Access credentials that failed verification."},
	{mailgate.MetricSignOut, "mailgate_signout_total", "Sign-outs that revoked a refresh token."},
}
